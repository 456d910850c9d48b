package server

import (
	"encoding/json"
	"sync"

	"github.com/D-Sharma-melb/EscapeRoom/internal/escaperoom"
)

// EventType names what happened to a session. SSE clients see it as the
// event name, websocket clients as the type field of the JSON message.
type EventType string

const (
	EventAttemptRecorded  EventType = "attempt_recorded"
	EventSessionCompleted EventType = "session_completed"
	EventSessionExpired   EventType = "session_expired"
)

// subscriberBuffer is how many frames a listener may fall behind before
// further frames for it are dropped.
const subscriberBuffer = 16

// Event is the payload published to a session's subscribers.
type Event struct {
	Type          EventType `json:"type"`
	SessionID     string    `json:"sessionId"`
	ObjectID      string    `json:"objectId,omitempty"`
	IsCorrect     bool      `json:"isCorrect,omitempty"`
	PointsAwarded int       `json:"pointsAwarded,omitempty"`
	Score         int       `json:"score"`
	Status        string    `json:"status"`
}

// Frame is an event encoded once in Publish and shared by every listener.
type Frame struct {
	Type EventType
	Data []byte
}

// Subscription is one listener on a session's events.
type Subscription struct {
	C         <-chan Frame
	sessionID string
	ch        chan Frame
}

// Broker fans session events out to the SSE and websocket listeners
// connected to this process. Listeners on other instances behind the same
// Redis are not reached.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan Frame]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[string]map[chan Frame]struct{}),
	}
}

func (b *Broker) Subscribe(sessionID string) *Subscription {
	ch := make(chan Frame, subscriberBuffer)
	b.mu.Lock()
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[chan Frame]struct{})
	}
	b.subs[sessionID][ch] = struct{}{}
	b.mu.Unlock()
	return &Subscription{C: ch, sessionID: sessionID, ch: ch}
}

func (b *Broker) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs[sub.sessionID], sub.ch)
	if len(b.subs[sub.sessionID]) == 0 {
		delete(b.subs, sub.sessionID)
	}
	b.mu.Unlock()
}

// Publish delivers event to every listener of event.SessionID without
// blocking. A listener whose buffer is full misses the frame; the next
// state read or event carries the current score and status anyway.
func (b *Broker) Publish(event Event) {
	data, _ := json.Marshal(event)
	f := Frame{Type: event.Type, Data: data}

	b.mu.RLock()
	for ch := range b.subs[event.SessionID] {
		select {
		case ch <- f:
		default:
		}
	}
	b.mu.RUnlock()
}

// PublishAttempt announces a recorded answer. An attempt that left the
// session COMPLETED also announces the completion: terminal sessions
// reject further answers, so only the finishing attempt can see that.
func (b *Broker) PublishAttempt(res escaperoom.AttemptResult) {
	b.Publish(Event{
		Type:          EventAttemptRecorded,
		SessionID:     res.Session.ID,
		ObjectID:      res.Attempt.ObjectID,
		IsCorrect:     res.Attempt.IsCorrect,
		PointsAwarded: res.Attempt.PointsAwarded,
		Score:         res.Session.Score,
		Status:        string(res.Session.Status),
	})
	if res.Session.Status == escaperoom.StatusCompleted {
		b.publishStatus(EventSessionCompleted, res.Session)
	}
}

// PublishExpired announces that sess ran out of time. Callers pass only
// transitions they caused, so replaying Expire on an already terminal
// session stays silent.
func (b *Broker) PublishExpired(sess escaperoom.Session) {
	b.publishStatus(EventSessionExpired, sess)
}

func (b *Broker) publishStatus(typ EventType, sess escaperoom.Session) {
	b.Publish(Event{
		Type:      typ,
		SessionID: sess.ID,
		Score:     sess.Score,
		Status:    string(sess.Status),
	})
}

// Subscribers reports how many listeners the session has.
func (b *Broker) Subscribers(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[sessionID])
}
