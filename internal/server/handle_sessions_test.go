package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/D-Sharma-melb/EscapeRoom/internal/escaperoom"
)

type sessionFixture struct {
	app     *testApp
	builder string
	player  string
	room    RoomResponse
	session SessionResponse
}

// newSessionFixture starts a player session in a room worth 10 + 20 points.
func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	app := newTestApp(t)
	builder, _ := app.account(t, "builder", escaperoom.RoleBuilder)
	player, _ := app.account(t, "player", escaperoom.RolePlayer)
	room := app.createRoom(t, builder,
		object(escaperoom.ObjectChest, "Atlantis", 10),
		object(escaperoom.ObjectLock, "4", 20),
	)

	rec := app.do(t, http.MethodPost, "/api/sessions", player, CreateSessionRequest{RoomID: room.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: got %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var sess SessionResponse
	decode(t, rec, &sess)

	return &sessionFixture{app: app, builder: builder, player: player, room: room, session: sess}
}

func (f *sessionFixture) submit(t *testing.T, objectID, answer string) *httptest.ResponseRecorder {
	t.Helper()
	return f.app.do(t, http.MethodPost, "/api/sessions/"+f.session.ID+"/attempts", f.player,
		SubmitAnswerRequest{ObjectID: objectID, Answer: answer})
}

func TestCreateSession(t *testing.T) {
	f := newSessionFixture(t)

	if f.session.Status != escaperoom.StatusActive {
		t.Errorf("got status %s, want ACTIVE", f.session.Status)
	}
	if f.session.MaxScore != 30 || f.session.Score != 0 {
		t.Errorf("got score %d/%d, want 0/30", f.session.Score, f.session.MaxScore)
	}
	if f.session.TimerSeconds != 300 {
		t.Errorf("got timer %d, want 300", f.session.TimerSeconds)
	}
	if !f.session.Deadline.Equal(f.session.StartedAt.Add(300 * time.Second)) {
		t.Errorf("got deadline %v, want start + 300s", f.session.Deadline)
	}

	rec := f.app.do(t, http.MethodPost, "/api/sessions", f.player, CreateSessionRequest{RoomID: "missing"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown room: got %d, want %d", rec.Code, http.StatusNotFound)
	}
	rec = f.app.do(t, http.MethodPost, "/api/sessions", f.player, CreateSessionRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing room id: got %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = f.app.do(t, http.MethodGet, "/api/sessions", f.player, nil)
	var list []SessionResponse
	decode(t, rec, &list)
	if len(list) != 1 || list[0].ID != f.session.ID {
		t.Errorf("got %+v, want the one session", list)
	}
}

func TestPlayScenario(t *testing.T) {
	f := newSessionFixture(t)
	chest, lock := f.room.Objects[0].ID, f.room.Objects[1].ID

	steps := []struct {
		objectID   string
		answer     string
		wantOK     bool
		wantPoints int
		wantScore  int
		wantStatus escaperoom.Status
	}{
		{chest, "atlantic", false, 0, 0, escaperoom.StatusActive},
		{chest, "  ATLANTIS ", true, 10, 10, escaperoom.StatusActive},
		{chest, "atlantis", true, 0, 10, escaperoom.StatusActive},
		{lock, "4", true, 20, 30, escaperoom.StatusCompleted},
	}
	for i, s := range steps {
		rec := f.submit(t, s.objectID, s.answer)
		if rec.Code != http.StatusOK {
			t.Fatalf("step %d: got %d, want %d: %s", i, rec.Code, http.StatusOK, rec.Body.String())
		}
		var resp SubmitAnswerResponse
		decode(t, rec, &resp)
		if resp.Attempt.IsCorrect != s.wantOK || resp.Attempt.PointsAwarded != s.wantPoints {
			t.Errorf("step %d: got correct=%v points=%d, want %v/%d",
				i, resp.Attempt.IsCorrect, resp.Attempt.PointsAwarded, s.wantOK, s.wantPoints)
		}
		if resp.Session.Score != s.wantScore || resp.Session.Status != s.wantStatus {
			t.Errorf("step %d: got score=%d status=%s, want %d/%s",
				i, resp.Session.Score, resp.Session.Status, s.wantScore, s.wantStatus)
		}
	}

	rec := f.submit(t, lock, "4")
	if rec.Code != http.StatusConflict {
		t.Errorf("submit after completion: got %d, want %d", rec.Code, http.StatusConflict)
	}

	rec = f.app.do(t, http.MethodGet, "/api/sessions/"+f.session.ID, f.player, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("state: got %d, want %d", rec.Code, http.StatusOK)
	}
	var st SessionStateResponse
	decode(t, rec, &st)
	if len(st.Attempts) != 4 {
		t.Errorf("got %d attempts, want 4", len(st.Attempts))
	}
	if len(st.Solved) != 2 {
		t.Errorf("got %d solved, want 2", len(st.Solved))
	}
	if st.Session.EndedAt == nil {
		t.Error("completed session has no end time")
	}
	for _, item := range st.Catalog {
		if !item.Solved {
			t.Errorf("catalog item %s not marked solved", item.ID)
		}
	}
	if strings.Contains(rec.Body.String(), "Atlantis") {
		t.Error("session state leaks expected answers")
	}
}

func TestSubmitAnswerErrors(t *testing.T) {
	f := newSessionFixture(t)

	rec := f.submit(t, "not-in-room", "x")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown object: got %d, want %d", rec.Code, http.StatusNotFound)
	}
	rec = f.submit(t, "", "x")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing object: got %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestSessionHiddenFromOtherPlayers(t *testing.T) {
	f := newSessionFixture(t)
	other, _ := f.app.account(t, "other", escaperoom.RolePlayer)

	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/sessions/" + f.session.ID},
		{http.MethodPost, "/api/sessions/" + f.session.ID + "/expire"},
		{http.MethodGet, "/api/sessions/missing"},
	}
	for _, p := range paths {
		rec := f.app.do(t, p.method, p.path, other, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s: got %d, want %d", p.method, p.path, rec.Code, http.StatusNotFound)
		}
	}

	rec := f.app.do(t, http.MethodPost, "/api/sessions/"+f.session.ID+"/attempts", other,
		SubmitAnswerRequest{ObjectID: f.room.Objects[0].ID, Answer: "Atlantis"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign submit: got %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestExpireSession(t *testing.T) {
	f := newSessionFixture(t)
	f.submit(t, f.room.Objects[0].ID, "Atlantis")

	sub := f.app.broker.Subscribe(f.session.ID)
	defer f.app.broker.Unsubscribe(sub)

	path := "/api/sessions/" + f.session.ID + "/expire"
	for i := 0; i < 2; i++ {
		rec := f.app.do(t, http.MethodPost, path, f.player, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expire %d: got %d, want %d", i, rec.Code, http.StatusOK)
		}
		var sess SessionResponse
		decode(t, rec, &sess)
		if sess.Status != escaperoom.StatusExpired || sess.Score != 10 {
			t.Errorf("expire %d: got %s with %d, want EXPIRED with 10", i, sess.Status, sess.Score)
		}
	}

	if got := len(sub.C); got != 1 {
		t.Errorf("got %d expire events, want 1", got)
	}

	rec := f.submit(t, f.room.Objects[1].ID, "4")
	if rec.Code != http.StatusConflict {
		t.Errorf("submit after expiry: got %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestSessionSurvivesRoomDeletion(t *testing.T) {
	f := newSessionFixture(t)

	rec := f.app.do(t, http.MethodDelete, "/api/rooms/"+f.room.ID, f.builder, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete room: got %d, want %d", rec.Code, http.StatusNoContent)
	}

	rec = f.submit(t, f.room.Objects[1].ID, "4")
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: got %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp SubmitAnswerResponse
	decode(t, rec, &resp)
	if resp.Session.Score != 20 {
		t.Errorf("got score %d, want 20", resp.Session.Score)
	}
}

func TestSubmitPublishesEvents(t *testing.T) {
	f := newSessionFixture(t)
	sub := f.app.broker.Subscribe(f.session.ID)
	defer f.app.broker.Unsubscribe(sub)

	f.submit(t, f.room.Objects[0].ID, "Atlantis")
	f.submit(t, f.room.Objects[1].ID, "4")

	want := []EventType{EventAttemptRecorded, EventAttemptRecorded, EventSessionCompleted}
	for i, typ := range want {
		select {
		case f := <-sub.C:
			var ev Event
			if err := json.Unmarshal(f.Data, &ev); err != nil {
				t.Fatalf("unmarshal event: %v", err)
			}
			if f.Type != typ || ev.Type != typ {
				t.Errorf("event %d: got %s, want %s", i, ev.Type, typ)
			}
		case <-time.After(time.Second):
			t.Fatalf("event %d (%s) not published", i, typ)
		}
	}
}

func waitForSubscriber(t *testing.T, b *Broker, sessionID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for b.Subscribers(sessionID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSessionEventStream(t *testing.T) {
	f := newSessionFixture(t)
	srv := httptest.NewServer(f.app.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		srv.URL+"/api/sessions/"+f.session.ID+"/events?token="+f.player, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content-type = %q, want text/event-stream", got)
	}

	waitForSubscriber(t, f.app.broker, f.session.ID)
	f.app.broker.Publish(Event{Type: EventSessionExpired, SessionID: f.session.ID, Status: "EXPIRED"})

	sc := bufio.NewScanner(resp.Body)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
		if strings.HasPrefix(sc.Text(), "data: ") {
			break
		}
	}
	if len(lines) < 2 || lines[len(lines)-2] != "event: session_expired" {
		t.Fatalf("got lines %q, want an event: session_expired frame", lines)
	}
	if !strings.Contains(lines[len(lines)-1], `"status":"EXPIRED"`) {
		t.Errorf("got data %q, want status EXPIRED", lines[len(lines)-1])
	}
}

func TestSessionFeedWebsocket(t *testing.T) {
	f := newSessionFixture(t)
	srv := httptest.NewServer(f.app.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/" + f.session.ID + "?token=" + f.player
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	waitForSubscriber(t, f.app.broker, f.session.ID)
	f.submit(t, f.room.Objects[0].ID, "Atlantis")

	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if typ != websocket.MessageText {
		t.Errorf("got message type %v, want text", typ)
	}
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if ev.Type != EventAttemptRecorded || ev.Score != 10 || !ev.IsCorrect {
		t.Errorf("got %+v, want a correct attempt scoring 10", ev)
	}

	conn.Close(websocket.StatusNormalClosure, "")
}

func TestSessionFeedRequiresOwner(t *testing.T) {
	f := newSessionFixture(t)
	other, _ := f.app.account(t, "other", escaperoom.RolePlayer)

	rec := f.app.do(t, http.MethodGet, "/ws/sessions/"+f.session.ID+"?token="+other, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("got %d, want %d", rec.Code, http.StatusNotFound)
	}
}
