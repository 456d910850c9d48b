// Package engine is the session and scoring engine. It owns session
// lifecycles, evaluates answers, keeps the attempt ledger and decides when
// a session is completed or expired.
//
// Every mutation of a session runs under a per-session Locker and inside one
// repository transaction, so concurrent submissions for the same session are
// applied one at a time while different sessions proceed in parallel.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/D-Sharma-melb/EscapeRoom/internal/escaperoom"
)

type Engine struct {
	repo   escaperoom.Repository
	locks  Locker
	ledger *Ledger
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDs replaces the UUID generator.
func WithIDs(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

func New(repo escaperoom.Repository, locks Locker, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		repo:   repo,
		locks:  locks,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ledger = &Ledger{now: e.now, newID: e.newID}
	return e
}

// CreateSession opens an ACTIVE session for playerID bound to a snapshot of
// the room's current objects.
func (e *Engine) CreateSession(ctx context.Context, roomID, playerID string) (escaperoom.Session, error) {
	if err := required("roomId", roomID, "playerId", playerID); err != nil {
		return escaperoom.Session{}, err
	}

	room, err := e.repo.Room(ctx, roomID)
	if err != nil {
		return escaperoom.Session{}, err
	}
	if len(room.Objects) == 0 {
		return escaperoom.Session{}, fmt.Errorf("room %s has no puzzle objects: %w", roomID, escaperoom.ErrValidation)
	}

	catalog := make([]escaperoom.PuzzleObject, len(room.Objects))
	copy(catalog, room.Objects)

	sess := escaperoom.Session{
		ID:           e.newID(),
		RoomID:       room.ID,
		PlayerID:     playerID,
		Status:       escaperoom.StatusActive,
		MaxScore:     escaperoom.TotalPoints(catalog),
		TimerSeconds: room.TimerSeconds,
		StartedAt:    e.now().UTC(),
	}
	if err := e.repo.InsertSession(ctx, sess, catalog); err != nil {
		return escaperoom.Session{}, fmt.Errorf("creating session: %w", err)
	}

	e.logger.Info("session created",
		"session_id", sess.ID,
		"room_id", sess.RoomID,
		"player_id", sess.PlayerID,
		"objects", len(catalog),
	)
	return sess, nil
}

// SubmitAnswer records an answer for objectID, updates the score and
// completes the session when every object in its catalog is solved.
func (e *Engine) SubmitAnswer(ctx context.Context, sessionID, objectID, answer string) (escaperoom.AttemptResult, error) {
	if err := required("sessionId", sessionID, "objectId", objectID); err != nil {
		return escaperoom.AttemptResult{}, err
	}

	unlock, err := e.locks.Lock(ctx, sessionID)
	if err != nil {
		return escaperoom.AttemptResult{}, fmt.Errorf("locking session %s: %w", sessionID, err)
	}
	defer unlock()

	var result escaperoom.AttemptResult
	var completed bool
	err = e.repo.Atomically(ctx, func(tx escaperoom.Tx) error {
		rec, err := e.ledger.RecordAttempt(ctx, tx, sessionID, objectID, answer)
		if err != nil {
			return err
		}
		result.Attempt = rec.Attempt

		switch {
		case rec.Conflict:
			score, err := tx.RecomputeScore(ctx, sessionID)
			if err != nil {
				return err
			}
			e.logger.Warn("duplicate award rejected by store, score re-derived from ledger",
				"session_id", sessionID,
				"object_id", objectID,
				"score", score,
			)
		case rec.Attempt.PointsAwarded > 0:
			if err := tx.AddScore(ctx, sessionID, rec.Attempt.PointsAwarded); err != nil {
				return err
			}
		}

		if rec.Attempt.IsCorrect {
			done, err := sessionComplete(ctx, tx, sessionID)
			if err != nil {
				return err
			}
			if done {
				completed, err = tx.Finish(ctx, sessionID, escaperoom.StatusCompleted, e.now().UTC())
				if err != nil {
					return err
				}
			}
		}

		result.Session, err = tx.Session(ctx, sessionID)
		return err
	})
	if err != nil {
		return escaperoom.AttemptResult{}, err
	}

	if completed {
		e.logger.Info("session completed",
			"session_id", sessionID,
			"score", result.Session.Score,
		)
	}
	return result, nil
}

// Expire moves an ACTIVE session to EXPIRED. A session that already reached
// a terminal state is returned unchanged.
func (e *Engine) Expire(ctx context.Context, sessionID string) (escaperoom.Session, error) {
	if err := required("sessionId", sessionID); err != nil {
		return escaperoom.Session{}, err
	}

	unlock, err := e.locks.Lock(ctx, sessionID)
	if err != nil {
		return escaperoom.Session{}, fmt.Errorf("locking session %s: %w", sessionID, err)
	}
	defer unlock()

	var sess escaperoom.Session
	var expired bool
	err = e.repo.Atomically(ctx, func(tx escaperoom.Tx) error {
		cur, err := tx.Session(ctx, sessionID)
		if err != nil {
			return err
		}
		if cur.Status.Terminal() {
			sess = cur
			return nil
		}
		expired, err = tx.Finish(ctx, sessionID, escaperoom.StatusExpired, e.now().UTC())
		if err != nil {
			return err
		}
		sess, err = tx.Session(ctx, sessionID)
		return err
	})
	if err != nil {
		return escaperoom.Session{}, err
	}

	if expired {
		e.logger.Info("session expired",
			"session_id", sessionID,
			"score", sess.Score,
		)
	}
	return sess, nil
}

func (e *Engine) GetSession(ctx context.Context, sessionID string) (escaperoom.Session, error) {
	if err := required("sessionId", sessionID); err != nil {
		return escaperoom.Session{}, err
	}
	return e.repo.Session(ctx, sessionID)
}

// State returns the session with its catalog snapshot, ledger and solved
// object ids.
func (e *Engine) State(ctx context.Context, sessionID string) (escaperoom.SessionState, error) {
	sess, err := e.GetSession(ctx, sessionID)
	if err != nil {
		return escaperoom.SessionState{}, err
	}
	catalog, err := e.repo.Catalog(ctx, sessionID)
	if err != nil {
		return escaperoom.SessionState{}, err
	}
	attempts, err := e.repo.Attempts(ctx, sessionID)
	if err != nil {
		return escaperoom.SessionState{}, err
	}
	solved, err := e.repo.SolvedObjectIDs(ctx, sessionID)
	if err != nil {
		return escaperoom.SessionState{}, err
	}
	return escaperoom.SessionState{
		Session:  sess,
		Catalog:  catalog,
		Attempts: attempts,
		Solved:   solved,
	}, nil
}

func (e *Engine) PlayerSessions(ctx context.Context, playerID string) ([]escaperoom.Session, error) {
	if err := required("playerId", playerID); err != nil {
		return nil, err
	}
	return e.repo.SessionsByPlayer(ctx, playerID)
}

// required takes name/value pairs and fails on the first blank value.
func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fmt.Errorf("%s is required: %w", pairs[i], escaperoom.ErrValidation)
		}
	}
	return nil
}
