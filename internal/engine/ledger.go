package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/D-Sharma-melb/EscapeRoom/internal/escaperoom"
)

// Ledger records answer submissions. It must be used inside the
// per-session lock and a transaction; it does no locking of its own.
type Ledger struct {
	now   func() time.Time
	newID func() string
}

// Recorded is the ledger's outcome for one submission. Conflict is set when
// the store refused an award that this call believed was the first one; the
// attempt was then stored with no points.
type Recorded struct {
	Attempt  escaperoom.Attempt
	Conflict bool
}

// RecordAttempt evaluates answer against the session's catalog snapshot and
// appends the attempt. Only the first correct attempt per object carries
// points.
func (l *Ledger) RecordAttempt(ctx context.Context, tx escaperoom.Tx, sessionID, objectID, answer string) (Recorded, error) {
	sess, err := tx.Session(ctx, sessionID)
	if err != nil {
		return Recorded{}, err
	}
	if sess.Status.Terminal() {
		return Recorded{}, fmt.Errorf("session %s is %s: %w", sessionID, sess.Status, escaperoom.ErrInvalidState)
	}

	obj, err := tx.CatalogObject(ctx, sessionID, objectID)
	if err != nil {
		return Recorded{}, err
	}

	a := escaperoom.Attempt{
		ID:              l.newID(),
		SessionID:       sessionID,
		ObjectID:        objectID,
		SubmittedAnswer: answer,
		IsCorrect:       Evaluate(answer, obj.ExpectedAnswer),
		CreatedAt:       l.now().UTC(),
	}

	if a.IsCorrect {
		solved, err := tx.HasCorrectAttempt(ctx, sessionID, objectID)
		if err != nil {
			return Recorded{}, err
		}
		if !solved {
			a.PointsAwarded = obj.Points
		}
	}

	err = tx.AppendAttempt(ctx, a)
	if errors.Is(err, escaperoom.ErrConcurrencyConflict) {
		// Someone else awarded this object first; keep the attempt for the
		// audit trail without points.
		a.PointsAwarded = 0
		if err := tx.AppendAttempt(ctx, a); err != nil {
			return Recorded{}, err
		}
		return Recorded{Attempt: a, Conflict: true}, nil
	}
	if err != nil {
		return Recorded{}, err
	}
	return Recorded{Attempt: a}, nil
}
