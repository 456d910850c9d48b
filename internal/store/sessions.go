package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/D-Sharma-melb/EscapeRoom/internal/escaperoom"
)

// InsertSession stores s and copies catalog into session_catalog so later
// room edits cannot reach the session.
func (s *SQLiteStore) InsertSession(ctx context.Context, sess escaperoom.Session, catalog []escaperoom.PuzzleObject) error {
	return s.withRetry(ctx, "insert session", func() error {
		return s.inTx(ctx, func(q querier) error {
			_, err := q.ExecContext(ctx, `
				INSERT INTO sessions (id, room_id, player_id, status, score, max_score, timer_seconds, started_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, sess.ID, sess.RoomID, sess.PlayerID, string(sess.Status), sess.Score, sess.MaxScore,
				sess.TimerSeconds, formatTime(sess.StartedAt))
			if err != nil {
				return fmt.Errorf("inserting session: %w", err)
			}

			for i, o := range catalog {
				shape, err := json.Marshal(o.Shape)
				if err != nil {
					return fmt.Errorf("encoding shape: %w", err)
				}
				_, err = q.ExecContext(ctx, `
					INSERT INTO session_catalog
						(session_id, object_id, position, shape, question, expected_answer, hint, points)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				`, sess.ID, o.ID, i, string(shape), o.Question, o.ExpectedAnswer, o.Hint, o.Points)
				if err != nil {
					return fmt.Errorf("inserting catalog entry %s: %w", o.ID, err)
				}
			}
			return nil
		})
	})
}

func (s *SQLiteStore) Session(ctx context.Context, sessionID string) (escaperoom.Session, error) {
	return getSession(ctx, s.db, sessionID)
}

func (s *SQLiteStore) Catalog(ctx context.Context, sessionID string) ([]escaperoom.PuzzleObject, error) {
	return getCatalog(ctx, s.db, sessionID)
}

func (s *SQLiteStore) SolvedObjectIDs(ctx context.Context, sessionID string) ([]string, error) {
	return solvedObjectIDs(ctx, s.db, sessionID)
}

// Attempts returns the session's ledger in submission order.
func (s *SQLiteStore) Attempts(ctx context.Context, sessionID string) ([]escaperoom.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, object_id, submitted_answer, is_correct, points_awarded, created_at
		FROM attempts
		WHERE session_id = ?
		ORDER BY created_at, rowid
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := []escaperoom.Attempt{}
	for rows.Next() {
		var a escaperoom.Attempt
		var createdAt string
		if err := rows.Scan(&a.ID, &a.SessionID, &a.ObjectID, &a.SubmittedAnswer, &a.IsCorrect, &a.PointsAwarded, &createdAt); err != nil {
			return nil, err
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// SessionsByPlayer lists the player's sessions, newest first.
func (s *SQLiteStore) SessionsByPlayer(ctx context.Context, playerID string) ([]escaperoom.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, player_id, status, score, max_score, timer_seconds, started_at, ended_at
		FROM sessions
		WHERE player_id = ?
		ORDER BY started_at DESC, rowid DESC
	`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []escaperoom.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// sqlTx binds the engine's transactional operations to one *sql.Tx.
type sqlTx struct {
	q querier
}

func (t *sqlTx) Session(ctx context.Context, sessionID string) (escaperoom.Session, error) {
	return getSession(ctx, t.q, sessionID)
}

func (t *sqlTx) Catalog(ctx context.Context, sessionID string) ([]escaperoom.PuzzleObject, error) {
	return getCatalog(ctx, t.q, sessionID)
}

func (t *sqlTx) CatalogObject(ctx context.Context, sessionID, objectID string) (escaperoom.PuzzleObject, error) {
	var o escaperoom.PuzzleObject
	var shape string
	err := t.q.QueryRowContext(ctx, `
		SELECT object_id, shape, question, expected_answer, hint, points
		FROM session_catalog
		WHERE session_id = ? AND object_id = ?
	`, sessionID, objectID).Scan(&o.ID, &shape, &o.Question, &o.ExpectedAnswer, &o.Hint, &o.Points)
	if errors.Is(err, sql.ErrNoRows) {
		return o, fmt.Errorf("puzzle object %s in session %s: %w", objectID, sessionID, escaperoom.ErrNotFound)
	}
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal([]byte(shape), &o.Shape); err != nil {
		return o, fmt.Errorf("decoding shape of %s: %w", o.ID, err)
	}
	return o, nil
}

func (t *sqlTx) HasCorrectAttempt(ctx context.Context, sessionID, objectID string) (bool, error) {
	var n int
	err := t.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attempts
		WHERE session_id = ? AND object_id = ? AND is_correct = 1
	`, sessionID, objectID).Scan(&n)
	return n > 0, err
}

func (t *sqlTx) AppendAttempt(ctx context.Context, a escaperoom.Attempt) error {
	isCorrect := 0
	if a.IsCorrect {
		isCorrect = 1
	}
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO attempts (id, session_id, object_id, submitted_answer, is_correct, points_awarded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.SessionID, a.ObjectID, a.SubmittedAnswer, isCorrect, a.PointsAwarded, formatTime(a.CreatedAt))
	if a.PointsAwarded > 0 && isUniqueViolation(err) {
		return fmt.Errorf("award for %s in session %s: %w", a.ObjectID, a.SessionID, escaperoom.ErrConcurrencyConflict)
	}
	if err != nil {
		return fmt.Errorf("inserting attempt: %w", err)
	}
	return nil
}

func (t *sqlTx) SolvedObjectIDs(ctx context.Context, sessionID string) ([]string, error) {
	return solvedObjectIDs(ctx, t.q, sessionID)
}

func (t *sqlTx) AddScore(ctx context.Context, sessionID string, delta int) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE sessions SET score = score + ? WHERE id = ?
	`, delta, sessionID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res, "session", sessionID)
}

func (t *sqlTx) RecomputeScore(ctx context.Context, sessionID string) (int, error) {
	var score int
	err := t.q.QueryRowContext(ctx, `
		UPDATE sessions
		SET score = (SELECT COALESCE(SUM(points_awarded), 0) FROM attempts WHERE session_id = ?)
		WHERE id = ?
		RETURNING score
	`, sessionID, sessionID).Scan(&score)
	return score, notFound("session", sessionID, err)
}

func (t *sqlTx) Finish(ctx context.Context, sessionID string, status escaperoom.Status, endedAt time.Time) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("finish with non-terminal status %s: %w", status, escaperoom.ErrValidation)
	}
	res, err := t.q.ExecContext(ctx, `
		UPDATE sessions SET status = ?, ended_at = ?
		WHERE id = ? AND status = 'ACTIVE'
	`, string(status), formatTime(endedAt), sessionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func getSession(ctx context.Context, q querier, sessionID string) (escaperoom.Session, error) {
	sess, err := scanSession(q.QueryRowContext(ctx, `
		SELECT id, room_id, player_id, status, score, max_score, timer_seconds, started_at, ended_at
		FROM sessions WHERE id = ?
	`, sessionID))
	return sess, notFound("session", sessionID, err)
}

func getCatalog(ctx context.Context, q querier, sessionID string) ([]escaperoom.PuzzleObject, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT object_id, shape, question, expected_answer, hint, points
		FROM session_catalog
		WHERE session_id = ?
		ORDER BY position
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	catalog := []escaperoom.PuzzleObject{}
	for rows.Next() {
		var o escaperoom.PuzzleObject
		var shape string
		if err := rows.Scan(&o.ID, &shape, &o.Question, &o.ExpectedAnswer, &o.Hint, &o.Points); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(shape), &o.Shape); err != nil {
			return nil, fmt.Errorf("decoding shape of %s: %w", o.ID, err)
		}
		catalog = append(catalog, o)
	}
	return catalog, rows.Err()
}

func solvedObjectIDs(ctx context.Context, q querier, sessionID string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT DISTINCT object_id FROM attempts
		WHERE session_id = ? AND is_correct = 1
		ORDER BY object_id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanSession(row rowScanner) (escaperoom.Session, error) {
	var sess escaperoom.Session
	var status, startedAt string
	var endedAt sql.NullString
	err := row.Scan(&sess.ID, &sess.RoomID, &sess.PlayerID, &status, &sess.Score, &sess.MaxScore,
		&sess.TimerSeconds, &startedAt, &endedAt)
	if err != nil {
		return escaperoom.Session{}, err
	}
	sess.Status = escaperoom.Status(status)
	if sess.StartedAt, err = parseTime(startedAt); err != nil {
		return escaperoom.Session{}, err
	}
	if endedAt.Valid {
		t, err := parseTime(endedAt.String)
		if err != nil {
			return escaperoom.Session{}, err
		}
		sess.EndedAt = &t
	}
	return sess, nil
}
