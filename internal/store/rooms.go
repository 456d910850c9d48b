package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/D-Sharma-melb/EscapeRoom/internal/escaperoom"
)

func (s *SQLiteStore) ListRooms(ctx context.Context) ([]escaperoom.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, theme, timer_seconds, created_by, created_at
		FROM rooms
		ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, err
	}

	var rooms []escaperoom.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		rooms = append(rooms, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Objects are loaded after the room cursor is closed; the pool holds a
	// single connection.
	for i := range rooms {
		objs, err := roomObjects(ctx, s.db, rooms[i].ID)
		if err != nil {
			return nil, err
		}
		rooms[i].Objects = objs
	}
	return rooms, nil
}

// Room returns the room with its objects in creation order.
func (s *SQLiteStore) Room(ctx context.Context, roomID string) (escaperoom.Room, error) {
	r, err := scanRoom(s.db.QueryRowContext(ctx, `
		SELECT id, name, description, theme, timer_seconds, created_by, created_at
		FROM rooms WHERE id = ?
	`, roomID))
	if err != nil {
		return escaperoom.Room{}, notFound("room", roomID, err)
	}
	r.Objects, err = roomObjects(ctx, s.db, roomID)
	if err != nil {
		return escaperoom.Room{}, err
	}
	return r, nil
}

// CreateRoom inserts r and any objects it carries in one transaction.
func (s *SQLiteStore) CreateRoom(ctx context.Context, r escaperoom.Room) (escaperoom.Room, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}

	err := s.withRetry(ctx, "create room", func() error {
		return s.inTx(ctx, func(q querier) error {
			return insertRoom(ctx, q, &r)
		})
	})
	if err != nil {
		return escaperoom.Room{}, err
	}
	if r.Objects == nil {
		r.Objects = []escaperoom.PuzzleObject{}
	}
	return r, nil
}

// insertRoom assigns missing ids and writes the room row and its objects.
func insertRoom(ctx context.Context, q querier, r *escaperoom.Room) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO rooms (id, name, description, theme, timer_seconds, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Name, r.Description, string(r.Theme), r.TimerSeconds, r.CreatedBy, formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting room: %w", err)
	}
	for i := range r.Objects {
		r.Objects[i].RoomID = r.ID
		if r.Objects[i].ID == "" {
			r.Objects[i].ID = uuid.NewString()
		}
		if err := insertObject(ctx, q, r.Objects[i]); err != nil {
			return err
		}
	}
	return nil
}

// UpdateRoom changes the room's own fields. Objects are managed separately.
func (s *SQLiteStore) UpdateRoom(ctx context.Context, r escaperoom.Room) (escaperoom.Room, error) {
	err := s.withRetry(ctx, "update room", func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE rooms SET name = ?, description = ?, theme = ?, timer_seconds = ?
			WHERE id = ?
		`, r.Name, r.Description, string(r.Theme), r.TimerSeconds, r.ID)
		if err != nil {
			return err
		}
		return affectedOrNotFound(res, "room", r.ID)
	})
	if err != nil {
		return escaperoom.Room{}, err
	}
	return s.Room(ctx, r.ID)
}

// DeleteRoom removes the room and its objects. Sessions started from it
// keep their catalog snapshot.
func (s *SQLiteStore) DeleteRoom(ctx context.Context, roomID string) error {
	return s.withRetry(ctx, "delete room", func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, roomID)
		if err != nil {
			return err
		}
		return affectedOrNotFound(res, "room", roomID)
	})
}

func (s *SQLiteStore) CreateObject(ctx context.Context, o escaperoom.PuzzleObject) (escaperoom.PuzzleObject, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	err := s.withRetry(ctx, "create object", func() error {
		return s.inTx(ctx, func(q querier) error {
			var exists int
			err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE id = ?`, o.RoomID).Scan(&exists)
			if err != nil {
				return err
			}
			if exists == 0 {
				return fmt.Errorf("room %s: %w", o.RoomID, escaperoom.ErrNotFound)
			}
			return insertObject(ctx, q, o)
		})
	})
	if err != nil {
		return escaperoom.PuzzleObject{}, err
	}
	return o, nil
}

func (s *SQLiteStore) UpdateObject(ctx context.Context, o escaperoom.PuzzleObject) (escaperoom.PuzzleObject, error) {
	shape, err := json.Marshal(o.Shape)
	if err != nil {
		return escaperoom.PuzzleObject{}, fmt.Errorf("encoding shape: %w", err)
	}
	err = s.withRetry(ctx, "update object", func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE puzzle_objects
			SET shape = ?, question = ?, expected_answer = ?, hint = ?, points = ?
			WHERE id = ? AND room_id = ?
		`, string(shape), o.Question, o.ExpectedAnswer, o.Hint, o.Points, o.ID, o.RoomID)
		if err != nil {
			return err
		}
		return affectedOrNotFound(res, "puzzle object", o.ID)
	})
	if err != nil {
		return escaperoom.PuzzleObject{}, err
	}
	return o, nil
}

func (s *SQLiteStore) DeleteObject(ctx context.Context, roomID, objectID string) error {
	return s.withRetry(ctx, "delete object", func() error {
		res, err := s.db.ExecContext(ctx, `
			DELETE FROM puzzle_objects WHERE id = ? AND room_id = ?
		`, objectID, roomID)
		if err != nil {
			return err
		}
		return affectedOrNotFound(res, "puzzle object", objectID)
	})
}

// DeleteObjects clears every object from the room.
func (s *SQLiteStore) DeleteObjects(ctx context.Context, roomID string) error {
	return s.withRetry(ctx, "delete objects", func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM puzzle_objects WHERE room_id = ?`, roomID)
		return err
	})
}

func insertObject(ctx context.Context, q querier, o escaperoom.PuzzleObject) error {
	shape, err := json.Marshal(o.Shape)
	if err != nil {
		return fmt.Errorf("encoding shape: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO puzzle_objects (id, room_id, shape, question, expected_answer, hint, points)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.RoomID, string(shape), o.Question, o.ExpectedAnswer, o.Hint, o.Points)
	if err != nil {
		return fmt.Errorf("inserting puzzle object: %w", err)
	}
	return nil
}

func roomObjects(ctx context.Context, q querier, roomID string) ([]escaperoom.PuzzleObject, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, room_id, shape, question, expected_answer, hint, points
		FROM puzzle_objects
		WHERE room_id = ?
		ORDER BY rowid
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	objs := []escaperoom.PuzzleObject{}
	for rows.Next() {
		var o escaperoom.PuzzleObject
		var shape string
		if err := rows.Scan(&o.ID, &o.RoomID, &shape, &o.Question, &o.ExpectedAnswer, &o.Hint, &o.Points); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(shape), &o.Shape); err != nil {
			return nil, fmt.Errorf("decoding shape of %s: %w", o.ID, err)
		}
		objs = append(objs, o)
	}
	return objs, rows.Err()
}

func scanRoom(row rowScanner) (escaperoom.Room, error) {
	var r escaperoom.Room
	var theme, createdAt string
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &theme, &r.TimerSeconds, &r.CreatedBy, &createdAt); err != nil {
		return escaperoom.Room{}, err
	}
	r.Theme = escaperoom.Theme(theme)
	t, err := parseTime(createdAt)
	if err != nil {
		return escaperoom.Room{}, err
	}
	r.CreatedAt = t
	return r, nil
}
