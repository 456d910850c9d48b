package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/D-Sharma-melb/EscapeRoom/internal/escaperoom"
)

func (s *SQLiteStore) CreateUser(ctx context.Context, u escaperoom.User) (escaperoom.User, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}

	err := s.withRetry(ctx, "create user", func() error {
		return insertUser(ctx, s.db, &u)
	})
	if err != nil {
		return escaperoom.User{}, err
	}
	return u, nil
}

func insertUser(ctx context.Context, q querier, u *escaperoom.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO users (id, username, role, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.Username, string(u.Role), u.PasswordHash, formatTime(u.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("username %q is taken: %w", u.Username, escaperoom.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// ListUsers returns every user, newest first.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]escaperoom.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, role, password_hash, created_at
		FROM users
		ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []escaperoom.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser stores u's username, role and password hash.
func (s *SQLiteStore) UpdateUser(ctx context.Context, u escaperoom.User) (escaperoom.User, error) {
	err := s.withRetry(ctx, "update user", func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE users SET username = ?, role = ?, password_hash = ?
			WHERE id = ?
		`, u.Username, string(u.Role), u.PasswordHash, u.ID)
		if isUniqueViolation(err) {
			return fmt.Errorf("username %q is taken: %w", u.Username, escaperoom.ErrConflict)
		}
		if err != nil {
			return err
		}
		return affectedOrNotFound(res, "user", u.ID)
	})
	if err != nil {
		return escaperoom.User{}, err
	}
	return s.UserByID(ctx, u.ID)
}

// DeleteUser removes the account together with the rooms it created and
// the sessions it played. Sessions other players started in those rooms
// keep their catalog snapshot.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id string) error {
	return s.withRetry(ctx, "delete user", func() error {
		return s.inTx(ctx, func(q querier) error {
			stmts := []string{
				`DELETE FROM attempts WHERE session_id IN (SELECT id FROM sessions WHERE player_id = ?)`,
				`DELETE FROM session_catalog WHERE session_id IN (SELECT id FROM sessions WHERE player_id = ?)`,
				`DELETE FROM sessions WHERE player_id = ?`,
				`DELETE FROM rooms WHERE created_by = ?`,
			}
			for _, stmt := range stmts {
				if _, err := q.ExecContext(ctx, stmt, id); err != nil {
					return fmt.Errorf("deleting user %s: %w", id, err)
				}
			}
			res, err := q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
			if err != nil {
				return err
			}
			return affectedOrNotFound(res, "user", id)
		})
	})
}

// ImportIfEmpty writes users and rooms in one transaction, but only when
// the users table is empty. It reports whether anything was written.
func (s *SQLiteStore) ImportIfEmpty(ctx context.Context, users []escaperoom.User, rooms []escaperoom.Room) (bool, error) {
	var wrote bool
	err := s.withRetry(ctx, "import", func() error {
		wrote = false
		return s.inTx(ctx, func(q querier) error {
			var n int
			if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
				return err
			}
			if n > 0 {
				return nil
			}

			now := s.now().UTC()
			for i := range users {
				u := users[i]
				if u.CreatedAt.IsZero() {
					u.CreatedAt = now
				}
				if err := insertUser(ctx, q, &u); err != nil {
					return err
				}
			}
			for i := range rooms {
				r := rooms[i]
				r.Objects = append([]escaperoom.PuzzleObject(nil), r.Objects...)
				if r.CreatedAt.IsZero() {
					r.CreatedAt = now
				}
				if err := insertRoom(ctx, q, &r); err != nil {
					return fmt.Errorf("room %q: %w", r.Name, err)
				}
			}
			wrote = true
			return nil
		})
	})
	return wrote, err
}

func (s *SQLiteStore) UserByID(ctx context.Context, id string) (escaperoom.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, role, password_hash, created_at FROM users WHERE id = ?
	`, id))
	return u, notFound("user", id, err)
}

func (s *SQLiteStore) UserByUsername(ctx context.Context, username string) (escaperoom.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, role, password_hash, created_at FROM users WHERE username = ?
	`, username))
	return u, notFound("user", username, err)
}

func (s *SQLiteStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (escaperoom.User, error) {
	var u escaperoom.User
	var role, createdAt string
	if err := row.Scan(&u.ID, &u.Username, &role, &u.PasswordHash, &createdAt); err != nil {
		return escaperoom.User{}, err
	}
	u.Role = escaperoom.Role(role)
	t, err := parseTime(createdAt)
	if err != nil {
		return escaperoom.User{}, err
	}
	u.CreatedAt = t
	return u, nil
}
