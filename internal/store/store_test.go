package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/D-Sharma-melb/EscapeRoom/internal/database"
	"github.com/D-Sharma-melb/EscapeRoom/internal/escaperoom"
	"github.com/D-Sharma-melb/EscapeRoom/internal/migrations"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.RunContext(ctx, db))
	return New(db, nil)
}

func seedBuilder(t *testing.T, s *SQLiteStore) escaperoom.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), escaperoom.User{
		Username:     "builder",
		Role:         escaperoom.RoleBuilder,
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	return u
}

func seedRoom(t *testing.T, s *SQLiteStore, points ...int) escaperoom.Room {
	t.Helper()
	u := seedBuilder(t, s)
	r := escaperoom.Room{
		Name:         "Tomb",
		Theme:        escaperoom.ThemeAncient,
		TimerSeconds: 600,
		CreatedBy:    u.ID,
	}
	for i, p := range points {
		r.Objects = append(r.Objects, escaperoom.PuzzleObject{
			ID:             string(rune('a' + i)),
			Shape:          escaperoom.Shape{Type: escaperoom.ObjectChest, X: float64(i * 10), Y: 5, Width: 40, Height: 40},
			Question:       "q",
			ExpectedAnswer: "answer",
			Points:         p,
		})
	}
	room, err := s.CreateRoom(context.Background(), r)
	require.NoError(t, err)
	return room
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u := seedBuilder(t, s)
	assert.NotEmpty(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := s.UserByUsername(ctx, "builder")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, escaperoom.RoleBuilder, got.Role)

	got, err = s.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "builder", got.Username)

	_, err = s.CreateUser(ctx, escaperoom.User{Username: "builder", Role: escaperoom.RolePlayer, PasswordHash: "x"})
	assert.ErrorIs(t, err, escaperoom.ErrConflict)

	_, err = s.UserByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, escaperoom.ErrNotFound)

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRoomCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	room := seedRoom(t, s, 10, 20)

	got, err := s.Room(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tomb", got.Name)
	require.Len(t, got.Objects, 2)
	assert.Equal(t, "a", got.Objects[0].ID)
	assert.Equal(t, escaperoom.ObjectChest, got.Objects[0].Shape.Type)
	assert.Equal(t, 20, got.Objects[1].Points)

	got.Name = "Pyramid"
	got.TimerSeconds = 900
	updated, err := s.UpdateRoom(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "Pyramid", updated.Name)
	assert.Equal(t, 900, updated.TimerSeconds)

	obj, err := s.CreateObject(ctx, escaperoom.PuzzleObject{
		RoomID:         room.ID,
		Shape:          escaperoom.Shape{Type: escaperoom.ObjectKey},
		Question:       "new",
		ExpectedAnswer: "x",
		Points:         5,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, obj.ID)

	obj.Points = 50
	_, err = s.UpdateObject(ctx, obj)
	require.NoError(t, err)

	got, err = s.Room(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, got.Objects, 3)
	assert.Equal(t, 50, got.Objects[2].Points)

	require.NoError(t, s.DeleteObject(ctx, room.ID, "a"))
	assert.ErrorIs(t, s.DeleteObject(ctx, room.ID, "a"), escaperoom.ErrNotFound)

	require.NoError(t, s.DeleteObjects(ctx, room.ID))
	got, err = s.Room(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Objects)

	rooms, err := s.ListRooms(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)

	require.NoError(t, s.DeleteRoom(ctx, room.ID))
	_, err = s.Room(ctx, room.ID)
	assert.ErrorIs(t, err, escaperoom.ErrNotFound)
	assert.ErrorIs(t, s.DeleteRoom(ctx, room.ID), escaperoom.ErrNotFound)
}

func TestCreateObjectUnknownRoom(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateObject(context.Background(), escaperoom.PuzzleObject{
		RoomID:         "missing",
		Question:       "q",
		ExpectedAnswer: "a",
		Points:         1,
	})
	assert.ErrorIs(t, err, escaperoom.ErrNotFound)
}

func startSession(t *testing.T, s *SQLiteStore, room escaperoom.Room) escaperoom.Session {
	t.Helper()
	sess := escaperoom.Session{
		ID:           "s1",
		RoomID:       room.ID,
		PlayerID:     "p1",
		Status:       escaperoom.StatusActive,
		MaxScore:     escaperoom.TotalPoints(room.Objects),
		TimerSeconds: room.TimerSeconds,
		StartedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, s.InsertSession(context.Background(), sess, room.Objects))
	return sess
}

func TestSessionSnapshotSurvivesRoomDeletion(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	room := seedRoom(t, s, 10, 20)
	sess := startSession(t, s, room)

	require.NoError(t, s.DeleteRoom(ctx, room.ID))

	got, err := s.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, escaperoom.StatusActive, got.Status)
	assert.Equal(t, 30, got.MaxScore)
	assert.True(t, got.StartedAt.Equal(sess.StartedAt))
	assert.Nil(t, got.EndedAt)

	catalog, err := s.Catalog(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, catalog, 2)
	assert.Equal(t, "answer", catalog[0].ExpectedAnswer)
}

func TestTxLedger(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	room := seedRoom(t, s, 10, 20)
	sess := startSession(t, s, room)
	now := time.Now()

	err := s.Atomically(ctx, func(tx escaperoom.Tx) error {
		obj, err := tx.CatalogObject(ctx, sess.ID, "a")
		require.NoError(t, err)
		assert.Equal(t, 10, obj.Points)

		_, err = tx.CatalogObject(ctx, sess.ID, "zzz")
		assert.ErrorIs(t, err, escaperoom.ErrNotFound)

		require.NoError(t, tx.AppendAttempt(ctx, escaperoom.Attempt{
			ID: "t1", SessionID: sess.ID, ObjectID: "a", SubmittedAnswer: "no", CreatedAt: now,
		}))
		require.NoError(t, tx.AppendAttempt(ctx, escaperoom.Attempt{
			ID: "t2", SessionID: sess.ID, ObjectID: "a", SubmittedAnswer: "answer",
			IsCorrect: true, PointsAwarded: 10, CreatedAt: now.Add(time.Millisecond),
		}))
		require.NoError(t, tx.AddScore(ctx, sess.ID, 10))

		solved, err := tx.HasCorrectAttempt(ctx, sess.ID, "a")
		require.NoError(t, err)
		assert.True(t, solved)

		err = tx.AppendAttempt(ctx, escaperoom.Attempt{
			ID: "t3", SessionID: sess.ID, ObjectID: "a", SubmittedAnswer: "answer",
			IsCorrect: true, PointsAwarded: 10, CreatedAt: now.Add(2 * time.Millisecond),
		})
		assert.ErrorIs(t, err, escaperoom.ErrConcurrencyConflict)

		ids, err := tx.SolvedObjectIDs(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, ids)
		return nil
	})
	require.NoError(t, err)

	attempts, err := s.Attempts(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, "t1", attempts[0].ID)
	assert.False(t, attempts[0].IsCorrect)
	assert.True(t, attempts[1].IsCorrect)

	got, err := s.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Score)
}

func TestRecomputeScore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	room := seedRoom(t, s, 10, 20)
	sess := startSession(t, s, room)

	err := s.Atomically(ctx, func(tx escaperoom.Tx) error {
		require.NoError(t, tx.AppendAttempt(ctx, escaperoom.Attempt{
			ID: "t1", SessionID: sess.ID, ObjectID: "b", SubmittedAnswer: "answer",
			IsCorrect: true, PointsAwarded: 20, CreatedAt: time.Now(),
		}))
		require.NoError(t, tx.AddScore(ctx, sess.ID, 999))

		score, err := tx.RecomputeScore(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, 20, score)
		return nil
	})
	require.NoError(t, err)

	got, err := s.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.Score)
}

func TestFinishIsConditional(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	room := seedRoom(t, s, 10)
	sess := startSession(t, s, room)
	ended := time.Date(2026, 1, 2, 3, 10, 0, 0, time.UTC)

	err := s.Atomically(ctx, func(tx escaperoom.Tx) error {
		ok, err := tx.Finish(ctx, sess.ID, escaperoom.StatusCompleted, ended)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tx.Finish(ctx, sess.ID, escaperoom.StatusExpired, ended)
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = tx.Finish(ctx, sess.ID, escaperoom.StatusActive, ended)
		assert.ErrorIs(t, err, escaperoom.ErrValidation)
		return nil
	})
	require.NoError(t, err)

	got, err := s.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, escaperoom.StatusCompleted, got.Status)
	require.NotNil(t, got.EndedAt)
	assert.True(t, got.EndedAt.Equal(ended))
}

func TestAtomicallyRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	room := seedRoom(t, s, 10)
	sess := startSession(t, s, room)

	boom := errors.New("boom")
	err := s.Atomically(ctx, func(tx escaperoom.Tx) error {
		require.NoError(t, tx.AddScore(ctx, sess.ID, 10))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Score)
}

func TestSessionsByPlayer(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	room := seedRoom(t, s, 10)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "new"} {
		require.NoError(t, s.InsertSession(ctx, escaperoom.Session{
			ID: id, RoomID: room.ID, PlayerID: "p1", Status: escaperoom.StatusActive,
			MaxScore: 10, TimerSeconds: 600, StartedAt: base.Add(time.Duration(i) * time.Hour),
		}, room.Objects))
	}

	sessions, err := s.SessionsByPlayer(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "new", sessions[0].ID)
	assert.Equal(t, "old", sessions[1].ID)

	sessions, err = s.SessionsByPlayer(ctx, "p2")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestIsBusy(t *testing.T) {
	assert.True(t, isBusy(errors.New("SQLITE_BUSY: database is busy")))
	assert.True(t, isBusy(errors.New("database is locked")))
	assert.False(t, isBusy(errors.New("no such table")))
	assert.False(t, isBusy(nil))
}

func TestWithRetry(t *testing.T) {
	s := New(nil, nil)
	s.retry = retryPolicy{attempts: 3, baseDelay: time.Millisecond}

	calls := 0
	err := s.withRetry(context.Background(), "test", func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = s.withRetry(context.Background(), "test", func() error {
		calls++
		return errors.New("constraint failed")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestUserManagement(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	room := seedRoom(t, s, 10)
	builder, err := s.UserByUsername(ctx, "builder")
	require.NoError(t, err)

	player, err := s.CreateUser(ctx, escaperoom.User{Username: "player", Role: escaperoom.RolePlayer, PasswordHash: "hash"})
	require.NoError(t, err)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "player", users[0].Username)
	assert.Equal(t, "builder", users[1].Username)

	player.Username = "builder"
	_, err = s.UpdateUser(ctx, player)
	assert.ErrorIs(t, err, escaperoom.ErrConflict)

	player.Username = "renamed"
	player.PasswordHash = "new-hash"
	updated, err := s.UpdateUser(ctx, player)
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Username)
	assert.Equal(t, "new-hash", updated.PasswordHash)

	_, err = s.UpdateUser(ctx, escaperoom.User{ID: "missing", Username: "x", Role: escaperoom.RolePlayer})
	assert.ErrorIs(t, err, escaperoom.ErrNotFound)

	// A session the builder played in their own room, and one the player
	// started in the same room.
	require.NoError(t, s.InsertSession(ctx, escaperoom.Session{
		ID: "own", RoomID: room.ID, PlayerID: builder.ID, Status: escaperoom.StatusActive,
		MaxScore: 10, TimerSeconds: 600, StartedAt: time.Now().UTC(),
	}, room.Objects))
	require.NoError(t, s.InsertSession(ctx, escaperoom.Session{
		ID: "other", RoomID: room.ID, PlayerID: player.ID, Status: escaperoom.StatusActive,
		MaxScore: 10, TimerSeconds: 600, StartedAt: time.Now().UTC(),
	}, room.Objects))
	require.NoError(t, s.Atomically(ctx, func(tx escaperoom.Tx) error {
		return tx.AppendAttempt(ctx, escaperoom.Attempt{
			ID: "att", SessionID: "own", ObjectID: "a", SubmittedAnswer: "answer",
			IsCorrect: true, PointsAwarded: 10, CreatedAt: time.Now().UTC(),
		})
	}))

	require.NoError(t, s.DeleteUser(ctx, builder.ID))
	assert.ErrorIs(t, s.DeleteUser(ctx, builder.ID), escaperoom.ErrNotFound)

	_, err = s.UserByID(ctx, builder.ID)
	assert.ErrorIs(t, err, escaperoom.ErrNotFound)
	_, err = s.Room(ctx, room.ID)
	assert.ErrorIs(t, err, escaperoom.ErrNotFound)
	_, err = s.Session(ctx, "own")
	assert.ErrorIs(t, err, escaperoom.ErrNotFound)

	other, err := s.Session(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, player.ID, other.PlayerID)
	catalog, err := s.Catalog(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, catalog, 1)
}

func TestImportIfEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	users := []escaperoom.User{{ID: "u1", Username: "maker", Role: escaperoom.RoleBuilder, PasswordHash: "hash"}}
	room := escaperoom.Room{
		Name: "Vault", Theme: escaperoom.ThemeSpace, TimerSeconds: 600, CreatedBy: "u1",
		Objects: []escaperoom.PuzzleObject{{
			Shape: escaperoom.Shape{Type: escaperoom.ObjectKey}, Question: "q", ExpectedAnswer: "a", Points: 10,
		}},
	}

	// The second room references a user that does not exist; nothing from
	// the batch may survive.
	orphan := room
	orphan.Name = "Orphan"
	orphan.CreatedBy = "ghost"
	wrote, err := s.ImportIfEmpty(ctx, users, []escaperoom.Room{room, orphan})
	require.Error(t, err)
	assert.False(t, wrote)

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	rooms, err := s.ListRooms(ctx)
	require.NoError(t, err)
	assert.Empty(t, rooms)

	wrote, err = s.ImportIfEmpty(ctx, users, []escaperoom.Room{room})
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Empty(t, room.Objects[0].ID, "caller's objects are not mutated")

	rooms, err = s.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "u1", rooms[0].CreatedBy)

	wrote, err = s.ImportIfEmpty(ctx, users, []escaperoom.Room{room})
	require.NoError(t, err)
	assert.False(t, wrote)
}
