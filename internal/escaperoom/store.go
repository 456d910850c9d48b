package escaperoom

import (
	"context"
	"time"
)

// Repository is the persistence the session engine consumes.
type Repository interface {
	// Room returns a room with its current puzzle objects.
	Room(ctx context.Context, roomID string) (Room, error)

	// InsertSession stores a new session together with the catalog
	// snapshot it is bound to.
	InsertSession(ctx context.Context, s Session, catalog []PuzzleObject) error

	Session(ctx context.Context, sessionID string) (Session, error)
	Catalog(ctx context.Context, sessionID string) ([]PuzzleObject, error)
	Attempts(ctx context.Context, sessionID string) ([]Attempt, error)
	SolvedObjectIDs(ctx context.Context, sessionID string) ([]string, error)
	SessionsByPlayer(ctx context.Context, playerID string) ([]Session, error)

	// Atomically runs fn inside a single transaction. Everything fn does
	// through tx commits together or not at all.
	Atomically(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of reads and writes the award, completion and transition
// sequence needs, bound to one transaction.
type Tx interface {
	Session(ctx context.Context, sessionID string) (Session, error)
	Catalog(ctx context.Context, sessionID string) ([]PuzzleObject, error)
	CatalogObject(ctx context.Context, sessionID, objectID string) (PuzzleObject, error)

	// HasCorrectAttempt reports whether the ledger already holds a correct
	// attempt for the (session, object) pair.
	HasCorrectAttempt(ctx context.Context, sessionID, objectID string) (bool, error)

	// AppendAttempt adds a to the ledger. A second awarding attempt for the
	// same (session, object) pair fails with ErrConcurrencyConflict.
	AppendAttempt(ctx context.Context, a Attempt) error

	SolvedObjectIDs(ctx context.Context, sessionID string) ([]string, error)
	AddScore(ctx context.Context, sessionID string, delta int) error

	// RecomputeScore re-derives the score from the ledger and stores it.
	RecomputeScore(ctx context.Context, sessionID string) (int, error)

	// Finish moves an ACTIVE session to status. It reports false, and
	// changes nothing, when the session already left ACTIVE.
	Finish(ctx context.Context, sessionID string, status Status, endedAt time.Time) (bool, error)
}

// RoomStore is the authoring side: plain CRUD over rooms and their objects.
type RoomStore interface {
	ListRooms(ctx context.Context) ([]Room, error)
	CreateRoom(ctx context.Context, r Room) (Room, error)
	UpdateRoom(ctx context.Context, r Room) (Room, error)
	DeleteRoom(ctx context.Context, roomID string) error
	Room(ctx context.Context, roomID string) (Room, error)

	CreateObject(ctx context.Context, o PuzzleObject) (PuzzleObject, error)
	UpdateObject(ctx context.Context, o PuzzleObject) (PuzzleObject, error)
	DeleteObject(ctx context.Context, roomID, objectID string) error
	DeleteObjects(ctx context.Context, roomID string) error
}

type UserStore interface {
	CreateUser(ctx context.Context, u User) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	UserByUsername(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, u User) (User, error)

	// DeleteUser removes the account with the rooms it created and the
	// sessions it played.
	DeleteUser(ctx context.Context, id string) error
	CountUsers(ctx context.Context) (int, error)
}
