// Package escaperoom defines the core domain types and persistence interfaces.
// It has no external dependencies.
package escaperoom

import "time"

const (
	DefaultPoints       = 10
	MinPoints           = 1
	MaxPoints           = 100
	DefaultTimerSeconds = 600
	MinTimerSeconds     = 60
	MaxTimerSeconds     = 1800
)

type Theme string

const (
	ThemeAncient Theme = "ANCIENT"
	ThemeSpace   Theme = "SPACE"
)

func (t Theme) Valid() bool {
	return t == ThemeAncient || t == ThemeSpace
}

type Role string

const (
	RoleBuilder Role = "BUILDER"
	RolePlayer  Role = "PLAYER"
)

func (r Role) Valid() bool {
	return r == RoleBuilder || r == RolePlayer
}

// ObjectType is the kind of prop drawn on the canvas. The engine never
// looks at it.
type ObjectType string

const (
	ObjectKey    ObjectType = "KEY"
	ObjectLock   ObjectType = "LOCK"
	ObjectDoor   ObjectType = "DOOR"
	ObjectChest  ObjectType = "CHEST"
	ObjectPuzzle ObjectType = "PUZZLE"
	ObjectCode   ObjectType = "CODE"
)

func (t ObjectType) Valid() bool {
	switch t {
	case ObjectKey, ObjectLock, ObjectDoor, ObjectChest, ObjectPuzzle, ObjectCode:
		return true
	}
	return false
}

type User struct {
	ID           string
	Username     string
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
}

type Room struct {
	ID           string
	Name         string
	Description  string
	Theme        Theme
	TimerSeconds int
	CreatedBy    string
	CreatedAt    time.Time
	Objects      []PuzzleObject
}

// Shape positions an object on the canvas.
type Shape struct {
	Type     ObjectType `json:"type"`
	X        float64    `json:"x"`
	Y        float64    `json:"y"`
	Width    float64    `json:"width"`
	Height   float64    `json:"height"`
	Rotation float64    `json:"rotation"`
}

type PuzzleObject struct {
	ID             string
	RoomID         string
	Shape          Shape
	Question       string
	ExpectedAnswer string
	Hint           string
	Points         int
}

// TotalPoints is the highest score a session bound to objects can reach.
func TotalPoints(objects []PuzzleObject) int {
	total := 0
	for _, o := range objects {
		total += o.Points
	}
	return total
}

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusExpired   Status = "EXPIRED"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusExpired
}

type Session struct {
	ID           string
	RoomID       string
	PlayerID     string
	Status       Status
	Score        int
	MaxScore     int
	TimerSeconds int
	StartedAt    time.Time
	EndedAt      *time.Time
}

// Deadline is when the room's countdown runs out. It is advisory: the
// session only leaves ACTIVE through a completion or an explicit expire.
func (s Session) Deadline() time.Time {
	return s.StartedAt.Add(time.Duration(s.TimerSeconds) * time.Second)
}

type Attempt struct {
	ID              string
	SessionID       string
	ObjectID        string
	SubmittedAnswer string
	IsCorrect       bool
	PointsAwarded   int
	CreatedAt       time.Time
}

// AttemptResult is what SubmitAnswer hands back: the recorded attempt and
// the session as it stands after score and status were updated.
type AttemptResult struct {
	Attempt Attempt
	Session Session
}

// SessionState is a read view of a session with its catalog snapshot and
// ledger.
type SessionState struct {
	Session  Session
	Catalog  []PuzzleObject
	Attempts []Attempt
	Solved   []string
}
