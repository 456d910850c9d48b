package server

import (
	"time"

	"github.com/D-Sharma-melb/EscapeRoom/internal/escaperoom"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

type UserResponse struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	Role      escaperoom.Role `json:"role"`
	CreatedAt time.Time       `json:"createdAt"`
}

type SignupRequest struct {
	Username string          `json:"username"`
	Password string          `json:"password"`
	Role     escaperoom.Role `json:"role"`
}

// UpdateUserRequest changes only the fields that are present.
type UpdateUserRequest struct {
	Username *string          `json:"username,omitempty"`
	Password *string          `json:"password,omitempty"`
	Role     *escaperoom.Role `json:"role,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type ObjectRequest struct {
	Shape    escaperoom.Shape `json:"shape"`
	Question string           `json:"question"`
	Answer   string           `json:"answer"`
	Hint     string           `json:"hint,omitempty"`
	Points   int              `json:"points,omitempty"`
}

type RoomRequest struct {
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	Theme        escaperoom.Theme `json:"theme,omitempty"`
	TimerSeconds int              `json:"timerSeconds,omitempty"`
	Objects      []ObjectRequest  `json:"objects,omitempty"`
}

// ObjectResponse carries the expected answer only for the room's creator.
type ObjectResponse struct {
	ID       string           `json:"id"`
	RoomID   string           `json:"roomId"`
	Shape    escaperoom.Shape `json:"shape"`
	Question string           `json:"question"`
	Answer   string           `json:"answer,omitempty"`
	Hint     string           `json:"hint,omitempty"`
	Points   int              `json:"points"`
}

type RoomResponse struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Theme        escaperoom.Theme `json:"theme"`
	TimerSeconds int              `json:"timerSeconds"`
	CreatedBy    string           `json:"createdBy"`
	CreatedAt    time.Time        `json:"createdAt"`
	MaxScore     int              `json:"maxScore"`
	Objects      []ObjectResponse `json:"objects"`
}

type CreateSessionRequest struct {
	RoomID string `json:"roomId"`
}

type SubmitAnswerRequest struct {
	ObjectID string `json:"objectId"`
	Answer   string `json:"answer"`
}

type SessionResponse struct {
	ID           string            `json:"id"`
	RoomID       string            `json:"roomId"`
	PlayerID     string            `json:"playerId"`
	Status       escaperoom.Status `json:"status"`
	Score        int               `json:"score"`
	MaxScore     int               `json:"maxScore"`
	TimerSeconds int               `json:"timerSeconds"`
	StartedAt    time.Time         `json:"startedAt"`
	EndedAt      *time.Time        `json:"endedAt"`
	// Deadline is advisory; sessions only expire through the expire call.
	Deadline time.Time `json:"deadline"`
}

type AttemptResponse struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"sessionId"`
	ObjectID        string    `json:"objectId"`
	SubmittedAnswer string    `json:"submittedAnswer"`
	IsCorrect       bool      `json:"isCorrect"`
	PointsAwarded   int       `json:"pointsAwarded"`
	CreatedAt       time.Time `json:"createdAt"`
}

type SubmitAnswerResponse struct {
	Attempt AttemptResponse `json:"attempt"`
	Session SessionResponse `json:"session"`
}

// CatalogItem is a puzzle object as a player sees it.
type CatalogItem struct {
	ID       string           `json:"id"`
	Shape    escaperoom.Shape `json:"shape"`
	Question string           `json:"question"`
	Hint     string           `json:"hint,omitempty"`
	Points   int              `json:"points"`
	Solved   bool             `json:"solved"`
}

type SessionStateResponse struct {
	Session  SessionResponse   `json:"session"`
	Catalog  []CatalogItem     `json:"catalog"`
	Solved   []string          `json:"solved"`
	Attempts []AttemptResponse `json:"attempts"`
}

func toUserResponse(u escaperoom.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, Role: u.Role, CreatedAt: u.CreatedAt}
}

func toRoomResponse(r escaperoom.Room, withAnswers bool) RoomResponse {
	resp := RoomResponse{
		ID:           r.ID,
		Name:         r.Name,
		Description:  r.Description,
		Theme:        r.Theme,
		TimerSeconds: r.TimerSeconds,
		CreatedBy:    r.CreatedBy,
		CreatedAt:    r.CreatedAt,
		MaxScore:     escaperoom.TotalPoints(r.Objects),
		Objects:      make([]ObjectResponse, 0, len(r.Objects)),
	}
	for _, o := range r.Objects {
		resp.Objects = append(resp.Objects, toObjectResponse(o, withAnswers))
	}
	return resp
}

func toObjectResponse(o escaperoom.PuzzleObject, withAnswer bool) ObjectResponse {
	resp := ObjectResponse{
		ID:       o.ID,
		RoomID:   o.RoomID,
		Shape:    o.Shape,
		Question: o.Question,
		Hint:     o.Hint,
		Points:   o.Points,
	}
	if withAnswer {
		resp.Answer = o.ExpectedAnswer
	}
	return resp
}

func (o ObjectRequest) toObject(roomID string) escaperoom.PuzzleObject {
	return escaperoom.PuzzleObject{
		RoomID:         roomID,
		Shape:          o.Shape,
		Question:       o.Question,
		ExpectedAnswer: o.Answer,
		Hint:           o.Hint,
		Points:         o.Points,
	}
}

func toSessionResponse(s escaperoom.Session) SessionResponse {
	return SessionResponse{
		ID:           s.ID,
		RoomID:       s.RoomID,
		PlayerID:     s.PlayerID,
		Status:       s.Status,
		Score:        s.Score,
		MaxScore:     s.MaxScore,
		TimerSeconds: s.TimerSeconds,
		StartedAt:    s.StartedAt,
		EndedAt:      s.EndedAt,
		Deadline:     s.Deadline(),
	}
}

func toAttemptResponse(a escaperoom.Attempt) AttemptResponse {
	return AttemptResponse{
		ID:              a.ID,
		SessionID:       a.SessionID,
		ObjectID:        a.ObjectID,
		SubmittedAnswer: a.SubmittedAnswer,
		IsCorrect:       a.IsCorrect,
		PointsAwarded:   a.PointsAwarded,
		CreatedAt:       a.CreatedAt,
	}
}

func toStateResponse(st escaperoom.SessionState) SessionStateResponse {
	solved := make(map[string]bool, len(st.Solved))
	for _, id := range st.Solved {
		solved[id] = true
	}

	resp := SessionStateResponse{
		Session:  toSessionResponse(st.Session),
		Catalog:  make([]CatalogItem, 0, len(st.Catalog)),
		Solved:   st.Solved,
		Attempts: make([]AttemptResponse, 0, len(st.Attempts)),
	}
	if resp.Solved == nil {
		resp.Solved = []string{}
	}
	for _, o := range st.Catalog {
		resp.Catalog = append(resp.Catalog, CatalogItem{
			ID:       o.ID,
			Shape:    o.Shape,
			Question: o.Question,
			Hint:     o.Hint,
			Points:   o.Points,
			Solved:   solved[o.ID],
		})
	}
	for _, a := range st.Attempts {
		resp.Attempts = append(resp.Attempts, toAttemptResponse(a))
	}
	return resp
}
