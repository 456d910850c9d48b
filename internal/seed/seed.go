// Package seed loads demo accounts and rooms into an empty database.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/D-Sharma-melb/EscapeRoom/internal/auth"
	"github.com/D-Sharma-melb/EscapeRoom/internal/escaperoom"
)

//go:embed demo.yaml
var demo []byte

type Document struct {
	Users []UserSeed `yaml:"users"`
	Rooms []RoomSeed `yaml:"rooms"`
}

type UserSeed struct {
	Username string          `yaml:"username"`
	Password string          `yaml:"password"`
	Role     escaperoom.Role `yaml:"role"`
}

type RoomSeed struct {
	Name         string           `yaml:"name"`
	Description  string           `yaml:"description"`
	Theme        escaperoom.Theme `yaml:"theme"`
	TimerSeconds int              `yaml:"timerSeconds"`
	// CreatedBy is a username from the same document.
	CreatedBy string       `yaml:"createdBy"`
	Objects   []ObjectSeed `yaml:"objects"`
}

type ObjectSeed struct {
	Shape    ShapeSeed `yaml:"shape"`
	Question string    `yaml:"question"`
	Answer   string    `yaml:"answer"`
	Hint     string    `yaml:"hint"`
	Points   int       `yaml:"points"`
}

type ShapeSeed struct {
	Type     escaperoom.ObjectType `yaml:"type"`
	X        float64               `yaml:"x"`
	Y        float64               `yaml:"y"`
	Width    float64               `yaml:"width"`
	Height   float64               `yaml:"height"`
	Rotation float64               `yaml:"rotation"`
}

// Parse decodes a seed document, rejecting unknown fields.
func Parse(r io.Reader) (Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decoding seed document: %w", err)
	}
	return doc, nil
}

// Demo returns the embedded demo document.
func Demo() (Document, error) {
	return Parse(bytes.NewReader(demo))
}

// Importer writes a whole document at once, and only into a database that
// has no users yet.
type Importer interface {
	ImportIfEmpty(ctx context.Context, users []escaperoom.User, rooms []escaperoom.Room) (bool, error)
}

// Apply validates doc against the account and authoring rules, then writes
// all of it in one transaction when no users exist yet. It reports whether
// anything was written.
func Apply(ctx context.Context, logger *slog.Logger, st Importer, doc Document) (bool, error) {
	users, rooms, err := doc.build()
	if err != nil {
		return false, err
	}

	wrote, err := st.ImportIfEmpty(ctx, users, rooms)
	if err != nil {
		return false, fmt.Errorf("importing seed document: %w", err)
	}
	if wrote {
		logger.Info("seed data loaded", "users", len(users), "rooms", len(rooms))
	}
	return wrote, nil
}

// build turns the document into domain values. Nothing is written, so a
// bad document leaves the database untouched.
func (doc Document) build() ([]escaperoom.User, []escaperoom.Room, error) {
	ids := make(map[string]string, len(doc.Users))
	users := make([]escaperoom.User, 0, len(doc.Users))
	for i, us := range doc.Users {
		name := strings.TrimSpace(us.Username)
		if err := auth.ValidateCredentials(name, us.Password, us.Role); err != nil {
			return nil, nil, fmt.Errorf("user %d: %w", i, err)
		}
		if _, dup := ids[name]; dup {
			return nil, nil, fmt.Errorf("user %q listed twice: %w", name, escaperoom.ErrValidation)
		}
		hash, err := auth.HashPassword(us.Password)
		if err != nil {
			return nil, nil, err
		}
		u := escaperoom.User{ID: uuid.NewString(), Username: name, Role: us.Role, PasswordHash: hash}
		ids[name] = u.ID
		users = append(users, u)
	}

	rooms := make([]escaperoom.Room, 0, len(doc.Rooms))
	for i, rs := range doc.Rooms {
		owner, ok := ids[strings.TrimSpace(rs.CreatedBy)]
		if !ok {
			return nil, nil, fmt.Errorf("room %d: unknown creator %q: %w", i, rs.CreatedBy, escaperoom.ErrValidation)
		}
		room := escaperoom.Room{
			Name:         rs.Name,
			Description:  rs.Description,
			Theme:        rs.Theme,
			TimerSeconds: rs.TimerSeconds,
			CreatedBy:    owner,
		}
		for _, obj := range rs.Objects {
			room.Objects = append(room.Objects, escaperoom.PuzzleObject{
				Shape:          escaperoom.Shape(obj.Shape),
				Question:       obj.Question,
				ExpectedAnswer: obj.Answer,
				Hint:           obj.Hint,
				Points:         obj.Points,
			})
		}
		room.Normalize()
		if err := room.Validate(); err != nil {
			return nil, nil, fmt.Errorf("room %d (%q): %w", i, rs.Name, err)
		}
		rooms = append(rooms, room)
	}
	return users, rooms, nil
}
