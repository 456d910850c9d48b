// Package auth handles accounts: bcrypt password hashes and HS256 bearer
// tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/D-Sharma-melb/EscapeRoom/internal/escaperoom"
)

const MinPasswordLength = 3

// Claims is the token payload. Subject carries the user id.
type Claims struct {
	Role escaperoom.Role `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	users  escaperoom.UserStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(users escaperoom.UserStore, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(b), nil
}

func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// ValidateCredentials applies the account rules: a non-blank username, a
// password of at least MinPasswordLength characters and a known role.
func ValidateCredentials(username, password string, role escaperoom.Role) error {
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("username is required: %w", escaperoom.ErrValidation)
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters: %w", MinPasswordLength, escaperoom.ErrValidation)
	}
	if !role.Valid() {
		return fmt.Errorf("role must be BUILDER or PLAYER: %w", escaperoom.ErrValidation)
	}
	return nil
}

// Signup validates the request and stores a new user with a hashed
// password.
func (s *Service) Signup(ctx context.Context, username, password string, role escaperoom.Role) (escaperoom.User, error) {
	username = strings.TrimSpace(username)
	if err := ValidateCredentials(username, password, role); err != nil {
		return escaperoom.User{}, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return escaperoom.User{}, err
	}
	return s.users.CreateUser(ctx, escaperoom.User{
		Username:     username,
		Role:         role,
		PasswordHash: hash,
	})
}

// UserUpdate carries the fields to change. Nil fields are left alone.
type UserUpdate struct {
	Username *string
	Password *string
	Role     *escaperoom.Role
}

func (s *Service) Users(ctx context.Context) ([]escaperoom.User, error) {
	return s.users.ListUsers(ctx)
}

func (s *Service) User(ctx context.Context, id string) (escaperoom.User, error) {
	return s.users.UserByID(ctx, id)
}

// UpdateUser applies upd to the user, re-hashing a new password.
func (s *Service) UpdateUser(ctx context.Context, id string, upd UserUpdate) (escaperoom.User, error) {
	u, err := s.users.UserByID(ctx, id)
	if err != nil {
		return escaperoom.User{}, err
	}

	if upd.Username != nil {
		name := strings.TrimSpace(*upd.Username)
		if name == "" {
			return escaperoom.User{}, fmt.Errorf("username is required: %w", escaperoom.ErrValidation)
		}
		u.Username = name
	}
	if upd.Role != nil {
		if !upd.Role.Valid() {
			return escaperoom.User{}, fmt.Errorf("role must be BUILDER or PLAYER: %w", escaperoom.ErrValidation)
		}
		u.Role = *upd.Role
	}
	if upd.Password != nil {
		if len(*upd.Password) < MinPasswordLength {
			return escaperoom.User{}, fmt.Errorf("password must be at least %d characters: %w", MinPasswordLength, escaperoom.ErrValidation)
		}
		if u.PasswordHash, err = HashPassword(*upd.Password); err != nil {
			return escaperoom.User{}, err
		}
	}

	return s.users.UpdateUser(ctx, u)
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.users.DeleteUser(ctx, id)
}

// Login checks the credentials and issues a token. Unknown users and wrong
// passwords fail the same way.
func (s *Service) Login(ctx context.Context, username, password string) (string, escaperoom.User, error) {
	u, err := s.users.UserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, escaperoom.ErrNotFound) {
		return "", escaperoom.User{}, fmt.Errorf("invalid credentials: %w", escaperoom.ErrUnauthorized)
	}
	if err != nil {
		return "", escaperoom.User{}, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return "", escaperoom.User{}, fmt.Errorf("invalid credentials: %w", escaperoom.ErrUnauthorized)
	}

	token, _, err := s.IssueToken(u)
	if err != nil {
		return "", escaperoom.User{}, err
	}
	return token, u, nil
}

func (s *Service) IssueToken(u escaperoom.User) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	ss, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return ss, exp, nil
}

func (s *Service) ParseToken(raw string) (Claims, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("parsing token: %v: %w", err, escaperoom.ErrUnauthorized)
	}
	if c.Subject == "" {
		return Claims{}, fmt.Errorf("token has no subject: %w", escaperoom.ErrUnauthorized)
	}
	return c, nil
}

// Authenticate resolves a bearer token to a user that still exists.
func (s *Service) Authenticate(ctx context.Context, raw string) (escaperoom.User, error) {
	c, err := s.ParseToken(raw)
	if err != nil {
		return escaperoom.User{}, err
	}
	u, err := s.users.UserByID(ctx, c.Subject)
	if errors.Is(err, escaperoom.ErrNotFound) {
		return escaperoom.User{}, fmt.Errorf("unknown user: %w", escaperoom.ErrUnauthorized)
	}
	return u, err
}
