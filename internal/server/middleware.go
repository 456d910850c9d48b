package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/D-Sharma-melb/EscapeRoom/internal/auth"
	"github.com/D-Sharma-melb/EscapeRoom/internal/escaperoom"
)

type ctxKey int

const (
	ctxKeyUser ctxKey = iota
	ctxKeySession
	ctxKeyRoom
)

// bearerToken reads the Authorization header, falling back to the token
// query parameter that EventSource and browser websockets have to use.
func bearerToken(r *http.Request) string {
	if token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found {
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("token")
}

func requireUser(svc *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			u, err := svc.Authenticate(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyUser, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requireRole(role escaperoom.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userFrom(r).Role != role {
				writeError(w, http.StatusForbidden, "requires role "+string(role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireSelf lets a user act only on their own {userID}.
func requireSelf(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "userID") != userFrom(r).ID {
			writeError(w, http.StatusForbidden, "users may only manage their own account")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireRoomOwner loads {roomID} and lets only its creator through.
func requireRoomOwner(rooms escaperoom.RoomStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			room, err := rooms.Room(r.Context(), chi.URLParam(r, "roomID"))
			if err != nil {
				writeDomainError(w, logger, err)
				return
			}
			if room.CreatedBy != userFrom(r).ID {
				writeError(w, http.StatusForbidden, "only the room's creator may change it")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyRoom, room)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireSessionOwner loads {sessionID}. Sessions of other players are
// reported as missing.
func requireSessionOwner(sessions Sessions, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "sessionID")
			sess, err := sessions.GetSession(r.Context(), id)
			if err == nil && sess.PlayerID != userFrom(r).ID {
				err = escaperoom.ErrNotFound
			}
			if errors.Is(err, escaperoom.ErrNotFound) {
				writeError(w, http.StatusNotFound, "session not found")
				return
			}
			if err != nil {
				writeDomainError(w, logger, err)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeySession, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func cors(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions && origin != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func userFrom(r *http.Request) escaperoom.User {
	return r.Context().Value(ctxKeyUser).(escaperoom.User)
}

func sessionFrom(r *http.Request) escaperoom.Session {
	return r.Context().Value(ctxKeySession).(escaperoom.Session)
}

func roomFrom(r *http.Request) escaperoom.Room {
	return r.Context().Value(ctxKeyRoom).(escaperoom.Room)
}
