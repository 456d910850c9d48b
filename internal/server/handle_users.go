package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/D-Sharma-melb/EscapeRoom/internal/auth"
)

func handleSignup(svc *auth.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SignupRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		u, err := svc.Signup(r.Context(), req.Username, req.Password, req.Role)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}

		logger.Info("user signed up", "user_id", u.ID, "role", u.Role)
		writeJSON(w, http.StatusCreated, toUserResponse(u))
	}
}

func handleLogin(svc *auth.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Username == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "username and password are required")
			return
		}

		token, u, err := svc.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: toUserResponse(u)})
	}
}

func handleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, toUserResponse(userFrom(r)))
	}
}

func handleListUsers(svc *auth.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := svc.Users(r.Context())
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}

		resp := make([]UserResponse, len(users))
		for i, u := range users {
			resp[i] = toUserResponse(u)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleGetUser(svc *auth.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := svc.User(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponse(u))
	}
}

func handleUpdateUser(svc *auth.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateUserRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		u, err := svc.UpdateUser(r.Context(), chi.URLParam(r, "userID"), auth.UserUpdate{
			Username: req.Username,
			Password: req.Password,
			Role:     req.Role,
		})
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}

		logger.Info("user updated", "user_id", u.ID)
		writeJSON(w, http.StatusOK, toUserResponse(u))
	}
}

func handleDeleteUser(svc *auth.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "userID")
		if err := svc.DeleteUser(r.Context(), id); err != nil {
			writeDomainError(w, logger, err)
			return
		}

		logger.Info("user deleted", "user_id", id)
		w.WriteHeader(http.StatusNoContent)
	}
}
