package server

import (
	"log/slog"
	"net/http"

	"github.com/D-Sharma-melb/EscapeRoom/internal/escaperoom"
)

func handleCreateSession(sessions Sessions, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sess, err := sessions.CreateSession(r.Context(), req.RoomID, userFrom(r).ID)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toSessionResponse(sess))
	}
}

func handleListSessions(sessions Sessions, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := sessions.PlayerSessions(r.Context(), userFrom(r).ID)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}

		resp := make([]SessionResponse, 0, len(list))
		for _, s := range list {
			resp = append(resp, toSessionResponse(s))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleSessionState(sessions Sessions, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := sessions.State(r.Context(), sessionFrom(r).ID)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toStateResponse(st))
	}
}

func handleSubmitAnswer(sessions Sessions, broker *Broker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SubmitAnswerRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		res, err := sessions.SubmitAnswer(r.Context(), sessionFrom(r).ID, req.ObjectID, req.Answer)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}

		broker.PublishAttempt(res)

		writeJSON(w, http.StatusOK, SubmitAnswerResponse{
			Attempt: toAttemptResponse(res.Attempt),
			Session: toSessionResponse(res.Session),
		})
	}
}

func handleExpire(sessions Sessions, broker *Broker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		before := sessionFrom(r)

		sess, err := sessions.Expire(r.Context(), before.ID)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}

		if before.Status == escaperoom.StatusActive && sess.Status == escaperoom.StatusExpired {
			broker.PublishExpired(sess)
		}
		writeJSON(w, http.StatusOK, toSessionResponse(sess))
	}
}
