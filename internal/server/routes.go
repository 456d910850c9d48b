package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/D-Sharma-melb/EscapeRoom/internal/escaperoom"
	"github.com/D-Sharma-melb/EscapeRoom/internal/handler/health"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	sessions, rooms, authSvc, broker := deps.Sessions, deps.Rooms, deps.Auth, deps.Broker

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Escape Room API", "/openapi.json", "/docs"))
	r.Mount("/healthz", health.NewHandler(logger, deps.Checks).Routes())

	r.Post("/api/users", handleSignup(authSvc, logger))
	r.Post("/api/users/login", handleLogin(authSvc, logger))

	r.Group(func(r chi.Router) {
		r.Use(requireUser(authSvc))

		r.Get("/api/users", handleListUsers(authSvc, logger))
		r.Get("/api/users/me", handleMe())
		r.Route("/api/users/{userID}", func(r chi.Router) {
			r.Use(requireSelf)
			r.Get("/", handleGetUser(authSvc, logger))
			r.Put("/", handleUpdateUser(authSvc, logger))
			r.Delete("/", handleDeleteUser(authSvc, logger))
		})

		r.Route("/api/rooms", func(r chi.Router) {
			r.Get("/", handleListRooms(rooms, logger))
			r.With(requireRole(escaperoom.RoleBuilder)).Post("/", handleCreateRoom(rooms, logger))

			r.Route("/{roomID}", func(r chi.Router) {
				r.Get("/", handleGetRoom(rooms, logger))
				r.Get("/objects", handleListObjects(rooms, logger))

				r.Group(func(r chi.Router) {
					r.Use(requireRole(escaperoom.RoleBuilder))
					r.Use(requireRoomOwner(rooms, logger))
					r.Put("/", handleUpdateRoom(rooms, logger))
					r.Delete("/", handleDeleteRoom(rooms, logger))
					r.Post("/objects", handleCreateObject(rooms, logger))
					r.Delete("/objects", handleDeleteObjects(rooms, logger))
					r.Put("/objects/{objectID}", handleUpdateObject(rooms, logger))
					r.Delete("/objects/{objectID}", handleDeleteObject(rooms, logger))
				})
			})
		})

		r.Route("/api/sessions", func(r chi.Router) {
			r.Get("/", handleListSessions(sessions, logger))
			r.Post("/", handleCreateSession(sessions, logger))

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Use(requireSessionOwner(sessions, logger))
				r.Get("/", handleSessionState(sessions, logger))
				r.Post("/attempts", handleSubmitAnswer(sessions, broker, logger))
				r.Post("/expire", handleExpire(sessions, broker, logger))
				r.Get("/events", handleEvents(broker))
			})
		})

		r.With(requireSessionOwner(sessions, logger)).
			Get("/ws/sessions/{sessionID}", handleSessionFeed(broker, logger))
	})
}
