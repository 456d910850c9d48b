package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/D-Sharma-melb/EscapeRoom/internal/auth"
	"github.com/D-Sharma-melb/EscapeRoom/internal/escaperoom"
	"github.com/D-Sharma-melb/EscapeRoom/internal/handler/health"
)

// Sessions is the session engine as the transport sees it.
type Sessions interface {
	CreateSession(ctx context.Context, roomID, playerID string) (escaperoom.Session, error)
	SubmitAnswer(ctx context.Context, sessionID, objectID, answer string) (escaperoom.AttemptResult, error)
	Expire(ctx context.Context, sessionID string) (escaperoom.Session, error)
	GetSession(ctx context.Context, sessionID string) (escaperoom.Session, error)
	State(ctx context.Context, sessionID string) (escaperoom.SessionState, error)
	PlayerSessions(ctx context.Context, playerID string) ([]escaperoom.Session, error)
}

// Deps are the collaborators the HTTP layer is built on.
type Deps struct {
	Sessions    Sessions
	Rooms       escaperoom.RoomStore
	Auth        *auth.Service
	Broker      *Broker
	Checks      map[string]health.Checker
	CORSOrigins []string
}

type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

func New(addr string, logger *slog.Logger, deps Deps) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewHandler(logger, deps),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler builds the full router. Tests drive it through httptest.
func NewHandler(logger *slog.Logger, deps Deps) http.Handler {
	if deps.Broker == nil {
		deps.Broker = NewBroker()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(newStructuredLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors(deps.CORSOrigins))

	addRoutes(r, logger, deps)
	return r
}

func (s *Server) Run(_ context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}

	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func newStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
