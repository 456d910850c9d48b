package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/D-Sharma-melb/EscapeRoom/internal/auth"
	"github.com/D-Sharma-melb/EscapeRoom/internal/config"
	"github.com/D-Sharma-melb/EscapeRoom/internal/database"
	"github.com/D-Sharma-melb/EscapeRoom/internal/engine"
	"github.com/D-Sharma-melb/EscapeRoom/internal/handler/health"
	"github.com/D-Sharma-melb/EscapeRoom/internal/migrations"
	"github.com/D-Sharma-melb/EscapeRoom/internal/seed"
	"github.com/D-Sharma-melb/EscapeRoom/internal/server"
	"github.com/D-Sharma-melb/EscapeRoom/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// openStore opens SQLite and brings the schema up to date.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sql.DB, *store.SQLiteStore, error) {
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to sqlite: %w", err)
	}
	if err := migrations.RunContext(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)
	return db, store.New(db, logger), nil
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(stdout, cfg.LogLevel)

	// --- SQLite ---
	db, st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	checks := map[string]health.Checker{
		"sqlite": health.CheckFunc(st.Ping),
	}

	// --- Redis (optional) ---
	var locks engine.Locker = engine.NewKeyedMutex()
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		locks = engine.NewRedisLocker(rdb, cfg.LockTTL)
		checks["redis"] = health.CheckFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		logger.Info("connected to redis", "lock_ttl", cfg.LockTTL)
	} else {
		logger.Info("redis not configured, using in-process session locks")
	}

	// --- Demo data ---
	if cfg.SeedDemo {
		if err := seedDemo(ctx, logger, st); err != nil {
			return err
		}
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Sessions:    engine.New(st, locks, logger),
		Rooms:       st,
		Auth:        auth.NewService(st, cfg.JWTSecret, cfg.TokenTTL),
		Broker:      server.NewBroker(),
		Checks:      checks,
		CORSOrigins: cfg.CORSOrigins,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func seedDemo(ctx context.Context, logger *slog.Logger, st *store.SQLiteStore) error {
	doc, err := seed.Demo()
	if err != nil {
		return fmt.Errorf("loading demo data: %w", err)
	}
	if _, err := seed.Apply(ctx, logger, st, doc); err != nil {
		return fmt.Errorf("seeding demo data: %w", err)
	}
	return nil
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
