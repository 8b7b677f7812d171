// Package main is the entry point for the gatehouse server.
//
// main's job is small:
//  1. Load and validate configuration (fatal if SECRET_KEY or MONGO_URI is missing)
//  2. Build the logger
//  3. Open the Credential Store and the session store
//  4. Hand them to server.New and block in Start
//  5. Close the stores after the server has drained
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/gatehouse/internal/config"
	"github.com/sakif/gatehouse/internal/repository"
	"github.com/sakif/gatehouse/internal/repository/mongodb"
	sqliteRepo "github.com/sakif/gatehouse/internal/repository/sqlite"
	"github.com/sakif/gatehouse/internal/server"
	"github.com/sakif/gatehouse/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gatehouse:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	users, closeUsers, err := openUserStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeUsers()

	sessions, err := openSessionStore(cfg, logger)
	if err != nil {
		return err
	}
	defer sessions.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := server.New(server.Config{
		Addr:            cfg.Addr(),
		SecretKey:       cfg.SecretKey,
		SessionLifetime: cfg.SessionLifetime,
		CookieSecure:    cfg.CookieSecure,
	}, server.Deps{
		Users:    users,
		Sessions: sessions,
		Registry: registry,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start blocks until SIGINT/SIGTERM and a graceful drain.
	return srv.Start()
}

// openUserStore connects the Credential Store selected by STORE_DRIVER.
// The returned func closes it.
func openUserStore(cfg *config.Config, logger *slog.Logger) (repository.UserRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}

		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite: %w", err)
		}
		logger.Info("credential store ready", slog.String("driver", "sqlite"), slog.String("path", cfg.DBPath))

		return db, func() {
			if err := db.Close(); err != nil {
				logger.Warn("closing sqlite", slog.String("error", err.Error()))
			}
		}, nil

	default:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.MongoTimeout)
		defer cancel()

		store, err := mongodb.New(ctx, mongodb.Config{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
			Timeout:  cfg.MongoTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to mongodb: %w", err)
		}
		logger.Info("credential store ready", slog.String("driver", "mongo"), slog.String("database", cfg.MongoDatabase))

		return store, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := store.Close(ctx); err != nil {
				logger.Warn("closing mongodb", slog.String("error", err.Error()))
			}
		}, nil
	}
}

// openSessionStore uses Redis when REDIS_URL is set and process memory
// otherwise.
func openSessionStore(cfg *config.Config, logger *slog.Logger) (session.Store, error) {
	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL not set; sessions are kept in memory and lost on restart")
		return session.NewMemoryStore(session.DefaultMemoryCapacity, cfg.SessionIdleTimeout), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := session.NewRedisStore(ctx, cfg.RedisURL, cfg.SessionIdleTimeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	logger.Info("session store ready", slog.String("driver", "redis"))
	return store, nil
}
