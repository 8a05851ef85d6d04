// Package main is the entry point for the secrets server. It loads
// configuration, connects the user store and Redis, wires the plugins,
// and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/awnumar/memguard"

	"github.com/keyxmakerx/secrets/internal/app"
	"github.com/keyxmakerx/secrets/internal/config"
	"github.com/keyxmakerx/secrets/internal/database"
	"github.com/keyxmakerx/secrets/internal/plugins/auth"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// Wipe credential key enclaves on the way out.
	defer memguard.Purge()

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Configure structured logging based on environment.
	setupLogging(cfg)

	slog.Info("starting secrets",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
		slog.String("store", cfg.Store.Driver),
		slog.String("credential_strategy", cfg.Auth.Strategy),
	)

	// --- Connect to the User Store ---
	users, closeStore, err := openUserStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// --- Connect to Redis ---
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer rdb.Close()
	slog.Info("connected to Redis")

	// --- Create Application ---
	application := app.New(cfg, users, rdb)
	if err := application.RegisterRoutes(); err != nil {
		return err
	}
	if !cfg.OAuth.Enabled() {
		slog.Info("google sign-in disabled: GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set")
	}

	// --- Graceful Shutdown ---
	// Listen for interrupt/term signals to drain connections cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")

	// Give in-flight requests 10 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := application.Echo.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", slog.Any("error", err))
	}
	slog.Info("server stopped")
	return nil
}

// openUserStore connects the store selected by STORE_DRIVER, prepares its
// schema, and returns the repository with a close function.
func openUserStore(cfg *config.Config) (auth.UserRepository, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreMariaDB:
		db, err := database.NewMariaDB(cfg.Store.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to mariadb: %w", err)
		}
		slog.Info("connected to MariaDB")

		if err := database.RunMigrations(db, cfg.Store.MigrationsPath); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("running migrations: %w", err)
		}
		return auth.NewMariaDBUserRepository(db), func() { _ = db.Close() }, nil

	default:
		client, mdb, err := database.NewMongo(cfg.Store.Mongo)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to mongodb: %w", err)
		}
		slog.Info("connected to MongoDB", slog.String("database", cfg.Store.Mongo.Database))

		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				slog.Warn("disconnecting mongodb", slog.Any("error", err))
			}
		}

		repo := auth.NewMongoUserRepository(mdb)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.Mongo.ConnectTimeout)
		defer cancel()
		if err := repo.EnsureIndexes(ctx); err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("creating mongodb indexes: %w", err)
		}
		return repo, closeFn, nil
	}
}

// setupLogging configures the global slog logger. Development uses text
// format for readability, production uses JSON. LOG_LEVEL sets verbosity.
func setupLogging(cfg *config.Config) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}

	var handler slog.Handler
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// parseLevel maps LOG_LEVEL to a slog level, defaulting to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
