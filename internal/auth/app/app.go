package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	httpapi "github.com/ligarius/ams-sub001/internal/auth/http"
	"github.com/ligarius/ams-sub001/internal/auth/service"
	"github.com/ligarius/ams-sub001/internal/auth/session"
	"github.com/ligarius/ams-sub001/internal/auth/store"
	"github.com/ligarius/ams-sub001/internal/auth/store/drivers/sqlite"
	"github.com/ligarius/ams-sub001/internal/auth/throttle"
	"github.com/ligarius/ams-sub001/pkg/jwtx"
	"github.com/ligarius/ams-sub001/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db          store.Store
	codec       *jwtx.Codec
	throttle    throttle.Throttle
	redisClient *redis.Client

	authService         *service.AuthService
	bootstrapService    *service.BootstrapService
	housekeepingService *service.HousekeepingService
	sessions            *session.Bridge

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	codec, err := jwtx.NewCodec(jwtx.CodecConfig{
		Issuer:        cfg.Issuer,
		AccessSecret:  cfg.AccessSecret,
		RefreshSecret: cfg.RefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	app.codec = codec

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	app.initThrottle()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	ctx := slogx.WithContext(context.Background(), app.logger)

	if password, err := app.bootstrapService.EnsureAdmin(ctx); err != nil {
		return fmt.Errorf("failed to seed admin account: %w", err)
	} else if password != "" {
		// Shown exactly once; only the argon2 hash is stored.
		app.logger.Warn("initial admin password generated",
			"email", app.cfg.BootstrapEmail,
			"password", password,
		)
	}

	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initThrottle selects the lockout backend. Redis keeps the counters
// shared across replicas; memory suits a single-process deployment.
func (app *Application) initThrottle() {
	cfg := throttle.Config{
		MaxAttempts: app.cfg.MaxLoginAttempts,
		Window:      app.cfg.LockoutWindow,
	}

	if app.cfg.ThrottleBackend == "redis" {
		app.redisClient = redis.NewClient(&redis.Options{Addr: app.cfg.RedisAddr})
		app.throttle = throttle.NewRedis(app.redisClient, cfg)
		app.logger.Info("login throttle using redis", "addr", app.cfg.RedisAddr)
		return
	}

	app.throttle = throttle.NewMemory(cfg)
	app.logger.Info("login throttle using in-process memory")
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.authService = &service.AuthService{
		Store:    app.db,
		Codec:    app.codec,
		Throttle: app.throttle,
	}

	app.bootstrapService = &service.BootstrapService{
		Store: app.db,
		Email: app.cfg.BootstrapEmail,
	}

	app.sessions = &session.Bridge{
		Codec: app.codec,
		Store: app.db,
		Config: session.Config{
			Secure: app.cfg.Env != "dev",
			TTL:    app.cfg.RefreshTTL,
		},
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.codec,
		BuildVersion,
		app.db,
		app.throttle,
		app.logger,
	)
	router.AuthService = app.authService
	router.Sessions = app.sessions
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
