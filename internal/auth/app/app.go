package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/castellan/castellan/internal/auth/domain"
	"github.com/castellan/castellan/internal/auth/events"
	httpapi "github.com/castellan/castellan/internal/auth/http"
	"github.com/castellan/castellan/internal/auth/metrics"
	"github.com/castellan/castellan/internal/auth/service"
	"github.com/castellan/castellan/internal/auth/store"
	"github.com/castellan/castellan/internal/auth/store/drivers/sqlite"
	"github.com/castellan/castellan/pkg/cryptox"
	"github.com/castellan/castellan/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db         store.Store
	registry   *prometheus.Registry
	collector  *metrics.Collector
	dispatcher *events.Dispatcher

	registerService     *service.RegisterService
	userService         *service.UserService
	roleService         *service.RoleService
	sessionsService     *service.SessionsService
	codeIssuer          *service.CodeIssuer
	authService         *service.AuthService
	mfaService          *service.MFAService
	socialService       *service.SocialService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: cfg.AppName,
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
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
		if err != nil && err != http.ErrServerClosed {
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

// initServices initializes all business logic services and the event wiring.
func (app *Application) initServices() {
	app.registry = prometheus.NewRegistry()
	app.collector = metrics.NewCollector(app.registry)
	app.dispatcher = events.NewDispatcher()

	hasher := cryptox.Hasher{Cost: cryptox.DefaultBcryptCost}

	app.sessionsService = &service.SessionsService{
		Store:      app.db,
		Dispatcher: app.dispatcher,
		TTL:        app.cfg.SessionTTL,
	}
	app.codeIssuer = &service.CodeIssuer{
		Store: app.db,
		TTL:   app.cfg.AuthCodeTTL,
	}
	app.registerService = &service.RegisterService{
		Store:      app.db,
		Hasher:     hasher,
		Dispatcher: app.dispatcher,
	}
	app.userService = &service.UserService{
		Store:      app.db,
		Hasher:     hasher,
		Dispatcher: app.dispatcher,
	}
	app.roleService = &service.RoleService{Store: app.db}
	app.authService = &service.AuthService{
		Store:    app.db,
		Hasher:   hasher,
		Issuer:   app.codeIssuer,
		Sessions: app.sessionsService,
	}
	app.mfaService = &service.MFAService{
		Users:    app.userService,
		Sessions: app.sessionsService,
		Issuer:   app.cfg.AppName,
	}
	app.socialService = &service.SocialService{
		Store:         app.db,
		Sessions:      app.sessionsService,
		GatewaySecret: []byte(app.cfg.SocialGatewaySecret),
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	app.wireEventSubscribers()
}

// wireEventSubscribers connects domain events to their in-process consumers:
// the audit log and the metrics counters.
func (app *Application) wireEventSubscribers() {
	audit := events.LogSubscriber()
	for _, name := range []string{
		"user.registered", "user.activated", "user.deactivated",
		"user.verified", "user.unverified", "user.email_changed",
		"user.password_changed", "user.mfa_enabled", "user.mfa_disabled",
		"user.role_assigned", "user.role_unassigned",
		"session.created", "session.revoked",
	} {
		app.dispatcher.Register(name, audit)
	}

	app.dispatcher.Register("user.registered", func(ctx context.Context, e domain.Event) {
		app.collector.RecordRegistration()
	})
	app.dispatcher.Register("session.created", func(ctx context.Context, e domain.Event) {
		if created, ok := e.(domain.SessionCreated); ok {
			app.collector.RecordSessionCreated(created.Method.String())
		}
	})
	app.dispatcher.Register("session.revoked", func(ctx context.Context, e domain.Event) {
		app.collector.RecordSessionRevoked()
	})
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.registry, app.logger)

	router.RegisterService = app.registerService
	router.UserService = app.userService
	router.RoleService = app.roleService
	router.SessionsService = app.sessionsService
	router.AuthService = app.authService
	router.MFAService = app.mfaService
	router.SocialService = app.socialService
	router.Metrics = app.collector
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", app.cfg.Host, app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
