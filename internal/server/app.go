// Package server initializes and runs the main application server. It opens
// the database, applies migrations, wires the session/scope/library services
// together with the audit recorder, and runs the HTTP server and the
// background session sweeper until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"shelfkeeper/internal/logging"
	"shelfkeeper/internal/server/config"
	"shelfkeeper/internal/server/httpapi"
	"shelfkeeper/internal/server/repositories/repomanager"
	"shelfkeeper/internal/server/services"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	verifier httpapi.CredentialVerifier
}

// NewApp builds an App from config. The credential verifier is owned by the
// account subsystem; passing nil leaves the login endpoint unconfigured.
func NewApp(cfg *config.Config, verifier httpapi.CredentialVerifier) *App {
	handler := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return &App{
		config:   cfg,
		logger:   logging.NewSlogLogger(handler),
		verifier: verifier,
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run blocks until the context is canceled or a shutdown signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app")
	app.initSignalHandler(cancelFunc)

	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	audit := services.NewRecorder(db, rm, app.logger, app.config.AuditQueueSize)
	defer audit.Close()

	sessionService := services.NewSessionService(db, rm, app.config, app.logger, audit)
	scopeService := services.NewScopeService(db, rm, app.logger, audit)
	libraryService := services.NewLibraryService(db, rm, app.logger, audit)

	httpServer := httpapi.NewServer(httpapi.Options{
		Addr:       app.config.EndpointAddrHTTP,
		Logger:     app.logger,
		Sessions:   sessionService,
		Scope:      scopeService,
		Libraries:  libraryService,
		Verifier:   app.verifier,
		SessionTTL: app.config.SessionTTL,
		HintRoles:  app.config.ScopeHintRoles,
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		sessionService.RunSweeper(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpServer.Run(ctx); err != nil {
			app.logger.Error(ctx, "http server failed", "error", err)
			cancelFunc()
		}
	}()

	wg.Wait()
	return nil
}
