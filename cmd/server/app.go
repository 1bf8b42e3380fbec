package main

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/forkline/outreach-api/internal/config"
	"github.com/forkline/outreach-api/internal/events"
	"github.com/forkline/outreach-api/internal/platform/postgres"
	"github.com/forkline/outreach-api/internal/render"
	"github.com/forkline/outreach-api/internal/service"
)

// application holds the assembled dependency graph of the server.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	starter     service.SequenceStarter
	bulkStarter service.BulkStarter
	lifecycle   service.LifecycleService
	emitter     *events.InMemoryEventEmitter
}

// newApplication wires stores, services, and supporting components from the
// loaded configuration. It owns the database handle until cleanup.
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	db, err := setupDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}

	restaurantStore := postgres.NewPostgresRestaurantStore(db, logger)
	messageTemplateStore := postgres.NewPostgresMessageTemplateStore(db, logger)
	sequenceTemplateStore := postgres.NewPostgresSequenceTemplateStore(db, logger)
	instanceStore := postgres.NewPostgresSequenceInstanceStore(db, logger)
	taskStore := postgres.NewPostgresTaskStore(db, logger)

	resolver := render.NewResolver(logger)
	emitter := events.NewInMemoryEventEmitter(logger)

	starter, err := service.NewSequenceStarter(
		db,
		sequenceTemplateStore,
		restaurantStore,
		messageTemplateStore,
		instanceStore,
		taskStore,
		resolver,
		emitter,
		logger,
	)
	if err != nil {
		return nil, err
	}

	bulkStarter, err := service.NewBulkStarter(
		sequenceTemplateStore,
		restaurantStore,
		starter,
		logger,
		time.Duration(cfg.Sequence.BulkPerEntityTimeoutMillis)*time.Millisecond,
	)
	if err != nil {
		return nil, err
	}

	// No follow-up workflow is wired in this deployment; follow-up mode
	// finishes still return the handoff to the caller.
	lifecycle, err := service.NewLifecycleService(
		db,
		instanceStore,
		taskStore,
		sequenceTemplateStore,
		restaurantStore,
		starter,
		nil,
		emitter,
		logger,
	)
	if err != nil {
		return nil, err
	}

	return &application{
		config:      cfg,
		logger:      logger,
		db:          db,
		starter:     starter,
		bulkStarter: bulkStarter,
		lifecycle:   lifecycle,
		emitter:     emitter,
	}, nil
}

// cleanup releases resources held by the application.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", "error", err)
		}
	}
}
