package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/forkline/outreach-api/internal/domain"
	"github.com/forkline/outreach-api/internal/platform/logger"
	"github.com/forkline/outreach-api/internal/store"
)

// PostgresSequenceInstanceStore implements the store.SequenceInstanceStore
// interface using a PostgreSQL database as the storage backend.
type PostgresSequenceInstanceStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSequenceInstanceStore creates a new PostgreSQL implementation
// of the SequenceInstanceStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresSequenceInstanceStore(db store.DBTX, logger *slog.Logger) *PostgresSequenceInstanceStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSequenceInstanceStore{
		db:     db,
		logger: logger.With(slog.String("component", "sequence_instance_store")),
	}
}

// Ensure PostgresSequenceInstanceStore implements store.SequenceInstanceStore
var _ store.SequenceInstanceStore = (*PostgresSequenceInstanceStore)(nil)

// WithTx implements store.SequenceInstanceStore.WithTx
func (s *PostgresSequenceInstanceStore) WithTx(tx *sql.Tx) store.SequenceInstanceStore {
	return &PostgresSequenceInstanceStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.SequenceInstanceStore.Create
// Run it inside the same transaction as the instance's task batch insert.
func (s *PostgresSequenceInstanceStore) Create(ctx context.Context, instance *domain.SequenceInstance) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := instance.Validate(); err != nil {
		log.Warn("sequence instance validation failed during create",
			slog.String("error", err.Error()),
			slog.String("instance_id", instance.ID.String()))
		return err
	}

	query := `
		INSERT INTO sequence_instances
			(id, org_id, template_id, restaurant_id, status, assigned_to,
			created_by, started_at, paused_at, completed_at, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		instance.ID,
		instance.OrgID,
		instance.TemplateID,
		instance.RestaurantID,
		instance.Status,
		instance.AssignedTo,
		instance.CreatedBy,
		instance.StartedAt,
		instance.PausedAt,
		instance.CompletedAt,
		instance.CancelledAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("foreign key violation during instance creation",
				slog.String("error", err.Error()),
				slog.String("instance_id", instance.ID.String()),
				slog.String("restaurant_id", instance.RestaurantID.String()))
			return fmt.Errorf("%w: referenced template or restaurant not found",
				store.ErrInvalidEntity)
		}

		log.Error("failed to create sequence instance",
			slog.String("error", err.Error()),
			slog.String("instance_id", instance.ID.String()))
		return MapError(err)
	}

	log.Debug("sequence instance created",
		slog.String("instance_id", instance.ID.String()),
		slog.String("template_id", instance.TemplateID.String()),
		slog.String("restaurant_id", instance.RestaurantID.String()))
	return nil
}

const instanceColumns = `id, org_id, template_id, restaurant_id, status, assigned_to,
	created_by, started_at, paused_at, completed_at, cancelled_at`

// GetByID implements store.SequenceInstanceStore.GetByID
// Returns store.ErrInstanceNotFound if the instance does not exist in the
// organisation.
func (s *PostgresSequenceInstanceStore) GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.SequenceInstance, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := fmt.Sprintf(`
		SELECT %s
		FROM sequence_instances
		WHERE org_id = $1 AND id = $2
	`, instanceColumns)

	instance, err := scanInstance(s.db.QueryRowContext(ctx, query, orgID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("sequence instance not found",
				slog.String("instance_id", id.String()))
			return nil, store.ErrInstanceNotFound
		}
		log.Error("failed to get sequence instance by ID",
			slog.String("error", err.Error()),
			slog.String("instance_id", id.String()))
		return nil, MapError(err)
	}

	return instance, nil
}

// Update implements store.SequenceInstanceStore.Update
// Only status and lifecycle timestamps are mutable after creation.
func (s *PostgresSequenceInstanceStore) Update(ctx context.Context, instance *domain.SequenceInstance) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := instance.Validate(); err != nil {
		log.Warn("sequence instance validation failed during update",
			slog.String("error", err.Error()),
			slog.String("instance_id", instance.ID.String()))
		return err
	}

	query := `
		UPDATE sequence_instances
		SET status = $1, assigned_to = $2, paused_at = $3, completed_at = $4, cancelled_at = $5
		WHERE org_id = $6 AND id = $7
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		instance.Status,
		instance.AssignedTo,
		instance.PausedAt,
		instance.CompletedAt,
		instance.CancelledAt,
		instance.OrgID,
		instance.ID,
	)
	if err != nil {
		log.Error("failed to update sequence instance",
			slog.String("error", err.Error()),
			slog.String("instance_id", instance.ID.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "sequence instance"); err != nil {
		return store.ErrInstanceNotFound
	}

	log.Debug("sequence instance updated",
		slog.String("instance_id", instance.ID.String()),
		slog.String("status", string(instance.Status)))
	return nil
}

// List implements store.SequenceInstanceStore.List
// Filters compose into a WHERE clause; the search term matches restaurant
// and template names case-insensitively. Results come back newest first.
func (s *PostgresSequenceInstanceStore) List(
	ctx context.Context,
	orgID uuid.UUID,
	filter store.ListInstancesFilter,
) ([]*domain.SequenceInstance, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var sb strings.Builder
	sb.WriteString(`
		SELECT si.id, si.org_id, si.template_id, si.restaurant_id, si.status,
			si.assigned_to, si.created_by, si.started_at, si.paused_at,
			si.completed_at, si.cancelled_at
		FROM sequence_instances si
		JOIN restaurants r ON r.id = si.restaurant_id
		JOIN sequence_templates st ON st.id = si.template_id
		WHERE si.org_id = $1`)

	args := []any{orgID}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, statuses)
		fmt.Fprintf(&sb, " AND si.status = ANY($%d)", len(args))
	}

	if len(filter.RestaurantIDs) > 0 {
		args = append(args, uuidStrings(filter.RestaurantIDs))
		fmt.Fprintf(&sb, " AND si.restaurant_id = ANY($%d)", len(args))
	}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		fmt.Fprintf(&sb, " AND (r.name ILIKE $%d OR st.name ILIKE $%d)", len(args), len(args))
	}

	sb.WriteString(" ORDER BY si.started_at DESC")

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		log.Error("failed to list sequence instances",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var instances []*domain.SequenceInstance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			log.Error("failed to scan sequence instance row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		instances = append(instances, instance)
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating sequence instance rows",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return instances, nil
}

// scanInstance maps one sequence_instances row onto a domain.SequenceInstance.
func scanInstance(row rowScanner) (*domain.SequenceInstance, error) {
	var inst domain.SequenceInstance
	var pausedAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&inst.ID,
		&inst.OrgID,
		&inst.TemplateID,
		&inst.RestaurantID,
		&inst.Status,
		&inst.AssignedTo,
		&inst.CreatedBy,
		&inst.StartedAt,
		&pausedAt,
		&completedAt,
		&cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	if pausedAt.Valid {
		inst.PausedAt = &pausedAt.Time
	}
	if completedAt.Valid {
		inst.CompletedAt = &completedAt.Time
	}
	if cancelledAt.Valid {
		inst.CancelledAt = &cancelledAt.Time
	}

	return &inst, nil
}
