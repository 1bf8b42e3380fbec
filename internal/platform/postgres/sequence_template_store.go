package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/forkline/outreach-api/internal/domain"
	"github.com/forkline/outreach-api/internal/platform/logger"
	"github.com/forkline/outreach-api/internal/store"
)

// PostgresSequenceTemplateStore implements the store.SequenceTemplateStore
// interface using a PostgreSQL database as the storage backend.
type PostgresSequenceTemplateStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSequenceTemplateStore creates a new PostgreSQL implementation
// of the SequenceTemplateStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresSequenceTemplateStore(db store.DBTX, logger *slog.Logger) *PostgresSequenceTemplateStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSequenceTemplateStore{
		db:     db,
		logger: logger.With(slog.String("component", "sequence_template_store")),
	}
}

// Ensure PostgresSequenceTemplateStore implements store.SequenceTemplateStore
var _ store.SequenceTemplateStore = (*PostgresSequenceTemplateStore)(nil)

// WithTx implements store.SequenceTemplateStore.WithTx
func (s *PostgresSequenceTemplateStore) WithTx(tx *sql.Tx) store.SequenceTemplateStore {
	return &PostgresSequenceTemplateStore{
		db:     tx,
		logger: s.logger,
	}
}

// GetByID implements store.SequenceTemplateStore.GetByID
// It loads the template row and its steps, ordered by step_order, in two
// queries. Returns store.ErrTemplateNotFound if the template does not
// exist in the organisation.
func (s *PostgresSequenceTemplateStore) GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.SequenceTemplate, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, org_id, name, is_active, usage_count, created_at, updated_at
		FROM sequence_templates
		WHERE org_id = $1 AND id = $2
	`

	var t domain.SequenceTemplate
	err := s.db.QueryRowContext(ctx, query, orgID, id).Scan(
		&t.ID,
		&t.OrgID,
		&t.Name,
		&t.IsActive,
		&t.UsageCount,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("sequence template not found",
				slog.String("template_id", id.String()))
			return nil, store.ErrTemplateNotFound
		}
		log.Error("failed to get sequence template by ID",
			slog.String("error", err.Error()),
			slog.String("template_id", id.String()))
		return nil, MapError(err)
	}

	steps, err := s.getSteps(ctx, id)
	if err != nil {
		log.Error("failed to get sequence template steps",
			slog.String("error", err.Error()),
			slog.String("template_id", id.String()))
		return nil, err
	}
	t.Steps = steps

	return &t, nil
}

// getSteps loads a template's steps in strict step order, decoding the
// nullable message_template_id/custom_message column pair into the tagged
// MessageSource variant. A row carrying both resolves to the template
// reference; that precedence is part of the engine contract.
func (s *PostgresSequenceTemplateStore) getSteps(ctx context.Context, templateID uuid.UUID) ([]domain.SequenceStep, error) {
	query := `
		SELECT id, template_id, step_order, step_type, delay_value, delay_unit,
			message_template_id, custom_message, subject_line
		FROM sequence_steps
		WHERE template_id = $1
		ORDER BY step_order ASC
	`

	rows, err := s.db.QueryContext(ctx, query, templateID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var steps []domain.SequenceStep
	for rows.Next() {
		var step domain.SequenceStep
		var messageTemplateID uuid.NullUUID
		var customMessage, subject sql.NullString

		err := rows.Scan(
			&step.ID,
			&step.TemplateID,
			&step.Order,
			&step.Type,
			&step.DelayValue,
			&step.DelayUnit,
			&messageTemplateID,
			&customMessage,
			&subject,
		)
		if err != nil {
			return nil, MapError(err)
		}

		switch {
		case messageTemplateID.Valid:
			step.Message = domain.TemplateRef(messageTemplateID.UUID)
		case customMessage.Valid:
			step.Message = domain.InlineMessage(customMessage.String)
		}
		step.SubjectLine = subject.String

		steps = append(steps, step)
	}

	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return steps, nil
}

// IncrementUsageCount implements store.SequenceTemplateStore.IncrementUsageCount
// The counter moves in a single UPDATE so concurrent callers cannot lose
// increments to a read-then-write race.
func (s *PostgresSequenceTemplateStore) IncrementUsageCount(ctx context.Context, orgID, id uuid.UUID, delta int) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if delta == 0 {
		return nil
	}

	query := `
		UPDATE sequence_templates
		SET usage_count = usage_count + $1, updated_at = NOW()
		WHERE org_id = $2 AND id = $3
	`

	result, err := s.db.ExecContext(ctx, query, delta, orgID, id)
	if err != nil {
		log.Error("failed to increment template usage count",
			slog.String("error", err.Error()),
			slog.String("template_id", id.String()),
			slog.Int("delta", delta))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "sequence template"); err != nil {
		return store.ErrTemplateNotFound
	}

	log.Debug("incremented template usage count",
		slog.String("template_id", id.String()),
		slog.Int("delta", delta))
	return nil
}
