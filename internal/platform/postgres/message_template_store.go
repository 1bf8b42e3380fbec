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

// PostgresMessageTemplateStore implements the store.MessageTemplateStore
// interface using a PostgreSQL database as the storage backend.
type PostgresMessageTemplateStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresMessageTemplateStore creates a new PostgreSQL implementation
// of the MessageTemplateStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresMessageTemplateStore(db store.DBTX, logger *slog.Logger) *PostgresMessageTemplateStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresMessageTemplateStore{
		db:     db,
		logger: logger.With(slog.String("component", "message_template_store")),
	}
}

// Ensure PostgresMessageTemplateStore implements store.MessageTemplateStore
var _ store.MessageTemplateStore = (*PostgresMessageTemplateStore)(nil)

// GetByID implements store.MessageTemplateStore.GetByID
// Returns store.ErrMessageTemplateNotFound if the template does not exist
// in the organisation.
func (s *PostgresMessageTemplateStore) GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.MessageTemplate, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, org_id, name, body, subject_line, created_at, updated_at
		FROM message_templates
		WHERE org_id = $1 AND id = $2
	`

	var mt domain.MessageTemplate
	var subject sql.NullString

	err := s.db.QueryRowContext(ctx, query, orgID, id).Scan(
		&mt.ID,
		&mt.OrgID,
		&mt.Name,
		&mt.Body,
		&subject,
		&mt.CreatedAt,
		&mt.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("message template not found",
				slog.String("message_template_id", id.String()))
			return nil, store.ErrMessageTemplateNotFound
		}
		log.Error("failed to get message template by ID",
			slog.String("error", err.Error()),
			slog.String("message_template_id", id.String()))
		return nil, MapError(err)
	}

	mt.SubjectLine = subject.String

	return &mt, nil
}
