package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/forkline/outreach-api/internal/domain"
	"github.com/forkline/outreach-api/internal/platform/logger"
	"github.com/forkline/outreach-api/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface using a
// PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx implements store.TaskStore.WithTx
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

const taskInsertQuery = `
	INSERT INTO tasks
		(id, org_id, instance_id, step_order, name, task_type, status, priority,
		message, subject_line, rendered_message, rendered_subject_line,
		due_date, completed_at, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
`

// CreateBatch implements store.TaskStore.CreateBatch
// Tasks are inserted in the order given and the number of created rows is
// returned so callers can verify it matches the expected step count.
func (s *PostgresTaskStore) CreateBatch(ctx context.Context, tasks []*domain.Task) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	created := 0
	for _, task := range tasks {
		if err := task.Validate(); err != nil {
			log.Warn("task validation failed during batch create",
				slog.String("error", err.Error()),
				slog.String("task_id", task.ID.String()))
			return created, err
		}

		result, err := s.db.ExecContext(
			ctx,
			taskInsertQuery,
			task.ID,
			task.OrgID,
			task.InstanceID,
			task.StepOrder,
			task.Name,
			task.Type,
			task.Status,
			task.Priority,
			task.Message,
			task.SubjectLine,
			task.RenderedMessage,
			task.RenderedSubjectLine,
			task.DueDate,
			task.CompletedAt,
			task.CreatedAt,
			task.UpdatedAt,
		)
		if err != nil {
			log.Error("failed to insert task in batch",
				slog.String("error", err.Error()),
				slog.String("task_id", task.ID.String()),
				slog.Int("step_order", task.StepOrder))
			return created, MapError(err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return created, MapError(err)
		}
		created += int(rows)
	}

	log.Debug("task batch created", slog.Int("task_count", created))
	return created, nil
}

const taskColumns = `id, org_id, instance_id, step_order, name, task_type, status, priority,
	message, subject_line, rendered_message, rendered_subject_line,
	due_date, completed_at, created_at, updated_at`

// GetByInstanceID implements store.TaskStore.GetByInstanceID
// Tasks come back in strict step order.
func (s *PostgresTaskStore) GetByInstanceID(ctx context.Context, orgID, instanceID uuid.UUID) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE org_id = $1 AND instance_id = $2
		ORDER BY step_order ASC
	`

	rows, err := s.db.QueryContext(ctx, query, orgID, instanceID)
	if err != nil {
		log.Error("failed to query tasks by instance ID",
			slog.String("error", err.Error()),
			slog.String("instance_id", instanceID.String()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row",
				slog.String("error", err.Error()),
				slog.String("instance_id", instanceID.String()))
			return nil, MapError(err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows",
			slog.String("error", err.Error()),
			slog.String("instance_id", instanceID.String()))
		return nil, MapError(err)
	}

	return tasks, nil
}

// Update implements store.TaskStore.Update
func (s *PostgresTaskStore) Update(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during update",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return err
	}

	query := `
		UPDATE tasks
		SET status = $1, priority = $2, due_date = $3, completed_at = $4, updated_at = $5
		WHERE org_id = $6 AND id = $7
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		task.Status,
		task.Priority,
		task.DueDate,
		task.CompletedAt,
		time.Now().UTC(),
		task.OrgID,
		task.ID,
	)
	if err != nil {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.ID.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "task"); err != nil {
		return store.ErrTaskNotFound
	}

	return nil
}

// TransitionByInstance implements store.TaskStore.TransitionByInstance
// One UPDATE flips every task of the instance in the from status, so a
// lifecycle transition touches the whole task set atomically.
func (s *PostgresTaskStore) TransitionByInstance(
	ctx context.Context,
	orgID, instanceID uuid.UUID,
	from, to domain.TaskStatus,
	completedAt *time.Time,
) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE tasks
		SET status = $1, completed_at = COALESCE($2, completed_at), updated_at = $3
		WHERE org_id = $4 AND instance_id = $5 AND status = $6
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		to,
		completedAt,
		time.Now().UTC(),
		orgID,
		instanceID,
		from,
	)
	if err != nil {
		log.Error("failed to transition tasks by instance",
			slog.String("error", err.Error()),
			slog.String("instance_id", instanceID.String()),
			slog.String("from", string(from)),
			slog.String("to", string(to)))
		return 0, MapError(err)
	}

	transitioned, err := result.RowsAffected()
	if err != nil {
		return 0, MapError(err)
	}

	log.Debug("transitioned tasks by instance",
		slog.String("instance_id", instanceID.String()),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.Int64("task_count", transitioned))
	return transitioned, nil
}

// scanTask maps one tasks row onto a domain.Task.
func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var instanceID uuid.NullUUID
	var stepOrder sql.NullInt64
	var message, subject, renderedMessage, renderedSubject sql.NullString
	var dueDate, completedAt sql.NullTime

	err := row.Scan(
		&task.ID,
		&task.OrgID,
		&instanceID,
		&stepOrder,
		&task.Name,
		&task.Type,
		&task.Status,
		&task.Priority,
		&message,
		&subject,
		&renderedMessage,
		&renderedSubject,
		&dueDate,
		&completedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if instanceID.Valid {
		task.InstanceID = &instanceID.UUID
	}
	task.StepOrder = int(stepOrder.Int64)
	task.Message = message.String
	task.SubjectLine = subject.String
	task.RenderedMessage = renderedMessage.String
	task.RenderedSubjectLine = renderedSubject.String
	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}

	return &task, nil
}
