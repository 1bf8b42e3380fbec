package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/forkline/outreach-api/internal/domain"
)

// TaskStore defines the interface for task persistence. The sequence
// engine is the primary writer of sequence tasks but shares the table with
// the standalone-task side of the CRM, so nothing here assumes a non-nil
// instance reference on rows it reads back.
type TaskStore interface {
	// CreateBatch inserts all given tasks and returns the number of rows
	// actually created. Callers compare it against the expected step count;
	// a mismatch is a persistence failure.
	// Run this within the same transaction as the instance insert.
	CreateBatch(ctx context.Context, tasks []*domain.Task) (int, error)

	// GetByInstanceID retrieves an instance's tasks in strict step order.
	GetByInstanceID(ctx context.Context, orgID, instanceID uuid.UUID) ([]*domain.Task, error)

	// Update saves changes to an existing task.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// TransitionByInstance flips every task of the instance currently in
	// the from status to the to status, stamping completedAt when given.
	// Returns the number of tasks transitioned.
	TransitionByInstance(
		ctx context.Context,
		orgID, instanceID uuid.UUID,
		from, to domain.TaskStatus,
		completedAt *time.Time,
	) (int64, error)

	// WithTx returns a new store instance that uses the provided transaction.
	WithTx(tx *sql.Tx) TaskStore
}
