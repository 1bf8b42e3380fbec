package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/forkline/outreach-api/internal/domain"
)

// ListInstancesFilter narrows a sequence instance listing. Zero values mean
// "no filter". Pagination and sorting are owned by the caller.
type ListInstancesFilter struct {
	Statuses      []domain.InstanceStatus
	RestaurantIDs []uuid.UUID
	// Search matches case-insensitively against the restaurant name and
	// the template name.
	Search string
}

// SequenceInstanceStore defines the interface for sequence instance
// persistence.
type SequenceInstanceStore interface {
	// Create saves a new instance to the store.
	// Instance creation and its task batch insert MUST share one
	// transaction; use WithTx inside store.RunInTransaction so a failed
	// task insert rolls the instance back atomically.
	Create(ctx context.Context, instance *domain.SequenceInstance) error

	// GetByID retrieves an instance by its unique ID within the organisation.
	// Returns ErrInstanceNotFound if the instance does not exist.
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.SequenceInstance, error)

	// Update saves changes to an existing instance (status and lifecycle
	// timestamps). Returns ErrInstanceNotFound if the instance does not exist.
	Update(ctx context.Context, instance *domain.SequenceInstance) error

	// List retrieves the organisation's instances matching the filter,
	// newest first.
	List(ctx context.Context, orgID uuid.UUID, filter ListInstancesFilter) ([]*domain.SequenceInstance, error)

	// WithTx returns a new store instance that uses the provided transaction.
	WithTx(tx *sql.Tx) SequenceInstanceStore
}
