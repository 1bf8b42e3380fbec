package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/forkline/outreach-api/internal/domain"
)

// SequenceTemplateStore defines the interface for sequence template
// persistence. The sequence engine reads templates and bumps their usage
// counter; template authoring lives elsewhere in the CRM.
type SequenceTemplateStore interface {
	// GetByID retrieves a template and its ordered steps by ID within the
	// organisation. Returns ErrTemplateNotFound if it does not exist.
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.SequenceTemplate, error)

	// IncrementUsageCount atomically adds delta to the template's usage
	// counter with a single UPDATE. Concurrent bulk calls against the same
	// template therefore never under-count.
	// Returns ErrTemplateNotFound if the template does not exist.
	IncrementUsageCount(ctx context.Context, orgID, id uuid.UUID, delta int) error

	// WithTx returns a new store instance that uses the provided transaction.
	WithTx(tx *sql.Tx) SequenceTemplateStore
}
