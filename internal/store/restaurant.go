package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/forkline/outreach-api/internal/domain"
)

// RestaurantStore defines the read-only view of the restaurant directory
// the sequence engine consumes. Restaurants are owned and written by the
// menu-extraction side of the CRM; this engine never mutates them.
type RestaurantStore interface {
	// GetByID retrieves a restaurant by its unique ID within the organisation.
	// Returns ErrRestaurantNotFound if the restaurant does not exist.
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Restaurant, error)

	// GetByIDs retrieves many restaurants in one batched lookup and returns
	// them keyed by ID. IDs that do not exist in the organisation are simply
	// absent from the map; the caller decides how to treat the gaps.
	GetByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*domain.Restaurant, error)
}
