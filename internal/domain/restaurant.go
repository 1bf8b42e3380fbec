package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Restaurant-specific errors
var (
	// ErrRestaurantSlugEmpty is returned when an ordering URL is requested
	// for a restaurant that has no public slug.
	ErrRestaurantSlugEmpty = errors.New("restaurant has no public slug")
)

// orderingBaseURL is the public host restaurant ordering pages live under.
const orderingBaseURL = "https://order.forkline.com"

// Restaurant is the target entity a sequence runs against. It is owned and
// mutated by the menu-extraction side of the CRM; the sequence engine only
// ever reads it.
type Restaurant struct {
	ID                uuid.UUID `json:"id"`
	OrgID             uuid.UUID `json:"org_id"`
	Name              string    `json:"name"`
	Slug              string    `json:"slug"`
	ContactName       string    `json:"contact_name"`
	Email             string    `json:"email"`
	Phone             string    `json:"phone"`
	City              string    `json:"city"`
	Cuisines          []string  `json:"cuisines"`
	HasOnlineOrdering bool      `json:"has_online_ordering"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// OrderingURL derives the restaurant's public ordering page from its slug.
// Returns an error if the restaurant has no slug yet; callers that render
// message text are expected to fall back rather than fail.
func (r *Restaurant) OrderingURL() (string, error) {
	if r.Slug == "" {
		return "", fmt.Errorf("%w: restaurant %s", ErrRestaurantSlugEmpty, r.ID)
	}
	return fmt.Sprintf("%s/%s", orderingBaseURL, r.Slug), nil
}
