package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/forkline/outreach-api/internal/domain"
	"github.com/forkline/outreach-api/internal/platform/logger"
	"github.com/forkline/outreach-api/internal/store"
)

// PostgresRestaurantStore implements the store.RestaurantStore interface
// using a PostgreSQL database as the storage backend.
type PostgresRestaurantStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresRestaurantStore creates a new PostgreSQL implementation of the
// RestaurantStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresRestaurantStore(db store.DBTX, logger *slog.Logger) *PostgresRestaurantStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresRestaurantStore{
		db:     db,
		logger: logger.With(slog.String("component", "restaurant_store")),
	}
}

// Ensure PostgresRestaurantStore implements store.RestaurantStore interface
var _ store.RestaurantStore = (*PostgresRestaurantStore)(nil)

const restaurantColumns = `id, org_id, name, slug, contact_name, email, phone, city,
	cuisines, has_online_ordering, created_at, updated_at`

// GetByID implements store.RestaurantStore.GetByID
// Returns store.ErrRestaurantNotFound if the restaurant does not exist in
// the organisation.
func (s *PostgresRestaurantStore) GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Restaurant, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := fmt.Sprintf(`
		SELECT %s
		FROM restaurants
		WHERE org_id = $1 AND id = $2
	`, restaurantColumns)

	restaurant, err := scanRestaurant(s.db.QueryRowContext(ctx, query, orgID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("restaurant not found",
				slog.String("restaurant_id", id.String()))
			return nil, store.ErrRestaurantNotFound
		}
		log.Error("failed to get restaurant by ID",
			slog.String("error", err.Error()),
			slog.String("restaurant_id", id.String()))
		return nil, MapError(err)
	}

	return restaurant, nil
}

// GetByIDs implements store.RestaurantStore.GetByIDs
// It resolves all requested restaurants in a single query and returns them
// keyed by ID; missing IDs are absent from the map, not an error.
func (s *PostgresRestaurantStore) GetByIDs(
	ctx context.Context,
	orgID uuid.UUID,
	ids []uuid.UUID,
) (map[uuid.UUID]*domain.Restaurant, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result := make(map[uuid.UUID]*domain.Restaurant, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM restaurants
		WHERE org_id = $1 AND id = ANY($2)
	`, restaurantColumns)

	rows, err := s.db.QueryContext(ctx, query, orgID, uuidStrings(ids))
	if err != nil {
		log.Error("failed to query restaurants by IDs",
			slog.String("error", err.Error()),
			slog.Int("id_count", len(ids)))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		restaurant, err := scanRestaurant(rows)
		if err != nil {
			log.Error("failed to scan restaurant row",
				slog.String("error", err.Error()))
			return nil, MapError(err)
		}
		result[restaurant.ID] = restaurant
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating restaurant rows",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}

	return result, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRestaurant maps one restaurants row onto a domain.Restaurant.
// Cuisines are stored as a JSONB array.
func scanRestaurant(row rowScanner) (*domain.Restaurant, error) {
	var r domain.Restaurant
	var cuisines []byte

	err := row.Scan(
		&r.ID,
		&r.OrgID,
		&r.Name,
		&r.Slug,
		&r.ContactName,
		&r.Email,
		&r.Phone,
		&r.City,
		&cuisines,
		&r.HasOnlineOrdering,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(cuisines) > 0 {
		if err := json.Unmarshal(cuisines, &r.Cuisines); err != nil {
			return nil, fmt.Errorf("failed to decode cuisines: %w", err)
		}
	}

	return &r, nil
}

// uuidStrings renders UUIDs as text for ANY($n) parameters; the pgx stdlib
// driver handles a []string natively where []uuid.UUID needs registration.
func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
