package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/forkline/outreach-api/internal/domain"
	"github.com/forkline/outreach-api/internal/platform/logger"
	"github.com/forkline/outreach-api/internal/store"
)

// Bulk size bounds. Requests outside them fail before any store access.
const (
	BulkMinRestaurants = 1
	BulkMaxRestaurants = 100
)

// Failure reasons reported per restaurant in a bulk result.
const (
	BulkReasonNotFound        = "not_found"
	BulkReasonValidationError = "validation_error"
	BulkReasonServerError     = "server_error"
)

// BulkSucceeded describes one restaurant a bulk start succeeded for.
type BulkSucceeded struct {
	RestaurantID   uuid.UUID `json:"restaurant_id"`
	RestaurantName string    `json:"restaurant_name"`
	InstanceID     uuid.UUID `json:"instance_id"`
	TasksCreated   int       `json:"tasks_created"`
}

// BulkFailed describes one restaurant a bulk start failed for.
type BulkFailed struct {
	RestaurantID   uuid.UUID `json:"restaurant_id"`
	RestaurantName string    `json:"restaurant_name,omitempty"`
	Error          string    `json:"error"`
	Reason         string    `json:"reason"`
}

// BulkSummary totals a bulk run.
type BulkSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// BulkResult is the full outcome of a bulk start. Succeeded and Failed
// preserve request order within their partition.
type BulkResult struct {
	Succeeded []BulkSucceeded `json:"succeeded"`
	Failed    []BulkFailed    `json:"failed"`
	Summary   BulkSummary     `json:"summary"`
}

// BulkStarter fans one sequence template out over many restaurants, with
// per-restaurant failure isolation.
type BulkStarter interface {
	// StartBulk starts the template against every restaurant in the list.
	// One restaurant failing never aborts the rest; the result partitions
	// the list into successes and failures. It returns an error only when
	// the whole request is unusable (bad size, missing template, bulk
	// fetch failure).
	StartBulk(
		ctx context.Context,
		org domain.OrgContext,
		templateID uuid.UUID,
		restaurantIDs []uuid.UUID,
		opts StartOptions,
	) (*BulkResult, error)
}

// bulkStarterImpl implements the BulkStarter interface.
type bulkStarterImpl struct {
	templateStore store.SequenceTemplateStore
	restStore     store.RestaurantStore
	creator       InstanceCreator
	logger        *slog.Logger

	// perEntityTimeout bounds the whole run at timeout * len(ids), so a
	// hung database cannot pin a bulk request forever.
	perEntityTimeout time.Duration
}

// NewBulkStarter creates a new BulkStarter. perEntityTimeout <= 0 selects
// the default of two seconds per restaurant.
func NewBulkStarter(
	templateStore store.SequenceTemplateStore,
	restStore store.RestaurantStore,
	creator InstanceCreator,
	log *slog.Logger,
	perEntityTimeout time.Duration,
) (*bulkStarterImpl, error) {
	if templateStore == nil {
		return nil, domain.NewValidationError("templateStore", "cannot be nil", domain.ErrValidation)
	}
	if restStore == nil {
		return nil, domain.NewValidationError("restStore", "cannot be nil", domain.ErrValidation)
	}
	if creator == nil {
		return nil, domain.NewValidationError("creator", "cannot be nil", domain.ErrValidation)
	}

	if log == nil {
		log = slog.Default()
	}
	if perEntityTimeout <= 0 {
		perEntityTimeout = 2 * time.Second
	}

	return &bulkStarterImpl{
		templateStore:    templateStore,
		restStore:        restStore,
		creator:          creator,
		logger:           log.With(slog.String("component", "bulk_starter")),
		perEntityTimeout: perEntityTimeout,
	}, nil
}

// Ensure bulkStarterImpl implements BulkStarter
var _ BulkStarter = (*bulkStarterImpl)(nil)

// StartBulk implements BulkStarter.StartBulk
func (s *bulkStarterImpl) StartBulk(
	ctx context.Context,
	org domain.OrgContext,
	templateID uuid.UUID,
	restaurantIDs []uuid.UUID,
	opts StartOptions,
) (*BulkResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := org.Validate(); err != nil {
		return nil, NewSequenceServiceError("start_bulk", "invalid org context", err)
	}
	if len(restaurantIDs) < BulkMinRestaurants || len(restaurantIDs) > BulkMaxRestaurants {
		return nil, fmt.Errorf("%w: got %d restaurants, want between %d and %d",
			ErrBulkSizeInvalid, len(restaurantIDs), BulkMinRestaurants, BulkMaxRestaurants)
	}

	ctx, cancel := context.WithTimeout(ctx, s.perEntityTimeout*time.Duration(len(restaurantIDs)))
	defer cancel()

	// The template is shared by every restaurant, so one bad template
	// fails the whole request up front rather than 100 times over.
	template, err := s.templateStore.GetByID(ctx, org.OrgID, templateID)
	if err != nil {
		log.Error("failed to fetch sequence template for bulk start",
			slog.String("error", err.Error()),
			slog.String("template_id", templateID.String()))
		return nil, NewSequenceServiceError("start_bulk", "failed to fetch template", err)
	}
	if err := template.Startable(); err != nil {
		return nil, domain.NewValidationError("template_id", err.Error(), err)
	}

	restaurants, err := s.fetchRestaurants(ctx, org.OrgID, restaurantIDs)
	if err != nil {
		log.Error("failed to fetch restaurants for bulk start",
			slog.String("error", err.Error()),
			slog.Int("restaurant_count", len(restaurantIDs)))
		return nil, NewSequenceServiceError("start_bulk", "failed to fetch restaurants", err)
	}

	result := &BulkResult{
		Succeeded: []BulkSucceeded{},
		Failed:    []BulkFailed{},
	}

	for _, restaurantID := range restaurantIDs {
		restaurant, ok := restaurants[restaurantID]
		if !ok {
			result.Failed = append(result.Failed, BulkFailed{
				RestaurantID: restaurantID,
				Error:        "restaurant not found",
				Reason:       BulkReasonNotFound,
			})
			continue
		}

		// Each restaurant gets its own transaction inside
		// CreateInstance, so a failure here leaves no partial rows
		// and the loop carries on.
		instance, err := s.creator.CreateInstance(ctx, org, template, restaurant, opts.AssignedTo)
		if err != nil {
			log.Warn("bulk start failed for restaurant",
				slog.String("error", err.Error()),
				slog.String("restaurant_id", restaurantID.String()),
				slog.String("template_id", template.ID.String()))
			result.Failed = append(result.Failed, BulkFailed{
				RestaurantID:   restaurantID,
				RestaurantName: restaurant.Name,
				Error:          err.Error(),
				Reason:         classifyBulkFailure(err),
			})
			continue
		}

		result.Succeeded = append(result.Succeeded, BulkSucceeded{
			RestaurantID:   restaurantID,
			RestaurantName: restaurant.Name,
			InstanceID:     instance.ID,
			TasksCreated:   len(instance.Tasks),
		})
	}

	result.Summary = BulkSummary{
		Total:   len(restaurantIDs),
		Success: len(result.Succeeded),
		Failure: len(result.Failed),
	}

	// The counter reflects instances that actually exist, bumped once
	// per run rather than once per restaurant.
	if result.Summary.Success > 0 {
		if err := s.templateStore.IncrementUsageCount(ctx, org.OrgID, template.ID, result.Summary.Success); err != nil {
			log.Warn("failed to increment template usage count after bulk start",
				slog.String("error", err.Error()),
				slog.String("template_id", template.ID.String()),
				slog.Int("delta", result.Summary.Success))
		}
	}

	log.Info("bulk start finished",
		slog.String("template_id", template.ID.String()),
		slog.Int("total", result.Summary.Total),
		slog.Int("success", result.Summary.Success),
		slog.Int("failure", result.Summary.Failure))
	return result, nil
}

// fetchRestaurants loads the request's restaurants in one query, retrying
// transient failures with capped exponential backoff.
func (s *bulkStarterImpl) fetchRestaurants(
	ctx context.Context,
	orgID uuid.UUID,
	ids []uuid.UUID,
) (map[uuid.UUID]*domain.Restaurant, error) {
	var restaurants map[uuid.UUID]*domain.Restaurant

	backoff := retry.WithMaxRetries(2, retry.NewExponential(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		restaurants, err = s.restStore.GetByIDs(ctx, orgID, ids)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return restaurants, nil
}

// classifyBulkFailure maps a per-restaurant error to its reported reason.
func classifyBulkFailure(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return BulkReasonValidationError
	case errors.Is(err, store.ErrInvalidEntity), errors.Is(err, sql.ErrNoRows),
		errors.Is(err, store.ErrNotFound):
		return BulkReasonValidationError
	default:
		return BulkReasonServerError
	}
}
