package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/forkline/outreach-api/internal/api/shared"
	"github.com/forkline/outreach-api/internal/domain"
	"github.com/forkline/outreach-api/internal/service"
	"github.com/forkline/outreach-api/internal/store"
)

// SequenceHandler exposes the sequence engine over HTTP.
type SequenceHandler struct {
	starter     service.SequenceStarter
	bulkStarter service.BulkStarter
	lifecycle   service.LifecycleService
	logger      *slog.Logger
}

// NewSequenceHandler creates a new SequenceHandler with the given services.
func NewSequenceHandler(
	starter service.SequenceStarter,
	bulkStarter service.BulkStarter,
	lifecycle service.LifecycleService,
	logger *slog.Logger,
) *SequenceHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &SequenceHandler{
		starter:     starter,
		bulkStarter: bulkStarter,
		lifecycle:   lifecycle,
		logger:      logger.With(slog.String("component", "sequence_handler")),
	}
}

// Start handles POST /api/sequences
func (h *SequenceHandler) Start(w http.ResponseWriter, r *http.Request) {
	org, err := shared.GetOrgContext(r.Context())
	if err != nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req StartSequenceRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	templateID := uuid.MustParse(req.TemplateID)
	restaurantID := uuid.MustParse(req.RestaurantID)

	opts := service.StartOptions{}
	if req.AssignedTo != "" {
		opts.AssignedTo = uuid.MustParse(req.AssignedTo)
	}

	instance, err := h.starter.Start(r.Context(), org, templateID, restaurantID, opts)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, ToInstanceResponse(instance))
}

// StartBulk handles POST /api/sequences/bulk
func (h *SequenceHandler) StartBulk(w http.ResponseWriter, r *http.Request) {
	org, err := shared.GetOrgContext(r.Context())
	if err != nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req BulkStartSequenceRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	templateID := uuid.MustParse(req.TemplateID)
	restaurantIDs := make([]uuid.UUID, len(req.RestaurantIDs))
	for i, id := range req.RestaurantIDs {
		restaurantIDs[i] = uuid.MustParse(id)
	}

	opts := service.StartOptions{}
	if req.AssignedTo != "" {
		opts.AssignedTo = uuid.MustParse(req.AssignedTo)
	}

	result, err := h.bulkStarter.StartBulk(r.Context(), org, templateID, restaurantIDs, opts)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	// Partial failure is still a processed request; 200 with the
	// per-restaurant breakdown, never a 207 or an error status.
	shared.RespondWithJSON(w, r, http.StatusOK, BulkStartResponse{
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Summary:   result.Summary,
	})
}

// Pause handles POST /api/sequences/{id}/pause
func (h *SequenceHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, h.lifecycle.Pause)
}

// Resume handles POST /api/sequences/{id}/resume
func (h *SequenceHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, h.lifecycle.Resume)
}

// Cancel handles POST /api/sequences/{id}/cancel
func (h *SequenceHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, h.lifecycle.Cancel)
}

// Advance handles POST /api/sequences/{id}/advance
func (h *SequenceHandler) Advance(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, h.lifecycle.CompleteStep)
}

// lifecycleAction is the shared shape of the single-instance lifecycle
// endpoints: authenticate, parse the id, run the operation, respond.
func (h *SequenceHandler) lifecycleAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(context.Context, domain.OrgContext, uuid.UUID) (*domain.SequenceInstance, error),
) {
	org, err := shared.GetOrgContext(r.Context())
	if err != nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	instanceID, ok := h.instanceID(w, r)
	if !ok {
		return
	}

	instance, err := action(r.Context(), org, instanceID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ToInstanceResponse(instance))
}

// Finish handles POST /api/sequences/{id}/finish
func (h *SequenceHandler) Finish(w http.ResponseWriter, r *http.Request) {
	org, err := shared.GetOrgContext(r.Context())
	if err != nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	instanceID, ok := h.instanceID(w, r)
	if !ok {
		return
	}

	var req FinishSequenceRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	opts := service.FinishOptions{Mode: service.FinishMode(req.Mode)}
	if req.NextTemplateID != nil {
		id := uuid.MustParse(*req.NextTemplateID)
		opts.NextTemplateID = &id
	}

	result, err := h.lifecycle.Finish(r.Context(), org, instanceID, opts)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	resp := FinishSequenceResponse{
		Instance: ToInstanceResponse(result.Instance),
		Handoff:  result.Handoff,
	}
	if result.NewInstance != nil {
		newInstance := ToInstanceResponse(result.NewInstance)
		resp.NewInstance = &newInstance
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// List handles GET /api/sequences
func (h *SequenceHandler) List(w http.ResponseWriter, r *http.Request) {
	org, err := shared.GetOrgContext(r.Context())
	if err != nil {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	filter, err := parseListFilter(r)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	instances, err := h.lifecycle.List(r.Context(), org, filter)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r,
			MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	resp := ListInstancesResponse{Instances: []InstanceResponse{}}
	for _, instance := range instances {
		resp.Instances = append(resp.Instances, ToInstanceResponse(instance))
	}

	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// instanceID parses the {id} route parameter, responding with 400 on a
// malformed id.
func (h *SequenceHandler) instanceID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid sequence id")
		return uuid.Nil, false
	}
	return id, true
}

// parseListFilter builds the list filter from query parameters. status and
// restaurant_id accept comma-separated values.
func parseListFilter(r *http.Request) (store.ListInstancesFilter, error) {
	var filter store.ListInstancesFilter

	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			filter.Statuses = append(filter.Statuses, domain.InstanceStatus(strings.TrimSpace(s)))
		}
	}

	if raw := r.URL.Query().Get("restaurant_id"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			id, err := uuid.Parse(strings.TrimSpace(s))
			if err != nil {
				return filter, domain.NewValidationError("restaurant_id", "must be a valid uuid", domain.ErrValidation)
			}
			filter.RestaurantIDs = append(filter.RestaurantIDs, id)
		}
	}

	filter.Search = r.URL.Query().Get("search")

	return filter, nil
}
