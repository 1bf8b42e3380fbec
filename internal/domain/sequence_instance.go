package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// InstanceStatus represents the lifecycle state of a sequence instance.
type InstanceStatus string

// Possible instance status values
const (
	InstanceStatusActive    InstanceStatus = "active"
	InstanceStatusPaused    InstanceStatus = "paused"
	InstanceStatusCompleted InstanceStatus = "completed"
	InstanceStatusCancelled InstanceStatus = "cancelled"
)

// Common validation errors for SequenceInstance
var (
	ErrInstanceIDEmpty           = errors.New("sequence instance ID cannot be empty")
	ErrInstanceOrgIDEmpty        = errors.New("sequence instance org ID cannot be empty")
	ErrInstanceTemplateIDEmpty   = errors.New("sequence instance template ID cannot be empty")
	ErrInstanceRestaurantIDEmpty = errors.New("sequence instance restaurant ID cannot be empty")
)

// SequenceInstance is one execution of a sequence template against one
// restaurant. Instances are created by the sequence starter, mutated only
// by the lifecycle service, and retained for audit once live.
type SequenceInstance struct {
	ID           uuid.UUID      `json:"id"`
	OrgID        uuid.UUID      `json:"org_id"`
	TemplateID   uuid.UUID      `json:"template_id"`
	RestaurantID uuid.UUID      `json:"restaurant_id"`
	Status       InstanceStatus `json:"status"`
	AssignedTo   uuid.UUID      `json:"assigned_to"`
	CreatedBy    uuid.UUID      `json:"created_by"`
	StartedAt    time.Time      `json:"started_at"`
	PausedAt     *time.Time     `json:"paused_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	CancelledAt  *time.Time     `json:"cancelled_at,omitempty"`

	// Tasks is populated on creation and by list queries that ask for it;
	// it is not maintained on every mutation.
	Tasks []*Task `json:"tasks,omitempty"`
}

// NewSequenceInstance creates an active SequenceInstance for the given
// template and restaurant. It generates a new UUID and sets StartedAt.
// Returns an error if validation fails.
func NewSequenceInstance(org OrgContext, templateID, restaurantID, assignedTo uuid.UUID) (*SequenceInstance, error) {
	if assignedTo == uuid.Nil {
		assignedTo = org.UserID
	}
	inst := &SequenceInstance{
		ID:           uuid.New(),
		OrgID:        org.OrgID,
		TemplateID:   templateID,
		RestaurantID: restaurantID,
		Status:       InstanceStatusActive,
		AssignedTo:   assignedTo,
		CreatedBy:    org.UserID,
		StartedAt:    time.Now().UTC(),
	}

	if err := inst.Validate(); err != nil {
		return nil, err
	}

	return inst, nil
}

// Validate checks if the SequenceInstance has valid data.
func (i *SequenceInstance) Validate() error {
	if i.ID == uuid.Nil {
		return ErrInstanceIDEmpty
	}
	if i.OrgID == uuid.Nil {
		return ErrInstanceOrgIDEmpty
	}
	if i.TemplateID == uuid.Nil {
		return ErrInstanceTemplateIDEmpty
	}
	if i.RestaurantID == uuid.Nil {
		return ErrInstanceRestaurantIDEmpty
	}
	if !isValidInstanceStatus(i.Status) {
		return ErrInvalidInstanceStatus
	}
	return nil
}

// IsTerminal reports whether the instance has reached a terminal state.
func (i *SequenceInstance) IsTerminal() bool {
	return i.Status == InstanceStatusCompleted || i.Status == InstanceStatusCancelled
}

// isValidInstanceStatus checks if the given status is a valid InstanceStatus.
func isValidInstanceStatus(status InstanceStatus) bool {
	switch status {
	case InstanceStatusActive, InstanceStatusPaused,
		InstanceStatusCompleted, InstanceStatusCancelled:
		return true
	default:
		return false
	}
}
