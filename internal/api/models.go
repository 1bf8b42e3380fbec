package api

import (
	"time"

	"github.com/forkline/outreach-api/internal/domain"
	"github.com/forkline/outreach-api/internal/service"
)

// StartSequenceRequest is the payload for starting one sequence.
type StartSequenceRequest struct {
	TemplateID   string `json:"template_id" validate:"required,uuid"`
	RestaurantID string `json:"restaurant_id" validate:"required,uuid"`
	AssignedTo   string `json:"assigned_to,omitempty" validate:"omitempty,uuid"`
}

// BulkStartSequenceRequest is the payload for starting one template against
// many restaurants. The restaurant list size is enforced both here and in
// the service layer.
type BulkStartSequenceRequest struct {
	TemplateID    string   `json:"template_id" validate:"required,uuid"`
	RestaurantIDs []string `json:"restaurant_ids" validate:"required,min=1,max=100,dive,uuid"`
	AssignedTo    string   `json:"assigned_to,omitempty" validate:"omitempty,uuid"`
}

// FinishSequenceRequest selects the finish mode and its inputs.
type FinishSequenceRequest struct {
	Mode           string  `json:"mode" validate:"required,oneof=finish_only finish_followup finish_start_new"`
	NextTemplateID *string `json:"next_template_id,omitempty" validate:"omitempty,uuid"`
}

// TaskResponse is the wire representation of a sequence task.
type TaskResponse struct {
	ID                  string     `json:"id"`
	StepOrder           int        `json:"step_order"`
	Name                string     `json:"name"`
	Type                string     `json:"type"`
	Status              string     `json:"status"`
	Priority            string     `json:"priority"`
	RenderedMessage     string     `json:"rendered_message,omitempty"`
	RenderedSubjectLine string     `json:"rendered_subject_line,omitempty"`
	DueDate             *time.Time `json:"due_date,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}

// InstanceResponse is the wire representation of a sequence instance.
type InstanceResponse struct {
	ID           string         `json:"id"`
	TemplateID   string         `json:"template_id"`
	RestaurantID string         `json:"restaurant_id"`
	Status       string         `json:"status"`
	AssignedTo   string         `json:"assigned_to"`
	StartedAt    time.Time      `json:"started_at"`
	PausedAt     *time.Time     `json:"paused_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	CancelledAt  *time.Time     `json:"cancelled_at,omitempty"`
	Tasks        []TaskResponse `json:"tasks,omitempty"`
}

// BulkStartResponse is the wire representation of a bulk start outcome.
type BulkStartResponse struct {
	Succeeded []service.BulkSucceeded `json:"succeeded"`
	Failed    []service.BulkFailed    `json:"failed"`
	Summary   service.BulkSummary     `json:"summary"`
}

// FinishSequenceResponse reports a finish and its mode-specific follow-on.
type FinishSequenceResponse struct {
	Instance    InstanceResponse         `json:"instance"`
	Handoff     *service.FollowUpHandoff `json:"handoff,omitempty"`
	NewInstance *InstanceResponse        `json:"new_instance,omitempty"`
}

// ListInstancesResponse wraps a list of instances.
type ListInstancesResponse struct {
	Instances []InstanceResponse `json:"instances"`
}

// ToTaskResponse converts a domain task to its wire representation.
func ToTaskResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:                  task.ID.String(),
		StepOrder:           task.StepOrder,
		Name:                task.Name,
		Type:                string(task.Type),
		Status:              string(task.Status),
		Priority:            string(task.Priority),
		RenderedMessage:     task.RenderedMessage,
		RenderedSubjectLine: task.RenderedSubjectLine,
		DueDate:             task.DueDate,
		CompletedAt:         task.CompletedAt,
	}
}

// ToInstanceResponse converts a domain instance, tasks included when loaded.
func ToInstanceResponse(instance *domain.SequenceInstance) InstanceResponse {
	resp := InstanceResponse{
		ID:           instance.ID.String(),
		TemplateID:   instance.TemplateID.String(),
		RestaurantID: instance.RestaurantID.String(),
		Status:       string(instance.Status),
		AssignedTo:   instance.AssignedTo.String(),
		StartedAt:    instance.StartedAt,
		PausedAt:     instance.PausedAt,
		CompletedAt:  instance.CompletedAt,
		CancelledAt:  instance.CancelledAt,
	}

	for _, task := range instance.Tasks {
		resp.Tasks = append(resp.Tasks, ToTaskResponse(task))
	}

	return resp
}
