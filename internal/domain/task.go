package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the scheduling state of a task.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusActive    TaskStatus = "active"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// TaskPriority represents the priority bucket a task is worked in.
type TaskPriority string

// Possible task priority values
const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// Common validation errors for Task
var (
	ErrTaskIDEmpty        = errors.New("task ID cannot be empty")
	ErrTaskOrgIDEmpty     = errors.New("task org ID cannot be empty")
	ErrTaskNameEmpty      = errors.New("task name cannot be empty")
	ErrTaskStepOrderEmpty = errors.New("sequence task must carry its step order")
	ErrTaskNotActive      = errors.New("task is not active")
)

// Task is the concrete, schedulable unit of work generated from a sequence
// step. A nil InstanceID means a standalone task created outside the
// sequence engine; the engine never produces those but shares the table
// with the component that does.
type Task struct {
	ID         uuid.UUID    `json:"id"`
	OrgID      uuid.UUID    `json:"org_id"`
	InstanceID *uuid.UUID   `json:"instance_id,omitempty"`
	StepOrder  int          `json:"step_order"`
	Name       string       `json:"name"`
	Type       StepType     `json:"type"`
	Status     TaskStatus   `json:"status"`
	Priority   TaskPriority `json:"priority"`

	// Message and SubjectLine hold the raw template text; the rendered
	// counterparts have restaurant variables substituted in.
	Message             string `json:"message,omitempty"`
	SubjectLine         string `json:"subject_line,omitempty"`
	RenderedMessage     string `json:"rendered_message,omitempty"`
	RenderedSubjectLine string `json:"rendered_subject_line,omitempty"`

	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewSequenceTask creates a task for one step of a sequence instance.
// Tasks start pending with no due date; the starter activates the
// instance's first task and CompleteStep activates each successor. Which
// task is first is positional, not a property of the step: step orders
// only have to be increasing, they are not required to start at 1.
func NewSequenceTask(org OrgContext, instanceID uuid.UUID, step SequenceStep, restaurantName string) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		ID:         uuid.New(),
		OrgID:      org.OrgID,
		InstanceID: &instanceID,
		StepOrder:  step.Order,
		Name:       fmt.Sprintf("%s: %s (step %d)", stepTypeLabel(step.Type), restaurantName, step.Order),
		Type:       step.Type,
		Status:     TaskStatusPending,
		Priority:   TaskPriorityMedium,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrTaskIDEmpty
	}
	if t.OrgID == uuid.Nil {
		return ErrTaskOrgIDEmpty
	}
	if t.Name == "" {
		return ErrTaskNameEmpty
	}
	if t.InstanceID != nil && t.StepOrder < 1 {
		return ErrTaskStepOrderEmpty
	}
	if !isValidStepType(t.Type) {
		return ErrInvalidStepType
	}
	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}
	return nil
}

// IsTerminal reports whether the task has reached a terminal state.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusCancelled
}

// Complete marks an active task completed. Returns ErrTaskNotActive when
// the task is not the instance's current step.
func (t *Task) Complete() error {
	if t.Status != TaskStatusActive {
		return ErrTaskNotActive
	}
	now := time.Now().UTC()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	return nil
}

// Activate promotes a pending task to active with the given due date.
func (t *Task) Activate(due time.Time) error {
	if t.Status != TaskStatusPending {
		return ErrInvalidTaskStatus
	}
	t.Status = TaskStatusActive
	t.DueDate = &due
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// isValidTaskStatus checks if the given status is a valid TaskStatus.
func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusActive, TaskStatusCompleted, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// stepTypeLabel maps a step type to the human label used in task names.
func stepTypeLabel(t StepType) string {
	switch t {
	case StepTypeEmail:
		return "Email"
	case StepTypeCall:
		return "Call"
	case StepTypeText:
		return "Text"
	case StepTypeSocialMessage:
		return "Social message"
	case StepTypeDemoMeeting:
		return "Demo meeting"
	case StepTypeInternalActivity:
		return "Internal activity"
	default:
		return string(t)
	}
}
