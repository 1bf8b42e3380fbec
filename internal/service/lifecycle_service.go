package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"

	"github.com/forkline/outreach-api/internal/domain"
	"github.com/forkline/outreach-api/internal/events"
	"github.com/forkline/outreach-api/internal/platform/logger"
	"github.com/forkline/outreach-api/internal/store"
)

// FinishMode selects what happens after an instance is finished.
type FinishMode string

const (
	// FinishModeOnly finishes the instance and nothing else.
	FinishModeOnly FinishMode = "finish_only"
	// FinishModeFollowUp finishes the instance and hands the restaurant
	// off to a follow-up workflow.
	FinishModeFollowUp FinishMode = "finish_followup"
	// FinishModeStartNew finishes the instance and immediately starts a
	// new sequence from a caller-supplied template.
	FinishModeStartNew FinishMode = "finish_start_new"
)

// Validate checks that the finish mode is one of the known values.
func (m FinishMode) Validate() error {
	switch m {
	case FinishModeOnly, FinishModeFollowUp, FinishModeStartNew:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFinishMode, string(m))
	}
}

// Lifecycle triggers. Each maps a caller intent onto the instance state
// machine.
const (
	triggerPause  = "pause"
	triggerResume = "resume"
	triggerCancel = "cancel"
	triggerFinish = "finish"
)

// FinishOptions carries the finish mode and its mode-specific inputs.
type FinishOptions struct {
	Mode FinishMode
	// NextTemplateID is required when Mode is FinishModeStartNew.
	NextTemplateID *uuid.UUID
}

// FollowUpHandoff is what the follow-up workflow receives when an instance
// finishes in follow-up mode: the restaurant and the task the conversation
// left off at.
type FollowUpHandoff struct {
	Restaurant *domain.Restaurant `json:"restaurant"`
	FromTaskID *uuid.UUID         `json:"from_task_id,omitempty"`
}

// FollowUpCreator receives finished instances in follow-up mode. The
// pipeline service implements this; a nil creator downgrades follow-up
// finishes to handoff-only results.
type FollowUpCreator interface {
	CreateFollowUp(ctx context.Context, org domain.OrgContext, handoff FollowUpHandoff) error
}

// FinishResult is the outcome of a finish call. Handoff is set in
// follow-up mode, NewInstance in start-new mode.
type FinishResult struct {
	Instance    *domain.SequenceInstance
	Handoff     *FollowUpHandoff
	NewInstance *domain.SequenceInstance
}

// LifecycleService drives running sequence instances through their state
// machine and step progression.
type LifecycleService interface {
	// Pause suspends an active instance. Task due dates are relative to
	// activation, so nothing needs rescheduling on resume.
	Pause(ctx context.Context, org domain.OrgContext, instanceID uuid.UUID) (*domain.SequenceInstance, error)

	// Resume reactivates a paused instance.
	Resume(ctx context.Context, org domain.OrgContext, instanceID uuid.UUID) (*domain.SequenceInstance, error)

	// Cancel terminates an instance and cancels its open tasks.
	Cancel(ctx context.Context, org domain.OrgContext, instanceID uuid.UUID) (*domain.SequenceInstance, error)

	// Finish completes an instance: open active tasks complete, pending
	// tasks cancel, and the selected mode decides what happens next.
	Finish(ctx context.Context, org domain.OrgContext, instanceID uuid.UUID, opts FinishOptions) (*FinishResult, error)

	// CompleteStep completes the instance's current active task and
	// activates the next pending one, or finishes the instance when the
	// last step completes.
	CompleteStep(ctx context.Context, org domain.OrgContext, instanceID uuid.UUID) (*domain.SequenceInstance, error)

	// List returns the organisation's instances matching the filter,
	// newest first.
	List(ctx context.Context, org domain.OrgContext, filter store.ListInstancesFilter) ([]*domain.SequenceInstance, error)
}

// lifecycleServiceImpl implements the LifecycleService interface.
type lifecycleServiceImpl struct {
	db            *sql.DB
	instanceStore store.SequenceInstanceStore
	taskStore     store.TaskStore
	templateStore store.SequenceTemplateStore
	restStore     store.RestaurantStore
	starter       SequenceStarter
	followUps     FollowUpCreator
	emitter       events.EventEmitter
	logger        *slog.Logger
}

// NewLifecycleService creates a new LifecycleService. followUps and emitter
// may be nil; the corresponding side effects are then skipped.
func NewLifecycleService(
	db *sql.DB,
	instanceStore store.SequenceInstanceStore,
	taskStore store.TaskStore,
	templateStore store.SequenceTemplateStore,
	restStore store.RestaurantStore,
	starter SequenceStarter,
	followUps FollowUpCreator,
	emitter events.EventEmitter,
	log *slog.Logger,
) (*lifecycleServiceImpl, error) {
	if db == nil {
		return nil, domain.NewValidationError("db", "cannot be nil", domain.ErrValidation)
	}
	if instanceStore == nil {
		return nil, domain.NewValidationError("instanceStore", "cannot be nil", domain.ErrValidation)
	}
	if taskStore == nil {
		return nil, domain.NewValidationError("taskStore", "cannot be nil", domain.ErrValidation)
	}
	if templateStore == nil {
		return nil, domain.NewValidationError("templateStore", "cannot be nil", domain.ErrValidation)
	}
	if restStore == nil {
		return nil, domain.NewValidationError("restStore", "cannot be nil", domain.ErrValidation)
	}
	if starter == nil {
		return nil, domain.NewValidationError("starter", "cannot be nil", domain.ErrValidation)
	}

	if log == nil {
		log = slog.Default()
	}

	return &lifecycleServiceImpl{
		db:            db,
		instanceStore: instanceStore,
		taskStore:     taskStore,
		templateStore: templateStore,
		restStore:     restStore,
		starter:       starter,
		followUps:     followUps,
		emitter:       emitter,
		logger:        log.With(slog.String("component", "lifecycle_service")),
	}, nil
}

// Ensure lifecycleServiceImpl implements LifecycleService
var _ LifecycleService = (*lifecycleServiceImpl)(nil)

// newInstanceMachine builds the instance state machine seeded at the given
// status. Terminal states permit no triggers, so firing anything at a
// completed or cancelled instance fails.
func newInstanceMachine(status domain.InstanceStatus) *stateless.StateMachine {
	fsm := stateless.NewStateMachine(status)

	fsm.Configure(domain.InstanceStatusActive).
		Permit(triggerPause, domain.InstanceStatusPaused).
		Permit(triggerCancel, domain.InstanceStatusCancelled).
		Permit(triggerFinish, domain.InstanceStatusCompleted)

	fsm.Configure(domain.InstanceStatusPaused).
		Permit(triggerResume, domain.InstanceStatusActive).
		Permit(triggerCancel, domain.InstanceStatusCancelled).
		Permit(triggerFinish, domain.InstanceStatusCompleted)

	fsm.Configure(domain.InstanceStatusCompleted)
	fsm.Configure(domain.InstanceStatusCancelled)

	return fsm
}

// transition fires a lifecycle trigger against the instance's current
// status and returns the resulting status, or ErrInvalidTransition when
// the state machine rejects the trigger.
func transition(instance *domain.SequenceInstance, trigger string) (domain.InstanceStatus, error) {
	fsm := newInstanceMachine(instance.Status)
	if err := fsm.Fire(trigger); err != nil {
		return "", fmt.Errorf("%w: cannot %s instance in status %q",
			ErrInvalidTransition, trigger, instance.Status)
	}
	return fsm.MustState().(domain.InstanceStatus), nil
}

// Pause implements LifecycleService.Pause
func (s *lifecycleServiceImpl) Pause(ctx context.Context, org domain.OrgContext, instanceID uuid.UUID) (*domain.SequenceInstance, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	instance, err := s.getInstance(ctx, org, instanceID, "pause")
	if err != nil {
		return nil, err
	}

	next, err := transition(instance, triggerPause)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	instance.Status = next
	instance.PausedAt = &now

	if err := s.instanceStore.Update(ctx, instance); err != nil {
		return nil, NewSequenceServiceError("pause", "failed to update instance", err)
	}

	log.Info("sequence instance paused", slog.String("instance_id", instanceID.String()))
	return instance, nil
}

// Resume implements LifecycleService.Resume
func (s *lifecycleServiceImpl) Resume(ctx context.Context, org domain.OrgContext, instanceID uuid.UUID) (*domain.SequenceInstance, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	instance, err := s.getInstance(ctx, org, instanceID, "resume")
	if err != nil {
		return nil, err
	}

	next, err := transition(instance, triggerResume)
	if err != nil {
		return nil, err
	}

	instance.Status = next
	instance.PausedAt = nil

	if err := s.instanceStore.Update(ctx, instance); err != nil {
		return nil, NewSequenceServiceError("resume", "failed to update instance", err)
	}

	log.Info("sequence instance resumed", slog.String("instance_id", instanceID.String()))
	return instance, nil
}

// Cancel implements LifecycleService.Cancel
// The instance row and every open task flip in one transaction.
func (s *lifecycleServiceImpl) Cancel(ctx context.Context, org domain.OrgContext, instanceID uuid.UUID) (*domain.SequenceInstance, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	instance, err := s.getInstance(ctx, org, instanceID, "cancel")
	if err != nil {
		return nil, err
	}

	next, err := transition(instance, triggerCancel)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	instance.Status = next
	instance.CancelledAt = &now

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txTasks := s.taskStore.WithTx(tx)

		if _, err := txTasks.TransitionByInstance(ctx, org.OrgID, instanceID,
			domain.TaskStatusPending, domain.TaskStatusCancelled, nil); err != nil {
			return NewSequenceServiceError("cancel", "failed to cancel pending tasks", err)
		}
		if _, err := txTasks.TransitionByInstance(ctx, org.OrgID, instanceID,
			domain.TaskStatusActive, domain.TaskStatusCancelled, nil); err != nil {
			return NewSequenceServiceError("cancel", "failed to cancel active tasks", err)
		}

		if err := s.instanceStore.WithTx(tx).Update(ctx, instance); err != nil {
			return NewSequenceServiceError("cancel", "failed to update instance", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitLifecycleEvent(ctx, events.EventInstanceCancelled, instance)

	log.Info("sequence instance cancelled", slog.String("instance_id", instanceID.String()))
	return instance, nil
}

// Finish implements LifecycleService.Finish
func (s *lifecycleServiceImpl) Finish(
	ctx context.Context,
	org domain.OrgContext,
	instanceID uuid.UUID,
	opts FinishOptions,
) (*FinishResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := opts.Mode.Validate(); err != nil {
		return nil, err
	}
	// Mode inputs are checked before any state changes so a bad request
	// cannot leave the instance finished with its follow-on missing.
	if opts.Mode == FinishModeStartNew && opts.NextTemplateID == nil {
		return nil, ErrNextTemplateRequired
	}

	instance, err := s.getInstance(ctx, org, instanceID, "finish")
	if err != nil {
		return nil, err
	}

	next, err := transition(instance, triggerFinish)
	if err != nil {
		return nil, err
	}

	// The active task the sequence stops at feeds the follow-up handoff.
	tasks, err := s.taskStore.GetByInstanceID(ctx, org.OrgID, instanceID)
	if err != nil {
		return nil, NewSequenceServiceError("finish", "failed to fetch instance tasks", err)
	}
	var fromTaskID *uuid.UUID
	for _, task := range tasks {
		if task.Status == domain.TaskStatusActive {
			id := task.ID
			fromTaskID = &id
		}
	}

	now := time.Now().UTC()
	instance.Status = next
	instance.CompletedAt = &now

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txTasks := s.taskStore.WithTx(tx)

		// Work in flight counts as done; work not yet surfaced does not.
		if _, err := txTasks.TransitionByInstance(ctx, org.OrgID, instanceID,
			domain.TaskStatusActive, domain.TaskStatusCompleted, &now); err != nil {
			return NewSequenceServiceError("finish", "failed to complete active tasks", err)
		}
		if _, err := txTasks.TransitionByInstance(ctx, org.OrgID, instanceID,
			domain.TaskStatusPending, domain.TaskStatusCancelled, nil); err != nil {
			return NewSequenceServiceError("finish", "failed to cancel pending tasks", err)
		}

		if err := s.instanceStore.WithTx(tx).Update(ctx, instance); err != nil {
			return NewSequenceServiceError("finish", "failed to update instance", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitLifecycleEvent(ctx, events.EventInstanceCompleted, instance)

	result := &FinishResult{Instance: instance}

	switch opts.Mode {
	case FinishModeFollowUp:
		handoff, err := s.createFollowUp(ctx, org, instance, fromTaskID)
		if err != nil {
			// The finish already committed; the caller gets the
			// finished instance plus the error to act on.
			return result, err
		}
		result.Handoff = handoff

	case FinishModeStartNew:
		newInstance, err := s.starter.Start(ctx, org, *opts.NextTemplateID, instance.RestaurantID,
			StartOptions{AssignedTo: instance.AssignedTo})
		if err != nil {
			return result, NewSequenceServiceError("finish", "failed to start next sequence", err)
		}
		result.NewInstance = newInstance
	}

	log.Info("sequence instance finished",
		slog.String("instance_id", instanceID.String()),
		slog.String("mode", string(opts.Mode)))
	return result, nil
}

// createFollowUp builds the follow-up handoff and routes it to the creator
// when one is wired.
func (s *lifecycleServiceImpl) createFollowUp(
	ctx context.Context,
	org domain.OrgContext,
	instance *domain.SequenceInstance,
	fromTaskID *uuid.UUID,
) (*FollowUpHandoff, error) {
	restaurant, err := s.restStore.GetByID(ctx, org.OrgID, instance.RestaurantID)
	if err != nil {
		return nil, NewSequenceServiceError("finish", "failed to fetch restaurant for follow-up", err)
	}

	handoff := FollowUpHandoff{
		Restaurant: restaurant,
		FromTaskID: fromTaskID,
	}

	if s.followUps != nil {
		if err := s.followUps.CreateFollowUp(ctx, org, handoff); err != nil {
			return nil, NewSequenceServiceError("finish", "failed to create follow-up", err)
		}
	}

	return &handoff, nil
}

// CompleteStep implements LifecycleService.CompleteStep
func (s *lifecycleServiceImpl) CompleteStep(ctx context.Context, org domain.OrgContext, instanceID uuid.UUID) (*domain.SequenceInstance, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	instance, err := s.getInstance(ctx, org, instanceID, "complete_step")
	if err != nil {
		return nil, err
	}
	if instance.Status != domain.InstanceStatusActive {
		return nil, fmt.Errorf("%w: instance is %q", ErrInstanceNotAdvanceable, instance.Status)
	}

	tasks, err := s.taskStore.GetByInstanceID(ctx, org.OrgID, instanceID)
	if err != nil {
		return nil, NewSequenceServiceError("complete_step", "failed to fetch instance tasks", err)
	}

	var current, nextTask *domain.Task
	for _, task := range tasks {
		if current == nil && task.Status == domain.TaskStatusActive {
			current = task
			continue
		}
		if current != nil && task.Status == domain.TaskStatusPending {
			nextTask = task
			break
		}
	}
	if current == nil {
		return nil, ErrNoActiveTask
	}

	if err := current.Complete(); err != nil {
		return nil, NewSequenceServiceError("complete_step", "failed to complete task", err)
	}

	// Delays are relative to activation, not to the instance start, so a
	// paused or slow-moving sequence never produces due dates in the past.
	now := time.Now().UTC()
	if nextTask != nil {
		template, err := s.templateStore.GetByID(ctx, org.OrgID, instance.TemplateID)
		if err != nil {
			return nil, NewSequenceServiceError("complete_step", "failed to fetch template", err)
		}

		due := now
		for _, step := range template.Steps {
			if step.Order == nextTask.StepOrder {
				due = now.Add(step.Delay())
				break
			}
		}
		if err := nextTask.Activate(due); err != nil {
			return nil, NewSequenceServiceError("complete_step", "failed to activate next task", err)
		}
	} else {
		instance.Status = domain.InstanceStatusCompleted
		instance.CompletedAt = &now
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txTasks := s.taskStore.WithTx(tx)

		if err := txTasks.Update(ctx, current); err != nil {
			return NewSequenceServiceError("complete_step", "failed to update task", err)
		}
		if nextTask != nil {
			if err := txTasks.Update(ctx, nextTask); err != nil {
				return NewSequenceServiceError("complete_step", "failed to activate next task", err)
			}
		} else {
			if err := s.instanceStore.WithTx(tx).Update(ctx, instance); err != nil {
				return NewSequenceServiceError("complete_step", "failed to update instance", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if nextTask == nil {
		s.emitLifecycleEvent(ctx, events.EventInstanceCompleted, instance)
	}

	log.Info("sequence step completed",
		slog.String("instance_id", instanceID.String()),
		slog.Int("step_order", current.StepOrder),
		slog.Bool("instance_completed", nextTask == nil))

	instance.Tasks = tasks
	return instance, nil
}

// List implements LifecycleService.List
func (s *lifecycleServiceImpl) List(ctx context.Context, org domain.OrgContext, filter store.ListInstancesFilter) ([]*domain.SequenceInstance, error) {
	if err := org.Validate(); err != nil {
		return nil, NewSequenceServiceError("list", "invalid org context", err)
	}

	instances, err := s.instanceStore.List(ctx, org.OrgID, filter)
	if err != nil {
		return nil, NewSequenceServiceError("list", "failed to list instances", err)
	}
	return instances, nil
}

// getInstance fetches an org-scoped instance for a lifecycle operation.
func (s *lifecycleServiceImpl) getInstance(ctx context.Context, org domain.OrgContext, instanceID uuid.UUID, operation string) (*domain.SequenceInstance, error) {
	if err := org.Validate(); err != nil {
		return nil, NewSequenceServiceError(operation, "invalid org context", err)
	}

	instance, err := s.instanceStore.GetByID(ctx, org.OrgID, instanceID)
	if err != nil {
		return nil, NewSequenceServiceError(operation, "failed to fetch instance", err)
	}
	return instance, nil
}

// emitLifecycleEvent publishes a lifecycle event; failures are logged only.
func (s *lifecycleServiceImpl) emitLifecycleEvent(ctx context.Context, eventType string, instance *domain.SequenceInstance) {
	if s.emitter == nil {
		return
	}

	payload := struct {
		InstanceID   uuid.UUID `json:"instance_id"`
		RestaurantID uuid.UUID `json:"restaurant_id"`
		Status       string    `json:"status"`
	}{
		InstanceID:   instance.ID,
		RestaurantID: instance.RestaurantID,
		Status:       string(instance.Status),
	}

	event, err := events.NewSequenceEvent(eventType, payload)
	if err == nil {
		err = s.emitter.EmitEvent(ctx, event)
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to emit lifecycle event",
			slog.String("error", err.Error()),
			slog.String("event_type", eventType),
			slog.String("instance_id", instance.ID.String()))
	}
}
