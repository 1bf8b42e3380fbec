package service

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/forkline/outreach-api/internal/domain"
	"github.com/forkline/outreach-api/internal/events"
	"github.com/forkline/outreach-api/internal/platform/logger"
	"github.com/forkline/outreach-api/internal/store"
)

// MessageRenderer renders placeholder variables in message text against a
// restaurant. Implementations must never fail; unknown or broken variables
// stay literal. Satisfied by render.Resolver.
type MessageRenderer interface {
	Resolve(ctx context.Context, text string, restaurant *domain.Restaurant) string
}

// StartOptions carries the optional knobs of a sequence start.
type StartOptions struct {
	// AssignedTo is the user the generated tasks are worked by.
	// Zero means the acting user.
	AssignedTo uuid.UUID
}

// SequenceStarter instantiates one sequence template against one restaurant.
type SequenceStarter interface {
	// Start validates the template, creates a sequence instance with its
	// full task set atomically, and bumps the template usage counter.
	// Duplicate instances for the same restaurant are allowed by design.
	Start(
		ctx context.Context,
		org domain.OrgContext,
		templateID, restaurantID uuid.UUID,
		opts StartOptions,
	) (*domain.SequenceInstance, error)
}

// InstanceCreator is the slice of the starter the bulk orchestrator reuses:
// instantiation against an already-fetched template and restaurant, without
// the usage-count bump (bulk counts usages once at the end).
type InstanceCreator interface {
	CreateInstance(
		ctx context.Context,
		org domain.OrgContext,
		template *domain.SequenceTemplate,
		restaurant *domain.Restaurant,
		assignedTo uuid.UUID,
	) (*domain.SequenceInstance, error)
}

// sequenceStarterImpl implements the SequenceStarter and InstanceCreator
// interfaces.
type sequenceStarterImpl struct {
	db            *sql.DB
	templateStore store.SequenceTemplateStore
	restStore     store.RestaurantStore
	messageStore  store.MessageTemplateStore
	instanceStore store.SequenceInstanceStore
	taskStore     store.TaskStore
	renderer      MessageRenderer
	emitter       events.EventEmitter
	logger        *slog.Logger
}

// NewSequenceStarter creates a new SequenceStarter.
// It returns an error if any of the required dependencies are nil.
func NewSequenceStarter(
	db *sql.DB,
	templateStore store.SequenceTemplateStore,
	restStore store.RestaurantStore,
	messageStore store.MessageTemplateStore,
	instanceStore store.SequenceInstanceStore,
	taskStore store.TaskStore,
	renderer MessageRenderer,
	emitter events.EventEmitter,
	log *slog.Logger,
) (*sequenceStarterImpl, error) {
	if db == nil {
		return nil, domain.NewValidationError("db", "cannot be nil", domain.ErrValidation)
	}
	if templateStore == nil {
		return nil, domain.NewValidationError("templateStore", "cannot be nil", domain.ErrValidation)
	}
	if restStore == nil {
		return nil, domain.NewValidationError("restStore", "cannot be nil", domain.ErrValidation)
	}
	if messageStore == nil {
		return nil, domain.NewValidationError("messageStore", "cannot be nil", domain.ErrValidation)
	}
	if instanceStore == nil {
		return nil, domain.NewValidationError("instanceStore", "cannot be nil", domain.ErrValidation)
	}
	if taskStore == nil {
		return nil, domain.NewValidationError("taskStore", "cannot be nil", domain.ErrValidation)
	}
	if renderer == nil {
		return nil, domain.NewValidationError("renderer", "cannot be nil", domain.ErrValidation)
	}

	if log == nil {
		log = slog.Default()
	}

	return &sequenceStarterImpl{
		db:            db,
		templateStore: templateStore,
		restStore:     restStore,
		messageStore:  messageStore,
		instanceStore: instanceStore,
		taskStore:     taskStore,
		renderer:      renderer,
		emitter:       emitter,
		logger:        log.With(slog.String("component", "sequence_starter")),
	}, nil
}

// Ensure sequenceStarterImpl implements both service interfaces
var (
	_ SequenceStarter = (*sequenceStarterImpl)(nil)
	_ InstanceCreator = (*sequenceStarterImpl)(nil)
)

// Start implements SequenceStarter.Start
func (s *sequenceStarterImpl) Start(
	ctx context.Context,
	org domain.OrgContext,
	templateID, restaurantID uuid.UUID,
	opts StartOptions,
) (*domain.SequenceInstance, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := org.Validate(); err != nil {
		return nil, NewSequenceServiceError("start", "invalid org context", err)
	}

	// Template validation happens before any persistent state is touched.
	template, err := s.templateStore.GetByID(ctx, org.OrgID, templateID)
	if err != nil {
		log.Error("failed to fetch sequence template",
			slog.String("error", err.Error()),
			slog.String("template_id", templateID.String()))
		return nil, NewSequenceServiceError("start", "failed to fetch template", err)
	}
	if err := template.Startable(); err != nil {
		log.Warn("sequence template is not startable",
			slog.String("template_id", templateID.String()),
			slog.String("reason", err.Error()))
		return nil, domain.NewValidationError("template_id", err.Error(), err)
	}

	restaurant, err := s.restStore.GetByID(ctx, org.OrgID, restaurantID)
	if err != nil {
		log.Error("failed to fetch restaurant",
			slog.String("error", err.Error()),
			slog.String("restaurant_id", restaurantID.String()))
		return nil, NewSequenceServiceError("start", "failed to fetch restaurant", err)
	}

	instance, err := s.CreateInstance(ctx, org, template, restaurant, opts.AssignedTo)
	if err != nil {
		return nil, err
	}

	// One start, one usage. Bulk calls bypass this and count successes
	// once at the end instead.
	if err := s.templateStore.IncrementUsageCount(ctx, org.OrgID, template.ID, 1); err != nil {
		// The instance is live; a missed counter bump is not worth
		// failing the call over.
		log.Warn("failed to increment template usage count",
			slog.String("error", err.Error()),
			slog.String("template_id", template.ID.String()))
	}

	s.emitInstanceStarted(ctx, instance, len(instance.Tasks))

	log.Info("sequence started",
		slog.String("instance_id", instance.ID.String()),
		slog.String("template_id", template.ID.String()),
		slog.String("restaurant_id", restaurant.ID.String()),
		slog.Int("tasks_created", len(instance.Tasks)))
	return instance, nil
}

// CreateInstance implements InstanceCreator.CreateInstance
// It builds the instance and its full task set, then persists both in one
// transaction: if the task batch fails, or produces fewer rows than the
// template has steps, the instance row never survives.
func (s *sequenceStarterImpl) CreateInstance(
	ctx context.Context,
	org domain.OrgContext,
	template *domain.SequenceTemplate,
	restaurant *domain.Restaurant,
	assignedTo uuid.UUID,
) (*domain.SequenceInstance, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	instance, err := domain.NewSequenceInstance(org, template.ID, restaurant.ID, assignedTo)
	if err != nil {
		return nil, NewSequenceServiceError("create_instance", "failed to build instance", err)
	}

	tasks, err := s.buildTasks(ctx, org, template, restaurant, instance.ID)
	if err != nil {
		return nil, err
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txInstances := s.instanceStore.WithTx(tx)
		txTasks := s.taskStore.WithTx(tx)

		if err := txInstances.Create(ctx, instance); err != nil {
			log.Error("failed to create sequence instance in transaction",
				slog.String("error", err.Error()),
				slog.String("instance_id", instance.ID.String()))
			return NewSequenceServiceError("create_instance", "failed to save instance", err)
		}

		created, err := txTasks.CreateBatch(ctx, tasks)
		if err != nil {
			log.Error("failed to create task batch in transaction",
				slog.String("error", err.Error()),
				slog.String("instance_id", instance.ID.String()))
			return NewSequenceServiceError("create_instance", "failed to save tasks", err)
		}
		if created != len(template.Steps) {
			log.Error("task count mismatch after batch insert",
				slog.String("instance_id", instance.ID.String()),
				slog.Int("created", created),
				slog.Int("expected", len(template.Steps)))
			return NewSequenceServiceError("create_instance", "task batch incomplete", ErrTaskCountMismatch)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	instance.Tasks = tasks
	return instance, nil
}

// buildTasks produces one task per template step, in step order. The first
// task by position is activated and due immediately; step orders only have
// to be increasing, so the lowest order is not necessarily 1. Message
// selection follows the source variant on each step (a template reference
// wins over inline text); rendering never fails.
func (s *sequenceStarterImpl) buildTasks(
	ctx context.Context,
	org domain.OrgContext,
	template *domain.SequenceTemplate,
	restaurant *domain.Restaurant,
	instanceID uuid.UUID,
) ([]*domain.Task, error) {
	tasks := make([]*domain.Task, 0, len(template.Steps))

	for i, step := range template.Steps {
		message, subject, err := s.stepMessage(ctx, org, step)
		if err != nil {
			return nil, NewSequenceServiceError(
				"create_instance", "failed to resolve step message", err)
		}

		task, err := domain.NewSequenceTask(org, instanceID, step, restaurant.Name)
		if err != nil {
			return nil, NewSequenceServiceError(
				"create_instance", "failed to build task", err)
		}
		if i == 0 {
			if err := task.Activate(time.Now().UTC()); err != nil {
				return nil, NewSequenceServiceError(
					"create_instance", "failed to activate first task", err)
			}
		}

		task.Message = message
		task.RenderedMessage = s.renderer.Resolve(ctx, message, restaurant)
		if step.Type == domain.StepTypeEmail {
			task.SubjectLine = subject
			task.RenderedSubjectLine = s.renderer.Resolve(ctx, subject, restaurant)
		}

		tasks = append(tasks, task)
	}

	return tasks, nil
}

// stepMessage resolves the raw message and subject line for a step from
// its message source.
func (s *sequenceStarterImpl) stepMessage(
	ctx context.Context,
	org domain.OrgContext,
	step domain.SequenceStep,
) (message, subject string, err error) {
	switch step.Message.Kind {
	case domain.MessageSourceTemplate:
		mt, err := s.messageStore.GetByID(ctx, org.OrgID, step.Message.TemplateID)
		if err != nil {
			return "", "", err
		}
		message = mt.Body
		subject = mt.SubjectLine
	case domain.MessageSourceInline:
		message = step.Message.Text
	}

	// A subject set on the step itself overrides the library one.
	if step.SubjectLine != "" {
		subject = step.SubjectLine
	}

	return message, subject, nil
}

// emitInstanceStarted notifies the delivery component of a fresh task set.
// Emission failures are logged and never fail the start.
func (s *sequenceStarterImpl) emitInstanceStarted(ctx context.Context, instance *domain.SequenceInstance, taskCount int) {
	if s.emitter == nil {
		return
	}

	payload := struct {
		InstanceID   uuid.UUID `json:"instance_id"`
		RestaurantID uuid.UUID `json:"restaurant_id"`
		TasksCreated int       `json:"tasks_created"`
	}{
		InstanceID:   instance.ID,
		RestaurantID: instance.RestaurantID,
		TasksCreated: taskCount,
	}

	event, err := events.NewSequenceEvent(events.EventInstanceStarted, payload)
	if err == nil {
		err = s.emitter.EmitEvent(ctx, event)
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("failed to emit instance started event",
			slog.String("error", err.Error()),
			slog.String("instance_id", instance.ID.String()))
	}
}
