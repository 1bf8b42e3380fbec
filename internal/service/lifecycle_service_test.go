package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/forkline/outreach-api/internal/domain"
	"github.com/forkline/outreach-api/internal/events"
	"github.com/forkline/outreach-api/internal/store"
)

type lifecycleFixture struct {
	svc       *lifecycleServiceImpl
	sqlMock   sqlmock.Sqlmock
	instances *mockSequenceInstanceStore
	tasks     *mockTaskStore
	templates *mockSequenceTemplateStore
	rests     *mockRestaurantStore
	starter   *mockStarter
	followUps *mockFollowUpCreator
	emitter   *recordingEmitter
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &lifecycleFixture{
		sqlMock:   sqlMock,
		instances: &mockSequenceInstanceStore{},
		tasks:     &mockTaskStore{},
		templates: &mockSequenceTemplateStore{},
		rests:     &mockRestaurantStore{},
		starter:   &mockStarter{},
		followUps: &mockFollowUpCreator{},
		emitter:   &recordingEmitter{},
	}

	svc, err := NewLifecycleService(
		db, f.instances, f.tasks, f.templates, f.rests,
		f.starter, f.followUps, f.emitter, nil,
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func activeInstance(t *testing.T, org domain.OrgContext) *domain.SequenceInstance {
	t.Helper()
	inst, err := domain.NewSequenceInstance(org, uuid.New(), uuid.New(), uuid.Nil)
	require.NoError(t, err)
	return inst
}

func instanceTask(t *testing.T, org domain.OrgContext, instanceID uuid.UUID, order int, status domain.TaskStatus) *domain.Task {
	t.Helper()
	task, err := domain.NewSequenceTask(org, instanceID, inlineStep(order, domain.StepTypeCall, "x"), "Pizza Palace")
	require.NoError(t, err)
	task.Status = status
	return task
}

func TestPauseAndResume(t *testing.T) {
	org := testOrg(t)

	t.Run("pause active instance", func(t *testing.T) {
		f := newLifecycleFixture(t)
		inst := activeInstance(t, org)

		f.instances.On("GetByID", mock.Anything, org.OrgID, inst.ID).Return(inst, nil)
		f.instances.On("Update", mock.Anything, inst).Return(nil)

		got, err := f.svc.Pause(context.Background(), org, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.InstanceStatusPaused, got.Status)
		require.NotNil(t, got.PausedAt)
	})

	t.Run("resume paused instance clears paused timestamp", func(t *testing.T) {
		f := newLifecycleFixture(t)
		inst := activeInstance(t, org)
		now := time.Now().UTC()
		inst.Status = domain.InstanceStatusPaused
		inst.PausedAt = &now

		f.instances.On("GetByID", mock.Anything, org.OrgID, inst.ID).Return(inst, nil)
		f.instances.On("Update", mock.Anything, inst).Return(nil)

		got, err := f.svc.Resume(context.Background(), org, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.InstanceStatusActive, got.Status)
		assert.Nil(t, got.PausedAt)
	})

	t.Run("pause paused instance is rejected", func(t *testing.T) {
		f := newLifecycleFixture(t)
		inst := activeInstance(t, org)
		inst.Status = domain.InstanceStatusPaused

		f.instances.On("GetByID", mock.Anything, org.OrgID, inst.ID).Return(inst, nil)

		_, err := f.svc.Pause(context.Background(), org, inst.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		f.instances.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("resume active instance is rejected", func(t *testing.T) {
		f := newLifecycleFixture(t)
		inst := activeInstance(t, org)

		f.instances.On("GetByID", mock.Anything, org.OrgID, inst.ID).Return(inst, nil)

		_, err := f.svc.Resume(context.Background(), org, inst.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestCancel(t *testing.T) {
	org := testOrg(t)

	t.Run("cancel active instance cancels open tasks", func(t *testing.T) {
		f := newLifecycleFixture(t)
		inst := activeInstance(t, org)

		f.instances.On("GetByID", mock.Anything, org.OrgID, inst.ID).Return(inst, nil)
		f.sqlMock.ExpectBegin()
		f.tasks.On("TransitionByInstance", mock.Anything, org.OrgID, inst.ID,
			domain.TaskStatusPending, domain.TaskStatusCancelled, (*time.Time)(nil)).Return(int64(2), nil)
		f.tasks.On("TransitionByInstance", mock.Anything, org.OrgID, inst.ID,
			domain.TaskStatusActive, domain.TaskStatusCancelled, (*time.Time)(nil)).Return(int64(1), nil)
		f.instances.On("Update", mock.Anything, inst).Return(nil)
		f.sqlMock.ExpectCommit()

		got, err := f.svc.Cancel(context.Background(), org, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.InstanceStatusCancelled, got.Status)
		require.NotNil(t, got.CancelledAt)

		require.Len(t, f.emitter.events, 1)
		assert.Equal(t, events.EventInstanceCancelled, f.emitter.events[0].Type)
		require.NoError(t, f.sqlMock.ExpectationsWereMet())
	})

	t.Run("cancel cancelled instance is rejected", func(t *testing.T) {
		f := newLifecycleFixture(t)
		inst := activeInstance(t, org)
		inst.Status = domain.InstanceStatusCancelled

		f.instances.On("GetByID", mock.Anything, org.OrgID, inst.ID).Return(inst, nil)

		_, err := f.svc.Cancel(context.Background(), org, inst.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

func TestFinishOnly(t *testing.T) {
	org := testOrg(t)
	f := newLifecycleFixture(t)
	inst := activeInstance(t, org)

	tasks := []*domain.Task{
		instanceTask(t, org, inst.ID, 1, domain.TaskStatusCompleted),
		instanceTask(t, org, inst.ID, 2, domain.TaskStatusActive),
		instanceTask(t, org, inst.ID, 3, domain.TaskStatusPending),
	}

	f.instances.On("GetByID", mock.Anything, org.OrgID, inst.ID).Return(inst, nil)
	f.tasks.On("GetByInstanceID", mock.Anything, org.OrgID, inst.ID).Return(tasks, nil)
	f.sqlMock.ExpectBegin()
	f.tasks.On("TransitionByInstance", mock.Anything, org.OrgID, inst.ID,
		domain.TaskStatusActive, domain.TaskStatusCompleted, mock.AnythingOfType("*time.Time")).Return(int64(1), nil)
	f.tasks.On("TransitionByInstance", mock.Anything, org.OrgID, inst.ID,
		domain.TaskStatusPending, domain.TaskStatusCancelled, (*time.Time)(nil)).Return(int64(1), nil)
	f.instances.On("Update", mock.Anything, inst).Return(nil)
	f.sqlMock.ExpectCommit()

	result, err := f.svc.Finish(context.Background(), org, inst.ID, FinishOptions{Mode: FinishModeOnly})
	require.NoError(t, err)

	assert.Equal(t, domain.InstanceStatusCompleted, result.Instance.Status)
	require.NotNil(t, result.Instance.CompletedAt)
	assert.Nil(t, result.Handoff)
	assert.Nil(t, result.NewInstance)

	require.Len(t, f.emitter.events, 1)
	assert.Equal(t, events.EventInstanceCompleted, f.emitter.events[0].Type)
	f.followUps.AssertNotCalled(t, "CreateFollowUp", mock.Anything, mock.Anything, mock.Anything)
	f.starter.AssertNotCalled(t, "Start", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFinishFinishedInstanceIsRejected(t *testing.T) {
	org := testOrg(t)
	f := newLifecycleFixture(t)
	inst := activeInstance(t, org)
	inst.Status = domain.InstanceStatusCompleted

	f.instances.On("GetByID", mock.Anything, org.OrgID, inst.ID).Return(inst, nil)

	_, err := f.svc.Finish(context.Background(), org, inst.ID, FinishOptions{Mode: FinishModeOnly})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFinishFollowUpHandsOffRestaurantAndLastTask(t *testing.T) {
	org := testOrg(t)
	f := newLifecycleFixture(t)
	inst := activeInstance(t, org)
	restaurant := testRestaurant(org)
	inst.RestaurantID = restaurant.ID

	active := instanceTask(t, org, inst.ID, 2, domain.TaskStatusActive)
	tasks := []*domain.Task{
		instanceTask(t, org, inst.ID, 1, domain.TaskStatusCompleted),
		active,
	}

	f.instances.On("GetByID", mock.Anything, org.OrgID, inst.ID).Return(inst, nil)
	f.tasks.On("GetByInstanceID", mock.Anything, org.OrgID, inst.ID).Return(tasks, nil)
	f.sqlMock.ExpectBegin()
	f.tasks.On("TransitionByInstance", mock.Anything, org.OrgID, inst.ID,
		domain.TaskStatusActive, domain.TaskStatusCompleted, mock.Anything).Return(int64(1), nil)
	f.tasks.On("TransitionByInstance", mock.Anything, org.OrgID, inst.ID,
		domain.TaskStatusPending, domain.TaskStatusCancelled, mock.Anything).Return(int64(0), nil)
	f.instances.On("Update", mock.Anything, inst).Return(nil)
	f.sqlMock.ExpectCommit()
	f.rests.On("GetByID", mock.Anything, org.OrgID, restaurant.ID).Return(restaurant, nil)
	f.followUps.On("CreateFollowUp", mock.Anything, org, mock.AnythingOfType("service.FollowUpHandoff")).Return(nil)

	result, err := f.svc.Finish(context.Background(), org, inst.ID, FinishOptions{Mode: FinishModeFollowUp})
	require.NoError(t, err)

	require.NotNil(t, result.Handoff)
	assert.Equal(t, restaurant, result.Handoff.Restaurant)
	require.NotNil(t, result.Handoff.FromTaskID)
	assert.Equal(t, active.ID, *result.Handoff.FromTaskID,
		"handoff points at the task the conversation left off at")
	f.followUps.AssertExpectations(t)
}

func TestFinishStartNew(t *testing.T) {
	org := testOrg(t)

	t.Run("requires next template id before any state change", func(t *testing.T) {
		f := newLifecycleFixture(t)

		_, err := f.svc.Finish(context.Background(), org, uuid.New(), FinishOptions{Mode: FinishModeStartNew})
		assert.ErrorIs(t, err, ErrNextTemplateRequired)
		assert.ErrorIs(t, err, domain.ErrValidation)
		f.instances.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("starts the next sequence against the same restaurant", func(t *testing.T) {
		f := newLifecycleFixture(t)
		inst := activeInstance(t, org)
		nextTemplateID := uuid.New()
		newInst := activeInstance(t, org)

		f.instances.On("GetByID", mock.Anything, org.OrgID, inst.ID).Return(inst, nil)
		f.tasks.On("GetByInstanceID", mock.Anything, org.OrgID, inst.ID).Return([]*domain.Task{}, nil)
		f.sqlMock.ExpectBegin()
		f.tasks.On("TransitionByInstance", mock.Anything, org.OrgID, inst.ID,
			domain.TaskStatusActive, domain.TaskStatusCompleted, mock.Anything).Return(int64(0), nil)
		f.tasks.On("TransitionByInstance", mock.Anything, org.OrgID, inst.ID,
			domain.TaskStatusPending, domain.TaskStatusCancelled, mock.Anything).Return(int64(0), nil)
		f.instances.On("Update", mock.Anything, inst).Return(nil)
		f.sqlMock.ExpectCommit()
		f.starter.On("Start", mock.Anything, org, nextTemplateID, inst.RestaurantID,
			StartOptions{AssignedTo: inst.AssignedTo}).Return(newInst, nil)

		result, err := f.svc.Finish(context.Background(), org, inst.ID,
			FinishOptions{Mode: FinishModeStartNew, NextTemplateID: &nextTemplateID})
		require.NoError(t, err)

		assert.Equal(t, newInst, result.NewInstance)
		f.starter.AssertExpectations(t)
	})

	t.Run("unknown finish mode", func(t *testing.T) {
		f := newLifecycleFixture(t)

		_, err := f.svc.Finish(context.Background(), org, uuid.New(), FinishOptions{Mode: "finish_eventually"})
		assert.ErrorIs(t, err, ErrInvalidFinishMode)
	})
}

func TestCompleteStep(t *testing.T) {
	org := testOrg(t)

	t.Run("activates the next pending task with its step delay", func(t *testing.T) {
		f := newLifecycleFixture(t)
		inst := activeInstance(t, org)

		current := instanceTask(t, org, inst.ID, 1, domain.TaskStatusActive)
		next := instanceTask(t, org, inst.ID, 2, domain.TaskStatusPending)
		tasks := []*domain.Task{current, next}

		step2 := inlineStep(2, domain.StepTypeCall, "x")
		step2.DelayValue = 3
		step2.DelayUnit = domain.DelayUnitDays
		template := testTemplate(org, inlineStep(1, domain.StepTypeCall, "x"), step2)
		template.ID = inst.TemplateID

		f.instances.On("GetByID", mock.Anything, org.OrgID, inst.ID).Return(inst, nil)
		f.tasks.On("GetByInstanceID", mock.Anything, org.OrgID, inst.ID).Return(tasks, nil)
		f.templates.On("GetByID", mock.Anything, org.OrgID, inst.TemplateID).Return(template, nil)
		f.sqlMock.ExpectBegin()
		f.tasks.On("Update", mock.Anything, current).Return(nil)
		f.tasks.On("Update", mock.Anything, next).Return(nil)
		f.sqlMock.ExpectCommit()

		got, err := f.svc.CompleteStep(context.Background(), org, inst.ID)
		require.NoError(t, err)

		assert.Equal(t, domain.TaskStatusCompleted, current.Status)
		assert.Equal(t, domain.TaskStatusActive, next.Status)
		require.NotNil(t, next.DueDate)
		assert.WithinDuration(t, time.Now().UTC().Add(72*time.Hour), *next.DueDate, 5*time.Second,
			"due date is activation time plus the step delay")
		assert.Equal(t, domain.InstanceStatusActive, got.Status, "instance stays active mid-sequence")
	})

	t.Run("completing the last step finishes the instance", func(t *testing.T) {
		f := newLifecycleFixture(t)
		inst := activeInstance(t, org)
		current := instanceTask(t, org, inst.ID, 2, domain.TaskStatusActive)
		tasks := []*domain.Task{
			instanceTask(t, org, inst.ID, 1, domain.TaskStatusCompleted),
			current,
		}

		f.instances.On("GetByID", mock.Anything, org.OrgID, inst.ID).Return(inst, nil)
		f.tasks.On("GetByInstanceID", mock.Anything, org.OrgID, inst.ID).Return(tasks, nil)
		f.sqlMock.ExpectBegin()
		f.tasks.On("Update", mock.Anything, current).Return(nil)
		f.instances.On("Update", mock.Anything, inst).Return(nil)
		f.sqlMock.ExpectCommit()

		got, err := f.svc.CompleteStep(context.Background(), org, inst.ID)
		require.NoError(t, err)

		assert.Equal(t, domain.InstanceStatusCompleted, got.Status)
		require.NotNil(t, got.CompletedAt)
		require.Len(t, f.emitter.events, 1)
		assert.Equal(t, events.EventInstanceCompleted, f.emitter.events[0].Type)
	})

	t.Run("paused instance cannot advance", func(t *testing.T) {
		f := newLifecycleFixture(t)
		inst := activeInstance(t, org)
		inst.Status = domain.InstanceStatusPaused

		f.instances.On("GetByID", mock.Anything, org.OrgID, inst.ID).Return(inst, nil)

		_, err := f.svc.CompleteStep(context.Background(), org, inst.ID)
		assert.ErrorIs(t, err, ErrInstanceNotAdvanceable)
	})

	t.Run("no active task", func(t *testing.T) {
		f := newLifecycleFixture(t)
		inst := activeInstance(t, org)

		f.instances.On("GetByID", mock.Anything, org.OrgID, inst.ID).Return(inst, nil)
		f.tasks.On("GetByInstanceID", mock.Anything, org.OrgID, inst.ID).
			Return([]*domain.Task{instanceTask(t, org, inst.ID, 1, domain.TaskStatusPending)}, nil)

		_, err := f.svc.CompleteStep(context.Background(), org, inst.ID)
		assert.ErrorIs(t, err, ErrNoActiveTask)
	})
}

func TestList(t *testing.T) {
	org := testOrg(t)
	f := newLifecycleFixture(t)

	filter := store.ListInstancesFilter{Statuses: []domain.InstanceStatus{domain.InstanceStatusActive}}
	want := []*domain.SequenceInstance{activeInstance(t, org)}

	f.instances.On("List", mock.Anything, org.OrgID, filter).Return(want, nil)

	got, err := f.svc.List(context.Background(), org, filter)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLifecycleInstanceNotFound(t *testing.T) {
	org := testOrg(t)
	f := newLifecycleFixture(t)
	id := uuid.New()

	f.instances.On("GetByID", mock.Anything, org.OrgID, id).Return(nil, store.ErrInstanceNotFound)

	_, err := f.svc.Pause(context.Background(), org, id)
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}
