package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/forkline/outreach-api/internal/domain"
	"github.com/forkline/outreach-api/internal/events"
	"github.com/forkline/outreach-api/internal/store"
)

// mockSequenceTemplateStore mocks store.SequenceTemplateStore.
type mockSequenceTemplateStore struct {
	mock.Mock
}

func (m *mockSequenceTemplateStore) GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.SequenceTemplate, error) {
	args := m.Called(ctx, orgID, id)
	if t, ok := args.Get(0).(*domain.SequenceTemplate); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSequenceTemplateStore) IncrementUsageCount(ctx context.Context, orgID, id uuid.UUID, delta int) error {
	args := m.Called(ctx, orgID, id, delta)
	return args.Error(0)
}

func (m *mockSequenceTemplateStore) WithTx(tx *sql.Tx) store.SequenceTemplateStore {
	return m
}

// mockRestaurantStore mocks store.RestaurantStore.
type mockRestaurantStore struct {
	mock.Mock
}

func (m *mockRestaurantStore) GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.Restaurant, error) {
	args := m.Called(ctx, orgID, id)
	if r, ok := args.Get(0).(*domain.Restaurant); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRestaurantStore) GetByIDs(ctx context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*domain.Restaurant, error) {
	args := m.Called(ctx, orgID, ids)
	if r, ok := args.Get(0).(map[uuid.UUID]*domain.Restaurant); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

// mockMessageTemplateStore mocks store.MessageTemplateStore.
type mockMessageTemplateStore struct {
	mock.Mock
}

func (m *mockMessageTemplateStore) GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.MessageTemplate, error) {
	args := m.Called(ctx, orgID, id)
	if t, ok := args.Get(0).(*domain.MessageTemplate); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

// mockSequenceInstanceStore mocks store.SequenceInstanceStore.
type mockSequenceInstanceStore struct {
	mock.Mock
}

func (m *mockSequenceInstanceStore) Create(ctx context.Context, instance *domain.SequenceInstance) error {
	args := m.Called(ctx, instance)
	return args.Error(0)
}

func (m *mockSequenceInstanceStore) GetByID(ctx context.Context, orgID, id uuid.UUID) (*domain.SequenceInstance, error) {
	args := m.Called(ctx, orgID, id)
	if i, ok := args.Get(0).(*domain.SequenceInstance); ok {
		return i, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSequenceInstanceStore) Update(ctx context.Context, instance *domain.SequenceInstance) error {
	args := m.Called(ctx, instance)
	return args.Error(0)
}

func (m *mockSequenceInstanceStore) List(ctx context.Context, orgID uuid.UUID, filter store.ListInstancesFilter) ([]*domain.SequenceInstance, error) {
	args := m.Called(ctx, orgID, filter)
	if l, ok := args.Get(0).([]*domain.SequenceInstance); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSequenceInstanceStore) WithTx(tx *sql.Tx) store.SequenceInstanceStore {
	return m
}

// mockTaskStore mocks store.TaskStore.
type mockTaskStore struct {
	mock.Mock
}

func (m *mockTaskStore) CreateBatch(ctx context.Context, tasks []*domain.Task) (int, error) {
	args := m.Called(ctx, tasks)
	return args.Int(0), args.Error(1)
}

func (m *mockTaskStore) GetByInstanceID(ctx context.Context, orgID, instanceID uuid.UUID) ([]*domain.Task, error) {
	args := m.Called(ctx, orgID, instanceID)
	if t, ok := args.Get(0).([]*domain.Task); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTaskStore) Update(ctx context.Context, task *domain.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

func (m *mockTaskStore) TransitionByInstance(
	ctx context.Context,
	orgID, instanceID uuid.UUID,
	from, to domain.TaskStatus,
	completedAt *time.Time,
) (int64, error) {
	args := m.Called(ctx, orgID, instanceID, from, to, completedAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return m
}

// passthroughRenderer is a MessageRenderer that returns text unchanged.
type passthroughRenderer struct{}

func (passthroughRenderer) Resolve(_ context.Context, text string, _ *domain.Restaurant) string {
	return text
}

// recordingEmitter captures emitted events for assertions.
type recordingEmitter struct {
	events []*events.SequenceEvent
}

func (e *recordingEmitter) EmitEvent(_ context.Context, event *events.SequenceEvent) error {
	e.events = append(e.events, event)
	return nil
}

// mockInstanceCreator mocks the InstanceCreator slice of the starter.
type mockInstanceCreator struct {
	mock.Mock
}

func (m *mockInstanceCreator) CreateInstance(
	ctx context.Context,
	org domain.OrgContext,
	template *domain.SequenceTemplate,
	restaurant *domain.Restaurant,
	assignedTo uuid.UUID,
) (*domain.SequenceInstance, error) {
	args := m.Called(ctx, org, template, restaurant, assignedTo)
	if i, ok := args.Get(0).(*domain.SequenceInstance); ok {
		return i, args.Error(1)
	}
	return nil, args.Error(1)
}

// mockFollowUpCreator mocks the follow-up workflow collaborator.
type mockFollowUpCreator struct {
	mock.Mock
}

func (m *mockFollowUpCreator) CreateFollowUp(ctx context.Context, org domain.OrgContext, handoff FollowUpHandoff) error {
	args := m.Called(ctx, org, handoff)
	return args.Error(0)
}

// mockStarter mocks SequenceStarter for lifecycle start-new tests.
type mockStarter struct {
	mock.Mock
}

func (m *mockStarter) Start(
	ctx context.Context,
	org domain.OrgContext,
	templateID, restaurantID uuid.UUID,
	opts StartOptions,
) (*domain.SequenceInstance, error) {
	args := m.Called(ctx, org, templateID, restaurantID, opts)
	if i, ok := args.Get(0).(*domain.SequenceInstance); ok {
		return i, args.Error(1)
	}
	return nil, args.Error(1)
}
