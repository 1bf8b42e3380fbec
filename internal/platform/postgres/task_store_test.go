package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forkline/outreach-api/internal/domain"
	"github.com/forkline/outreach-api/internal/store"
)

func newTaskStoreFixture(t *testing.T) (*PostgresTaskStore, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewPostgresTaskStore(db, nil), mock
}

func storeTestOrg(t *testing.T) domain.OrgContext {
	t.Helper()
	org, err := domain.NewOrgContext(uuid.New(), uuid.New())
	require.NoError(t, err)
	return org
}

func storeTestTask(t *testing.T, org domain.OrgContext, instanceID uuid.UUID, order int) *domain.Task {
	t.Helper()
	step := domain.SequenceStep{
		ID:         uuid.New(),
		Order:      order,
		Type:       domain.StepTypeCall,
		DelayValue: 1,
		DelayUnit:  domain.DelayUnitDays,
		Message:    domain.InlineMessage("call them"),
	}
	task, err := domain.NewSequenceTask(org, instanceID, step, "Pizza Palace")
	require.NoError(t, err)
	return task
}

func TestTaskCreateBatch(t *testing.T) {
	org := storeTestOrg(t)
	instanceID := uuid.New()

	t.Run("inserts every task and reports the count", func(t *testing.T) {
		s, mock := newTaskStoreFixture(t)
		tasks := []*domain.Task{
			storeTestTask(t, org, instanceID, 1),
			storeTestTask(t, org, instanceID, 2),
			storeTestTask(t, org, instanceID, 3),
		}

		for range tasks {
			mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tasks")).
				WillReturnResult(sqlmock.NewResult(0, 1))
		}

		created, err := s.CreateBatch(context.Background(), tasks)
		require.NoError(t, err)
		assert.Equal(t, 3, created)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stops at the first invalid task", func(t *testing.T) {
		s, mock := newTaskStoreFixture(t)
		good := storeTestTask(t, org, instanceID, 1)
		bad := storeTestTask(t, org, instanceID, 2)
		bad.Name = ""

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tasks")).
			WillReturnResult(sqlmock.NewResult(0, 1))

		created, err := s.CreateBatch(context.Background(), []*domain.Task{good, bad})
		assert.ErrorIs(t, err, domain.ErrTaskNameEmpty)
		assert.Equal(t, 1, created, "count reflects rows inserted before the failure")
	})
}

func TestTaskTransitionByInstance(t *testing.T) {
	org := storeTestOrg(t)
	instanceID := uuid.New()

	t.Run("flips the whole status cohort in one statement", func(t *testing.T) {
		s, mock := newTaskStoreFixture(t)
		now := time.Now().UTC()

		mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks")).
			WithArgs(string(domain.TaskStatusCompleted), &now, sqlmock.AnyArg(),
				org.OrgID, instanceID, string(domain.TaskStatusActive)).
			WillReturnResult(sqlmock.NewResult(0, 2))

		n, err := s.TransitionByInstance(context.Background(), org.OrgID, instanceID,
			domain.TaskStatusActive, domain.TaskStatusCompleted, &now)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero matching tasks is not an error", func(t *testing.T) {
		s, mock := newTaskStoreFixture(t)

		mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		n, err := s.TransitionByInstance(context.Background(), org.OrgID, instanceID,
			domain.TaskStatusPending, domain.TaskStatusCancelled, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestTaskUpdateNotFound(t *testing.T) {
	org := storeTestOrg(t)
	s, mock := newTaskStoreFixture(t)
	task := storeTestTask(t, org, uuid.New(), 1)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Update(context.Background(), task)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestTaskGetByInstanceID(t *testing.T) {
	org := storeTestOrg(t)
	s, mock := newTaskStoreFixture(t)
	instanceID := uuid.New()
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "org_id", "instance_id", "step_order", "name", "task_type", "status", "priority",
		"message", "subject_line", "rendered_message", "rendered_subject_line",
		"due_date", "completed_at", "created_at", "updated_at",
	}).
		AddRow(uuid.New().String(), org.OrgID.String(), instanceID.String(), 1,
			"Call: Pizza Palace (step 1)", "call", "active", "medium",
			"call them", nil, "call them", nil, now, nil, now, now).
		AddRow(uuid.New().String(), org.OrgID.String(), instanceID.String(), 2,
			"Email: Pizza Palace (step 2)", "email", "pending", "medium",
			"hi", "subject", "hi", "subject", nil, nil, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tasks")).
		WithArgs(org.OrgID, instanceID).
		WillReturnRows(rows)

	tasks, err := s.GetByInstanceID(context.Background(), org.OrgID, instanceID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, domain.TaskStatusActive, tasks[0].Status)
	require.NotNil(t, tasks[0].DueDate)
	assert.Nil(t, tasks[0].CompletedAt)

	assert.Equal(t, domain.TaskStatusPending, tasks[1].Status)
	assert.Nil(t, tasks[1].DueDate)
	assert.Equal(t, "subject", tasks[1].SubjectLine)
}
