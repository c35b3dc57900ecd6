package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/events"
	"github.com/spec-kit/logistics-dashboard/internal/protocol"
	apperrors "github.com/spec-kit/logistics-dashboard/pkg/util"
)

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTaskFixture() (*TaskService, *fakeTasks, *recordingBroadcaster, *ActivityLog) {
	tasks := &fakeTasks{tasks: map[string]*domain.WarehouseTask{
		"p-1":  {ID: "p-1", Kind: domain.TaskKindPick, OrderRef: "SO-100", Status: domain.TaskStatusPending},
		"k-1":  {ID: "k-1", Kind: domain.TaskKindPacking, OrderRef: "SO-200", Status: domain.TaskStatusInProgress},
		"done": {ID: "done", Kind: domain.TaskKindPick, OrderRef: "SO-300", Status: domain.TaskStatusCompleted},
	}}
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	broadcaster := &recordingBroadcaster{}
	activities := NewActivityLog(10)
	NewNotificationService(dispatcher, broadcaster, activities, nil).RegisterHandlers()

	svc := NewTaskService(tasks, dispatcher)
	svc.now = func() time.Time { return fixedNow }
	return svc, tasks, broadcaster, activities
}

func staffSession(role domain.Role) *domain.Session {
	return &domain.Session{ID: "s-1", UserID: "u-1", Username: "kim", Role: role}
}

func TestUpdateTaskStartStampsAndNotifies(t *testing.T) {
	svc, tasks, broadcaster, activities := newTaskFixture()

	assignee := "kim"
	task, err := svc.UpdateTask(context.Background(), staffSession(domain.RoleWarehouseStaff), domain.TaskKindPick, "p-1", TaskUpdateInput{
		Status:     domain.TaskStatusInProgress,
		AssignedTo: &assignee,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusInProgress, task.Status)
	require.NotNil(t, task.StartedAt)
	assert.True(t, fixedNow.Equal(*task.StartedAt))
	assert.Equal(t, "kim", *task.AssignedTo)
	assert.Equal(t, 1, tasks.updates)

	require.Len(t, broadcaster.sent, 1)
	sent := broadcaster.sent[0]
	assert.Equal(t, protocol.TypeSystemMessage, sent.msg.Type)
	assert.Equal(t, taskWatchers, sent.roles)
	var notice protocol.NoticePayload
	require.NoError(t, sent.msg.Decode(&notice))
	assert.Equal(t, "Pick task started for order SO-100", notice.Message)

	assert.Equal(t, "task_updated", activities.Recent(1)[0].Type)
}

func TestUpdateTaskCompleteAndExplicitStart(t *testing.T) {
	svc, _, _, _ := newTaskFixture()
	ctx := context.Background()

	task, err := svc.UpdateTask(ctx, staffSession(domain.RoleLogisticsManager), domain.TaskKindPacking, "k-1", TaskUpdateInput{Status: domain.TaskStatusCompleted})
	require.NoError(t, err)
	require.NotNil(t, task.CompletedAt)
	assert.True(t, fixedNow.Equal(*task.CompletedAt))

	started := time.Date(2026, 6, 1, 7, 30, 0, 0, time.UTC)
	task, err = svc.UpdateTask(ctx, staffSession(domain.RoleBusinessOwner), domain.TaskKindPick, "p-1", TaskUpdateInput{
		Status:    domain.TaskStatusInProgress,
		StartedAt: &started,
	})
	require.NoError(t, err)
	assert.True(t, started.Equal(*task.StartedAt))
}

func TestUpdateTaskRejections(t *testing.T) {
	svc, tasks, broadcaster, _ := newTaskFixture()
	ctx := context.Background()

	tests := []struct {
		name    string
		session *domain.Session
		kind    domain.TaskKind
		id      string
		in      TaskUpdateInput
		code    string
	}{
		{"anonymous", nil, domain.TaskKindPick, "p-1", TaskUpdateInput{Status: domain.TaskStatusInProgress}, "UNAUTHORIZED"},
		{"driver", staffSession(domain.RoleDriver), domain.TaskKindPick, "p-1", TaskUpdateInput{Status: domain.TaskStatusInProgress}, "FORBIDDEN"},
		{"unknown task", staffSession(domain.RoleWarehouseStaff), domain.TaskKindPick, "missing", TaskUpdateInput{Status: domain.TaskStatusInProgress}, "NOT_FOUND"},
		{"wrong queue", staffSession(domain.RoleWarehouseStaff), domain.TaskKindPacking, "p-1", TaskUpdateInput{Status: domain.TaskStatusInProgress}, "NOT_FOUND"},
		{"terminal", staffSession(domain.RoleWarehouseStaff), domain.TaskKindPick, "done", TaskUpdateInput{Status: domain.TaskStatusPending}, "CONFLICT"},
		{"skip ahead", staffSession(domain.RoleWarehouseStaff), domain.TaskKindPick, "p-1", TaskUpdateInput{Status: domain.TaskStatusCompleted}, "CONFLICT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateTask(ctx, tt.session, tt.kind, tt.id, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.ToDomainError(err).Code)
		})
	}
	assert.Zero(t, tasks.updates)
	assert.Empty(t, broadcaster.sent)
}

func TestUpdateTaskUnassign(t *testing.T) {
	svc, tasks, _, _ := newTaskFixture()
	owner := "lee"
	tasks.tasks["p-1"].AssignedTo = &owner

	empty := ""
	task, err := svc.UpdateTask(context.Background(), staffSession(domain.RoleWarehouseOperator), domain.TaskKindPick, "p-1", TaskUpdateInput{AssignedTo: &empty})
	require.NoError(t, err)
	assert.Nil(t, task.AssignedTo)
	assert.Equal(t, domain.TaskStatusPending, task.Status)
}

func TestUpdateTaskLosesRaceWithConcurrentWriter(t *testing.T) {
	svc, tasks, broadcaster, activities := newTaskFixture()
	ctx := context.Background()

	// another editor starts p-1 between our read and our write
	tasks.beforeUpdate = func() {
		tasks.beforeUpdate = nil
		tasks.tasks["p-1"].Status = domain.TaskStatusInProgress
		tasks.tasks["p-1"].UpdatedAt = fixedNow.Add(time.Minute)
	}

	_, err := svc.UpdateTask(ctx, staffSession(domain.RoleWarehouseStaff), domain.TaskKindPick, "p-1", TaskUpdateInput{Status: domain.TaskStatusCancelled})
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, "CONFLICT", de.Code)
	assert.Equal(t, 409, de.HTTPStatus)

	assert.Equal(t, domain.TaskStatusInProgress, tasks.tasks["p-1"].Status)
	assert.Zero(t, tasks.updates)
	assert.Empty(t, broadcaster.sent)
	assert.Empty(t, activities.Recent(10))

	// a retry sees the new state and applies cleanly
	task, err := svc.UpdateTask(ctx, staffSession(domain.RoleWarehouseStaff), domain.TaskKindPick, "p-1", TaskUpdateInput{Status: domain.TaskStatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, task.Status)
	assert.Equal(t, 1, tasks.updates)
}

func TestUpdateTaskConcurrentAssigneeChangeConflicts(t *testing.T) {
	svc, tasks, _, _ := newTaskFixture()
	other := "lee"
	tasks.beforeUpdate = func() {
		tasks.beforeUpdate = nil
		tasks.tasks["k-1"].AssignedTo = &other
		tasks.tasks["k-1"].UpdatedAt = fixedNow.Add(time.Minute)
	}

	me := "kim"
	_, err := svc.UpdateTask(context.Background(), staffSession(domain.RoleWarehouseStaff), domain.TaskKindPacking, "k-1", TaskUpdateInput{AssignedTo: &me})
	require.Error(t, err)
	assert.Equal(t, "CONFLICT", apperrors.ToDomainError(err).Code)
	assert.Equal(t, "lee", *tasks.tasks["k-1"].AssignedTo)
}
