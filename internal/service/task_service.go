package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/events"
	"github.com/spec-kit/logistics-dashboard/internal/repository"
	apperrors "github.com/spec-kit/logistics-dashboard/pkg/util"
)

// TaskEditorRoles may change pick and packing tasks.
var TaskEditorRoles = []domain.Role{
	domain.RoleWarehouseStaff,
	domain.RoleWarehouseOperator,
	domain.RoleLogisticsManager,
	domain.RoleBusinessOwner,
}

// TaskUpdateInput describes a task change. Zero fields are left untouched;
// an empty AssignedTo clears the assignee.
type TaskUpdateInput struct {
	Status     domain.TaskStatus
	AssignedTo *string
	StartedAt  *time.Time
}

// TaskService applies warehouse task updates.
type TaskService struct {
	tasks      repository.TaskRepository
	dispatcher events.Dispatcher
	now        func() time.Time
}

// NewTaskService constructs the service.
func NewTaskService(tasks repository.TaskRepository, dispatcher events.Dispatcher) *TaskService {
	return &TaskService{tasks: tasks, dispatcher: dispatcher, now: time.Now}
}

// UpdateTask moves a task through its lifecycle and records who did it.
func (s *TaskService) UpdateTask(ctx context.Context, actor *domain.Session, kind domain.TaskKind, id string, in TaskUpdateInput) (*domain.WarehouseTask, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if !canEditTasks(actor.Role) {
		return nil, apperrors.NewForbidden("insufficient role")
	}

	task, err := s.tasks.GetByID(ctx, kind, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound(string(kind)+" task", map[string]any{"task_id": id})
		}
		return nil, apperrors.MapError(err)
	}

	oldStatus := task.Status
	next := in.Status
	if next == "" {
		next = oldStatus
	}
	if oldStatus.Terminal() {
		return nil, apperrors.NewConflict("task is already "+string(oldStatus), map[string]any{"task_id": id})
	}
	if !oldStatus.CanTransition(next) {
		return nil, apperrors.NewConflict("invalid status transition", map[string]any{
			"from": oldStatus,
			"to":   next,
		})
	}

	now := s.now().UTC()
	if in.AssignedTo != nil {
		if assignee := strings.TrimSpace(*in.AssignedTo); assignee == "" {
			task.AssignedTo = nil
		} else {
			task.AssignedTo = &assignee
		}
	}
	switch next {
	case domain.TaskStatusInProgress:
		if in.StartedAt != nil {
			startedAt := in.StartedAt.UTC()
			task.StartedAt = &startedAt
		} else if task.StartedAt == nil {
			task.StartedAt = &now
		}
	case domain.TaskStatusCompleted:
		task.CompletedAt = &now
	}
	task.Status = next

	if err := s.tasks.Update(ctx, task, oldStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewConflict("task was modified concurrently; reload and retry", map[string]any{"task_id": id})
		}
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:  events.EventTaskUpdated,
		Actor: events.ActorFromSession(actor),
		Payload: events.TaskUpdatedPayload{
			TaskID:     task.ID,
			Kind:       task.Kind,
			OrderRef:   task.OrderRef,
			OldStatus:  oldStatus,
			NewStatus:  next,
			AssignedTo: task.AssignedTo,
		},
	})
	return task, nil
}

func (s *TaskService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func canEditTasks(role domain.Role) bool {
	for _, r := range TaskEditorRoles {
		if r == role {
			return true
		}
	}
	return false
}
