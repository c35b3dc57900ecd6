package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/events"
	"github.com/spec-kit/logistics-dashboard/internal/live"
	"github.com/spec-kit/logistics-dashboard/internal/protocol"
	apperrors "github.com/spec-kit/logistics-dashboard/pkg/util"
)

// taskWatchers receive a SYSTEM_MESSAGE whenever a warehouse task changes.
var taskWatchers = []domain.Role{
	domain.RoleWarehouseStaff,
	domain.RoleWarehouseOperator,
	domain.RoleLogisticsManager,
	domain.RoleBusinessOwner,
}

// NoticeAuthorRoles may post system notices to other dashboards.
var NoticeAuthorRoles = []domain.Role{domain.RoleBusinessOwner, domain.RoleLogisticsManager}

// NotificationService turns domain events into activities and live notices.
type NotificationService struct {
	dispatcher  events.Dispatcher
	broadcaster live.Broadcaster
	activities  *ActivityLog
	logger      *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, broadcaster live.Broadcaster, activities *ActivityLog, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		activities:  activities,
		logger:      logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTaskUpdated, n.handleTaskUpdated)
	n.dispatcher.Subscribe(events.EventUserLoggedIn, n.handleSessionEvent)
	n.dispatcher.Subscribe(events.EventUserLoggedOut, n.handleSessionEvent)
	n.dispatcher.Subscribe(events.EventSystemNotice, n.handleSystemNotice)
}

// Announce publishes a system notice from the session's user. Empty roles address everyone.
func (n *NotificationService) Announce(ctx context.Context, author *domain.Session, message string, roles []domain.Role) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return apperrors.NewValidationError("invalid notice", map[string]any{"message": "is required"})
	}
	if author == nil || !slices.Contains(NoticeAuthorRoles, author.Role) {
		return apperrors.NewForbidden("role may not post notices")
	}
	if n.dispatcher == nil {
		return apperrors.NewUnavailable("notices are not available", nil)
	}
	return n.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventSystemNotice,
		Actor:     events.ActorFromSession(author),
		Timestamp: time.Now().UTC(),
		Payload:   events.SystemNoticePayload{Message: message, Roles: roles},
	})
}

func (n *NotificationService) handleTaskUpdated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TaskUpdatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("TaskUpdated",
		zap.String("task_id", payload.TaskID),
		zap.String("from", string(payload.OldStatus)),
		zap.String("to", string(payload.NewStatus)))

	description := fmt.Sprintf("%s task %s for order %s", payload.Kind, describeStatus(payload.OldStatus, payload.NewStatus), payload.OrderRef)
	n.record(event, description)
	return n.broadcast(ctx, capitalize(description), taskWatchers)
}

func (n *NotificationService) handleSessionEvent(_ context.Context, event events.Event) error {
	verb := "signed in"
	if event.Type == events.EventUserLoggedOut {
		verb = "signed out"
	}
	n.logger.Debug("SessionEvent", zap.String("event_type", string(event.Type)), zap.String("user_id", event.Actor.UserID))
	n.record(event, fmt.Sprintf("%s %s", event.Actor.Username, verb))
	return nil
}

func (n *NotificationService) handleSystemNotice(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SystemNoticePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	if strings.TrimSpace(payload.Message) == "" {
		return nil
	}
	n.record(event, payload.Message)
	return n.broadcast(ctx, payload.Message, payload.Roles)
}

func (n *NotificationService) record(event events.Event, description string) {
	if n.activities == nil {
		return
	}
	n.activities.Record(domain.Activity{
		ID:          event.ID,
		Type:        string(event.Type),
		Description: description,
		Actor:       event.Actor.Username,
		OccurredAt:  event.Timestamp,
	})
}

func (n *NotificationService) broadcast(ctx context.Context, text string, roles []domain.Role) error {
	if n.broadcaster == nil {
		return nil
	}
	return n.broadcaster.Broadcast(ctx, protocol.Notice(protocol.TypeSystemMessage, text), roles...)
}

func describeStatus(from, to domain.TaskStatus) string {
	if from == to {
		return "reassigned"
	}
	switch to {
	case domain.TaskStatusInProgress:
		return "started"
	case domain.TaskStatusCompleted:
		return "completed"
	case domain.TaskStatusCancelled:
		return "cancelled"
	case domain.TaskStatusPending:
		return "returned to queue"
	}
	return string(to)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
