package events

import (
	"time"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTaskUpdated   EventType = "task_updated"
	EventUserLoggedIn  EventType = "user_logged_in"
	EventUserLoggedOut EventType = "user_logged_out"
	EventSystemNotice  EventType = "system_notice"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID   string      `json:"user_id,omitempty"`
	Username string      `json:"username,omitempty"`
	Role     domain.Role `json:"role,omitempty"`
}

// ActorFromSession builds an Actor from a session, tolerating nil.
func ActorFromSession(s *domain.Session) Actor {
	if s == nil {
		return Actor{}
	}
	return Actor{UserID: s.UserID, Username: s.Username, Role: s.Role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TaskUpdatedPayload payload.
type TaskUpdatedPayload struct {
	TaskID     string            `json:"task_id"`
	Kind       domain.TaskKind   `json:"kind"`
	OrderRef   string            `json:"order_ref"`
	OldStatus  domain.TaskStatus `json:"old_status"`
	NewStatus  domain.TaskStatus `json:"new_status"`
	AssignedTo *string           `json:"assigned_to,omitempty"`
}

// SystemNoticePayload payload.
type SystemNoticePayload struct {
	Message string        `json:"message"`
	Roles   []domain.Role `json:"roles,omitempty"`
}
