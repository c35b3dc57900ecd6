// Package protocol defines the live-update channel's wire messages.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
)

// MessageType tags every frame on the live-update channel.
type MessageType string

const (
	TypeAuthenticate          MessageType = "AUTHENTICATE"
	TypeAuthenticationSuccess MessageType = "AUTHENTICATION_SUCCESS"
	TypeDashboardUpdate       MessageType = "DASHBOARD_UPDATE"
	TypeSystemMessage         MessageType = "SYSTEM_MESSAGE"
	TypeError                 MessageType = "ERROR"
	TypePing                  MessageType = "PING"
	TypePong                  MessageType = "PONG"
)

// Message is a single live-update frame.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AuthenticatePayload identifies the session behind a connection.
type AuthenticatePayload struct {
	UserID   string      `json:"userId"`
	Role     domain.Role `json:"role"`
	Username string      `json:"username"`
}

// NoticePayload carries a user-facing notification.
type NoticePayload struct {
	Message string `json:"message"`
	Level   string `json:"level,omitempty"`
}

// DashboardPayload is the body of a DASHBOARD_UPDATE.
type DashboardPayload struct {
	Metrics    map[string]float64 `json:"metrics"`
	Alerts     []domain.Alert     `json:"alerts"`
	Activities []domain.Activity  `json:"activities"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Snapshot converts the payload into the dashboard snapshot it replaces.
func (p DashboardPayload) Snapshot() domain.DashboardSnapshot {
	return domain.DashboardSnapshot{
		Metrics:     p.Metrics,
		Alerts:      p.Alerts,
		Activities:  p.Activities,
		LastUpdated: p.Timestamp,
	}
}

// DashboardPayloadFrom wraps a snapshot for the wire.
func DashboardPayloadFrom(s domain.DashboardSnapshot) DashboardPayload {
	return DashboardPayload{
		Metrics:    s.Metrics,
		Alerts:     s.Alerts,
		Activities: s.Activities,
		Timestamp:  s.LastUpdated,
	}
}

// New encodes payload into a message of the given type.
func New(t MessageType, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: t}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Message{Type: t, Payload: raw}, nil
}

// MustNew is New for payloads that are known to encode.
func MustNew(t MessageType, payload any) Message {
	msg, err := New(t, payload)
	if err != nil {
		panic(err)
	}
	return msg
}

// Notice builds a notice-carrying message such as SYSTEM_MESSAGE or ERROR.
func Notice(t MessageType, text string) Message {
	return MustNew(t, NoticePayload{Message: text})
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", m.Type)
	}
	return json.Unmarshal(m.Payload, v)
}

// Authenticate builds the client's AUTHENTICATE frame for a session.
func Authenticate(s *domain.Session) Message {
	return MustNew(TypeAuthenticate, AuthenticatePayload{UserID: s.UserID, Role: s.Role, Username: s.Username})
}
