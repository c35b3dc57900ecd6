// Package live serves the dashboard live-update channel and fans messages out to
// authenticated connections.
package live

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/observability"
	"github.com/spec-kit/logistics-dashboard/internal/protocol"
)

// Sender delivers a message to one connection.
type Sender interface {
	Send(msg protocol.Message) error
}

// Broadcaster fans a message out to connections, optionally restricted to roles.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg protocol.Message, roles ...domain.Role) error
}

type member struct {
	role   domain.Role
	sender Sender
}

// Hub tracks authenticated connections on this instance.
type Hub struct {
	mu      sync.RWMutex
	members map[*member]struct{}
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewHub builds an empty hub.
func NewHub(metrics *observability.Metrics, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		members: make(map[*member]struct{}),
		metrics: metrics,
		logger:  logger.Named("live_hub"),
	}
}

// Register adds a connection for role and returns a func that removes it.
func (h *Hub) Register(role domain.Role, sender Sender) func() {
	m := &member{role: role, sender: sender}
	h.mu.Lock()
	h.members[m] = struct{}{}
	h.mu.Unlock()
	h.metrics.LiveConnected(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.members, m)
			h.mu.Unlock()
			h.metrics.LiveConnected(-1)
		})
	}
}

// Count returns the number of connections, optionally limited to roles.
func (h *Hub) Count(roles ...domain.Role) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for m := range h.members {
		if matchesRole(m.role, roles) {
			n++
		}
	}
	return n
}

// Roles returns the distinct roles that currently have a connection.
func (h *Hub) Roles() []domain.Role {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[domain.Role]struct{})
	var roles []domain.Role
	for m := range h.members {
		if _, ok := seen[m.role]; ok {
			continue
		}
		seen[m.role] = struct{}{}
		roles = append(roles, m.role)
	}
	return roles
}

// Deliver sends msg to local connections and reports how many accepted it.
// An empty roles list targets every connection.
func (h *Hub) Deliver(msg protocol.Message, roles ...domain.Role) int {
	h.mu.RLock()
	targets := make([]*member, 0, len(h.members))
	for m := range h.members {
		if matchesRole(m.role, roles) {
			targets = append(targets, m)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, m := range targets {
		if err := m.sender.Send(msg); err != nil {
			h.logger.Debug("delivery failed",
				zap.String("role", string(m.role)),
				zap.String("type", string(msg.Type)),
				zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}

// Broadcast delivers locally; it satisfies Broadcaster when no Redis fan-out is configured.
func (h *Hub) Broadcast(_ context.Context, msg protocol.Message, roles ...domain.Role) error {
	h.Deliver(msg, roles...)
	return nil
}

func matchesRole(role domain.Role, roles []domain.Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
