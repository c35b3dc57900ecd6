package live

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/protocol"
)

// envelope is the pub/sub wire form of a broadcast.
type envelope struct {
	Roles   []domain.Role    `json:"roles,omitempty"`
	Message protocol.Message `json:"message"`
}

// RedisBroadcaster publishes broadcasts on a Redis channel so every instance's hub delivers them.
type RedisBroadcaster struct {
	client  redis.UniversalClient
	channel string
	hub     *Hub
	logger  *zap.Logger

	retryBase time.Duration
	retryMax  time.Duration
}

// NewRedisBroadcaster wires a hub to a pub/sub channel.
func NewRedisBroadcaster(client redis.UniversalClient, channel string, hub *Hub, logger *zap.Logger) *RedisBroadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroadcaster{
		client:  client,
		channel: channel,
		hub:     hub,
		logger:  logger.Named("live_redis"),

		retryBase: 500 * time.Millisecond,
		retryMax:  30 * time.Second,
	}
}

// Broadcast publishes msg; delivery happens when the subscription loop receives it.
func (b *RedisBroadcaster) Broadcast(ctx context.Context, msg protocol.Message, roles ...domain.Role) error {
	raw, err := json.Marshal(envelope{Roles: roles, Message: msg})
	if err != nil {
		return fmt.Errorf("encode broadcast: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", b.channel, err)
	}
	return nil
}

// Run subscribes to the channel and hands every broadcast to the local hub until ctx ends.
// A failed subscription is retried with exponential delay, so a Redis outage at startup only
// delays cross-instance delivery.
func (b *RedisBroadcaster) Run(ctx context.Context) error {
	delay := b.retryBase
	for {
		subscribed, err := b.listen(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if subscribed {
			delay = b.retryBase
		}
		b.logger.Warn("broadcast subscription lost; retrying",
			zap.String("channel", b.channel), zap.Duration("delay", delay), zap.Error(err))

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay = min(delay*2, b.retryMax)
	}
}

// listen runs one subscription. subscribed reports whether Redis confirmed it.
func (b *RedisBroadcaster) listen(ctx context.Context) (subscribed bool, err error) {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return false, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("listening for broadcasts", zap.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return true, fmt.Errorf("subscription %s closed", b.channel)
			}
			var env envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				b.logger.Warn("dropping malformed broadcast", zap.Error(err))
				continue
			}
			b.hub.Deliver(env.Message, env.Roles...)
		}
	}
}
