package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/logistics-dashboard/internal/config"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client    *redis.Client
	available bool
}

// NewRedis connects to Redis using the provided configuration. An unreachable server is
// logged and reported through Available so callers can fall back to in-process state.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	r := &Redis{Client: client}
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		r.available = true
		logger.Info("connected to redis")
	}
	return r
}

// Available reports whether the initial ping succeeded.
func (r *Redis) Available() bool {
	return r != nil && r.available
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
