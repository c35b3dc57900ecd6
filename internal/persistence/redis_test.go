package persistence

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/spec-kit/logistics-dashboard/internal/config"
)

func TestNewRedisAvailability(t *testing.T) {
	mr := miniredis.RunT(t)

	r := NewRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	t.Cleanup(r.Close)
	assert.True(t, r.Available())
	assert.NoError(t, r.Ping(context.Background()))

	mr.Close()
	down := NewRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	t.Cleanup(down.Close)
	assert.False(t, down.Available())

	var missing *Redis
	assert.Error(t, missing.Ping(context.Background()))
}
