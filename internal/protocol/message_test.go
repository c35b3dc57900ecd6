package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
)

func TestAuthenticateFrame(t *testing.T) {
	msg := Authenticate(&domain.Session{ID: "s", UserID: "u-7", Username: "lee", Role: domain.RoleCourier})

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"AUTHENTICATE","payload":{"userId":"u-7","role":"courier","username":"lee"}}`, string(raw))
}

func TestDashboardPayloadSnapshot(t *testing.T) {
	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	payload := DashboardPayload{
		Metrics:   map[string]float64{"pick_tasks_pending": 4},
		Alerts:    []domain.Alert{{ID: "a1", Message: "storm"}},
		Timestamp: ts,
	}
	snap := payload.Snapshot()
	assert.Equal(t, payload.Metrics, snap.Metrics)
	assert.Equal(t, payload.Alerts, snap.Alerts)
	assert.Equal(t, ts, snap.LastUpdated)
	assert.Equal(t, payload, DashboardPayloadFrom(snap))
}

func TestDecodeWithoutPayload(t *testing.T) {
	var notice NoticePayload
	assert.Error(t, Message{Type: TypePong}.Decode(&notice))

	require.NoError(t, Notice(TypeError, "bad").Decode(&notice))
	assert.Equal(t, "bad", notice.Message)
}
