package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/logistics-dashboard/internal/config"
	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/protocol"
	"github.com/spec-kit/logistics-dashboard/internal/session"
)

const driverLogin = `{"data":{"session":{"id":"s-1","userId":"u-1","username":"dana","role":"driver"},"auth":{"token":"tok-1","expires_at":"2026-05-01T10:00:00Z"}}}`

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":{"code":"UNAUTHORIZED","message":"invalid credentials"}}`)
			return
		}
		_, _ = io.WriteString(w, driverLogin)
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/navigation", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inventory", r.URL.Query().Get("path"))
		_, _ = io.WriteString(w, `{"data":{"action":"redirect_default","path":"/inventory","target":"/routes","notice":"You do not have access to that page"}}`)
	})
	mux.HandleFunc("/api/warehouse/pick-tasks/t-9", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"status": "in_progress", "assignedTo": ""}, body)
		_, _ = io.WriteString(w, `{"data":{"id":"t-9","kind":"pick","status":"in_progress"}}`)
	})
	mux.HandleFunc("/api/weather/alerts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = io.WriteString(w, `{"data":[{"id":"w-1"},{"id":"w-2"}]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, serverURL string) config.ClientConfig {
	return config.ClientConfig{
		ServerURL:      serverURL,
		SessionFile:    filepath.Join(t.TempDir(), "session.json"),
		BackoffBase:    5 * time.Millisecond,
		BackoffMax:     10 * time.Millisecond,
		RequestTimeout: 5 * time.Second,
		LogLevel:       "error",
	}
}

func run(t *testing.T, cfg config.ClientConfig, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(cfg)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLoginWhoamiLogout(t *testing.T) {
	srv := fakeAPI(t)
	cfg := testConfig(t, srv.URL)

	_, err := run(t, cfg, "whoami")
	assert.ErrorIs(t, err, errNotSignedIn)

	_, err = run(t, cfg, "login", "-u", "dana", "-p", "wrong")
	assert.ErrorContains(t, err, "invalid credentials")

	out, err := run(t, cfg, "login", "-u", "dana", "-p", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Signed in as dana (driver). Home: /routes\n", out)

	rec, err := session.NewFileStore(cfg.SessionFile).Load()
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "tok-1", rec.Token)
	assert.Equal(t, domain.RoleDriver, rec.Role)

	out, err = run(t, cfg, "whoami")
	require.NoError(t, err)
	assert.Equal(t, "dana (driver) session s-1\n", out)

	out, err = run(t, cfg, "logout")
	require.NoError(t, err)
	assert.Equal(t, "Signed out\n", out)

	rec, err = session.NewFileStore(cfg.SessionFile).Load()
	require.NoError(t, err)
	assert.Nil(t, rec)

	out, err = run(t, cfg, "logout")
	require.NoError(t, err)
	assert.Equal(t, "Not signed in\n", out)
}

func TestNavigate(t *testing.T) {
	srv := fakeAPI(t)
	cfg := testConfig(t, srv.URL)

	out, err := run(t, cfg, "navigate", "/routes")
	require.NoError(t, err)
	assert.Equal(t, "redirect /routes -> /login (Please log in to continue)\nlocation: /login\n", out)

	_, err = run(t, cfg, "login", "-u", "dana", "-p", "pw")
	require.NoError(t, err)

	out, err = run(t, cfg, "navigate", "/driver-routes/42")
	require.NoError(t, err)
	assert.Equal(t, "render /driver-routes/42\nlocation: /driver-routes/42\n", out)

	out, err = run(t, cfg, "navigate", "/inventory", "--remote")
	require.NoError(t, err)
	assert.Contains(t, out, "redirect /inventory -> /routes (You do not have access to that page)\nlocation: /routes\n")
	assert.Contains(t, out, "server: redirect /inventory -> /routes")
}

func TestTasksUpdate(t *testing.T) {
	srv := fakeAPI(t)
	cfg := testConfig(t, srv.URL)

	_, err := run(t, cfg, "tasks", "update", "pick", "t-9", "--status", "in_progress")
	assert.ErrorIs(t, err, errNotSignedIn)

	_, err = run(t, cfg, "login", "-u", "dana", "-p", "pw")
	require.NoError(t, err)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown kind", []string{"tasks", "update", "sort", "t-9", "--status", "pending"}, "unknown task kind"},
		{"nothing to change", []string{"tasks", "update", "pick", "t-9"}, "nothing to update"},
		{"conflicting assignee flags", []string{"tasks", "update", "pick", "t-9", "--assigned-to", "kim", "--unassign"}, "mutually exclusive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, cfg, tt.args...)
			assert.ErrorContains(t, err, tt.want)
		})
	}

	out, err := run(t, cfg, "tasks", "update", "pick", "t-9", "--status", "in_progress", "--unassign")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "in_progress"`)
}

func TestResources(t *testing.T) {
	srv := fakeAPI(t)
	cfg := testConfig(t, srv.URL)
	_, err := run(t, cfg, "login", "-u", "dana", "-p", "pw")
	require.NoError(t, err)

	_, err = run(t, cfg, "resources", "lasers")
	assert.ErrorContains(t, err, "unknown resource kind")

	out, err := run(t, cfg, "resources", "weather_alerts", "--limit", "5")
	require.NoError(t, err)
	assert.Equal(t, "{\"id\":\"w-1\"}\n{\"id\":\"w-2\"}\n", out)
}

func TestWatchOnce(t *testing.T) {
	api := fakeAPI(t)
	cfg := testConfig(t, api.URL)
	_, err := run(t, cfg, "login", "-u", "dana", "-p", "pw")
	require.NoError(t, err)

	ws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ws", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()

		var hello protocol.Message
		if !assert.NoError(t, wsjson.Read(r.Context(), c, &hello)) {
			return
		}
		assert.Equal(t, protocol.TypeAuthenticate, hello.Type)

		snap := domain.DashboardSnapshot{
			Metrics:     map[string]float64{"pick_tasks_pending": 3},
			Activities:  []domain.Activity{{Description: "Started pick task for order o-1"}},
			LastUpdated: time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
		}
		msg, err := protocol.New(protocol.TypeDashboardUpdate, protocol.DashboardPayloadFrom(snap))
		assert.NoError(t, err)
		assert.NoError(t, wsjson.Write(r.Context(), c, msg))

		_, _, _ = c.Read(r.Context())
	}))
	t.Cleanup(ws.Close)

	cfg.ServerURL = ws.URL
	out, err := run(t, cfg, "watch", "--once")
	require.NoError(t, err)
	assert.Contains(t, out, "dashboard @ 09:30:00")
	assert.Contains(t, out, "pick_tasks_pending")
	assert.Contains(t, out, "- Started pick task for order o-1")
}

func TestWatchFollowsSessionFileChanges(t *testing.T) {
	interval := sessionPollInterval
	sessionPollInterval = 10 * time.Millisecond
	t.Cleanup(func() { sessionPollInterval = interval })

	api := fakeAPI(t)
	cfg := testConfig(t, api.URL)
	_, err := run(t, cfg, "login", "-u", "dana", "-p", "pw")
	require.NoError(t, err)
	store := session.NewFileStore(cfg.SessionFile)

	var conns atomic.Int32
	ws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := conns.Add(1)
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()

		var hello protocol.Message
		if !assert.NoError(t, wsjson.Read(r.Context(), c, &hello)) {
			return
		}
		var identity protocol.AuthenticatePayload
		assert.NoError(t, hello.Decode(&identity))

		if n == 1 {
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			assert.Equal(t, "dana", identity.Username)
			// another dashctl invocation signs in as someone else
			assert.NoError(t, store.Store(session.LocalRecord{
				Session: domain.Session{ID: "s-2", UserID: "u-2", Username: "sam", Role: domain.RoleCourier},
				Token:   "tok-2",
			}))
			_, _, _ = c.Read(r.Context())
			return
		}

		assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
		assert.Equal(t, "sam", identity.Username)
		snap := domain.DashboardSnapshot{
			Metrics:     map[string]float64{"deliveries_today": 7},
			LastUpdated: time.Date(2026, 5, 1, 11, 0, 0, 0, time.UTC),
		}
		assert.NoError(t, wsjson.Write(r.Context(), c, protocol.MustNew(protocol.TypeDashboardUpdate, protocol.DashboardPayloadFrom(snap))))
		_, _, _ = c.Read(r.Context())
	}))
	t.Cleanup(ws.Close)

	cfg.ServerURL = ws.URL
	out, err := run(t, cfg, "watch", "--once")
	require.NoError(t, err)
	assert.Contains(t, out, "deliveries_today")
	assert.GreaterOrEqual(t, conns.Load(), int32(2))
}

func TestWatchStopsOnSignOut(t *testing.T) {
	interval := sessionPollInterval
	sessionPollInterval = 10 * time.Millisecond
	t.Cleanup(func() { sessionPollInterval = interval })

	api := fakeAPI(t)
	cfg := testConfig(t, api.URL)
	_, err := run(t, cfg, "login", "-u", "dana", "-p", "pw")
	require.NoError(t, err)
	store := session.NewFileStore(cfg.SessionFile)

	ws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		assert.NoError(t, store.Clear())
		_, _, _ = c.Read(r.Context())
		_, _, _ = c.Read(r.Context())
	}))
	t.Cleanup(ws.Close)

	cfg.ServerURL = ws.URL
	_, err = run(t, cfg, "watch")
	assert.NoError(t, err)
}

func TestLiveURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://localhost:8080", want: "ws://localhost:8080/ws"},
		{in: "https://dash.example.com/", want: "wss://dash.example.com/ws"},
		{in: "https://dash.example.com/ops", want: "wss://dash.example.com/ops/ws"},
		{in: "ftp://dash.example.com", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := liveURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
