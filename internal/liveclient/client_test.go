package liveclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/protocol"
)

type testServer struct {
	url     string
	conns   chan *websocket.Conn
	headers chan http.Header
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{conns: make(chan *websocket.Conn, 8), headers: make(chan http.Header, 8)}
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ts.headers <- r.Header.Clone()
		ts.conns <- c
		<-done
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(done) })
	ts.url = srv.URL
	return ts
}

func (ts *testServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-ts.conns:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

func readFrame(t *testing.T, c *websocket.Conn) protocol.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var msg protocol.Message
	require.NoError(t, wsjson.Read(ctx, c, &msg))
	return msg
}

func writeFrame(t *testing.T, c *websocket.Conn, msg protocol.Message) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, c, msg))
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []string
}

func (r *recordingNotifier) Notify(level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, level+":"+message)
}

func (r *recordingNotifier) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.items...)
}

func driverSession() *domain.Session {
	return &domain.Session{ID: "s-1", UserID: "u-1", Username: "dana", Role: domain.RoleDriver}
}

func fastBackoff(int) time.Duration { return 5 * time.Millisecond }

func startClient(t *testing.T, opts Options) *Client {
	t.Helper()
	if opts.Backoff == nil {
		opts.Backoff = fastBackoff
	}
	client := New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = client.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return client
}

func TestSendWhileClosedIsRejected(t *testing.T) {
	client := New(Options{URL: "ws://127.0.0.1:1"})
	assert.Equal(t, StatusClosed, client.Status())
	assert.False(t, client.Send(protocol.Message{Type: protocol.TypePing}))
}

func TestAuthenticatesOnceOnOpenAndReplacesSnapshot(t *testing.T) {
	ts := newTestServer(t)
	notes := &recordingNotifier{}
	client := startClient(t, Options{URL: ts.url, Token: "tok", Session: driverSession(), Notifier: notes})

	conn := ts.accept(t)
	header := <-ts.headers
	assert.Equal(t, "Bearer tok", header.Get("Authorization"))

	auth := readFrame(t, conn)
	require.Equal(t, protocol.TypeAuthenticate, auth.Type)
	var identity protocol.AuthenticatePayload
	require.NoError(t, auth.Decode(&identity))
	assert.Equal(t, protocol.AuthenticatePayload{UserID: "u-1", Role: domain.RoleDriver, Username: "dana"}, identity)

	writeFrame(t, conn, protocol.Notice(protocol.TypeAuthenticationSuccess, "Welcome dana"))

	first := protocol.DashboardPayload{
		Metrics:    map[string]float64{"deliveries_pending": 3, "alerts_open": 1},
		Alerts:     []domain.Alert{{ID: "a1", Severity: domain.SeverityWarning, Message: "Road closed"}},
		Activities: []domain.Activity{{ID: "x1", Type: "task_updated", Description: "pick task started"}},
		Timestamp:  time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	writeFrame(t, conn, protocol.MustNew(protocol.TypeDashboardUpdate, first))

	second := protocol.DashboardPayload{
		Metrics:   map[string]float64{"deliveries_pending": 2},
		Timestamp: time.Date(2026, 3, 1, 8, 5, 0, 0, time.UTC),
	}
	writeFrame(t, conn, protocol.MustNew(protocol.TypeDashboardUpdate, second))

	require.Eventually(t, func() bool {
		snap, ok := client.Snapshot()
		return ok && snap.LastUpdated.Equal(second.Timestamp)
	}, 5*time.Second, 10*time.Millisecond)

	snap, _ := client.Snapshot()
	assert.Equal(t, second.Metrics, snap.Metrics, "snapshot must be replaced, not merged")
	assert.Empty(t, snap.Alerts)
	assert.Empty(t, snap.Activities)

	last, ok := client.LastMessage()
	require.True(t, ok)
	assert.Equal(t, protocol.TypeDashboardUpdate, last.Type)

	// the next frame the server sees must be ours, proving no second AUTHENTICATE was sent
	require.True(t, client.Send(protocol.Notice(protocol.TypeSystemMessage, "marker")))
	assert.Equal(t, protocol.TypeSystemMessage, readFrame(t, conn).Type)

	assert.Contains(t, notes.snapshot(), "info:Welcome dana")
}

func TestNotificationsAndMalformedFrames(t *testing.T) {
	ts := newTestServer(t)
	notes := &recordingNotifier{}
	client := startClient(t, Options{URL: ts.url, Session: driverSession(), Notifier: notes})

	conn := ts.accept(t)
	readFrame(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("{not json")))
	writeFrame(t, conn, protocol.Notice(protocol.TypeSystemMessage, "Dock 4 closed"))
	writeFrame(t, conn, protocol.Notice(protocol.TypeError, "Feed degraded"))
	writeFrame(t, conn, protocol.Message{Type: protocol.TypePing})

	assert.Equal(t, protocol.TypePong, readFrame(t, conn).Type)
	require.Eventually(t, func() bool { return len(notes.snapshot()) == 3 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{
		"error:Received a malformed live update",
		"info:Dock 4 closed",
		"error:Feed degraded",
	}, notes.snapshot())
	assert.Equal(t, StatusOpen, client.Status())
}

func TestReconnectsAfterDropAndReauthenticates(t *testing.T) {
	ts := newTestServer(t)
	var statuses []Status
	var mu sync.Mutex
	client := startClient(t, Options{URL: ts.url, Session: driverSession(), OnStatus: func(s Status) {
		mu.Lock()
		statuses = append(statuses, s)
		mu.Unlock()
	}})

	first := ts.accept(t)
	assert.Equal(t, protocol.TypeAuthenticate, readFrame(t, first).Type)
	require.NoError(t, first.Close(websocket.StatusInternalError, "restart"))

	second := ts.accept(t)
	assert.Equal(t, protocol.TypeAuthenticate, readFrame(t, second).Type)
	require.Eventually(t, func() bool { return client.Status() == StatusOpen }, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, statuses, StatusError)
	assert.Equal(t, StatusConnecting, statuses[0])
}

func TestSetSessionReauthenticatesOnIdentityChange(t *testing.T) {
	ts := newTestServer(t)
	client := startClient(t, Options{URL: ts.url, Session: driverSession()})

	conn := ts.accept(t)
	readFrame(t, conn)
	require.Eventually(t, func() bool { return client.Status() == StatusOpen }, 5*time.Second, 10*time.Millisecond)

	client.SetSession(driverSession())
	next := &domain.Session{ID: "s-2", UserID: "u-2", Username: "sam", Role: domain.RoleCourier}
	client.SetSession(next)

	msg := readFrame(t, conn)
	require.Equal(t, protocol.TypeAuthenticate, msg.Type)
	var identity protocol.AuthenticatePayload
	require.NoError(t, msg.Decode(&identity))
	assert.Equal(t, "u-2", identity.UserID)
	assert.Equal(t, domain.RoleCourier, identity.Role)
}

func TestForcedReconnect(t *testing.T) {
	ts := newTestServer(t)
	client := startClient(t, Options{URL: ts.url, Session: driverSession(), Backoff: func(int) time.Duration { return time.Hour }})

	first := ts.accept(t)
	readFrame(t, first)
	require.Eventually(t, func() bool { return client.Status() == StatusOpen }, 5*time.Second, 10*time.Millisecond)

	// keep reading so the close handshake completes
	go func() {
		for {
			if _, _, err := first.Read(context.Background()); err != nil {
				return
			}
		}
	}()
	client.Reconnect()

	second := ts.accept(t)
	assert.Equal(t, protocol.TypeAuthenticate, readFrame(t, second).Type)
}

func TestDialFailuresBackOffAndRetry(t *testing.T) {
	var attempts atomic.Int32
	var waits []int
	var mu sync.Mutex
	client := New(Options{
		URL: "ws://unused",
		Dial: func(ctx context.Context, url string, header http.Header) (Conn, error) {
			attempts.Add(1)
			return nil, errors.New("refused")
		},
		Backoff: func(attempt int) time.Duration {
			mu.Lock()
			waits = append(waits, attempt)
			mu.Unlock()
			return time.Millisecond
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	require.Eventually(t, func() bool { return attempts.Load() >= 3 }, 5*time.Second, time.Millisecond)
	assert.ErrorIs(t, client.Run(ctx), ErrAlreadyRunning)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, StatusClosed, client.Status())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, waits[:3])
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	ts := newTestServer(t)
	client := startClient(t, Options{URL: ts.url})

	var got atomic.Int32
	unsubscribe := client.Subscribe(protocol.TypeSystemMessage, func(msg protocol.Message) {
		got.Add(1)
	})
	client.Subscribe(protocol.TypeSystemMessage, func(msg protocol.Message) {
		panic("subscriber bug")
	})

	conn := ts.accept(t)
	writeFrame(t, conn, protocol.Notice(protocol.TypeSystemMessage, "one"))
	require.Eventually(t, func() bool { return got.Load() == 1 }, 5*time.Second, 10*time.Millisecond)

	unsubscribe()
	writeFrame(t, conn, protocol.Notice(protocol.TypeSystemMessage, "two"))
	writeFrame(t, conn, protocol.Message{Type: protocol.TypePing})
	assert.Equal(t, protocol.TypePong, readFrame(t, conn).Type)
	assert.Equal(t, int32(1), got.Load())
}

func TestExponentialBackoff(t *testing.T) {
	backoff := ExponentialBackoff(100*time.Millisecond, time.Second)
	for attempt, ceiling := range map[int]time.Duration{
		1:  100 * time.Millisecond,
		2:  200 * time.Millisecond,
		3:  400 * time.Millisecond,
		4:  800 * time.Millisecond,
		10: time.Second,
	} {
		for i := 0; i < 20; i++ {
			d := backoff(attempt)
			assert.GreaterOrEqual(t, d, ceiling/2, "attempt %d", attempt)
			assert.LessOrEqual(t, d, ceiling, "attempt %d", attempt)
		}
	}
}

func TestSetCredentialsReconnectsWithNewToken(t *testing.T) {
	ts := newTestServer(t)
	client := startClient(t, Options{URL: ts.url, Token: "tok-1", Session: driverSession()})

	first := ts.accept(t)
	assert.Equal(t, "Bearer tok-1", (<-ts.headers).Get("Authorization"))
	readFrame(t, first)
	require.Eventually(t, func() bool { return client.Status() == StatusOpen }, 5*time.Second, 10*time.Millisecond)

	go func() {
		for {
			if _, _, err := first.Read(context.Background()); err != nil {
				return
			}
		}
	}()
	courier := &domain.Session{ID: "s-2", UserID: "u-2", Username: "sam", Role: domain.RoleCourier}
	client.SetCredentials(courier, "tok-2")

	second := ts.accept(t)
	assert.Equal(t, "Bearer tok-2", (<-ts.headers).Get("Authorization"))
	msg := readFrame(t, second)
	require.Equal(t, protocol.TypeAuthenticate, msg.Type)
	var identity protocol.AuthenticatePayload
	require.NoError(t, msg.Decode(&identity))
	assert.Equal(t, "u-2", identity.UserID)
	assert.Equal(t, domain.RoleCourier, identity.Role)
}

// scriptedConn replays frames and then reports the connection as dropped.
type scriptedConn struct {
	mu     sync.Mutex
	frames []protocol.Message
}

func (c *scriptedConn) Read(context.Context) (protocol.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return protocol.Message{}, io.EOF
	}
	msg := c.frames[0]
	c.frames = c.frames[1:]
	return msg, nil
}

func (c *scriptedConn) Write(context.Context, protocol.Message) error { return nil }
func (c *scriptedConn) Close() error                                  { return nil }

func backoffAttempts(t *testing.T, frames ...protocol.Message) []int {
	t.Helper()
	var (
		mu    sync.Mutex
		waits []int
	)
	client := New(Options{
		URL:     "ws://unused",
		Session: driverSession(),
		Dial: func(context.Context, string, http.Header) (Conn, error) {
			return &scriptedConn{frames: append([]protocol.Message(nil), frames...)}, nil
		},
		Backoff: func(attempt int) time.Duration {
			mu.Lock()
			waits = append(waits, attempt)
			mu.Unlock()
			return time.Millisecond
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = client.Run(ctx)
	}()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(waits) >= 4
	}, 5*time.Second, time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	return append([]int(nil), waits[:4]...)
}

func TestBackoffEscalatesWhenServerDropsBeforeAuthenticating(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3, 4}, backoffAttempts(t))
	assert.Equal(t, []int{1, 2, 3, 4}, backoffAttempts(t, protocol.Notice(protocol.TypeError, "Authentication failed")))
}

func TestBackoffResetsAfterAuthentication(t *testing.T) {
	accepted := protocol.Notice(protocol.TypeAuthenticationSuccess, "Authenticated as dana")
	assert.Equal(t, []int{1, 1, 1, 1}, backoffAttempts(t, accepted))
}
