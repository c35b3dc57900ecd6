// Package liveclient keeps one authenticated, self-reconnecting live-update connection and
// fans its messages out to subscribers.
package liveclient

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/protocol"
)

// Status is the connection state.
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusOpen       Status = "open"
	StatusClosed     Status = "closed"
	StatusError      Status = "error"
)

// Notification levels passed to the Notifier.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// ErrAlreadyRunning is returned when Run is called while another Run is active.
var ErrAlreadyRunning = errors.New("live client already running")

var errForcedReconnect = errors.New("forced reconnect")

// Notifier surfaces user-facing notifications.
type Notifier interface {
	Notify(level, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level, message string)

func (f NotifierFunc) Notify(level, message string) { f(level, message) }

// Handler receives dispatched messages.
type Handler func(msg protocol.Message)

// Options configures a Client.
type Options struct {
	URL     string
	Token   string
	Session *domain.Session

	Dial         DialFunc
	Backoff      BackoffFunc
	WriteTimeout time.Duration
	Notifier     Notifier
	OnStatus     func(Status)
	Logger       *zap.Logger
}

type subscription struct {
	id      int64
	handler Handler
}

// Client is a reconnecting live-update client. Sends while not open are rejected, not queued.
type Client struct {
	opts   Options
	logger *zap.Logger

	mu          sync.Mutex
	status      Status
	conn        Conn
	session     *domain.Session
	token       string
	lastMessage *protocol.Message
	snapshot    *domain.DashboardSnapshot
	forced      bool

	writeMu sync.Mutex

	subMu     sync.RWMutex
	subs      map[protocol.MessageType][]subscription
	nextSubID int64

	reconnect chan struct{}
	running   atomic.Bool
	cancel    context.CancelFunc
}

// New builds a client; call Run to start connecting.
func New(opts Options) *Client {
	if opts.Dial == nil {
		opts.Dial = WebsocketDial
	}
	if opts.Backoff == nil {
		opts.Backoff = ExponentialBackoff(500*time.Millisecond, 30*time.Second)
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(string, string) {})
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		opts:      opts,
		logger:    logger.Named("liveclient"),
		status:    StatusClosed,
		session:   opts.Session,
		token:     opts.Token,
		subs:      make(map[protocol.MessageType][]subscription),
		reconnect: make(chan struct{}, 1),
	}
}

// Status returns the current connection state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// LastMessage returns the most recent message received, if any.
func (c *Client) LastMessage() (protocol.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastMessage == nil {
		return protocol.Message{}, false
	}
	return *c.lastMessage, true
}

// Snapshot returns the latest dashboard snapshot, if one arrived.
func (c *Client) Snapshot() (domain.DashboardSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return domain.DashboardSnapshot{}, false
	}
	return *c.snapshot, true
}

// Subscribe registers handler for a message type and returns an unsubscribe func.
func (c *Client) Subscribe(t protocol.MessageType, handler Handler) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	c.subs[t] = append(c.subs[t], subscription{id: id, handler: handler})

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		subs := c.subs[t]
		for i, sub := range subs {
			if sub.id == id {
				c.subs[t] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Send writes msg on the open connection and reports success.
func (c *Client) Send(msg protocol.Message) bool {
	c.mu.Lock()
	conn := c.conn
	open := c.status == StatusOpen
	c.mu.Unlock()

	if !open || conn == nil {
		c.logger.Debug("send rejected; connection not open", zap.String("type", string(msg.Type)))
		return false
	}
	if err := c.write(conn, msg); err != nil {
		c.logger.Warn("send failed", zap.String("type", string(msg.Type)), zap.Error(err))
		return false
	}
	return true
}

// SetSession swaps the identity and re-authenticates an open connection when it changed.
func (c *Client) SetSession(s *domain.Session) {
	c.mu.Lock()
	changed := !c.session.SameIdentity(s)
	c.session = s
	conn := c.conn
	open := c.status == StatusOpen
	c.mu.Unlock()

	if !changed || !open || conn == nil || s == nil {
		return
	}
	if err := c.write(conn, protocol.Authenticate(s)); err != nil {
		c.logger.Warn("re-authentication failed", zap.Error(err))
	}
}

// SetCredentials swaps the identity together with the bearer token. The server binds a
// connection to the token presented at upgrade, so a new token drops the connection and
// dials again; an unchanged token falls back to SetSession.
func (c *Client) SetCredentials(s *domain.Session, token string) {
	c.mu.Lock()
	if c.token == token {
		c.mu.Unlock()
		c.SetSession(s)
		return
	}
	c.token = token
	c.session = s
	c.mu.Unlock()

	c.logger.Info("credentials changed; reconnecting")
	c.Reconnect()
}

// Reconnect drops the current connection, if any, and dials again without waiting.
func (c *Client) Reconnect() {
	c.mu.Lock()
	conn := c.conn
	if conn != nil {
		c.forced = true
	}
	c.mu.Unlock()

	select {
	case c.reconnect <- struct{}{}:
	default:
	}
	if conn != nil {
		_ = conn.Close()
	}
}

// Close stops a running client.
func (c *Client) Close() {
	c.mu.Lock()
	cancel := c.cancel
	conn := c.conn
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

// Run connects and keeps reconnecting until ctx is cancelled or Close is called.
func (c *Client) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	// drain a stale reconnect request from before Run
	select {
	case <-c.reconnect:
	default:
	}

	attempt := 0
	for {
		if ctx.Err() != nil {
			c.setStatus(StatusClosed)
			return ctx.Err()
		}

		c.setStatus(StatusConnecting)
		conn, err := c.opts.Dial(ctx, c.opts.URL, c.header())
		if err != nil {
			if ctx.Err() != nil {
				c.setStatus(StatusClosed)
				return ctx.Err()
			}
			c.setStatus(StatusError)
			attempt++
			c.logger.Warn("dial failed", zap.Int("attempt", attempt), zap.Error(err))
			if !c.wait(ctx, c.opts.Backoff(attempt)) {
				c.setStatus(StatusClosed)
				return ctx.Err()
			}
			continue
		}

		healthy, err := c.serve(ctx, conn)
		if healthy {
			attempt = 0
		}
		if ctx.Err() != nil {
			c.setStatus(StatusClosed)
			return ctx.Err()
		}
		if errors.Is(err, errForcedReconnect) {
			c.logger.Info("reconnect requested")
			continue
		}

		if normalClosure(err) {
			c.setStatus(StatusClosed)
		} else {
			c.setStatus(StatusError)
		}
		attempt++
		c.logger.Warn("connection dropped", zap.Int("attempt", attempt), zap.Error(err))
		if !c.wait(ctx, c.opts.Backoff(attempt)) {
			c.setStatus(StatusClosed)
			return ctx.Err()
		}
	}
}

// serve owns one connection from open to drop. It reports healthy once the server accepted
// the session, or sent anything at all on an anonymous connection; only then does the
// backoff counter reset.
func (c *Client) serve(ctx context.Context, conn Conn) (healthy bool, err error) {
	c.mu.Lock()
	c.conn = conn
	c.forced = false
	s := c.session
	c.mu.Unlock()

	// drop reconnect requests that raced with the dial
	select {
	case <-c.reconnect:
	default:
	}

	c.setStatus(StatusOpen)
	defer c.detach(conn)

	if s != nil {
		if err := c.write(conn, protocol.Authenticate(s)); err != nil {
			return false, err
		}
	}

	for {
		msg, err := conn.Read(ctx)
		if err != nil {
			if errors.Is(err, ErrMalformedFrame) {
				c.logger.Warn("discarding malformed frame", zap.Error(err))
				c.opts.Notifier.Notify(LevelError, "Received a malformed live update")
				continue
			}
			c.mu.Lock()
			forced := c.forced
			c.mu.Unlock()
			if forced {
				return healthy, errForcedReconnect
			}
			return healthy, err
		}
		if s == nil || msg.Type == protocol.TypeAuthenticationSuccess {
			healthy = true
		}
		c.dispatch(conn, msg)
	}
}

func (c *Client) detach(conn Conn) {
	_ = conn.Close()
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
}

func (c *Client) dispatch(conn Conn, msg protocol.Message) {
	c.mu.Lock()
	stored := msg
	c.lastMessage = &stored
	c.mu.Unlock()

	switch msg.Type {
	case protocol.TypeDashboardUpdate:
		var payload protocol.DashboardPayload
		if err := msg.Decode(&payload); err != nil {
			c.logger.Warn("invalid dashboard update", zap.Error(err))
			c.opts.Notifier.Notify(LevelError, "Received an invalid dashboard update")
			return
		}
		snap := payload.Snapshot()
		c.mu.Lock()
		c.snapshot = &snap
		c.mu.Unlock()
	case protocol.TypeAuthenticationSuccess:
		c.opts.Notifier.Notify(LevelInfo, noticeText(msg, "Connected to live updates"))
	case protocol.TypeSystemMessage:
		c.opts.Notifier.Notify(LevelInfo, noticeText(msg, "System message"))
	case protocol.TypeError:
		c.opts.Notifier.Notify(LevelError, noticeText(msg, "Live update error"))
	case protocol.TypePing:
		if err := c.write(conn, protocol.Message{Type: protocol.TypePong}); err != nil {
			c.logger.Debug("pong failed", zap.Error(err))
		}
	}

	c.subMu.RLock()
	subs := append([]subscription(nil), c.subs[msg.Type]...)
	c.subMu.RUnlock()
	for _, sub := range subs {
		c.invoke(sub.handler, msg)
	}
}

func (c *Client) invoke(h Handler, msg protocol.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("subscriber panicked", zap.String("type", string(msg.Type)), zap.Any("panic", r))
		}
	}()
	h(msg)
}

func (c *Client) write(conn Conn, msg protocol.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.WriteTimeout)
	defer cancel()
	return conn.Write(ctx, msg)
}

func (c *Client) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-c.reconnect:
		return true
	}
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	changed := c.status != s
	c.status = s
	c.mu.Unlock()

	if changed && c.opts.OnStatus != nil {
		c.opts.OnStatus(s)
	}
}

func (c *Client) header() http.Header {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return header
}

func noticeText(msg protocol.Message, fallback string) string {
	var notice protocol.NoticePayload
	if err := msg.Decode(&notice); err != nil || notice.Message == "" {
		return fallback
	}
	return notice.Message
}
