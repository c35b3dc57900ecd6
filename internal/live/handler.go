package live

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/logistics-dashboard/internal/auth"
	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/observability"
	"github.com/spec-kit/logistics-dashboard/internal/protocol"
)

const localsSession = "live_session"

// SnapshotProvider builds the dashboard a role sees.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, role domain.Role) (domain.DashboardSnapshot, error)
}

// HandlerConfig tunes the websocket endpoint.
type HandlerConfig struct {
	AllowedOrigins []string
	AuthTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Handler serves GET /ws.
type Handler struct {
	hub       *Hub
	snapshots SnapshotProvider
	metrics   *observability.Metrics
	logger    *zap.Logger
	cfg       HandlerConfig
}

// NewHandler constructs the websocket handler.
func NewHandler(hub *Hub, snapshots SnapshotProvider, metrics *observability.Metrics, logger *zap.Logger, cfg HandlerConfig) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Handler{hub: hub, snapshots: snapshots, metrics: metrics, logger: logger.Named("live"), cfg: cfg}
}

// ParseOrigins splits a comma separated origin list; empty means any origin.
func ParseOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Upgrade rejects plain HTTP requests and carries the request session into the socket.
// It must run after the session middleware.
func (h *Handler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	s, ok := auth.SessionFromContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}
	c.Locals(localsSession, s)
	return c.Next()
}

// Serve returns the websocket handler.
func (h *Handler) Serve() fiber.Handler {
	cfg := websocket.Config{}
	if len(h.cfg.AllowedOrigins) > 0 {
		cfg.Origins = h.cfg.AllowedOrigins
	}
	return websocket.New(h.serve, cfg)
}

// peer serializes writes to one websocket connection.
type peer struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timeout time.Duration
	metrics *observability.Metrics
}

func (p *peer) Send(msg protocol.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(p.timeout)); err != nil {
		return err
	}
	if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	p.metrics.RecordLiveMessage(string(msg.Type))
	return nil
}

func (h *Handler) serve(conn *websocket.Conn) {
	s, _ := conn.Locals(localsSession).(*domain.Session)
	p := &peer{conn: conn, timeout: h.cfg.WriteTimeout, metrics: h.metrics}

	var unregister func()
	defer func() {
		if unregister != nil {
			unregister()
		}
		_ = conn.Close()
	}()

	if s == nil {
		_ = p.Send(protocol.Notice(protocol.TypeError, "Authentication required"))
		return
	}
	logger := h.logger.With(zap.String("user_id", s.UserID), zap.String("role", string(s.Role)))

	// the first frame must arrive before the auth deadline
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.AuthTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if unregister == nil {
				logger.Debug("connection closed before authentication", zap.Error(err))
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			_ = p.Send(protocol.Notice(protocol.TypeError, "Malformed message"))
			continue
		}

		switch msg.Type {
		case protocol.TypeAuthenticate:
			if err := verifyIdentity(s, msg); err != nil {
				logger.Warn("live authentication rejected", zap.Error(err))
				_ = p.Send(protocol.Notice(protocol.TypeError, "Authentication failed"))
				return
			}
			if unregister == nil {
				unregister = h.hub.Register(s.Role, p)
				_ = conn.SetReadDeadline(time.Time{})
				logger.Info("live connection authenticated")
			}
			_ = p.Send(protocol.Notice(protocol.TypeAuthenticationSuccess, "Authenticated as "+s.Username))
			h.pushSnapshot(s.Role, p, logger)
		case protocol.TypePing:
			_ = p.Send(protocol.Message{Type: protocol.TypePong})
		case protocol.TypePong:
		default:
			if unregister == nil {
				_ = p.Send(protocol.Notice(protocol.TypeError, "Authenticate first"))
				continue
			}
			logger.Debug("ignoring client message", zap.String("type", string(msg.Type)))
		}
	}
}

func (h *Handler) pushSnapshot(role domain.Role, p *peer, logger *zap.Logger) {
	if h.snapshots == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	snap, err := h.snapshots.Snapshot(ctx, role)
	if err != nil {
		logger.Warn("initial snapshot failed", zap.Error(err))
		_ = p.Send(protocol.Notice(protocol.TypeError, "Dashboard data is temporarily unavailable"))
		return
	}
	msg, err := protocol.New(protocol.TypeDashboardUpdate, protocol.DashboardPayloadFrom(snap))
	if err != nil {
		logger.Error("encode snapshot", zap.Error(err))
		return
	}
	_ = p.Send(msg)
}

var errIdentityMismatch = errors.New("identity does not match session")

func verifyIdentity(s *domain.Session, msg protocol.Message) error {
	var identity protocol.AuthenticatePayload
	if err := msg.Decode(&identity); err != nil {
		return err
	}
	if identity.UserID != s.UserID || identity.Role != s.Role || identity.Username != s.Username {
		return errIdentityMismatch
	}
	return nil
}
