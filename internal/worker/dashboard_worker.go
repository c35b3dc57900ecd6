package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/events"
	"github.com/spec-kit/logistics-dashboard/internal/live"
	"github.com/spec-kit/logistics-dashboard/internal/protocol"
)

// SnapshotProvider builds a role's dashboard.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, role domain.Role) (domain.DashboardSnapshot, error)
}

// DashboardWorker pushes fresh DASHBOARD_UPDATE frames to the roles connected to this
// instance, on an interval and whenever a task changes.
type DashboardWorker struct {
	snapshots SnapshotProvider
	hub       *live.Hub
	interval  time.Duration
	logger    *zap.Logger
	trigger   chan struct{}
}

// NewDashboardWorker constructs the worker; interval <= 0 disables periodic pushes.
func NewDashboardWorker(snapshots SnapshotProvider, hub *live.Hub, interval time.Duration, logger *zap.Logger) *DashboardWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardWorker{
		snapshots: snapshots,
		hub:       hub,
		interval:  interval,
		logger:    logger.Named("dashboard_worker"),
		trigger:   make(chan struct{}, 1),
	}
}

// RegisterHandlers requests a push after every task update.
func (w *DashboardWorker) RegisterHandlers(dispatcher events.Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTaskUpdated, func(context.Context, events.Event) error {
		w.Trigger()
		return nil
	})
}

// Trigger schedules a push; concurrent requests coalesce.
func (w *DashboardWorker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Run pushes until ctx is cancelled.
func (w *DashboardWorker) Run(ctx context.Context) {
	var tick <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			w.PushAll(ctx)
		case <-w.trigger:
			w.PushAll(ctx)
		}
	}
}

// PushAll sends each connected role its current snapshot and returns the number of deliveries.
func (w *DashboardWorker) PushAll(ctx context.Context) int {
	delivered := 0
	for _, role := range w.hub.Roles() {
		snap, err := w.snapshots.Snapshot(ctx, role)
		if err != nil {
			w.logger.Warn("snapshot failed", zap.String("role", string(role)), zap.Error(err))
			continue
		}
		msg, err := protocol.New(protocol.TypeDashboardUpdate, protocol.DashboardPayloadFrom(snap))
		if err != nil {
			w.logger.Error("encode snapshot", zap.String("role", string(role)), zap.Error(err))
			continue
		}
		delivered += w.hub.Deliver(msg, role)
	}
	return delivered
}
