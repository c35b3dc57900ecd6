// Package navigation applies the route guard on the client side.
package navigation

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/guard"
)

// SessionProvider returns the locally stored session, if any.
type SessionProvider interface {
	Current() (*domain.Session, bool)
}

// SessionProviderFunc adapts a function to SessionProvider.
type SessionProviderFunc func() (*domain.Session, bool)

func (f SessionProviderFunc) Current() (*domain.Session, bool) { return f() }

// Listener observes every completed navigation.
type Listener func(guard.Decision)

// Navigator tracks the current location and runs the guard on every move.
type Navigator struct {
	provider SessionProvider
	logger   *zap.Logger

	mu        sync.Mutex
	location  string
	listeners []Listener
}

// New builds a navigator starting at the root path.
func New(provider SessionProvider, logger *zap.Logger) *Navigator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Navigator{provider: provider, logger: logger.Named("navigation"), location: "/"}
}

// OnNavigate registers a listener.
func (n *Navigator) OnNavigate(l Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, l)
}

// Location returns where the last successful navigation ended up.
func (n *Navigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

// Navigate decides path for the current session and moves there or to the redirect target.
// It reports false, keeping the previous location, when anything in the navigation panics.
func (n *Navigator) Navigate(path string) (d guard.Decision, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("navigation failed", zap.String("path", path), zap.String("panic", fmt.Sprint(r)))
			ok = false
		}
	}()

	var s *domain.Session
	if n.provider != nil {
		if current, found := n.provider.Current(); found {
			s = current
		}
	}
	d = guard.Decide(path, s)

	dest := d.Path
	if d.Redirect() {
		dest = d.Target
	}

	n.mu.Lock()
	listeners := append([]Listener(nil), n.listeners...)
	n.mu.Unlock()
	for _, l := range listeners {
		l(d)
	}

	n.mu.Lock()
	n.location = dest
	n.mu.Unlock()

	if d.Notice != "" {
		n.logger.Info("navigation redirected", zap.String("path", d.Path), zap.String("target", d.Target))
	}
	return d, true
}
