package service

import (
	"sync"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
)

// ActivityLog keeps the most recent dashboard activities in memory.
type ActivityLog struct {
	mu    sync.RWMutex
	items []domain.Activity
	size  int
}

// NewActivityLog returns a log retaining at most size entries.
func NewActivityLog(size int) *ActivityLog {
	if size <= 0 {
		size = 50
	}
	return &ActivityLog{size: size}
}

// Record appends an activity, evicting the oldest once full.
func (l *ActivityLog) Record(a domain.Activity) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, a)
	if over := len(l.items) - l.size; over > 0 {
		l.items = append(l.items[:0:0], l.items[over:]...)
	}
}

// Recent returns up to n activities, newest first.
func (l *ActivityLog) Recent(n int) []domain.Activity {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > len(l.items) {
		n = len(l.items)
	}
	out := make([]domain.Activity, 0, n)
	for i := len(l.items) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.items[i])
	}
	return out
}
