package service

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/logistics-dashboard/internal/domain"
	"github.com/spec-kit/logistics-dashboard/internal/protocol"
	"github.com/spec-kit/logistics-dashboard/internal/repository"
)

type fakeUsers struct {
	byName map[string]*domain.User
}

func (f *fakeUsers) Create(_ context.Context, u *domain.User) error {
	f.byName[u.Username] = u
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	for _, u := range f.byName {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	if u, ok := f.byName[username]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

type fakeTasks struct {
	tasks   map[string]*domain.WarehouseTask
	updates int
	// beforeUpdate runs ahead of the write, letting a test change the stored row in between.
	beforeUpdate func()
	counts  map[domain.TaskKind]map[domain.TaskStatus]int
	err     error
}

func (f *fakeTasks) GetByID(_ context.Context, kind domain.TaskKind, id string) (*domain.WarehouseTask, error) {
	t, ok := f.tasks[id]
	if !ok || t.Kind != kind {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTasks) Update(_ context.Context, t *domain.WarehouseTask, expected domain.TaskStatus) error {
	if f.beforeUpdate != nil {
		f.beforeUpdate()
	}
	stored, ok := f.tasks[t.ID]
	if !ok || stored.Kind != t.Kind || stored.Status != expected || !stored.UpdatedAt.Equal(t.UpdatedAt) {
		return pgx.ErrNoRows
	}
	f.updates++
	t.UpdatedAt = t.UpdatedAt.Add(time.Second)
	cp := *t
	f.tasks[t.ID] = &cp
	return nil
}

func (f *fakeTasks) CountByStatus(context.Context) (map[domain.TaskKind]map[domain.TaskStatus]int, error) {
	return f.counts, f.err
}

type fakeResources struct {
	items map[domain.ResourceKind][]domain.Resource
	calls []repository.ResourceFilter
}

func (f *fakeResources) List(_ context.Context, kind domain.ResourceKind, filter repository.ResourceFilter) ([]domain.Resource, error) {
	f.calls = append(f.calls, filter)
	return f.items[kind], nil
}

type broadcast struct {
	msg   protocol.Message
	roles []domain.Role
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []broadcast
}

func (r *recordingBroadcaster) Broadcast(_ context.Context, msg protocol.Message, roles ...domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, broadcast{msg: msg, roles: roles})
	return nil
}
