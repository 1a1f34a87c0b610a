package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
)

// InMemoryLocker is a process-local Locker
type InMemoryLocker struct {
	mu    sync.Mutex
	held  map[string]lease
	clock func() time.Time
}

type lease struct {
	token     uuid.UUID
	expiresAt time.Time
}

// NewInMemoryLocker creates an empty locker
func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{held: make(map[string]lease), clock: time.Now}
}

// Obtain takes key unless an unexpired lease holds it
func (l *InMemoryLocker) Obtain(_ context.Context, key string, ttl time.Duration) (shared.Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if cur, ok := l.held[key]; ok && now.Before(cur.expiresAt) {
		return nil, shared.ErrLockNotObtained
	}
	token := uuid.New()
	l.held[key] = lease{token: token, expiresAt: now.Add(ttl)}
	return &memLock{locker: l, key: key, token: token}, nil
}

type memLock struct {
	locker *InMemoryLocker
	key    string
	token  uuid.UUID
}

// Release drops the lease if this holder still owns it
func (m *memLock) Release(context.Context) error {
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()
	if cur, ok := m.locker.held[m.key]; ok && cur.token == m.token {
		delete(m.locker.held, m.key)
	}
	return nil
}

var _ shared.Locker = (*InMemoryLocker)(nil)
