package usecase

import (
	"context"
	"sync"

	"github.com/m-mizutani/alertsync/pkg/domain/interfaces"
	"github.com/m-mizutani/alertsync/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
)

// MemoryLocker serializes runs inside one process. Acquire waits until the key is free
// or ctx is done.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewMemoryLocker creates a MemoryLocker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]chan struct{})}
}

var _ interfaces.RunLocker = (*MemoryLocker)(nil)

func (x *MemoryLocker) slot(key string) chan struct{} {
	x.mu.Lock()
	defer x.mu.Unlock()

	ch, ok := x.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		x.slots[key] = ch
	}
	return ch
}

// Acquire takes the lock for key. When ctx is done first, the error is tagged
// types.ErrTagLocked.
func (x *MemoryLocker) Acquire(ctx context.Context, key, owner string) (interfaces.ReleaseFunc, error) {
	ch := x.slot(key)

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, goerr.Wrap(ctx.Err(), "run lock is held by another run",
			goerr.V("key", key),
			goerr.V("owner", owner),
			goerr.T(types.ErrTagLocked),
		)
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() { <-ch })
		return nil
	}, nil
}
