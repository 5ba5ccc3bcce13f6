package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/alertsync/pkg/domain/types"
	"github.com/m-mizutani/alertsync/pkg/usecase"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	locker := usecase.NewMemoryLocker()

	release, err := locker.Acquire(ctx, "acme/security", "run-1")
	gt.NoError(t, err)

	t.Run("held key blocks until the context is done", func(t *testing.T) {
		waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := locker.Acquire(waitCtx, "acme/security", "run-2")
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagLocked))
	})

	t.Run("other keys are independent", func(t *testing.T) {
		other, err := locker.Acquire(ctx, "acme/other", "run-3")
		gt.NoError(t, err)
		gt.NoError(t, other(ctx))
	})

	t.Run("waiter proceeds after release", func(t *testing.T) {
		acquired := make(chan error, 1)
		go func() {
			next, err := locker.Acquire(ctx, "acme/security", "run-4")
			if err == nil {
				err = next(ctx)
			}
			acquired <- err
		}()

		gt.NoError(t, release(ctx))
		// a second release is a no-op
		gt.NoError(t, release(ctx))

		select {
		case err := <-acquired:
			gt.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("waiter did not get the lock")
		}
	})
}
