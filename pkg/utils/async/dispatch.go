package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Dispatcher runs handlers in background goroutines and tracks them until they finish
type Dispatcher struct {
	wg      sync.WaitGroup
	timeout time.Duration
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithTimeout bounds each handler with a deadline. Zero means no deadline.
func WithTimeout(d time.Duration) Option {
	return func(x *Dispatcher) {
		x.timeout = d
	}
}

// New creates a Dispatcher
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var defaultDispatcher = New()

// Dispatch executes handler asynchronously on the default dispatcher
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	defaultDispatcher.Dispatch(ctx, handler)
}

// Dispatch executes a handler function asynchronously with proper context and panic recovery
//
// Parameters:
//   - ctx: Original context (values will be preserved, but cancellation won't affect the async handler)
//   - handler: Function to execute asynchronously
//
// Behavior:
//   - Creates a new background context with preserved logger and Sentry hub
//   - Executes handler in a new goroutine
//   - Recovers from panics, logs them and reports them to Sentry
//   - Logs and reports errors returned by handler
func (d *Dispatcher) Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	newCtx, hub := newBackgroundContext(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		runCtx := newCtx
		if d.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(newCtx, d.timeout)
			defer cancel()
		}

		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				logger := ctxlog.From(newCtx)
				logger.Error("panic in async handler",
					"recover", r,
					"stack", string(stack))
				hub.CaptureException(goerr.New(fmt.Sprintf("panic in async handler: %v", r)))
			}
		}()

		if err := handler(runCtx); err != nil {
			logger := ctxlog.From(newCtx)
			logger.Error("error in async handler", "error", err)
			hub.CaptureException(err)
		}
	}()
}

// Wait blocks until every dispatched handler has returned or ctx is done
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "async handlers did not finish in time")
	}
}

// newBackgroundContext creates a new background context preserving important values
//
// Preserved values:
//   - ctxlog logger
//   - Sentry hub (cloned, so scope changes in the handler stay local)
func newBackgroundContext(ctx context.Context) (context.Context, *sentry.Hub) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub = hub.Clone()

	newCtx := context.Background()
	newCtx = ctxlog.With(newCtx, ctxlog.From(ctx))
	newCtx = sentry.SetHubOnContext(newCtx, hub)
	return newCtx, hub
}
