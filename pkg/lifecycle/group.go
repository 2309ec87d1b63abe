package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/actlife/pkg/log"
)

// ErrShutdownTimeout is returned when workers outlive the shutdown deadline.
var ErrShutdownTimeout = errors.New("actlife: shutdown timeout")

// ShutdownTimeout is the default maximum time to wait for graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// Group tracks the long-running goroutines of a service (engine loop,
// HTTP server, config watcher) so they can be stopped together.
type Group struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger log.Logger
}

// NewGroup derives a cancellable context from parent for the group's workers.
func NewGroup(parent context.Context, logger log.Logger) (*Group, context.Context) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Group{cancel: cancel, logger: logger}, ctx
}

// Go runs fn in a tracked goroutine.
func (g *Group) Go(name string, fn func() error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
			g.logger.Error("worker exited", log.String("worker", name), log.Err(err))
			g.Cancel()
		}
	}()
}

// Cancel triggers graceful shutdown.
func (g *Group) Cancel() {
	g.mu.Lock()
	cancel := g.cancel
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// WaitWithTimeout waits for all workers to finish with a timeout.
// Returns ErrShutdownTimeout if the timeout expires.
func (g *Group) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		g.logger.Warn("shutdown timeout, forcing exit",
			log.Duration("timeout", timeout),
		)
		return ErrShutdownTimeout
	}
}
