package interview

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BestEffort runs side work whose failure is logged and discarded. Work whose
// failure matters to the session returns its error to the caller instead.
type BestEffort struct {
	ctx     context.Context
	timeout time.Duration
	log     *logrus.Entry

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func NewBestEffort(ctx context.Context, timeout time.Duration, log *logrus.Entry) *BestEffort {
	return &BestEffort{ctx: ctx, timeout: timeout, log: log}
}

// Go starts fn in the background. It is a no-op after Close.
func (b *BestEffort) Go(name string, fn func(ctx context.Context) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		b.log.WithField("task", name).Debug("best-effort task dropped after close")
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx := b.ctx
		if b.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, b.timeout)
			defer cancel()
		}
		if err := fn(ctx); err != nil {
			b.log.WithError(err).WithField("task", name).Warn("best-effort task failed")
		}
	}()
}

// Wait blocks until every started task has returned.
func (b *BestEffort) Wait() { b.wg.Wait() }

// Close rejects new tasks and waits for running ones.
func (b *BestEffort) Close() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
	b.wg.Wait()
}
