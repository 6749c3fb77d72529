package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/deptree/pkg/deps"
)

// warmer runs delayed background resolutions. At most one warm-up per
// package version is pending or running at a time.
type warmer struct {
	delay  time.Duration
	run    func(context.Context, deps.PackageRef) error
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[deps.PackageRef]*time.Timer
	closed  bool
}

func newWarmer(delay time.Duration, run func(context.Context, deps.PackageRef) error, logger *log.Logger) *warmer {
	ctx, cancel := context.WithCancel(context.Background())
	return &warmer{
		delay:   delay,
		run:     run,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[deps.PackageRef]*time.Timer),
	}
}

// schedule starts a warm-up for ref after the delay unless one is already
// pending or running. It reports whether a new warm-up was scheduled.
func (w *warmer) schedule(ref deps.PackageRef) bool {
	if w.delay <= 0 {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	if _, ok := w.pending[ref]; ok {
		return false
	}

	w.wg.Add(1)
	w.pending[ref] = time.AfterFunc(w.delay, func() {
		defer w.wg.Done()
		defer w.forget(ref)

		if err := w.run(w.ctx, ref); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Warn("Background dependency collection failed", "package", ref, "error", err)
		}
	})
	return true
}

func (w *warmer) forget(ref deps.PackageRef) {
	w.mu.Lock()
	delete(w.pending, ref)
	w.mu.Unlock()
}

// inFlight returns the number of pending or running warm-ups.
func (w *warmer) inFlight() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// close stops pending timers, cancels running warm-ups and waits for them.
// It is safe to call more than once.
func (w *warmer) close() {
	w.mu.Lock()
	w.closed = true
	for ref, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
			delete(w.pending, ref)
		}
	}
	w.mu.Unlock()

	w.cancel()
	w.wg.Wait()
}
