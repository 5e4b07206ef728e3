package goSession

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/backend"
	"github.com/MrEthical07/goSession/directory"
	"github.com/MrEthical07/goSession/federated"
	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/session"
)

// Engine owns the one session of a process and every component that may change it.
//
// All methods are safe for concurrent use. Network calls never run with the state lock held;
// store writes do, so the persisted pair and the in-memory session move together.
type Engine struct {
	config    Config
	logger    *slog.Logger
	now       func() time.Time
	store     session.Store
	backend   *backend.Client
	provider  federated.Provider
	directory directory.Directory
	audit     *audit.Dispatcher
	metrics   *Metrics
	flow      flows.Service

	mu          sync.Mutex
	state       sessionState
	started     bool
	closed      bool
	unsubscribe func()
	listeners   []func(Session)
	pending     []Session
	changes     chan Session

	notifyMu sync.Mutex

	baseCtx context.Context
	cancel  context.CancelFunc
	stop    chan struct{}
	// bg tracks every engine goroutine; validations only the one-shot validations.
	bg          sync.WaitGroup
	validations sync.WaitGroup
}

// Session returns a snapshot of the current session.
func (e *Engine) Session() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.snapshot()
}

// Status is shorthand for Session().Status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.status
}

// Changes delivers a snapshot after every transition. The channel keeps only the most recent
// snapshots when the reader falls behind and is closed by [Engine.Close].
func (e *Engine) Changes() <-chan Session {
	return e.changes
}

// OnChange registers fn to be called with every later snapshot, in transition order. fn runs
// on the goroutine that caused the transition and must not block.
func (e *Engine) OnChange(fn func(Session)) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Wait blocks until in-flight background validations have finished. Periodic loops and the
// watcher keep running until [Engine.Close].
func (e *Engine) Wait() {
	e.validations.Wait()
}

// Close unsubscribes the watcher, stops periodic checks, waits for background work and
// flushes the audit dispatcher. The session itself is left as is. Close is idempotent.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	close(e.stop)
	e.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	e.cancel()
	e.bg.Wait()
	if w := e.flow.Watcher(); w != nil {
		w.Wait()
	}

	e.mu.Lock()
	close(e.changes)
	e.mu.Unlock()

	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the counters and the current session state.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	snap := e.metrics.Snapshot()
	e.mu.Lock()
	snap.Status = e.state.status
	snap.Source = e.state.source
	e.mu.Unlock()
	return snap
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// observe reports the current epoch to the watcher and whether signed-in emissions must be
// ignored because an apiToken session holds precedence.
func (e *Engine) observe() (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.epoch, e.state.activeAPIToken()
}

// goBackground runs fn on a tracked goroutine unless the engine is closed.
func (e *Engine) goBackground(fn func(ctx context.Context)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		fn(e.baseCtx)
	}()
	return true
}
