package future

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cronfuture/cronfuture/cronengine"
)

// Task is the unit of work a Handle schedules. It receives a context that is
// cancelled if the handle is cancelled mid-tick, and returns the tick's
// result together with any error.
type Task[R any] func(ctx context.Context) (R, error)

// Future is the type-erased view of a Handle[R] that Registry stores,
// letting a single registry hold handles over different result types.
type Future interface {
	IsDone() bool
	IsCancelled() bool
	Cancel() bool
	Stats() Stats
	Pattern() Pattern
	RegistryKey() uuid.UUID
	ID() (EntryID, bool)
	DoneChan() <-chan struct{}
}

type listenerEntry[R any] struct {
	token    *ListenerToken
	fn       Listener[R]
	priority bool
}

// Handle is the live, in-process handle to a single scheduled task. It
// implements spec §4's Enter/Execute/Exit tick lifecycle, the get/cancel
// facade, and the listener registry, and satisfies Future and cronengine.Job.
//
// See spec §4.2 through §4.6 for the full state machine this type
// implements.
type Handle[R any] struct {
	// immutable after construction
	pattern       Pattern
	key           uuid.UUID
	engine        CronEngine
	schedule      cronengine.Schedule
	task          Task[R]
	logger        Logger
	pool          *WorkerPool
	timerService  TimerService
	clock         cronengine.Clock
	onDescheduled func(Future)

	// volatile flags; accessed without the mutex
	syncNotify   atomic.Bool
	concurNotify atomic.Bool
	descheduled  atomic.Bool

	mu                  sync.Mutex
	id                  EntryID
	hasID               bool
	callCnt             int
	cancelled           bool
	done                bool
	lastRes             R
	lastErr             error
	resGate             *gate
	lastListenerExecCnt int
	listeners           []*listenerEntry[R]
	stats               Stats
	runningCancel       context.CancelFunc

	doneCh   chan struct{}
	doneOnce sync.Once
}

// Option configures a Handle at construction time.
type Option[R any] func(*Handle[R])

// WithLogger sets the Logger a Handle uses for lifecycle and error logging.
func WithLogger[R any](l Logger) Option[R] {
	return func(h *Handle[R]) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithWorkerPool sets the pool listener dispatch is queued on.
func WithWorkerPool[R any](p *WorkerPool) Option[R] {
	return func(h *Handle[R]) {
		if p != nil {
			h.pool = p
		}
	}
}

// WithTimerService overrides the TimerService used for delayed starts.
func WithTimerService[R any](ts TimerService) Option[R] {
	return func(h *Handle[R]) {
		if ts != nil {
			h.timerService = ts
		}
	}
}

// WithSyncNotify sets the handle's initial synchronous-notification flag
// (see spec §4.6's sync/async listener dispatch matrix).
func WithSyncNotify[R any](enabled bool) Option[R] {
	return func(h *Handle[R]) { h.syncNotify.Store(enabled) }
}

// WithConcurrentNotify sets the handle's initial concurrent-notification
// flag (see spec §4.6).
func WithConcurrentNotify[R any](concurrent bool) Option[R] {
	return func(h *Handle[R]) { h.concurNotify.Store(concurrent) }
}

// onDescheduledOption wires the Registry callback invoked exactly once when
// a handle leaves scheduling. Unexported: only Registry may set it.
func onDescheduledOption[R any](fn func(Future)) Option[R] {
	return func(h *Handle[R]) { h.onDescheduled = fn }
}

// withClockOption wires the Registry's cronengine.Clock into the handle, so
// stats bookkeeping advances on the same clock (real or fake) that drives
// the cron engine, rather than the wall clock. Unexported: only Registry
// may set it.
func withClockOption[R any](c cronengine.Clock) Option[R] {
	return func(h *Handle[R]) {
		if c != nil {
			h.clock = c
		}
	}
}

func newHandle[R any](pattern Pattern, task Task[R], engine CronEngine, schedule cronengine.Schedule, now time.Time, opts ...Option[R]) *Handle[R] {
	h := &Handle[R]{
		pattern:      pattern,
		key:          uuid.New(),
		engine:       engine,
		schedule:     schedule,
		task:         task,
		logger:       DefaultLogger,
		pool:         NewWorkerPool(0, DefaultLogger),
		timerService: NewClockTimerService(cronengine.RealClock{}),
		clock:        cronengine.RealClock{},
		stats:        newStats(now),
		resGate:      newGate(),
		doneCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegistryKey returns the identifier this handle is stored under in a
// Registry.
func (h *Handle[R]) RegistryKey() uuid.UUID { return h.key }

// Pattern returns the parsed schedule pattern this handle was created with.
func (h *Handle[R]) Pattern() Pattern { return h.pattern }

// ID returns the cron engine's entry id for this handle, once registered.
// The second return value is false before registration and for a handle
// whose delayed start has not yet elapsed.
func (h *Handle[R]) ID() (EntryID, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id, h.hasID
}

// Stats returns a snapshot of the handle's execution counters.
func (h *Handle[R]) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// IsDone reports whether the handle has permanently stopped ticking, either
// because it was cancelled or because its maxCalls bound was reached.
func (h *Handle[R]) IsDone() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

// IsCancelled reports whether Cancel has been called on this handle.
func (h *Handle[R]) IsCancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// DoneChan returns a channel that is closed exactly once, when the handle
// becomes done.
func (h *Handle[R]) DoneChan() <-chan struct{} { return h.doneCh }

// SyncNotify reports whether AddListener's catch-up delivery runs on the
// calling goroutine rather than being queued to the worker pool. Per-tick
// deliveries always go through the worker pool.
func (h *Handle[R]) SyncNotify() bool { return h.syncNotify.Load() }

// SetSyncNotify sets the synchronous-notification flag.
func (h *Handle[R]) SetSyncNotify(v bool) { h.syncNotify.Store(v) }

// ConcurrentNotify reports whether listeners are dispatched concurrently
// with one another rather than serially.
func (h *Handle[R]) ConcurrentNotify() bool { return h.concurNotify.Load() }

// SetConcurrentNotify sets the concurrent-notification flag.
func (h *Handle[R]) SetConcurrentNotify(v bool) { h.concurNotify.Store(v) }

// Snapshot captures the handle's current terminal-or-not state into a
// Snapshot value, suitable for serialization via MarshalBinary.
func (h *Handle[R]) Snapshot() Snapshot[R] {
	h.mu.Lock()
	res, err := h.lastRes, h.lastErr
	h.mu.Unlock()
	return newSnapshot(h, res, err)
}

func (h *Handle[R]) markDone() {
	h.doneOnce.Do(func() { close(h.doneCh) })
}

// resultLocked implements spec §4.4's get() step 3: raise lastErr if set,
// otherwise return lastRes. Caller must hold h.mu.
func (h *Handle[R]) resultLocked() (R, error) {
	if h.lastErr != nil {
		var zero R
		return zero, &TaskError{Cause: h.lastErr}
	}
	return h.lastRes, nil
}

// terminalResultLocked is resultLocked, except that a handle cancelled
// before any tick ever completed reports ErrCancelled instead of a
// meaningless zero result. Caller must hold h.mu.
//
// This matters because Cancel, unlike the source this package is modeled
// on, releases a waiter's gate immediately when no tick is running —
// otherwise a caller already blocked in GetContext when Cancel runs would
// hang forever, since no further tick would ever come along to release it.
// A waiter woken that way has no real tick outcome to report.
func (h *Handle[R]) terminalResultLocked() (R, error) {
	if h.cancelled && h.stats.executionCount == 0 {
		var zero R
		return zero, ErrCancelled
	}
	return h.resultLocked()
}

// Last returns the most recently completed tick's outcome. If the handle
// was cancelled before any tick ever completed, it raises ErrCancelled
// instead.
func (h *Handle[R]) Last() (R, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.terminalResultLocked()
}

// Get blocks until the handle's next tick (or, if one is already in
// progress, that tick) completes, then returns its outcome. If the handle
// is already done, it returns the last completed tick's outcome
// immediately. A call made after the handle is already cancelled fails
// with ErrCancelled outright; a call already waiting when cancellation
// happens instead falls back to terminalResultLocked's rule (see Last).
func (h *Handle[R]) Get() (R, error) {
	return h.GetContext(context.Background())
}

// GetContext is Get with a context for cancellation/timeout. A context
// deadline that elapses before a tick completes raises ErrTimeout; any
// other context cancellation raises ErrInterrupted.
func (h *Handle[R]) GetContext(ctx context.Context) (R, error) {
	h.mu.Lock()
	if h.cancelled {
		h.mu.Unlock()
		var zero R
		return zero, ErrCancelled
	}
	if h.done {
		defer h.mu.Unlock()
		return h.terminalResultLocked()
	}
	g := h.resGate
	h.mu.Unlock()

	select {
	case <-g.wait():
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.terminalResultLocked()
	case <-ctx.Done():
		h.mu.Lock()
		defer h.mu.Unlock()
		switch {
		case h.cancelled:
			var zero R
			return zero, ErrCancelled
		case h.done:
			return h.resultLocked()
		case ctx.Err() == context.DeadlineExceeded:
			var zero R
			return zero, ErrTimeout
		default:
			var zero R
			return zero, ErrInterrupted
		}
	}
}

// Cancel requests that the handle stop ticking. It returns false if the
// handle was already done before this call, and true otherwise (including
// when the handle was already cancelled). If no tick is currently running,
// the handle becomes done immediately and any Get/GetContext callers
// currently waiting on it are released: they receive ErrCancelled if no tick
// has completed yet, and the last tick's outcome otherwise. If a tick is
// running, the handle becomes done when that tick's Exit phase observes
// cancellation.
func (h *Handle[R]) Cancel() bool {
	h.mu.Lock()
	if h.done {
		h.mu.Unlock()
		return false
	}
	if h.cancelled {
		h.mu.Unlock()
		return true
	}
	h.cancelled = true
	var retired *gate
	settledNow := !h.stats.running
	if settledNow {
		h.done = true
		retired = h.resGate
		h.resGate = nil
	}
	cancelRunning := h.runningCancel
	h.mu.Unlock()

	if cancelRunning != nil {
		cancelRunning()
	}
	if retired != nil {
		retired.release()
	}
	h.deschedule()
	if settledNow {
		h.markDone()
	}
	return true
}

// NextExecutionTimes predicts up to count upcoming fire times strictly after
// start, honoring the handle's delay and maxCalls bound. It returns an
// empty slice once the handle is done or cancelled.
//
// This intentionally reproduces the source quirk noted in spec §9: the
// returned count is capped by the pattern's total maxCalls, not by the
// number of calls remaining (maxCalls - callCnt). A handle three calls into
// a maxCalls=5 pattern still reports up to five predicted times, not two.
func (h *Handle[R]) NextExecutionTimes(count int, start time.Time) ([]time.Time, error) {
	if count <= 0 {
		return nil, fmt.Errorf("future: count must be positive, got %d", count)
	}
	if start.IsZero() {
		return nil, fmt.Errorf("future: start must be non-zero")
	}

	h.mu.Lock()
	done := h.done
	cancelled := h.cancelled
	createTime := h.stats.createTime
	h.mu.Unlock()

	if done || cancelled {
		return []time.Time{}, nil
	}

	effectiveCount := count
	if h.pattern.MaxCalls > 0 && h.pattern.MaxCalls < effectiveCount {
		effectiveCount = h.pattern.MaxCalls
	}

	earliestStart := createTime.Add(time.Duration(h.pattern.Delay) * time.Second)
	if start.Before(earliestStart) {
		start = earliestStart
	}

	times := cronengine.NextN(h.schedule, start, effectiveCount)
	if times == nil {
		times = []time.Time{}
	}
	return times, nil
}

var _ Future = (*Handle[int])(nil)

func (h *Handle[R]) deschedule() {
	if !h.descheduled.CompareAndSwap(false, true) {
		return
	}
	if id, ok := h.ID(); ok {
		h.engine.Remove(id)
	}
	if h.onDescheduled != nil {
		h.onDescheduled(h)
	}
}
