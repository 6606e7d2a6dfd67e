package future

import (
	"context"
	"fmt"
	"time"

	"github.com/cronfuture/cronfuture/cronengine"
)

// Run implements cronengine.Job by delegating to RunWithContext with a
// background context, matching the Run/RunWithContext pairing every job
// wrapper in cronengine uses.
func (h *Handle[R]) Run() { h.RunWithContext(context.Background()) }

// RunWithContext implements cronengine.JobWithContext. It is the cron
// engine's entry point into a single tick, and runs the Enter/Execute/Exit
// lifecycle from spec §4.3-4.4.
func (h *Handle[R]) RunWithContext(ctx context.Context) {
	tickCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ok := h.enter(h.now(), cancel)
	if !ok {
		return
	}

	res, err := h.execute(tickCtx)
	h.exit(g, res, err)
}

// now returns the current time used for stats bookkeeping, drawn from the
// same cronengine.Clock (real or fake) driving the registry's cron engine,
// so a Handle scheduled against a cronengine.FakeClock reports idle and
// execution durations measured on that fake clock rather than the wall
// clock the engine isn't actually using.
func (h *Handle[R]) now() time.Time {
	return h.clock.Now()
}

// enter implements spec §4.3's Enter phase: under the mutex, refuse to
// start a new tick if the handle is already done or cancelled, if a tick is
// already running (overlap suppression, not queuing), or if maxCalls has
// already been reached. On success it increments callCnt, marks the tick
// as running in stats, and returns the gate this tick will release on exit.
func (h *Handle[R]) enter(now time.Time, cancelTick context.CancelFunc) (*gate, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.done || h.cancelled {
		return nil, false
	}
	if h.stats.running {
		h.logger.Info("tick skipped: previous invocation still running", "pattern", h.pattern.Raw)
		return nil, false
	}
	if h.pattern.MaxCalls > 0 && h.callCnt >= h.pattern.MaxCalls {
		return nil, false
	}

	h.callCnt++
	h.stats.onStart(now)
	h.runningCancel = cancelTick
	return h.resGate, true
}

// execute implements spec §4.3's Execute phase: invoke the task outside the
// mutex, recovering any panic into an error rather than letting it escape
// and take the cron engine's run loop down with it. This mirrors
// cronengine's own recoverJob wrapper, adapted to capture the panic as a
// result instead of only logging it.
func (h *Handle[R]) execute(ctx context.Context) (res R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
			h.logger.Error(err, "task panic recovered", "pattern", h.pattern.Raw)
		}
	}()
	res, err = h.task(ctx)
	if err != nil {
		h.logger.Error(err, "task returned an error", "pattern", h.pattern.Raw)
	}
	return res, err
}

// exit implements spec §4.3's Exit phase: under the mutex, record the
// outcome, decide whether this was the terminal tick (maxCalls reached or
// cancelled), and either retire the handle or open a fresh gate for the
// next tick. Outside the mutex, in order: release the gate observed at
// Enter, release the retired gate if this was the terminal tick (a no-op if
// it's the same gate, since release is idempotent), notify listeners if a
// new completed tick exists for them to see, and — if the handle is now
// done — deschedule it and only then close doneCh, so any observer woken
// by DoneChan always sees a handle already removed from its registry.
func (h *Handle[R]) exit(enterGate *gate, res R, err error) {
	h.mu.Lock()
	now := h.now()
	h.stats.onEnd(now)
	h.lastRes = res
	h.lastErr = err
	h.runningCancel = nil

	notify := false
	if h.stats.executionCount > h.lastListenerExecCnt {
		h.lastListenerExecCnt = h.stats.executionCount
		notify = true
	}

	var retired *gate
	terminal := h.cancelled || (h.pattern.MaxCalls > 0 && h.callCnt >= h.pattern.MaxCalls)
	if terminal {
		h.done = true
		retired = h.resGate
		h.resGate = nil
	} else {
		h.resGate = newGate()
	}
	h.mu.Unlock()

	enterGate.release()
	if retired != nil {
		retired.release()
	}
	if notify {
		h.notifyListeners(res, err)
	}
	if terminal {
		h.deschedule()
		h.markDone()
	}
}

// start implements spec §4.3's delayed-start coordinator: a handle with a
// positive delay is registered with the cron engine only after delay
// seconds have elapsed since createTime; a handle with no delay registers
// immediately.
func (h *Handle[R]) start() {
	if h.pattern.Delay <= 0 {
		h.register()
		return
	}
	deadline := h.stats.CreateTime().Add(time.Duration(h.pattern.Delay) * time.Second)
	h.timerService.AfterFunc(deadline, func() {
		h.mu.Lock()
		skip := h.done || h.cancelled
		h.mu.Unlock()
		if skip {
			return
		}
		h.register()
	})
}

func (h *Handle[R]) register() {
	id, err := h.engine.AddJob(h.pattern.Cron, h)
	if err != nil {
		h.logger.Error(err, "internal invariant violation: cron engine rejected a pre-validated pattern", "pattern", h.pattern.Raw)
		return
	}
	h.mu.Lock()
	h.id = id
	h.hasID = true
	h.mu.Unlock()
}

var _ cronengine.JobWithContext = (*Handle[int])(nil)
