package future

import "fmt"

// Listener receives a Snapshot each time a Handle completes a tick. See
// spec §4.6 for the full delivery contract: exactly one delivery per
// completed tick, late-subscribing listeners get a single catch-up
// delivery of the most recent outcome, and listener panics are caught and
// logged without affecting sibling listeners or the ticking goroutine.
type Listener[R any] func(Snapshot[R])

// ListenerToken identifies a single AddListener registration for removal
// via RemoveListener. Listener values themselves aren't comparable in
// general (closures), so removal goes through this opaque token instead.
type ListenerToken struct{}

// AddListener registers l to be called after each future completed tick.
// If the handle has already completed at least one tick that no previously
// registered listener has seen yet, l is given a single catch-up delivery
// of that outcome: made before AddListener returns if the handle's
// SyncNotify flag is set, otherwise queued to the worker pool.
func (h *Handle[R]) AddListener(l Listener[R]) *ListenerToken {
	return h.addListener(l, false)
}

// AddPriorityListener is AddListener, except that whenever the listener is
// dispatched to the worker pool it goes on the systemPriority lane: it runs immediately
// rather than waiting for a free slot behind a backlog of ordinary
// listeners, and (under ConcurrentNotify) never shares a single serial
// dispatch task with ordinary listeners. Intended for status reporting
// that must never be starved by slower consumers of the same handle.
func (h *Handle[R]) AddPriorityListener(l Listener[R]) *ListenerToken {
	return h.addListener(l, true)
}

func (h *Handle[R]) addListener(l Listener[R], priority bool) *ListenerToken {
	token := &ListenerToken{}
	entry := &listenerEntry[R]{token: token, fn: l, priority: priority}

	h.mu.Lock()
	h.listeners = append(h.listeners, entry)
	res, err := h.lastRes, h.lastErr
	cnt := h.stats.executionCount
	catchUp := cnt > 0 && cnt != h.lastListenerExecCnt
	if catchUp {
		h.lastListenerExecCnt = cnt
	}
	h.mu.Unlock()

	if catchUp {
		snap := newSnapshot(h, res, err)
		h.deliverOne(entry, snap)
	}
	return token
}

// RemoveListener unregisters the listeners identified by tokens. Tokens
// not currently registered are ignored.
func (h *Handle[R]) RemoveListener(tokens ...*ListenerToken) {
	if len(tokens) == 0 {
		return
	}
	remove := make(map[*ListenerToken]bool, len(tokens))
	for _, t := range tokens {
		remove[t] = true
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.listeners[:0]
	for _, e := range h.listeners {
		if !remove[e.token] {
			kept = append(kept, e)
		}
	}
	h.listeners = kept
}

// notifyListeners fans a completed tick's outcome out to every registered
// listener. Dispatch honors the handle's ConcurrentNotify flag: concurrent
// dispatch runs every listener on its own worker pool task; serial dispatch
// runs them one after another on a single worker pool task, in registration
// order.
func (h *Handle[R]) notifyListeners(res R, err error) {
	h.mu.Lock()
	entries := make([]*listenerEntry[R], len(h.listeners))
	copy(entries, h.listeners)
	h.mu.Unlock()

	if len(entries) == 0 {
		return
	}
	snap := newSnapshot(h, res, err)

	if h.concurNotify.Load() {
		for _, e := range entries {
			entry := e
			h.pool.RunLocalSafe(func() { h.safeDeliver(entry, snap) }, entry.priority)
		}
		return
	}

	var batch []*listenerEntry[R]
	for _, e := range entries {
		if e.priority {
			entry := e
			h.pool.RunLocalSafe(func() { h.safeDeliver(entry, snap) }, true)
			continue
		}
		batch = append(batch, e)
	}
	if len(batch) == 0 {
		return
	}
	h.pool.RunLocalSafe(func() {
		for _, e := range batch {
			h.safeDeliver(e, snap)
		}
	}, false)
}

// deliverOne delivers snap to a single listener, either synchronously on
// the calling goroutine or queued to the worker pool, per SyncNotify.
func (h *Handle[R]) deliverOne(e *listenerEntry[R], snap Snapshot[R]) {
	if h.syncNotify.Load() {
		h.safeDeliver(e, snap)
		return
	}
	h.pool.RunLocalSafe(func() { h.safeDeliver(e, snap) }, e.priority)
}

// safeDeliver invokes a listener, recovering and logging any panic so it
// cannot take down the worker pool or the ticking goroutine, and cannot
// prevent sibling listeners in the same dispatch from running.
func (h *Handle[R]) safeDeliver(e *listenerEntry[R], snap Snapshot[R]) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error(fmt.Errorf("%v", r), "listener panicked", "pattern", h.pattern.Raw)
		}
	}()
	e.fn(snap)
}
