package future

import (
	"sync/atomic"
	"time"

	"github.com/cronfuture/cronfuture/cronengine"
)

// Timer is a handle to a single pending deferred call, returned by
// TimerService.AfterFunc. Stop cancels the call if it has not fired yet.
type Timer interface {
	Stop() bool
}

// TimerService is the collaborator behind spec §4.3's delayed-start
// coordinator: "after delay seconds have elapsed since createTime, register
// the handle with the cron engine." Abstracted behind an interface, exactly
// like cronengine.Clock, so tests can drive it with a cronengine.FakeClock
// instead of waiting on a wall clock.
type TimerService interface {
	AfterFunc(deadline time.Time, fn func()) Timer
}

// ClockTimerService is the default TimerService, built on a cronengine.Clock
// so production code runs on real time and tests run on cronengine.FakeClock.
type ClockTimerService struct {
	clock cronengine.Clock
}

// NewClockTimerService wraps clock as a TimerService. A nil clock uses
// cronengine.RealClock{}.
func NewClockTimerService(clock cronengine.Clock) *ClockTimerService {
	if clock == nil {
		clock = cronengine.RealClock{}
	}
	return &ClockTimerService{clock: clock}
}

func (s *ClockTimerService) AfterFunc(deadline time.Time, fn func()) Timer {
	d := deadline.Sub(s.clock.Now())
	t := s.clock.NewTimer(d)
	stopCh := make(chan struct{})
	go func() {
		select {
		case <-t.C():
			fn()
		case <-stopCh:
			t.Stop()
		}
	}()
	return &clockTimer{stopCh: stopCh}
}

type clockTimer struct {
	stopCh  chan struct{}
	stopped atomic.Bool
}

func (t *clockTimer) Stop() bool {
	if t.stopped.CompareAndSwap(false, true) {
		close(t.stopCh)
		return true
	}
	return false
}
