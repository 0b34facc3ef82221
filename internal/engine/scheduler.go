package engine

import (
	"sync"
	"time"

	"github.com/roach88/toglayer/internal/ir"
)

type slotKey struct {
	instance ir.InstanceID
	slot     ir.Slot
}

// TimerScheduler delivers deferred messages on the wall clock by
// enqueuing them on the engine's queue when their delay elapses.
//
// Rescheduling the same (instance, slot) stops the earlier timer. Thread
// safety: Schedule and Stop may be called from any goroutine.
type TimerScheduler struct {
	mu      sync.Mutex
	deliver func(ir.Event) bool
	timers  map[slotKey]*time.Timer
	stopped bool
}

// NewTimerScheduler creates a scheduler that hands fired messages to deliver.
func NewTimerScheduler(deliver func(ir.Event) bool) *TimerScheduler {
	return &TimerScheduler{
		deliver: deliver,
		timers:  make(map[slotKey]*time.Timer),
	}
}

// Schedule arms a timer for d.Due-d.At milliseconds.
func (s *TimerScheduler) Schedule(d ir.Deferred) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	key := slotKey{instance: d.Instance, slot: d.Slot}
	if old, ok := s.timers[key]; ok {
		old.Stop()
	}

	delay := time.Duration(d.Due-d.At) * time.Millisecond
	if delay < 0 {
		delay = 0
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		// Deliver before releasing the slot so Pending covers the handoff.
		s.deliver(ir.NewDeferredEvent(d))
		s.mu.Lock()
		if s.timers[key] == timer {
			delete(s.timers, key)
		}
		s.mu.Unlock()
	})
	s.timers[key] = timer
}

// Pending returns the number of armed timers.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every armed timer. Later Schedule calls are ignored.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
}
