package testutil

import (
	"sort"
	"sync"

	"github.com/roach88/toglayer/internal/ir"
)

// VirtualScheduler collects deferred messages and releases them when the
// test advances virtual time past their due timestamp.
//
// Scheduling an (instance, slot) that is already pending replaces the
// pending message, like engine.TimerScheduler stopping the older timer.
// Implements engine.Scheduler.
type VirtualScheduler struct {
	mu      sync.Mutex
	pending []ir.Deferred
	history []ir.Deferred
}

// NewVirtualScheduler creates an empty scheduler.
func NewVirtualScheduler() *VirtualScheduler {
	return &VirtualScheduler{}
}

// Schedule records d until it is popped.
func (s *VirtualScheduler) Schedule(d ir.Deferred) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, d)
	for i, p := range s.pending {
		if p.Instance == d.Instance && p.Slot == d.Slot {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	s.pending = append(s.pending, d)
	// Stable: equal due times fire in scheduling order.
	sort.SliceStable(s.pending, func(i, j int) bool {
		return s.pending[i].Due < s.pending[j].Due
	})
}

// PopDue removes and returns the earliest message due at or before now.
// Pop one at a time: firing a message may schedule another that is also due.
func (s *VirtualScheduler) PopDue(now ir.Timestamp) (ir.Deferred, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 || s.pending[0].Due > now {
		return ir.Deferred{}, false
	}
	d := s.pending[0]
	s.pending = s.pending[1:]
	return d, true
}

// Next returns the earliest pending message without removing it.
func (s *VirtualScheduler) Next() (ir.Deferred, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return ir.Deferred{}, false
	}
	return s.pending[0], true
}

// Len returns the number of pending messages.
func (s *VirtualScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// History returns every message ever scheduled, in order.
func (s *VirtualScheduler) History() []ir.Deferred {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ir.Deferred, len(s.history))
	copy(out, s.history)
	return out
}

// CountScheduled returns how many messages were scheduled for slot.
func (s *VirtualScheduler) CountScheduled(slot ir.Slot) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, d := range s.history {
		if d.Slot == slot {
			n++
		}
	}
	return n
}
