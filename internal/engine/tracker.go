package engine

import (
	"math"
	"sync"

	"github.com/roach88/toglayer/internal/ir"
)

// TimestampTracker records the last ordinary tap and the last movement.
//
// One tracker is shared by every behavior instance of an Engine: quick-tap
// suppression must consider typing on any key. Movement masks tap updates:
// RecordTap only commits timestamps strictly after the last movement.
//
// The mutex keeps the pair consistent if a host calls in from more than
// one goroutine; under the single-writer Engine it is uncontended.
type TimestampTracker struct {
	mu         sync.Mutex
	lastTapped ir.Timestamp
	lastMove   ir.Timestamp
}

// NewTimestampTracker returns a tracker with no tap recorded (time 0) and
// no movement recorded (the minimum timestamp).
func NewTimestampTracker() *TimestampTracker {
	return &TimestampTracker{
		lastTapped: 0,
		lastMove:   math.MinInt64,
	}
}

// RecordTap commits ts as the last tap if it is after the last movement.
// Returns whether the tap was committed.
func (t *TimestampTracker) RecordTap(ts ir.Timestamp) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ts <= t.lastMove {
		return false
	}
	t.lastTapped = ts
	return true
}

// RecordMove commits ts as the last movement.
func (t *TimestampTracker) RecordMove(ts ir.Timestamp) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastMove = ts
}

// LastTapped returns the last committed tap timestamp.
func (t *TimestampTracker) LastTapped() ir.Timestamp {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastTapped
}

// LastMove returns the last movement timestamp.
func (t *TimestampTracker) LastMove() ir.Timestamp {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastMove
}
