package testutil

import (
	"sync"

	"github.com/roach88/toglayer/internal/ir"
)

// Layer operations recorded by RecordingLayers.
const (
	OpActivate   = "activate"
	OpDeactivate = "deactivate"
)

// LayerCall is one recorded mutation.
type LayerCall struct {
	Op    string
	Layer ir.LayerID
}

// RecordingLayers is an in-memory layer manager that records every
// activate and deactivate call. IsActive is answered but not recorded.
// Implements engine.LayerManager.
type RecordingLayers struct {
	mu     sync.Mutex
	active map[ir.LayerID]bool
	calls  []LayerCall
}

// NewRecordingLayers creates a manager with every layer inactive.
func NewRecordingLayers() *RecordingLayers {
	return &RecordingLayers{active: make(map[ir.LayerID]bool)}
}

// Activate marks layer active.
func (l *RecordingLayers) Activate(layer ir.LayerID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, LayerCall{Op: OpActivate, Layer: layer})
	l.active[layer] = true
}

// Deactivate marks layer inactive.
func (l *RecordingLayers) Deactivate(layer ir.LayerID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, LayerCall{Op: OpDeactivate, Layer: layer})
	l.active[layer] = false
}

// IsActive reports whether layer is active.
func (l *RecordingLayers) IsActive(layer ir.LayerID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active[layer]
}

// ForceInactive clears a layer without recording a call, simulating
// another behavior turning it off.
func (l *RecordingLayers) ForceInactive(layer ir.LayerID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active[layer] = false
}

// Calls returns the recorded mutations in order.
func (l *RecordingLayers) Calls() []LayerCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LayerCall, len(l.calls))
	copy(out, l.calls)
	return out
}

// Count returns how many times op was called for layer.
func (l *RecordingLayers) Count(op string, layer ir.LayerID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c.Op == op && c.Layer == layer {
			n++
		}
	}
	return n
}
