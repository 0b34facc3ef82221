// Package keymap holds the layer stack that behaviors toggle.
package keymap

import (
	"log/slog"
	"math/bits"
	"sync"

	"github.com/roach88/toglayer/internal/ir"
)

// MaxLayers is the width of the layer bitmask.
const MaxLayers = 32

// Stack is a bitmask of active layers. Layer 0 is the default layer and
// is always active. Stack implements engine.LayerManager and is safe for
// concurrent use.
type Stack struct {
	mu     sync.RWMutex
	layers int
	state  uint32
	logger *slog.Logger
}

// NewStack creates a stack of n layers with only the default layer on.
// n is clamped to 1..MaxLayers.
func NewStack(n int, logger *slog.Logger) *Stack {
	if n < 1 {
		n = 1
	}
	if n > MaxLayers {
		n = MaxLayers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stack{layers: n, state: 1, logger: logger}
}

// Layers returns the number of layers in the stack.
func (s *Stack) Layers() int { return s.layers }

// Activate turns layer on. Activating an active layer is a no-op.
func (s *Stack) Activate(layer ir.LayerID) {
	if !s.inRange(layer, "activate") {
		return
	}
	s.mu.Lock()
	s.state |= 1 << layer
	s.mu.Unlock()
}

// Deactivate turns layer off. The default layer cannot be turned off.
func (s *Stack) Deactivate(layer ir.LayerID) {
	if !s.inRange(layer, "deactivate") {
		return
	}
	if layer == 0 {
		s.logger.Warn("refusing to deactivate default layer")
		return
	}
	s.mu.Lock()
	s.state &^= 1 << layer
	s.mu.Unlock()
}

// IsActive reports whether layer is on.
func (s *Stack) IsActive(layer ir.LayerID) bool {
	if int(layer) >= s.layers {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state&(1<<layer) != 0
}

// Highest returns the topmost active layer.
func (s *Stack) Highest() ir.LayerID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ir.LayerID(31 - bits.LeadingZeros32(s.state))
}

// Active returns the active layers in ascending order.
func (s *Stack) Active() []ir.LayerID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ir.LayerID, 0, bits.OnesCount32(s.state))
	for i := 0; i < s.layers; i++ {
		if s.state&(1<<i) != 0 {
			out = append(out, ir.LayerID(i))
		}
	}
	return out
}

// Mask returns the raw layer bitmask.
func (s *Stack) Mask() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Reset turns every layer but the default off.
func (s *Stack) Reset() {
	s.mu.Lock()
	s.state = 1
	s.mu.Unlock()
}

func (s *Stack) inRange(layer ir.LayerID, op string) bool {
	if int(layer) < s.layers {
		return true
	}
	s.logger.Warn("layer out of range",
		"op", op,
		"layer", layer,
		"layers", s.layers,
	)
	return false
}
