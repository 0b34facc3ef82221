package engine

import (
	"context"

	"github.com/roach88/toglayer/internal/ir"
)

// LayerManager flips layers on the host keymap.
// Implemented by keymap.Stack (production) and testutil.RecordingLayers.
type LayerManager interface {
	Activate(layer ir.LayerID)
	Deactivate(layer ir.LayerID)
	IsActive(layer ir.LayerID) bool
}

// Scheduler delivers a deferred message back to the engine once, after
// d.Due-d.At milliseconds. Scheduling the same (instance, slot) again
// supersedes the earlier message; the token check in Behavior makes a
// late delivery of the superseded message harmless.
// Implemented by TimerScheduler (wall clock) and testutil.VirtualScheduler.
type Scheduler interface {
	Schedule(d ir.Deferred)
}

// Journal persists inputs and transitions of a session.
// Implemented by store.Store.
type Journal interface {
	RecordInput(ctx context.Context, session string, seq int64, ev ir.Event) error
	RecordTransition(ctx context.Context, t ir.Transition) error
}
