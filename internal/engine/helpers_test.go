package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/toglayer/internal/ir"
	"github.com/roach88/toglayer/internal/testutil"
)

const keyA uint32 = 0x04

// memJournal is an in-memory Journal.
type memJournal struct {
	mu          sync.Mutex
	inputs      []ir.Event
	inputSeqs   []int64
	transitions []ir.Transition
}

func (j *memJournal) RecordInput(_ context.Context, _ string, seq int64, ev ir.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.inputs = append(j.inputs, ev)
	j.inputSeqs = append(j.inputSeqs, seq)
	return nil
}

func (j *memJournal) RecordTransition(_ context.Context, t ir.Transition) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.transitions = append(j.transitions, t)
	return nil
}

func (j *memJournal) kinds() []ir.TransitionKind {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]ir.TransitionKind, len(j.transitions))
	for i, t := range j.transitions {
		out[i] = t.Kind
	}
	return out
}

func (j *memJournal) count(kind ir.TransitionKind) int {
	n := 0
	for _, k := range j.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

// rig drives an Engine on virtual time.
type rig struct {
	t       *testing.T
	eng     *Engine
	layers  *testutil.RecordingLayers
	sched   *testutil.VirtualScheduler
	journal *memJournal
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRig(t *testing.T, behaviors ...ir.BehaviorConfig) *rig {
	t.Helper()
	cfg := &ir.KeymapConfig{Layers: 8, Behaviors: behaviors}
	r := &rig{
		t:       t,
		layers:  testutil.NewRecordingLayers(),
		sched:   testutil.NewVirtualScheduler(),
		journal: &memJournal{},
	}
	r.eng = New(cfg, r.layers,
		WithScheduler(r.sched),
		WithJournal(r.journal, "test-session"),
		WithLogger(discardLogger()),
	)
	return r
}

// advance fires every deferred action due at or before ts.
func (r *rig) advance(ts ir.Timestamp) {
	r.t.Helper()
	for {
		d, ok := r.sched.PopDue(ts)
		if !ok {
			return
		}
		require.NoError(r.t, r.eng.Dispatch(context.Background(), ir.NewDeferredEvent(d)))
	}
}

func (r *rig) dispatch(ev ir.Event) {
	r.t.Helper()
	r.advance(ev.Timestamp())
	require.NoError(r.t, r.eng.Dispatch(context.Background(), ev))
}

func (r *rig) press(instance ir.InstanceID, layer ir.LayerID, ts ir.Timestamp) {
	r.t.Helper()
	r.advance(ts)
	res, err := r.eng.Press(context.Background(), instance, layer, ts)
	require.NoError(r.t, err)
	require.Equal(r.t, ir.Transparent, res)
}

// tap presses a key position that produces an ordinary keycode.
func (r *rig) tap(position ir.Position, ts ir.Timestamp) {
	r.t.Helper()
	r.dispatch(ir.NewPositionEvent(position, true, ts))
	r.dispatch(ir.NewKeycodeEvent(ir.UsagePageKeyboard, keyA, true, ts))
	r.dispatch(ir.NewPositionEvent(position, false, ts))
	r.dispatch(ir.NewKeycodeEvent(ir.UsagePageKeyboard, keyA, false, ts))
}

func (r *rig) state(instance ir.InstanceID) ir.State {
	r.t.Helper()
	b, ok := r.eng.Behavior(instance)
	require.True(r.t, ok)
	return b.State()
}
