package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/toglayer/internal/ir"
)

func intp(v int) *int       { return &v }
func int64p(v int64) *int64 { return &v }
func boolp(v bool) *bool    { return &v }

func sampleResult() *Result {
	pos := ir.Position(5)
	r := NewResult("s")
	r.Layers = []ir.LayerID{0, 2}
	r.Trace = []ir.Transition{
		{Instance: "a", Kind: ir.TransitionLayerActivated, Layer: 3, Timestamp: 10, From: ir.StateIdle, To: ir.StateActive},
		{Instance: "b", Kind: ir.TransitionLayerActivated, Layer: 2, Timestamp: 15, From: ir.StateIdle, To: ir.StateActive},
		{Instance: "a", Kind: ir.TransitionLayerDeactivated, Layer: 3, Timestamp: 20, From: ir.StateActive, To: ir.StateIdle, Position: &pos},
		{Instance: "a", Kind: ir.TransitionPressSuppressed, Layer: 3, Timestamp: 25, From: ir.StateIdle, To: ir.StateIdle},
	}
	return r
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	assertions := []Assertion{
		{Type: AssertLayerActive, Layer: intp(2), Active: boolp(true)},
		{Type: AssertLayerActive, Layer: intp(3), Active: boolp(false)},
		{Type: AssertTraceContains, Kind: "layer_deactivated", Instance: "a", Position: intp(5), Timestamp: int64p(20)},
		{Type: AssertTraceCount, Kind: "layer_activated", Count: 2},
		{Type: AssertTraceCount, Kind: "layer_activated", Instance: "b", Count: 1},
		{Type: AssertTraceOrder, Kinds: []string{"layer_activated", "press_suppressed"}},
		{Type: AssertTraceOrder, Instance: "a", Kinds: []string{"layer_activated", "layer_deactivated", "press_suppressed"}},
		{Type: AssertActivateCount, Layer: intp(3), Count: 1},
	}

	assert.Empty(t, EvaluateAssertions(sampleResult(), assertions))
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	tests := []struct {
		name string
		a    Assertion
		want string
	}{
		{"layer state", Assertion{Type: AssertLayerActive, Layer: intp(3), Active: boolp(true)}, "layer 3 active=true"},
		{"missing position", Assertion{Type: AssertTraceContains, Kind: "layer_deactivated", Position: intp(6)}, "not found in trace"},
		{"count", Assertion{Type: AssertTraceCount, Kind: "press_ignored", Count: 1}, "0 occurrences"},
		{"order", Assertion{Type: AssertTraceOrder, Kinds: []string{"press_suppressed", "layer_activated"}}, "missing layer_activated"},
		{"activations", Assertion{Type: AssertActivateCount, Layer: intp(2), Count: 2}, "1 activations"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(sampleResult(), []Assertion{tt.a})
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.want)
		})
	}
}

func TestAssertionError_ListsTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "1",
		Actual:   "0",
		Trace:    sampleResult().Trace,
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "[3] t=20 a layer_deactivated layer=3 active->idle position=5")
}

func TestResult_AddError(t *testing.T) {
	r := NewResult("s")
	assert.True(t, r.Pass)

	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
