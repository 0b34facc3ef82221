package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/toglayer/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes the full trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []ir.Transition
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, t := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] t=%d %s %s layer=%d %s->%s",
			i+1, t.Timestamp, t.Instance, t.Kind, t.Layer, t.From, t.To)
		if t.Position != nil {
			fmt.Fprintf(&buf, " position=%d", *t.Position)
		}
		buf.WriteByte('\n')
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. It does not stop at the first failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertLayerActive:
		return assertLayerActive(result, a)
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertActivateCount:
		return assertActivateCount(result.Trace, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertLayerActive(result *Result, a Assertion) error {
	layer := ir.LayerID(*a.Layer)
	if got := result.LayerActive(layer); got != *a.Active {
		return &AssertionError{
			Type:     AssertLayerActive,
			Expected: fmt.Sprintf("layer %d active=%t", layer, *a.Active),
			Actual:   fmt.Sprintf("active=%t (active layers %v)", got, result.Layers),
			Trace:    result.Trace,
		}
	}
	return nil
}

// matches applies the optional filters of a to t.
func matches(t ir.Transition, a Assertion) bool {
	if a.Kind != "" && string(t.Kind) != a.Kind {
		return false
	}
	if a.Instance != "" && string(t.Instance) != a.Instance {
		return false
	}
	if a.Layer != nil && int(t.Layer) != *a.Layer {
		return false
	}
	if a.Position != nil && (t.Position == nil || int(*t.Position) != *a.Position) {
		return false
	}
	if a.Timestamp != nil && int64(t.Timestamp) != *a.Timestamp {
		return false
	}
	return true
}

func describe(a Assertion) string {
	parts := []string{"kind " + a.Kind}
	if a.Instance != "" {
		parts = append(parts, "instance "+a.Instance)
	}
	if a.Layer != nil {
		parts = append(parts, fmt.Sprintf("layer %d", *a.Layer))
	}
	if a.Position != nil {
		parts = append(parts, fmt.Sprintf("position %d", *a.Position))
	}
	if a.Timestamp != nil {
		parts = append(parts, fmt.Sprintf("timestamp %d", *a.Timestamp))
	}
	return strings.Join(parts, ", ")
}

func assertTraceContains(trace []ir.Transition, a Assertion) error {
	for _, t := range trace {
		if matches(t, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describe(a),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

func assertTraceCount(trace []ir.Transition, a Assertion) error {
	count := 0
	for _, t := range trace {
		if matches(t, a) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, describe(a)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that the kinds appear in order, as a
// subsequence: other transitions may appear in between.
func assertTraceOrder(trace []ir.Transition, a Assertion) error {
	next := 0
	for _, t := range trace {
		if next == len(a.Kinds) {
			break
		}
		if a.Instance != "" && string(t.Instance) != a.Instance {
			continue
		}
		if string(t.Kind) == a.Kinds[next] {
			next++
		}
	}
	if next < len(a.Kinds) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("kinds in order: %v", a.Kinds),
			Actual:   fmt.Sprintf("matched %d of %d, missing %s", next, len(a.Kinds), a.Kinds[next]),
			Trace:    trace,
		}
	}
	return nil
}

// assertActivateCount counts layer_activated transitions for the layer.
func assertActivateCount(trace []ir.Transition, a Assertion) error {
	count := 0
	for _, t := range trace {
		if t.Kind == ir.TransitionLayerActivated && int(t.Layer) == *a.Layer {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertActivateCount,
			Expected: fmt.Sprintf("layer %d activated %d times", *a.Layer, a.Count),
			Actual:   fmt.Sprintf("%d activations", count),
			Trace:    trace,
		}
	}
	return nil
}
