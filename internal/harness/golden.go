package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/toglayer/internal/ir"
)

// SnapshotJSON renders a result's trace as the canonical JSON stored in
// golden files. Seq numbers are left out; the array order carries them.
func SnapshotJSON(scenarioName string, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, t := range result.Trace {
		trace[i] = t.Snapshot()
	}
	return ir.MarshalCanonical(map[string]any{
		"scenario_name": scenarioName,
		"session":       result.Session,
		"trace":         trace,
	})
}

// RunWithGolden executes a scenario and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := SnapshotJSON(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
