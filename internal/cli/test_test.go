package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpts(format string) *RootOptions {
	return &RootOptions{Format: format}
}

// absTestdata is testdata as an absolute path, for scenarios written
// outside the repository.
func absTestdata(t *testing.T, parts ...string) string {
	t.Helper()
	p, err := filepath.Abs(testdata(parts...))
	require.NoError(t, err)
	return p
}

// copyScenario copies a repository scenario into dir under the same name,
// pointing its config at the repository keymaps.
func copyScenario(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(testdata("scenarios", name+".yaml"))
	require.NoError(t, err)
	body := strings.ReplaceAll(string(data), "config: ../keymaps/", "config: "+absTestdata(t, "keymaps")+"/")
	path := filepath.Join(dir, name+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, NewTestCommand(newTestOpts("text")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := execute(t, NewTestCommand(newTestOpts("text")), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandNonExistentConfigOverride(t *testing.T) {
	_, err := execute(t, NewTestCommand(newTestOpts("text")), "--config", "/nonexistent/keymap", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := execute(t, NewTestCommand(newTestOpts("text")), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandRepositoryScenarios(t *testing.T) {
	out, err := execute(t, NewTestCommand(newTestOpts("text")), testdata("scenarios"))
	require.NoError(t, err, out)

	assert.Contains(t, out, "✓ reference_scenario")
	assert.Contains(t, out, "✓ hold_trigger_ttl")
	assert.Contains(t, out, "5 passed, 0 failed, 5 total")
}

func TestTestCommandJSON(t *testing.T) {
	stdout, _, err := executeSplit(t, NewTestCommand(newTestOpts("json")), "--filter", "*_only", testdata("scenarios"))
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "exclusion_only", resp.Data.Scenarios[0].Name)
	assert.True(t, resp.Data.Scenarios[0].Pass)
}

func TestTestCommandUpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "reference_scenario")
	mouse := testdata("keymaps", "mouse")

	out, err := execute(t, NewTestCommand(newTestOpts("text")), "--config", mouse, "--update", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ reference_scenario (golden updated)")

	written, err := os.ReadFile(filepath.Join(dir, "golden", "reference_scenario.golden"))
	require.NoError(t, err)
	committed, err := os.ReadFile(testdata("scenarios", "golden", "reference_scenario.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(committed), string(written))

	_, err = execute(t, NewTestCommand(newTestOpts("text")), "--config", mouse, dir)
	require.NoError(t, err)
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "reference_scenario")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "reference_scenario.golden"), []byte(`{"trace":[]}`), 0o644))

	out, err := execute(t, NewTestCommand(newTestOpts("text")), "--config", testdata("keymaps", "mouse"), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ reference_scenario")
	assert.Contains(t, out, "does not match golden file")
	assert.Contains(t, out, "0 passed, 1 failed, 1 total")
}

func TestTestCommandFailingAssertion(t *testing.T) {
	dir := t.TempDir()
	body := `
name: wrong_expectation
description: expects the layer off although the press activates it
config: ` + absTestdata(t, "keymaps", "mouse") + `
flow:
  - { at: 200, press: { binding: mouse_layer } }
assertions:
  - { type: layer_active, layer: 3, active: false }
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong_expectation.yaml"), []byte(body), 0o644))

	out, err := execute(t, NewTestCommand(newTestOpts("text")), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_expectation")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\nflo: []\n"), 0o644))

	out, err := execute(t, NewTestCommand(newTestOpts("text")), dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, out, "failed to load scenario")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b_hold.yaml", "a_mouse.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "c.yaml"), []byte("x"), 0o644))

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a_mouse.yml"), filepath.Join(dir, "b_hold.yaml")}, files)

	files, err = findScenarioFiles(dir, "b_*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b_hold.yaml")}, files)

	_, err = findScenarioFiles(dir, "[")
	assert.Error(t, err)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "hold.golden"),
		goldenFilePath(filepath.Join("scenarios", "hold.yaml")))
}
