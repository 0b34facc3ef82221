package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidate(format string, verbose bool) *RootOptions {
	return &RootOptions{Format: format, Verbose: verbose}
}

func TestValidateValidConfig(t *testing.T) {
	out, err := execute(t, NewValidateCommand(newValidate("text", false)), testdata("keymaps", "mouse"))
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Config valid: 8 layer(s), 1 behavior(s), 1 binding(s)")
	assert.Contains(t, out, "mouse: policy=deactivation idle=150ms activation=immediate")
	assert.Contains(t, out, "mouse_layer -> mouse layer 3")
}

func TestValidateValidConfigJSON(t *testing.T) {
	stdout, _, err := executeSplit(t, NewValidateCommand(newValidate("json", true)), testdata("keymaps", "deferred"))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 4, resp.Data.Layers)
	assert.Len(t, resp.Data.Hash, 64)
	require.Len(t, resp.Data.Behaviors, 1)
	require.NotNil(t, resp.Data.Behaviors[0].ActivationDelayMs)
	assert.Equal(t, uint32(50), *resp.Data.Behaviors[0].ActivationDelayMs)
}

func TestValidatePolicyNames(t *testing.T) {
	tests := []struct {
		dir  string
		want string
	}{
		{"mouse", "policy=deactivation"},
		{"hold", "policy=hold-trigger"},
		{"exclusion", "policy=exclusion-only"},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			out, err := execute(t, NewValidateCommand(newValidate("text", false)), testdata("keymaps", tt.dir))
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, err := execute(t, NewValidateCommand(newValidate("text", false)), "/nonexistent/keymap")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E005")
}

func TestValidateEmptyDirectory(t *testing.T) {
	_, err := execute(t, NewValidateCommand(newValidate("text", false)), t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E003")
}

func TestValidateCollectsAllErrors(t *testing.T) {
	dir := writeConfig(t, `
package keyboard

layers: 4
behavior: mouse: {
	deactivation_positions: [5, 5]
}
binding: a: {behavior: "missing", layer: 1}
binding: b: {behavior: "mouse", layer: 9}
`)
	out, err := execute(t, NewValidateCommand(newValidate("text", false)), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E201: behavior.mouse.deactivation_positions")
	assert.Contains(t, out, "E204: binding.a.behavior")
	assert.Contains(t, out, "E205: binding.b.layer")
	assert.Contains(t, err.Error(), "3 error(s)")
}

func TestValidateCompileErrorJSON(t *testing.T) {
	dir := writeConfig(t, `
package keyboard

behavior: mouse: {
	time_to_live: 300
}
`)
	stdout, _, err := executeSplit(t, NewValidateCommand(newValidate("json", false)), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E208", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "time_to_live")
}

func TestValidateNegativeTTL(t *testing.T) {
	dir := writeConfig(t, `
package keyboard

behavior: nav: {
	hold_trigger_positions: [1]
	time_to_live_ms: -1
}
`)
	out, err := execute(t, NewValidateCommand(newValidate("text", false)), dir)
	require.Error(t, err)
	assert.Contains(t, out, "E203")
}

func TestLoadConfigHashStable(t *testing.T) {
	a, errs := LoadConfig(testdata("keymaps", "mouse"))
	require.Empty(t, errs)
	b, errs := LoadConfig(testdata("keymaps", "mouse"))
	require.Empty(t, errs)

	assert.Equal(t, a.Hash, b.Hash)
	assert.Equal(t, 1, a.FileCount)

	c, errs := LoadConfig(testdata("keymaps", "hold"))
	require.Empty(t, errs)
	assert.NotEqual(t, a.Hash, c.Hash)
}
