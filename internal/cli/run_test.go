package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/toglayer/internal/engine"
	"github.com/roach88/toglayer/internal/ir"
	"github.com/roach88/toglayer/internal/store"
)

func newTestRun(format string, tokens ...string) *RunOptions {
	return &RunOptions{
		RootOptions:      &RootOptions{Format: format},
		SessionGenerator: engine.NewFixedGenerator(tokens...),
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunMissingDatabaseFlag(t *testing.T) {
	_, err := execute(t, newRunCommand(newTestRun("text")),
		testdata("keymaps", "mouse"), testdata("scripts", "mouse_session.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestRunNonExistentConfigDir(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "run.db")
	_, err := execute(t, newRunCommand(newTestRun("text")),
		"--db", dbPath, "/nonexistent/keymap", testdata("scripts", "mouse_session.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005")
}

func TestRunUnknownBindingFailsBeforeSession(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "run.db")
	script := writeScript(t, `
name: bad
flow:
  - { at: 0, press: { binding: nope } }
`)
	_, err := execute(t, newRunCommand(newTestRun("text", "never-used")),
		"--db", dbPath, testdata("keymaps", "mouse"), script)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "flow[0]")

	_, statErr := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(statErr), "database must not be created for an invalid script")
}

func TestRunJournalsScript(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "run.db")
	out, err := execute(t, newRunCommand(newTestRun("text", "run-session-1")),
		"--db", dbPath, testdata("keymaps", "mouse"), testdata("scripts", "mouse_session.yaml"))
	require.NoError(t, err)

	assert.Contains(t, out, "Session run-session-1 (mouse_session)")
	assert.Contains(t, out, "active layers: [0]")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	sess, err := st.ReadSession(ctx, "run-session-1")
	require.NoError(t, err)
	assert.Equal(t, "mouse_session", sess.Label)
	assert.NotEmpty(t, sess.ConfigHash)

	transitions, err := st.ReadTransitions(ctx, "run-session-1")
	require.NoError(t, err)
	kinds := make([]ir.TransitionKind, len(transitions))
	for i, tr := range transitions {
		kinds[i] = tr.Kind
	}
	// The move at 220 masks nothing: the tap at 250 is later, so it still
	// opens an idle window for the press at 260.
	assert.Equal(t, []ir.TransitionKind{
		ir.TransitionLayerActivated,
		ir.TransitionLayerDeactivated,
		ir.TransitionPressSuppressed,
	}, kinds)

	inputs, err := st.ReadInputs(ctx, "run-session-1")
	require.NoError(t, err)
	// 2 taps of 4 events, 2 presses, 1 movement.
	assert.Len(t, inputs, 11)
}

func TestRunWaitsForTimers(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "run.db")
	script := writeScript(t, `
name: hold
flow:
  - { at: 0, press: { binding: nav_layer } }
  - { at: 10, position: { position: 9 } }
`)
	stdout, _, err := executeSplit(t, newRunCommand(newTestRun("json", "run-hold")),
		"--db", dbPath, testdata("keymaps", "hold"), script)
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-hold", resp.Data.Session)
	assert.False(t, resp.Data.Interrupted)
	// activated, deactivate_scheduled, then the TTL timer's deactivation
	assert.Equal(t, 3, resp.Data.Transitions)
	assert.Equal(t, []int{0}, resp.Data.ActiveLayers)
	// 2 scripted inputs plus the fired deferred message
	assert.Equal(t, 3, resp.Data.Inputs)
}

func TestRunInterruptedByContext(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "run.db")
	script := writeScript(t, `
name: slow
flow:
  - { at: 0, press: { binding: nav_layer } }
  - { at: 60000, position: { position: 9 } }
`)
	cmd := newRunCommand(newTestRun("text", "run-slow"))
	buf := &syncBuffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath, testdata("keymaps", "hold"), script})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	errChan := make(chan error, 1)
	go func() { errChan <- cmd.ExecuteContext(ctx) }()

	select {
	case err := <-errChan:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("command did not respect context cancellation")
	}

	out := buf.String()
	assert.Contains(t, out, "Run interrupted.")
	assert.Contains(t, out, "active layers: [0 2]")
}
