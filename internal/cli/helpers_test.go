package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/toglayer/internal/compiler"
	"github.com/roach88/toglayer/internal/harness"
	"github.com/roach88/toglayer/internal/store"
)

// testdata returns a path under the repository's testdata directory.
func testdata(parts ...string) string {
	return filepath.Join(append([]string{"..", "..", "testdata"}, parts...)...)
}

// syncBuffer is a bytes.Buffer safe for the engine goroutine's logging.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// execute runs cmd with args and returns everything it wrote.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &syncBuffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// executeSplit runs cmd keeping stdout and stderr apart, for JSON output.
func executeSplit(t *testing.T, cmd *cobra.Command, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	out, errOut := &syncBuffer{}, &syncBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

// writeConfig writes a single-file CUE config dir and returns it.
func writeConfig(t *testing.T, src string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "keymap")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keymap.cue"), []byte(src), 0o644))
	return dir
}

// journalScenario runs a scenario against a file database on virtual time
// and returns the database path. The session is the scenario's token.
func journalScenario(t *testing.T, name string) (dbPath string, scenario *harness.Scenario) {
	t.Helper()
	scenario, err := harness.LoadScenario(testdata("scenarios", name+".yaml"))
	require.NoError(t, err)
	cfg, err := compiler.LoadDir(scenario.Config)
	require.NoError(t, err)

	dbPath = filepath.Join(t.TempDir(), "journal.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	h, err := harness.New(ctx, cfg, st, scenario.Session)
	require.NoError(t, err)
	for _, step := range scenario.Flow {
		require.NoError(t, h.Step(ctx, step))
	}
	return dbPath, scenario
}
