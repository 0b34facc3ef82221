package cli

import (
	"context"
	"fmt"
	"math"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/roach88/toglayer/internal/harness"
	"github.com/roach88/toglayer/internal/ir"
	"github.com/roach88/toglayer/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string
}

// ReplayResult reports whether a journaled session reproduces.
type ReplayResult struct {
	Session        string      `json:"session"`
	Deterministic  bool        `json:"deterministic"`
	Inputs         int         `json:"inputs"`
	Journaled      int         `json:"journaled"`
	Replayed       int         `json:"replayed"`
	ConfigMismatch bool        `json:"config_mismatch,omitempty"`
	Divergence     *Divergence `json:"divergence,omitempty"`
}

// Divergence is the first transition where the replay differs.
type Divergence struct {
	Index     int            `json:"index"`
	Journaled map[string]any `json:"journaled,omitempty"`
	Replayed  map[string]any `json:"replayed,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <config-dir>",
		Short: "Re-run a journaled session on virtual time",
		Long: `Re-run the journaled inputs of a session on virtual time and compare
the resulting transitions with the journal.

Deferred actions are not replayed from the journal; the virtual scheduler
regenerates them from the replayed presses and position events.

Exit codes:
  0 - Replay matches the journal
  1 - Replay diverges
  2 - Command error (database or session not found, bad config)

Example:
  toglayer replay --db ./toglayer.db --session 0192... ./keymap`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session token to replay (required)")
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func runReplay(opts *ReplayOptions, configDir string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := f.Logger()

	res, err := loadConfigOrFail(configDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay needs a valid config", err)
	}

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := replaySession(ctx, st, res, opts.Session)
	if err != nil {
		return err
	}
	if result.ConfigMismatch {
		logger.Warn("config differs from the journaled session", "session", opts.Session, "config_hash", res.Hash)
	}

	if f.JSON() {
		status := "ok"
		if !result.Deterministic {
			status = "error"
		}
		if err := f.Respond(CLIResponse{Status: status, Data: result}); err != nil {
			return err
		}
	} else {
		printReplay(f, result)
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, "replay diverged from journal")
	}
	return nil
}

// replaySession feeds the journaled inputs of session to a fresh engine on
// virtual time and compares transition snapshots.
func replaySession(ctx context.Context, st *store.Store, res *LoadResult, session string) (*ReplayResult, error) {
	sess, err := st.ReadSession(ctx, session)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "unknown session", err)
	}
	inputs, err := st.ReadInputs(ctx, session)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read inputs", err)
	}
	journaled, err := st.ReadTransitions(ctx, session)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read transitions", err)
	}

	mem, err := store.OpenMemory()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open replay store", err)
	}
	defer mem.Close()

	h, err := harness.New(ctx, res.Config, mem, session)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to start replay", err)
	}

	replayedInputs := 0
	for _, in := range inputs {
		if in.Event.Kind == ir.EventDeferred {
			continue
		}
		if err := h.Dispatch(ctx, in.Event); err != nil {
			return nil, WrapExitError(ExitFailure, fmt.Sprintf("replay failed at seq %d", in.Seq), err)
		}
		replayedInputs++
	}
	// The live run waited for every timer; so does the replay.
	if err := h.AdvanceTo(ctx, math.MaxInt64); err != nil {
		return nil, WrapExitError(ExitFailure, "replay failed flushing timers", err)
	}

	replayed, err := h.Trace(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read replay trace", err)
	}

	result := &ReplayResult{
		Session:        session,
		Inputs:         replayedInputs,
		Journaled:      len(journaled),
		Replayed:       len(replayed),
		ConfigMismatch: sess.ConfigHash != res.Hash,
	}
	result.Divergence = firstDivergence(journaled, replayed)
	result.Deterministic = result.Divergence == nil
	return result, nil
}

// firstDivergence compares snapshots pairwise. A trace that runs past the
// other diverges at the first unmatched index.
func firstDivergence(journaled, replayed []ir.Transition) *Divergence {
	n := max(len(journaled), len(replayed))
	for i := 0; i < n; i++ {
		var a, b map[string]any
		if i < len(journaled) {
			a = journaled[i].Snapshot()
		}
		if i < len(replayed) {
			b = replayed[i].Snapshot()
		}
		if !reflect.DeepEqual(a, b) {
			return &Divergence{Index: i, Journaled: a, Replayed: b}
		}
	}
	return nil
}

func printReplay(f *OutputFormatter, r *ReplayResult) {
	w := f.Writer
	if r.ConfigMismatch {
		fmt.Fprintln(w, "! config hash differs from the journaled session")
	}
	if r.Deterministic {
		fmt.Fprintf(w, "✓ Session %s replays: %d input(s), %d transition(s)\n", r.Session, r.Inputs, r.Replayed)
		return
	}
	fmt.Fprintf(w, "✗ Session %s diverges at transition %d\n", r.Session, r.Divergence.Index)
	fmt.Fprintf(w, "  journaled: %v\n", r.Divergence.Journaled)
	fmt.Fprintf(w, "  replayed:  %v\n", r.Divergence.Replayed)
}
