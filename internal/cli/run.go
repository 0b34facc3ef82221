package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/toglayer/internal/engine"
	"github.com/roach88/toglayer/internal/harness"
	"github.com/roach88/toglayer/internal/ir"
	"github.com/roach88/toglayer/internal/keymap"
	"github.com/roach88/toglayer/internal/store"
)

// drainPoll is how often run checks whether the engine has gone idle
// after the last scripted event.
const drainPoll = 2 * time.Millisecond

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Session  string

	// SessionGenerator overrides the session token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	SessionGenerator engine.SessionGenerator
}

// RunResult is the summary printed after a run.
type RunResult struct {
	Session      string `json:"session"`
	Script       string `json:"script"`
	Inputs       int    `json:"inputs"`
	Transitions  int    `json:"transitions"`
	ActiveLayers []int  `json:"active_layers"`
	Interrupted  bool   `json:"interrupted,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}
	return newRunCommand(opts)
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <config-dir> <script.yaml>",
		Short: "Play an event script through the engine in real time",
		Long: `Play a YAML event script through the toggle-layer engine on the wall clock.

Each step is delivered at its "at" offset in milliseconds after start.
Deferred activations and deactivations fire on real timers. Every input
and transition is journaled to the SQLite database under a new session,
which can be inspected with "trace" and checked with "replay".

Example:
  toglayer run --db ./toglayer.db ./keymap ./scripts/session.yaml`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session token (default: new UUIDv7)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runScript(opts *RunOptions, configDir, scriptPath string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := f.Logger()

	res, err := loadConfigOrFail(configDir)
	if err != nil {
		return err
	}
	cfg := res.Config
	logger.Info("config loaded", "dir", configDir, "behaviors", len(cfg.Behaviors), "hash", res.Hash)

	script, err := harness.LoadScript(scriptPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load script", err)
	}
	steps, err := resolveSteps(script, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid script", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()
	logger.Info("database ready", "path", opts.Database)

	session := opts.Session
	if session == "" {
		gen := opts.SessionGenerator
		if gen == nil {
			gen = engine.UUIDv7Generator{}
		}
		session = gen.Generate()
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	if err := st.BeginSession(ctx, store.Session{Token: session, ConfigHash: res.Hash, Label: script.Name}); err != nil {
		return WrapExitError(ExitCommandError, "failed to begin session", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	layers := keymap.NewStack(cfg.Layers, logger)
	eng := engine.New(cfg, layers,
		engine.WithJournal(st, session),
		engine.WithLogger(logger),
	)

	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	interrupted := play(ctx, eng, steps, logger) || !drain(ctx, eng)
	eng.Stop()
	if err := <-done; err != nil && !interrupted {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	result := RunResult{
		Session:      session,
		Script:       script.Name,
		ActiveLayers: layerInts(layers.Active()),
		Interrupted:  interrupted,
	}
	// The run context may be cancelled; the summary reads use a fresh one.
	summaryCtx := context.Background()
	inputs, err := st.ReadInputs(summaryCtx, session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	transitions, err := st.ReadTransitions(summaryCtx, session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	result.Inputs = len(inputs)
	result.Transitions = len(transitions)

	logger.Info("run finished", "session", session, "inputs", result.Inputs, "transitions", result.Transitions)
	return outputRunResult(f, result)
}

// layerInts widens layer ids so JSON renders a list, not base64.
func layerInts(layers []ir.LayerID) []int {
	out := make([]int, len(layers))
	for i, l := range layers {
		out[i] = int(l)
	}
	return out
}

// timedEvents are the events of one script step and its offset.
type timedEvents struct {
	at     time.Duration
	events []ir.Event
}

// resolveSteps expands every step up front so a bad binding fails before
// the session starts.
func resolveSteps(script *harness.Script, cfg *ir.KeymapConfig) ([]timedEvents, error) {
	out := make([]timedEvents, 0, len(script.Flow))
	for i, step := range script.Flow {
		events, err := step.Events(cfg)
		if err != nil {
			return nil, fmt.Errorf("flow[%d]: %w", i, err)
		}
		out = append(out, timedEvents{
			at:     time.Duration(step.At) * time.Millisecond,
			events: events,
		})
	}
	return out, nil
}

// play enqueues each step at its offset from now. Returns true when ctx
// ended the script early.
func play(ctx context.Context, eng *engine.Engine, steps []timedEvents, logger *slog.Logger) bool {
	start := time.Now()
	for _, step := range steps {
		if wait := time.Until(start.Add(step.at)); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return true
			case <-timer.C:
			}
		}
		for _, ev := range step.events {
			if !eng.Enqueue(ev) {
				logger.Warn("engine stopped before script finished", "at", step.at)
				return true
			}
		}
	}
	return false
}

// drain waits for queued events and armed timers to finish. Returns false
// when ctx ended first.
func drain(ctx context.Context, eng *engine.Engine) bool {
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()
	for !eng.Idle() {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return true
}

func outputRunResult(f *OutputFormatter, result RunResult) error {
	if f.JSON() {
		return f.Success(result)
	}

	w := f.Writer
	if result.Interrupted {
		fmt.Fprintln(w, "Run interrupted.")
	}
	fmt.Fprintf(w, "Session %s (%s)\n", result.Session, result.Script)
	fmt.Fprintf(w, "  inputs:        %d\n", result.Inputs)
	fmt.Fprintf(w, "  transitions:   %d\n", result.Transitions)
	fmt.Fprintf(w, "  active layers: %v\n", result.ActiveLayers)
	return nil
}
