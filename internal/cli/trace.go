package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/toglayer/internal/ir"
	"github.com/roach88/toglayer/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	Instance string // optional - filter to one behavior instance
	Kind     string // optional - filter transitions to one kind
}

// TraceEntry is one journal row in the timeline: an input event or a
// transition, in seq order.
type TraceEntry struct {
	Seq       int64          `json:"seq"`
	Type      string         `json:"type"` // "input" or "transition"
	Kind      string         `json:"kind"`
	Timestamp ir.Timestamp   `json:"timestamp"`
	Instance  ir.InstanceID  `json:"instance,omitempty"`
	Layer     *ir.LayerID    `json:"layer,omitempty"`
	From      string         `json:"from,omitempty"`
	To        string         `json:"to,omitempty"`
	Position  *ir.Position   `json:"position,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session  store.Session `json:"session"`
	Timeline []TraceEntry  `json:"timeline"`
	Stats    TraceStats    `json:"stats"`
}

// TraceStats holds summary statistics for the session.
type TraceStats struct {
	Inputs      int            `json:"inputs"`
	Transitions int            `json:"transitions"`
	ByKind      map[string]int `json:"by_kind"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the journal of a session",
		Long: `Show the journaled inputs and transitions of a session in seq order.

Without --session, lists the sessions recorded in the database.

Examples:
  toglayer trace --db ./toglayer.db
  toglayer trace --db ./toglayer.db --session 0192...
  toglayer trace --db ./toglayer.db --session 0192... --instance mouse --format json
  toglayer trace --db ./toglayer.db --session 0192... --kind layer_deactivated`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session token")
	cmd.Flags().StringVar(&opts.Instance, "instance", "", "only show this behavior instance")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only show transitions of this kind")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := openExistingStore(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Session == "" {
		return listSessions(ctx, f, st)
	}

	result, err := buildTrace(ctx, st, opts.Session, ir.InstanceID(opts.Instance), ir.TransitionKind(opts.Kind))
	if err != nil {
		return err
	}

	if f.JSON() {
		return f.Success(result)
	}
	printTrace(f, result)
	return nil
}

// openExistingStore opens a journal that must already exist; Open would
// otherwise create an empty one.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", path))
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func listSessions(ctx context.Context, f *OutputFormatter, st *store.Store) error {
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}
	if f.JSON() {
		return f.Success(sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(f.Writer, "No sessions recorded.")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(f.Writer, "%s  %s  config=%s\n", s.Token, s.Label, shortHash(s.ConfigHash))
	}
	return nil
}

// buildTrace merges inputs and transitions of session into one timeline.
// A kind filter drops the inputs and keeps only matching transitions.
func buildTrace(ctx context.Context, st *store.Store, session string, instance ir.InstanceID, kind ir.TransitionKind) (*TraceResult, error) {
	sess, err := st.ReadSession(ctx, session)
	if errors.Is(err, store.ErrSessionNotFound) {
		return nil, WrapExitError(ExitCommandError, "unknown session", err)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read session", err)
	}

	inputs, err := st.ReadInputs(ctx, session)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read inputs", err)
	}
	var filters []store.Predicate
	if instance != "" {
		filters = append(filters, store.ByInstance(instance))
	}
	if kind != "" {
		filters = append(filters, store.ByKind(kind))
	}
	query := store.TransitionQuery{Session: session}
	if len(filters) > 0 {
		query.Filter = store.And{Predicates: filters}
	}
	transitions, err := st.QueryTransitions(ctx, query)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read transitions", err)
	}

	result := &TraceResult{
		Session:  sess,
		Timeline: make([]TraceEntry, 0, len(inputs)+len(transitions)),
		Stats:    TraceStats{ByKind: map[string]int{}},
	}

	for _, in := range inputs {
		entry := inputEntry(in)
		if kind != "" || (instance != "" && entry.Instance != instance) {
			continue
		}
		result.Timeline = append(result.Timeline, entry)
		result.Stats.Inputs++
	}
	for _, t := range transitions {
		layer := t.Layer
		result.Timeline = append(result.Timeline, TraceEntry{
			Seq:       t.Seq,
			Type:      "transition",
			Kind:      string(t.Kind),
			Timestamp: t.Timestamp,
			Instance:  t.Instance,
			Layer:     &layer,
			From:      t.From.String(),
			To:        t.To.String(),
			Position:  t.Position,
		})
		result.Stats.Transitions++
		result.Stats.ByKind[string(t.Kind)]++
	}

	sort.Slice(result.Timeline, func(i, j int) bool {
		return result.Timeline[i].Seq < result.Timeline[j].Seq
	})
	return result, nil
}

// inputEntry flattens a journaled event. Binding and deferred inputs
// carry their instance; the others reach every instance.
func inputEntry(in store.Input) TraceEntry {
	ev := in.Event
	e := TraceEntry{
		Seq:       in.Seq,
		Type:      "input",
		Kind:      string(ev.Kind),
		Timestamp: ev.Timestamp(),
	}
	switch {
	case ev.Binding != nil:
		layer := ev.Binding.Layer
		e.Instance = ev.Binding.Instance
		e.Layer = &layer
	case ev.Position != nil:
		pos := ev.Position.Position
		e.Position = &pos
		e.Detail = map[string]any{"pressed": ev.Position.Pressed}
	case ev.Keycode != nil:
		e.Detail = map[string]any{
			"usage_page": ev.Keycode.UsagePage,
			"keycode":    ev.Keycode.Keycode,
			"pressed":    ev.Keycode.Pressed,
		}
	case ev.Deferred != nil:
		e.Instance = ev.Deferred.Instance
		e.Detail = map[string]any{
			"slot":  ev.Deferred.Slot.String(),
			"token": ev.Deferred.Token,
			"at":    ev.Deferred.At,
		}
	}
	return e
}

func printTrace(f *OutputFormatter, r *TraceResult) {
	w := f.Writer
	fmt.Fprintf(w, "Session %s", r.Session.Token)
	if r.Session.Label != "" {
		fmt.Fprintf(w, " (%s)", r.Session.Label)
	}
	fmt.Fprintf(w, "\n  config %s, engine %s, journal %s\n\n",
		shortHash(r.Session.ConfigHash), r.Session.EngineVersion, r.Session.JournalVersion)

	for _, e := range r.Timeline {
		switch e.Type {
		case "input":
			fmt.Fprintf(w, "%4d  t=%-6d  > %s%s\n", e.Seq, e.Timestamp, e.Kind, inputSuffix(e))
		default:
			fmt.Fprintf(w, "%4d  t=%-6d    %s %s layer=%d %s -> %s", e.Seq, e.Timestamp, e.Instance, e.Kind, *e.Layer, e.From, e.To)
			if e.Position != nil {
				fmt.Fprintf(w, " position=%d", *e.Position)
			}
			fmt.Fprintln(w)
		}
	}

	fmt.Fprintf(w, "\n%d input(s), %d transition(s)\n", r.Stats.Inputs, r.Stats.Transitions)
	kinds := make([]string, 0, len(r.Stats.ByKind))
	for k := range r.Stats.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-22s %d\n", k, r.Stats.ByKind[k])
	}
}

func inputSuffix(e TraceEntry) string {
	switch {
	case e.Instance != "" && e.Layer != nil:
		return fmt.Sprintf(" %s layer=%d", e.Instance, *e.Layer)
	case e.Instance != "":
		return fmt.Sprintf(" %s %s", e.Instance, e.Detail["slot"])
	case e.Position != nil:
		return fmt.Sprintf(" position=%d pressed=%v", *e.Position, e.Detail["pressed"])
	case e.Detail != nil:
		return fmt.Sprintf(" page=0x%02x code=0x%02x pressed=%v", e.Detail["usage_page"], e.Detail["keycode"], e.Detail["pressed"])
	}
	return ""
}

func shortHash(h string) string {
	if len(h) > 16 {
		return h[:16]
	}
	return h
}
