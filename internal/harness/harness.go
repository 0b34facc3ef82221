package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/toglayer/internal/compiler"
	"github.com/roach88/toglayer/internal/engine"
	"github.com/roach88/toglayer/internal/ir"
	"github.com/roach88/toglayer/internal/keymap"
	"github.com/roach88/toglayer/internal/store"
	"github.com/roach88/toglayer/internal/testutil"
)

// Harness drives one engine on virtual time.
type Harness struct {
	cfg     *ir.KeymapConfig
	store   *store.Store
	engine  *engine.Engine
	sched   *testutil.VirtualScheduler
	clock   *testutil.VirtualClock
	layers  *keymap.Stack
	session string
	logger  *slog.Logger
}

// New creates a harness journaling to st under session. The caller owns st.
func New(ctx context.Context, cfg *ir.KeymapConfig, st *store.Store, session string) (*Harness, error) {
	hash, err := ir.ConfigHash(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash config: %w", err)
	}
	if err := st.BeginSession(ctx, store.Session{Token: session, ConfigHash: hash}); err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &Harness{
		cfg:     cfg,
		store:   st,
		sched:   testutil.NewVirtualScheduler(),
		clock:   testutil.NewVirtualClock(),
		layers:  keymap.NewStack(cfg.Layers, logger),
		session: session,
		logger:  logger,
	}
	h.engine = engine.New(cfg, h.layers,
		engine.WithScheduler(h.sched),
		engine.WithJournal(st, session),
		engine.WithLogger(logger),
	)
	return h, nil
}

// Engine returns the engine under test.
func (h *Harness) Engine() *engine.Engine { return h.engine }

// Layers returns the layer stack the engine toggles.
func (h *Harness) Layers() *keymap.Stack { return h.layers }

// Now returns the current virtual time.
func (h *Harness) Now() ir.Timestamp { return h.clock.Now() }

// AdvanceTo moves virtual time to ts, firing every deferred action due at
// or before it in due order.
func (h *Harness) AdvanceTo(ctx context.Context, ts ir.Timestamp) error {
	for {
		d, ok := h.sched.PopDue(ts)
		if !ok {
			break
		}
		h.clock.AdvanceTo(d.Due)
		if err := h.engine.Dispatch(ctx, ir.NewDeferredEvent(d)); err != nil {
			return fmt.Errorf("deferred %s/%s: %w", d.Instance, d.Slot, err)
		}
	}
	h.clock.AdvanceTo(ts)
	return nil
}

// Dispatch advances to the event's timestamp and dispatches it.
func (h *Harness) Dispatch(ctx context.Context, ev ir.Event) error {
	if err := h.AdvanceTo(ctx, ev.Timestamp()); err != nil {
		return err
	}
	return h.engine.Dispatch(ctx, ev)
}

// Step executes one flow step.
func (h *Harness) Step(ctx context.Context, step Step) error {
	events, err := step.Events(h.cfg)
	if err != nil {
		return err
	}
	if err := h.AdvanceTo(ctx, ir.Timestamp(step.At)); err != nil {
		return err
	}
	for _, ev := range events {
		if err := h.engine.Dispatch(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// Trace returns the journaled transitions of the session.
func (h *Harness) Trace(ctx context.Context) ([]ir.Transition, error) {
	return h.store.ReadTransitions(ctx, h.session)
}

// Run executes a scenario and returns the result. Each scenario runs in
// a fresh in-memory database for isolation.
func Run(scenario *Scenario) (*Result, error) {
	cfg, err := compiler.LoadDir(scenario.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return RunConfig(scenario, cfg)
}

// RunConfig executes a scenario against an already compiled config.
func RunConfig(scenario *Scenario, cfg *ir.KeymapConfig) (*Result, error) {
	st, err := store.OpenMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	session := testutil.NewFixedSessionGenerator(scenario.Session).Generate()

	h, err := New(ctx, cfg, st, session)
	if err != nil {
		return nil, err
	}

	for i, step := range scenario.Flow {
		if err := h.Step(ctx, step); err != nil {
			return nil, fmt.Errorf("flow[%d]: %w", i, err)
		}
	}

	trace, err := h.Trace(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	result := NewResult(session)
	result.Trace = trace
	result.Layers = h.layers.Active()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}
