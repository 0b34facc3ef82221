package engine

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/toglayer/internal/ir"
)

// Engine routes input events to the behavior instances of one keymap.
//
// CRITICAL: All state mutation happens in Dispatch, which must only be
// called from one goroutine at a time (the Run loop, or a test/harness
// driving it directly).
//
// Thread-safety model:
//   - Enqueue(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Dispatch()/Press(): single writer only; do not mix with Run
type Engine struct {
	cfg       *ir.KeymapConfig
	layers    LayerManager
	scheduler Scheduler
	tracker   *TimestampTracker
	clock     *Clock
	queue     *eventQueue
	journal   Journal
	session   string
	logger    *slog.Logger

	behaviors map[ir.InstanceID]*Behavior
	order     []ir.InstanceID // declaration order, fixed after New

	// inflight counts enqueued events the Run loop has not finished.
	inflight atomic.Int64

	// ctx is the context of the Dispatch call in progress; transitions
	// emitted by a Behavior are journaled with it.
	ctx context.Context
}

// Option configures an Engine.
type Option func(*Engine)

// WithScheduler sets the deferred-action scheduler. Without it the engine
// uses a TimerScheduler that enqueues fired messages on its own queue.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.scheduler = s }
}

// WithTracker shares an existing TimestampTracker, e.g. between engines
// of a split keyboard that must see each other's typing.
func WithTracker(t *TimestampTracker) Option {
	return func(e *Engine) { e.tracker = t }
}

// WithJournal records inputs and transitions to j.
func WithJournal(j Journal, session string) Option {
	return func(e *Engine) {
		e.journal = j
		e.session = session
	}
}

// WithClock sets the logical clock, e.g. to resume seq numbering.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine with one idle Behavior per configured instance.
func New(cfg *ir.KeymapConfig, layers LayerManager, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		layers:    layers,
		clock:     NewClock(),
		queue:     newEventQueue(),
		logger:    slog.Default(),
		behaviors: make(map[ir.InstanceID]*Behavior, len(cfg.Behaviors)),
		ctx:       context.Background(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.tracker == nil {
		e.tracker = NewTimestampTracker()
	}
	if e.scheduler == nil {
		e.scheduler = NewTimerScheduler(e.Enqueue)
	}

	for i := range cfg.Behaviors {
		bc := &cfg.Behaviors[i]
		e.behaviors[bc.Name] = NewBehavior(bc, e.tracker, e.layers, e.scheduler, e.record, e.logger)
		e.order = append(e.order, bc.Name)
	}

	return e
}

// Behavior returns the instance with the given name.
func (e *Engine) Behavior(name ir.InstanceID) (*Behavior, bool) {
	b, ok := e.behaviors[name]
	return b, ok
}

// Tracker returns the shared timestamp tracker.
func (e *Engine) Tracker() *TimestampTracker { return e.tracker }

// Session returns the journal session token, empty without a journal.
func (e *Engine) Session() string { return e.session }

// Scheduler returns the deferred-action scheduler in use.
func (e *Engine) Scheduler() Scheduler { return e.scheduler }

// Press is the host-facing binding operation. It always returns
// ir.Transparent, whether or not the layer was activated.
func (e *Engine) Press(ctx context.Context, instance ir.InstanceID, layer ir.LayerID, ts ir.Timestamp) (ir.BehaviorResult, error) {
	if err := e.Dispatch(ctx, ir.NewBindingEvent(instance, layer, ts)); err != nil {
		return ir.Transparent, err
	}
	return ir.Transparent, nil
}

// Dispatch handles one event. Listeners never consume events; every event
// reaches every interested instance.
func (e *Engine) Dispatch(ctx context.Context, ev ir.Event) error {
	if err := validateEvent(ev); err != nil {
		return err
	}

	e.ctx = ctx
	defer func() { e.ctx = context.Background() }()

	seq := e.clock.Next()
	if e.journal != nil {
		if err := e.journal.RecordInput(ctx, e.session, seq, ev); err != nil {
			e.logger.Error("journal input failed",
				"session", e.session,
				"seq", seq,
				"kind", string(ev.Kind),
				"error", err,
			)
		}
	}

	switch ev.Kind {
	case ir.EventBindingPressed:
		b, ok := e.behaviors[ev.Binding.Instance]
		if !ok {
			return newUnknownInstanceError(ev.Kind, ev.Binding.Instance)
		}
		b.Press(ev.Binding.Layer, ev.Binding.Timestamp)

	case ir.EventPositionChanged:
		for _, name := range e.order {
			e.behaviors[name].PositionChanged(ev.Position.Position, ev.Position.Pressed, ev.Position.Timestamp)
		}

	case ir.EventKeycodeChanged:
		kc := ev.Keycode
		if kc.Pressed && !ir.IsModifier(kc.UsagePage, kc.Keycode) {
			if !e.tracker.RecordTap(kc.Timestamp) {
				e.logger.Debug("tap masked by movement",
					"timestamp", kc.Timestamp,
					"last_move", e.tracker.LastMove(),
				)
			}
		}

	case ir.EventMovement:
		e.tracker.RecordMove(ev.Movement.Timestamp)

	case ir.EventDeferred:
		b, ok := e.behaviors[ev.Deferred.Instance]
		if !ok {
			return newUnknownInstanceError(ev.Kind, ev.Deferred.Instance)
		}
		b.Fire(*ev.Deferred)
	}

	return nil
}

// validateEvent checks that the payload matching the kind is present.
func validateEvent(ev ir.Event) error {
	var present bool
	switch ev.Kind {
	case ir.EventBindingPressed:
		present = ev.Binding != nil
	case ir.EventPositionChanged:
		present = ev.Position != nil
	case ir.EventKeycodeChanged:
		present = ev.Keycode != nil
	case ir.EventMovement:
		present = ev.Movement != nil
	case ir.EventDeferred:
		present = ev.Deferred != nil
	default:
		return &RuntimeError{
			Code:    ErrCodeUnknownEventKind,
			Message: "unknown event kind " + string(ev.Kind),
			Kind:    ev.Kind,
		}
	}
	if !present {
		return newInvalidEventError(ev.Kind)
	}
	return nil
}

// record stamps and journals a transition emitted by a Behavior.
func (e *Engine) record(t ir.Transition) {
	t.Session = e.session
	t.Seq = e.clock.Next()
	if e.journal == nil {
		return
	}
	if err := e.journal.RecordTransition(e.ctx, t); err != nil {
		e.logger.Error("journal transition failed",
			"session", e.session,
			"seq", t.Seq,
			"instance", t.Instance,
			"kind", string(t.Kind),
			"error", err,
		)
	}
}

// Enqueue submits an event for the Run loop. Safe from any goroutine.
// Returns false once the engine has stopped.
func (e *Engine) Enqueue(ev ir.Event) bool {
	e.inflight.Add(1)
	if !e.queue.Enqueue(ev) {
		e.inflight.Add(-1)
		return false
	}
	return true
}

// QueueLen returns the number of events waiting for the Run loop.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Idle reports whether every enqueued event has been dispatched and no
// wall-clock timer is armed. A deferred message is enqueued before its
// timer is released, so Idle never reports true while one is in hand.
func (e *Engine) Idle() bool {
	if e.inflight.Load() != 0 {
		return false
	}
	if p, ok := e.scheduler.(interface{ Pending() int }); ok {
		return p.Pending() == 0
	}
	return true
}

// Run dispatches queued events until ctx is cancelled or Stop is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// Dispatch errors are logged with the event context and processing
// continues; a malformed event must not stall the keyboard.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "session", e.session, "instances", len(e.order))

	for {
		ev, ok := e.queue.TryDequeue()
		if ok {
			if err := e.Dispatch(ctx, ev); err != nil {
				e.logger.Error("event dispatch failed",
					"kind", string(ev.Kind),
					"timestamp", ev.Timestamp(),
					"error", err,
				)
			}
			e.inflight.Add(-1)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.Stop()
			return ctx.Err()

		case <-e.queue.Wait():
			// A closed queue keeps signalling; stop once it is drained.
			if e.queue.Len() == 0 && e.queueClosed() {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue and cancels wall-clock timers. Run returns after
// draining the events already queued.
func (e *Engine) Stop() {
	e.queue.Close()
	if ts, ok := e.scheduler.(*TimerScheduler); ok {
		ts.Stop()
	}
}

func (e *Engine) queueClosed() bool {
	e.queue.mu.Lock()
	defer e.queue.mu.Unlock()
	return e.queue.closed
}
