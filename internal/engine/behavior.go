package engine

import (
	"log/slog"

	"github.com/roach88/toglayer/internal/ir"
	"github.com/roach88/toglayer/internal/policy"
)

// Behavior is the toggle-layer state machine of one configured instance.
//
// States and transitions:
//
//	Idle --press--> Active                    (immediate activation)
//	Idle --press--> PendingActivate           (deferred activation)
//	PendingActivate --activate fires--> Active
//	Active --deactivation position--> Idle
//	Active --hold trigger--> PendingDeactivate
//	PendingDeactivate --deactivation position--> Idle (pending deactivate cancelled)
//	PendingDeactivate --deactivate fires--> Idle
//
// A press in any state but Idle, or inside the quick-tap window, changes
// nothing except the remembered layer id.
//
// Behavior is not safe for concurrent use; the Engine serializes all calls.
type Behavior struct {
	cfg     *ir.BehaviorConfig
	policy  policy.TriggerPolicy
	tracker *TimestampTracker
	layers  LayerManager
	sched   Scheduler
	emit    func(ir.Transition)
	logger  *slog.Logger

	toggleLayer ir.LayerID
	state       ir.State

	// pending holds the outstanding token per slot; zero means none.
	pending   map[ir.Slot]uint64
	nextToken uint64
}

// NewBehavior creates an idle instance. emit receives every transition;
// the Engine stamps session and seq before journaling it.
func NewBehavior(
	cfg *ir.BehaviorConfig,
	tracker *TimestampTracker,
	layers LayerManager,
	sched Scheduler,
	emit func(ir.Transition),
	logger *slog.Logger,
) *Behavior {
	if emit == nil {
		emit = func(ir.Transition) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Behavior{
		cfg:     cfg,
		policy:  policy.New(cfg),
		tracker: tracker,
		layers:  layers,
		sched:   sched,
		emit:    emit,
		logger:  logger,
		state:   ir.StateIdle,
		pending: make(map[ir.Slot]uint64, 2),
	}
}

// Name returns the instance identifier.
func (b *Behavior) Name() ir.InstanceID { return b.cfg.Name }

// State returns the current state.
func (b *Behavior) State() ir.State { return b.state }

// ToggleLayer returns the layer id of the most recent press.
func (b *Behavior) ToggleLayer() ir.LayerID { return b.toggleLayer }

// Pending reports whether a deferred action is outstanding for slot.
func (b *Behavior) Pending(slot ir.Slot) bool { return b.pending[slot] != 0 }

// Press handles a binding press. The result is always ir.Transparent.
func (b *Behavior) Press(layer ir.LayerID, ts ir.Timestamp) ir.BehaviorResult {
	b.toggleLayer = layer

	if b.state != ir.StateIdle {
		b.transition(ir.TransitionPressIgnored, b.state, ts, nil)
		return ir.Transparent
	}

	if b.policy.QuickTapActive(b.tracker.LastTapped(), ts) {
		b.transition(ir.TransitionPressSuppressed, ir.StateIdle, ts, nil)
		return ir.Transparent
	}

	if !b.cfg.DeferActivation {
		b.layers.Activate(layer)
		b.transition(ir.TransitionLayerActivated, ir.StateActive, ts, nil)
		return ir.Transparent
	}

	b.schedule(ir.SlotActivate, ts, b.cfg.ActivationDelayMs)
	b.transition(ir.TransitionActivateScheduled, ir.StatePendingActivate, ts, nil)
	return ir.Transparent
}

// PositionChanged handles a key position event. Releases and events while
// the layer is not live are ignored.
func (b *Behavior) PositionChanged(position ir.Position, pressed bool, ts ir.Timestamp) {
	if !pressed || !b.state.LayerLive() {
		return
	}

	switch b.policy.Evaluate(position) {
	case policy.DeactivateNow:
		b.layers.Deactivate(b.toggleLayer)
		b.pending[ir.SlotDeactivate] = 0
		b.transition(ir.TransitionLayerDeactivated, ir.StateIdle, ts, &position)

	case policy.DeactivateAfterTTL:
		if b.pending[ir.SlotDeactivate] != 0 {
			b.transition(ir.TransitionTriggerIgnored, b.state, ts, &position)
			return
		}
		b.schedule(ir.SlotDeactivate, ts, b.cfg.TimeToLiveMs)
		b.transition(ir.TransitionDeactivateScheduled, ir.StatePendingDeactivate, ts, &position)
	}
}

// Fire handles a deferred action coming back from the scheduler.
func (b *Behavior) Fire(d ir.Deferred) {
	if d.Token == 0 || b.pending[d.Slot] != d.Token {
		b.logger.Debug("stale deferred action",
			"instance", b.cfg.Name,
			"slot", d.Slot.String(),
			"token", d.Token,
		)
		b.transition(ir.TransitionDeferredStale, b.state, d.Due, nil)
		return
	}
	b.pending[d.Slot] = 0

	switch d.Slot {
	case ir.SlotActivate:
		// A committed activation is always applied; any deactivation
		// logic runs afterwards on its own schedule.
		b.layers.Activate(b.toggleLayer)
		b.transition(ir.TransitionLayerActivated, ir.StateActive, d.Due, nil)

	case ir.SlotDeactivate:
		if !b.layers.IsActive(b.toggleLayer) {
			b.transition(ir.TransitionDeactivateSkipped, ir.StateIdle, d.Due, nil)
			return
		}
		b.layers.Deactivate(b.toggleLayer)
		b.transition(ir.TransitionLayerDeactivated, ir.StateIdle, d.Due, nil)
	}
}

// schedule hands a deferred message to the scheduler. Scheduling a slot
// again replaces its pending token.
func (b *Behavior) schedule(slot ir.Slot, at ir.Timestamp, delayMs uint32) {
	b.nextToken++
	token := b.nextToken
	b.pending[slot] = token
	b.sched.Schedule(ir.Deferred{
		Instance: b.cfg.Name,
		Slot:     slot,
		Token:    token,
		At:       at,
		Due:      at + ir.Timestamp(delayMs),
	})
}

func (b *Behavior) transition(kind ir.TransitionKind, to ir.State, ts ir.Timestamp, position *ir.Position) {
	from := b.state
	b.state = to

	b.logger.Debug("behavior transition",
		"instance", b.cfg.Name,
		"kind", string(kind),
		"layer", b.toggleLayer,
		"timestamp", ts,
		"from", from.String(),
		"to", to.String(),
	)

	t := ir.Transition{
		Instance:  b.cfg.Name,
		Kind:      kind,
		Layer:     b.toggleLayer,
		Timestamp: ts,
		From:      from,
		To:        to,
	}
	if position != nil {
		p := *position
		t.Position = &p
	}
	b.emit(t)
}
