package ir

// EventKind distinguishes input events delivered to the engine.
type EventKind string

const (
	EventBindingPressed  EventKind = "binding_pressed"
	EventPositionChanged EventKind = "position_changed"
	EventKeycodeChanged  EventKind = "keycode_changed"
	EventMovement        EventKind = "movement"
	EventDeferred        EventKind = "deferred"
)

// BindingPressed is a press of a toggle-layer binding.
type BindingPressed struct {
	Instance  InstanceID `json:"instance"`
	Layer     LayerID    `json:"layer"`
	Timestamp Timestamp  `json:"timestamp"`
}

// PositionChanged is a physical key position press or release.
type PositionChanged struct {
	Position  Position  `json:"position"`
	Pressed   bool      `json:"pressed"`
	Timestamp Timestamp `json:"timestamp"`
}

// KeycodeChanged is a keycode press or release.
type KeycodeChanged struct {
	UsagePage uint16    `json:"usage_page"`
	Keycode   uint32    `json:"keycode"`
	Pressed   bool      `json:"pressed"`
	Timestamp Timestamp `json:"timestamp"`
}

// Movement is movement-class activity (pointer motion) that masks
// ordinary-tap updates at or before its timestamp.
type Movement struct {
	Timestamp Timestamp `json:"timestamp"`
}

// Deferred is a scheduled action handed back to its instance when it fires.
//
// Token identifies the scheduling; a fired message whose token no longer
// matches the instance's pending token for the slot was cancelled.
type Deferred struct {
	Instance InstanceID `json:"instance"`
	Slot     Slot       `json:"slot"`
	Token    uint64     `json:"token"`
	At       Timestamp  `json:"at"`
	Due      Timestamp  `json:"due"`
}

// Event is one input to the engine. Exactly one payload matches Kind.
type Event struct {
	Kind     EventKind        `json:"kind"`
	Binding  *BindingPressed  `json:"binding,omitempty"`
	Position *PositionChanged `json:"position,omitempty"`
	Keycode  *KeycodeChanged  `json:"keycode,omitempty"`
	Movement *Movement        `json:"movement,omitempty"`
	Deferred *Deferred        `json:"deferred,omitempty"`
}

// Timestamp returns the logical time of the event.
func (e Event) Timestamp() Timestamp {
	switch {
	case e.Binding != nil:
		return e.Binding.Timestamp
	case e.Position != nil:
		return e.Position.Timestamp
	case e.Keycode != nil:
		return e.Keycode.Timestamp
	case e.Movement != nil:
		return e.Movement.Timestamp
	case e.Deferred != nil:
		return e.Deferred.Due
	default:
		return 0
	}
}

// NewBindingEvent wraps a binding press.
func NewBindingEvent(instance InstanceID, layer LayerID, ts Timestamp) Event {
	return Event{Kind: EventBindingPressed, Binding: &BindingPressed{Instance: instance, Layer: layer, Timestamp: ts}}
}

// NewPositionEvent wraps a position change.
func NewPositionEvent(pos Position, pressed bool, ts Timestamp) Event {
	return Event{Kind: EventPositionChanged, Position: &PositionChanged{Position: pos, Pressed: pressed, Timestamp: ts}}
}

// NewKeycodeEvent wraps a keycode change.
func NewKeycodeEvent(usagePage uint16, keycode uint32, pressed bool, ts Timestamp) Event {
	return Event{Kind: EventKeycodeChanged, Keycode: &KeycodeChanged{UsagePage: usagePage, Keycode: keycode, Pressed: pressed, Timestamp: ts}}
}

// NewMovementEvent wraps movement activity.
func NewMovementEvent(ts Timestamp) Event {
	return Event{Kind: EventMovement, Movement: &Movement{Timestamp: ts}}
}

// NewDeferredEvent wraps a fired deferred action.
func NewDeferredEvent(d Deferred) Event {
	return Event{Kind: EventDeferred, Deferred: &d}
}
