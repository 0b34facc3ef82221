package ir

import "fmt"

// LayerID identifies a keymap layer. Layer 0 is the default layer.
type LayerID uint8

// Position identifies a physical key position on the matrix.
type Position uint32

// Timestamp is an event time in milliseconds.
type Timestamp int64

// InstanceID names a configured behavior instance (the CUE label).
type InstanceID string

// Slot selects one of the two deferred actions an instance may have pending.
type Slot int

const (
	// SlotActivate is the deferred activation slot.
	SlotActivate Slot = iota + 1
	// SlotDeactivate is the deferred deactivation slot.
	SlotDeactivate
)

// String returns the slot name used in logs and the journal.
func (s Slot) String() string {
	switch s {
	case SlotActivate:
		return "activate"
	case SlotDeactivate:
		return "deactivate"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

// ParseSlot is the inverse of Slot.String.
func ParseSlot(s string) (Slot, error) {
	switch s {
	case "activate":
		return SlotActivate, nil
	case "deactivate":
		return SlotDeactivate, nil
	default:
		return 0, fmt.Errorf("unknown slot %q", s)
	}
}

// State is the per-instance state of the toggle-layer state machine.
type State int

const (
	// StateIdle: not active, nothing pending.
	StateIdle State = iota
	// StatePendingActivate: activation scheduled but not applied yet.
	StatePendingActivate
	// StateActive: the layer is live.
	StateActive
	// StatePendingDeactivate: deactivation scheduled; the layer is still live.
	StatePendingDeactivate
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePendingActivate:
		return "pending_activate"
	case StateActive:
		return "active"
	case StatePendingDeactivate:
		return "pending_deactivate"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// LayerLive reports whether the instance's layer is applied in this state.
func (s State) LayerLive() bool {
	return s == StateActive || s == StatePendingDeactivate
}

// BehaviorResult is returned to the host from a binding press.
type BehaviorResult int

const (
	// Transparent means the binding produces no key output of its own.
	Transparent BehaviorResult = iota
	// Opaque is never returned by the toggle-layer behavior; it exists so
	// hosts can distinguish results from other behaviors.
	Opaque
)

// HID usage page and modifier range used to classify keycode events.
const (
	UsagePageKeyboard uint16 = 0x07
	KeycodeLeftCtrl   uint32 = 0xE0
	KeycodeRightGUI   uint32 = 0xE7
)

// IsModifier reports whether (usagePage, keycode) is a keyboard modifier.
func IsModifier(usagePage uint16, keycode uint32) bool {
	return usagePage == UsagePageKeyboard && keycode >= KeycodeLeftCtrl && keycode <= KeycodeRightGUI
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, error) {
	for _, st := range []State{StateIdle, StatePendingActivate, StateActive, StatePendingDeactivate} {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown state %q", s)
}
