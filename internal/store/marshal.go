package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/toglayer/internal/ir"
)

// marshalEvent converts an event payload to canonical JSON TEXT.
func marshalEvent(ev ir.Event) (string, error) {
	var m map[string]any
	switch ev.Kind {
	case ir.EventBindingPressed:
		m = map[string]any{
			"instance":  string(ev.Binding.Instance),
			"layer":     int64(ev.Binding.Layer),
			"timestamp": int64(ev.Binding.Timestamp),
		}
	case ir.EventPositionChanged:
		m = map[string]any{
			"position":  int64(ev.Position.Position),
			"pressed":   ev.Position.Pressed,
			"timestamp": int64(ev.Position.Timestamp),
		}
	case ir.EventKeycodeChanged:
		m = map[string]any{
			"usage_page": int64(ev.Keycode.UsagePage),
			"keycode":    int64(ev.Keycode.Keycode),
			"pressed":    ev.Keycode.Pressed,
			"timestamp":  int64(ev.Keycode.Timestamp),
		}
	case ir.EventMovement:
		m = map[string]any{
			"timestamp": int64(ev.Movement.Timestamp),
		}
	case ir.EventDeferred:
		m = map[string]any{
			"instance": string(ev.Deferred.Instance),
			"slot":     ev.Deferred.Slot.String(),
			"token":    int64(ev.Deferred.Token),
			"at":       int64(ev.Deferred.At),
			"due":      int64(ev.Deferred.Due),
		}
	default:
		return "", fmt.Errorf("marshal event: unknown kind %q", ev.Kind)
	}

	data, err := ir.MarshalCanonical(m)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return string(data), nil
}

// eventPayload is the union of every payload field.
type eventPayload struct {
	Instance  string `json:"instance"`
	Layer     int64  `json:"layer"`
	Timestamp int64  `json:"timestamp"`
	Position  int64  `json:"position"`
	Pressed   bool   `json:"pressed"`
	UsagePage int64  `json:"usage_page"`
	Keycode   int64  `json:"keycode"`
	Slot      string `json:"slot"`
	Token     int64  `json:"token"`
	At        int64  `json:"at"`
	Due       int64  `json:"due"`
}

// unmarshalEvent rebuilds an event from its kind and stored payload.
func unmarshalEvent(kind string, payload string) (ir.Event, error) {
	var p eventPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return ir.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}

	switch ir.EventKind(kind) {
	case ir.EventBindingPressed:
		return ir.NewBindingEvent(ir.InstanceID(p.Instance), ir.LayerID(p.Layer), ir.Timestamp(p.Timestamp)), nil
	case ir.EventPositionChanged:
		return ir.NewPositionEvent(ir.Position(p.Position), p.Pressed, ir.Timestamp(p.Timestamp)), nil
	case ir.EventKeycodeChanged:
		return ir.NewKeycodeEvent(uint16(p.UsagePage), uint32(p.Keycode), p.Pressed, ir.Timestamp(p.Timestamp)), nil
	case ir.EventMovement:
		return ir.NewMovementEvent(ir.Timestamp(p.Timestamp)), nil
	case ir.EventDeferred:
		slot, err := ir.ParseSlot(p.Slot)
		if err != nil {
			return ir.Event{}, fmt.Errorf("unmarshal event: %w", err)
		}
		return ir.NewDeferredEvent(ir.Deferred{
			Instance: ir.InstanceID(p.Instance),
			Slot:     slot,
			Token:    uint64(p.Token),
			At:       ir.Timestamp(p.At),
			Due:      ir.Timestamp(p.Due),
		}), nil
	default:
		return ir.Event{}, fmt.Errorf("unmarshal event: unknown kind %q", kind)
	}
}
