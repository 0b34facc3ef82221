package ir

// TransitionKind names what an instance did in response to an event.
type TransitionKind string

const (
	TransitionActivateScheduled   TransitionKind = "activate_scheduled"
	TransitionLayerActivated      TransitionKind = "layer_activated"
	TransitionPressSuppressed     TransitionKind = "press_suppressed"
	TransitionPressIgnored        TransitionKind = "press_ignored"
	TransitionLayerDeactivated    TransitionKind = "layer_deactivated"
	TransitionDeactivateScheduled TransitionKind = "deactivate_scheduled"
	TransitionTriggerIgnored      TransitionKind = "trigger_ignored"
	TransitionDeactivateSkipped   TransitionKind = "deactivate_skipped"
	TransitionDeferredStale       TransitionKind = "deferred_stale"
)

// Transition is one journaled decision of a behavior instance.
type Transition struct {
	Session   string         `json:"session"`
	Seq       int64          `json:"seq"`
	Instance  InstanceID     `json:"instance"`
	Kind      TransitionKind `json:"kind"`
	Layer     LayerID        `json:"layer"`
	Timestamp Timestamp      `json:"timestamp"`
	From      State          `json:"-"`
	To        State          `json:"-"`
	// Position is set for transitions caused by a position event.
	Position *Position `json:"position,omitempty"`
}

// Snapshot returns the canonical map form used for golden traces and
// journal comparison. Session and seq are left out so traces compare
// across runs.
func (t Transition) Snapshot() map[string]any {
	m := map[string]any{
		"instance":  string(t.Instance),
		"kind":      string(t.Kind),
		"layer":     int64(t.Layer),
		"timestamp": int64(t.Timestamp),
		"from":      t.From.String(),
		"to":        t.To.String(),
	}
	if t.Position != nil {
		m["position"] = int64(*t.Position)
	}
	return m
}
