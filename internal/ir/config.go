package ir

// MaxPositions is the capacity of every PositionSet.
const MaxPositions = 8

// PositionSet is a fixed-capacity set of key positions.
//
// The declared count is stored separately from the entries. When a
// declaration exceeds MaxPositions only the first MaxPositions entries are
// kept and Contains reports false for every position: the set degrades to
// "match nothing" instead of trusting a count larger than its storage.
type PositionSet struct {
	items    [MaxPositions]Position
	declared int
}

// NewPositionSet builds a set from a declared position list.
func NewPositionSet(positions ...Position) PositionSet {
	var s PositionSet
	s.declared = len(positions)
	copy(s.items[:], positions)
	return s
}

// Contains reports whether p is a member. Over-capacity sets contain nothing.
func (s PositionSet) Contains(p Position) bool {
	if s.declared > MaxPositions {
		return false
	}
	for i := 0; i < s.declared; i++ {
		if s.items[i] == p {
			return true
		}
	}
	return false
}

// Declared returns the declared number of positions, which may exceed
// MaxPositions.
func (s PositionSet) Declared() int {
	return s.declared
}

// Empty reports whether nothing was declared. An over-capacity set is not
// empty even though it matches nothing.
func (s PositionSet) Empty() bool {
	return s.declared == 0
}

// Overflowed reports whether the declaration exceeded MaxPositions.
func (s PositionSet) Overflowed() bool {
	return s.declared > MaxPositions
}

// Positions returns the stored entries in declaration order.
func (s PositionSet) Positions() []Position {
	n := s.declared
	if n > MaxPositions {
		n = MaxPositions
	}
	out := make([]Position, n)
	copy(out, s.items[:n])
	return out
}

// BehaviorConfig is the immutable configuration of one behavior instance.
//
// The target layer is not part of the configuration; it is supplied by
// each binding press.
type BehaviorConfig struct {
	// Name is the instance identifier (the CUE label under behavior).
	Name InstanceID `json:"name"`

	// RequirePriorIdleMs suppresses activation when the last ordinary tap
	// is closer than this to the press.
	RequirePriorIdleMs int32 `json:"require_prior_idle_ms"`

	ExcludedPositions     PositionSet `json:"-"`
	DeactivationPositions PositionSet `json:"-"`
	HoldTriggerPositions  PositionSet `json:"-"`

	// TimeToLiveMs delays a hold-triggered deactivation. Zero deactivates
	// immediately.
	TimeToLiveMs uint32 `json:"time_to_live_ms"`

	// DeferActivation routes activation through the scheduler's activate
	// slot after ActivationDelayMs (zero allowed). When false a press
	// activates synchronously.
	DeferActivation   bool   `json:"defer_activation"`
	ActivationDelayMs uint32 `json:"activation_delay_ms"`
}

// MatchesEveryPosition reports whether the instance runs the
// exclusion-only policy: with no deactivation or hold-trigger positions
// declared, every non-excluded press ends the layer.
func (c *BehaviorConfig) MatchesEveryPosition() bool {
	return c.DeactivationPositions.Empty() && c.HoldTriggerPositions.Empty()
}

// Binding maps a named keymap binding to a behavior instance and layer.
type Binding struct {
	Name     string     `json:"name"`
	Behavior InstanceID `json:"behavior"`
	Layer    LayerID    `json:"layer"`
}

// KeymapConfig is the complete compiled configuration.
type KeymapConfig struct {
	// Layers is the number of layers the keymap defines.
	Layers    int              `json:"layers"`
	Behaviors []BehaviorConfig `json:"behaviors"`
	Bindings  []Binding        `json:"bindings"`
}

// Behavior returns the behavior config with the given name.
func (k *KeymapConfig) Behavior(name InstanceID) (*BehaviorConfig, bool) {
	for i := range k.Behaviors {
		if k.Behaviors[i].Name == name {
			return &k.Behaviors[i], true
		}
	}
	return nil, false
}

// Binding returns the binding with the given name.
func (k *KeymapConfig) Binding(name string) (*Binding, bool) {
	for i := range k.Bindings {
		if k.Bindings[i].Name == name {
			return &k.Bindings[i], true
		}
	}
	return nil, false
}
