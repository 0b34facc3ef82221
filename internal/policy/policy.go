// Package policy evaluates a behavior instance's configuration against
// incoming events. Every predicate is pure, deterministic and bounded by
// ir.MaxPositions.
package policy

import "github.com/roach88/toglayer/internal/ir"

// Decision is the outcome of evaluating a position press against an
// active instance.
type Decision int

const (
	// Ignore leaves the layer alone.
	Ignore Decision = iota
	// DeactivateNow ends the layer synchronously.
	DeactivateNow
	// DeactivateAfterTTL arms the deferred deactivation.
	DeactivateAfterTTL
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case DeactivateNow:
		return "deactivate_now"
	case DeactivateAfterTTL:
		return "deactivate_after_ttl"
	default:
		return "ignore"
	}
}

// TriggerPolicy wraps one instance's configuration.
type TriggerPolicy struct {
	cfg *ir.BehaviorConfig
}

// New returns the policy for cfg. cfg must not be mutated afterwards.
func New(cfg *ir.BehaviorConfig) TriggerPolicy {
	return TriggerPolicy{cfg: cfg}
}

// IsExcluded reports whether position may be pressed without ending the layer.
func (p TriggerPolicy) IsExcluded(position ir.Position) bool {
	return p.cfg.ExcludedPositions.Contains(position)
}

// IsDeactivationPosition reports whether position ends the layer immediately.
func (p TriggerPolicy) IsDeactivationPosition(position ir.Position) bool {
	return p.cfg.DeactivationPositions.Contains(position)
}

// IsHoldTriggerPosition reports whether position starts the TTL countdown.
func (p TriggerPolicy) IsHoldTriggerPosition(position ir.Position) bool {
	return p.cfg.HoldTriggerPositions.Contains(position)
}

// QuickTapActive reports whether a press at timestamp falls inside the
// idle window after the last ordinary tap.
func (p TriggerPolicy) QuickTapActive(lastTapped, timestamp ir.Timestamp) bool {
	return lastTapped+ir.Timestamp(p.cfg.RequirePriorIdleMs) > timestamp
}

// Evaluate classifies a position press while the layer is live.
//
// Exclusion wins over both deactivation and hold-trigger membership. With
// no deactivation or hold-trigger positions declared, every non-excluded
// position deactivates. A hold trigger with a zero TTL deactivates
// immediately.
func (p TriggerPolicy) Evaluate(position ir.Position) Decision {
	if p.IsExcluded(position) {
		return Ignore
	}
	if p.IsDeactivationPosition(position) || p.cfg.MatchesEveryPosition() {
		return DeactivateNow
	}
	if p.IsHoldTriggerPosition(position) {
		if p.cfg.TimeToLiveMs == 0 {
			return DeactivateNow
		}
		return DeactivateAfterTTL
	}
	return Ignore
}
