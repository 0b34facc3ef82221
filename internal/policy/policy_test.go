package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/toglayer/internal/ir"
)

func TestQuickTapActive(t *testing.T) {
	p := New(&ir.BehaviorConfig{RequirePriorIdleMs: 150})

	assert.True(t, p.QuickTapActive(0, 0))
	assert.True(t, p.QuickTapActive(0, 149))
	assert.False(t, p.QuickTapActive(0, 150), "boundary is exclusive")
	assert.False(t, p.QuickTapActive(0, 200))
	assert.True(t, p.QuickTapActive(250, 260))
}

func TestQuickTapActive_NegativeIdle(t *testing.T) {
	p := New(&ir.BehaviorConfig{RequirePriorIdleMs: -10})
	assert.False(t, p.QuickTapActive(100, 100))
	assert.True(t, p.QuickTapActive(100, 89))
}

func TestMembership(t *testing.T) {
	p := New(&ir.BehaviorConfig{
		ExcludedPositions:     ir.NewPositionSet(0, 1),
		DeactivationPositions: ir.NewPositionSet(5),
		HoldTriggerPositions:  ir.NewPositionSet(9),
	})

	assert.True(t, p.IsExcluded(1))
	assert.False(t, p.IsExcluded(5))
	assert.True(t, p.IsDeactivationPosition(5))
	assert.False(t, p.IsDeactivationPosition(9))
	assert.True(t, p.IsHoldTriggerPosition(9))
	assert.False(t, p.IsHoldTriggerPosition(5))
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		cfg      ir.BehaviorConfig
		position ir.Position
		want     Decision
	}{
		{
			name:     "exclusion only: other key deactivates",
			cfg:      ir.BehaviorConfig{ExcludedPositions: ir.NewPositionSet(1)},
			position: 4,
			want:     DeactivateNow,
		},
		{
			name:     "exclusion only: excluded key ignored",
			cfg:      ir.BehaviorConfig{ExcludedPositions: ir.NewPositionSet(1)},
			position: 1,
			want:     Ignore,
		},
		{
			name:     "deactivation list: listed key",
			cfg:      ir.BehaviorConfig{DeactivationPositions: ir.NewPositionSet(5)},
			position: 5,
			want:     DeactivateNow,
		},
		{
			name:     "deactivation list: unlisted key",
			cfg:      ir.BehaviorConfig{DeactivationPositions: ir.NewPositionSet(5)},
			position: 6,
			want:     Ignore,
		},
		{
			name: "exclusion wins over deactivation",
			cfg: ir.BehaviorConfig{
				ExcludedPositions:     ir.NewPositionSet(5),
				DeactivationPositions: ir.NewPositionSet(5),
			},
			position: 5,
			want:     Ignore,
		},
		{
			name: "exclusion wins over hold trigger",
			cfg: ir.BehaviorConfig{
				ExcludedPositions:    ir.NewPositionSet(9),
				HoldTriggerPositions: ir.NewPositionSet(9),
				TimeToLiveMs:         300,
			},
			position: 9,
			want:     Ignore,
		},
		{
			name:     "hold trigger with ttl",
			cfg:      ir.BehaviorConfig{HoldTriggerPositions: ir.NewPositionSet(9), TimeToLiveMs: 300},
			position: 9,
			want:     DeactivateAfterTTL,
		},
		{
			name:     "hold trigger with zero ttl",
			cfg:      ir.BehaviorConfig{HoldTriggerPositions: ir.NewPositionSet(9)},
			position: 9,
			want:     DeactivateNow,
		},
		{
			name: "deactivation beats hold trigger",
			cfg: ir.BehaviorConfig{
				DeactivationPositions: ir.NewPositionSet(9),
				HoldTriggerPositions:  ir.NewPositionSet(9),
				TimeToLiveMs:          300,
			},
			position: 9,
			want:     DeactivateNow,
		},
		{
			name:     "overflowed deactivation list matches nothing",
			cfg:      ir.BehaviorConfig{DeactivationPositions: ir.NewPositionSet(0, 1, 2, 3, 4, 5, 6, 7, 8)},
			position: 3,
			want:     Ignore,
		},
		{
			name: "overflowed exclusion list excludes nothing",
			cfg: ir.BehaviorConfig{
				ExcludedPositions: ir.NewPositionSet(0, 1, 2, 3, 4, 5, 6, 7, 8),
			},
			position: 3,
			want:     DeactivateNow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			assert.Equal(t, tt.want, New(&cfg).Evaluate(tt.position))
		})
	}
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "ignore", Ignore.String())
	assert.Equal(t, "deactivate_now", DeactivateNow.String())
	assert.Equal(t, "deactivate_after_ttl", DeactivateAfterTTL.String())
}
