package compiler

import (
	"fmt"
	"math"

	"cuelang.org/go/cue"

	"github.com/roach88/toglayer/internal/ir"
)

// DefaultLayers is used when the configuration does not set layers.
const DefaultLayers = 32

var behaviorFields = map[string]bool{
	"require_prior_idle_ms":  true,
	"excluded_positions":     true,
	"deactivation_positions": true,
	"hold_trigger_positions": true,
	"time_to_live_ms":        true,
	"activation_delay_ms":    true,
}

var bindingFields = map[string]bool{
	"behavior": true,
	"layer":    true,
}

// CompileKeymap compiles the root value of a configuration package.
// Behaviors and bindings keep their CUE declaration order.
func CompileKeymap(v cue.Value) (*ir.KeymapConfig, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	cfg := &ir.KeymapConfig{Layers: DefaultLayers}

	if lv := v.LookupPath(cue.ParsePath("layers")); lv.Exists() {
		n, err := lv.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, &CompileError{Field: "layers", Message: fmt.Sprintf("%d out of range", n), Code: ErrValueOutOfRange, Pos: lv.Pos()}
		}
		cfg.Layers = int(n)
	}

	if bv := v.LookupPath(cue.ParsePath("behavior")); bv.Exists() {
		iter, err := bv.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			bc, err := CompileBehavior(iter.Value())
			if err != nil {
				return nil, err
			}
			cfg.Behaviors = append(cfg.Behaviors, *bc)
		}
	}

	if bv := v.LookupPath(cue.ParsePath("binding")); bv.Exists() {
		iter, err := bv.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			b, err := CompileBinding(iter.Value())
			if err != nil {
				return nil, err
			}
			cfg.Bindings = append(cfg.Bindings, *b)
		}
	}

	return cfg, nil
}

// CompileBehavior parses one behavior instance. The value should be the
// struct under behavior.<name>:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`behavior: mouse: { time_to_live_ms: 300 }`)
//	bc, err := CompileBehavior(v.LookupPath(cue.ParsePath("behavior.mouse")))
func CompileBehavior(v cue.Value) (*ir.BehaviorConfig, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	name := labelOf(v)
	if err := checkFields(v, "behavior."+name, behaviorFields); err != nil {
		return nil, err
	}

	bc := &ir.BehaviorConfig{Name: ir.InstanceID(name)}

	idle, ok, err := intField(v, "require_prior_idle_ms", math.MinInt32, math.MaxInt32)
	if err != nil {
		return nil, err
	}
	if ok {
		bc.RequirePriorIdleMs = int32(idle)
	}

	ttl, ok, err := intField(v, "time_to_live_ms", 0, math.MaxUint32)
	if err != nil {
		return nil, err
	}
	if ok {
		bc.TimeToLiveMs = uint32(ttl)
	}

	delay, ok, err := intField(v, "activation_delay_ms", 0, math.MaxUint32)
	if err != nil {
		return nil, err
	}
	if ok {
		bc.DeferActivation = true
		bc.ActivationDelayMs = uint32(delay)
	}

	if bc.ExcludedPositions, err = positionsField(v, "excluded_positions"); err != nil {
		return nil, err
	}
	if bc.DeactivationPositions, err = positionsField(v, "deactivation_positions"); err != nil {
		return nil, err
	}
	if bc.HoldTriggerPositions, err = positionsField(v, "hold_trigger_positions"); err != nil {
		return nil, err
	}

	return bc, nil
}

// CompileBinding parses binding.<name>.
func CompileBinding(v cue.Value) (*ir.Binding, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	name := labelOf(v)
	if err := checkFields(v, "binding."+name, bindingFields); err != nil {
		return nil, err
	}

	bv := v.LookupPath(cue.ParsePath("behavior"))
	if !bv.Exists() {
		return nil, &CompileError{Field: "behavior", Message: "behavior is required", Pos: v.Pos()}
	}
	behavior, err := bv.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	layer, ok, err := intField(v, "layer", 0, math.MaxUint8)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &CompileError{Field: "layer", Message: "layer is required", Pos: v.Pos()}
	}

	return &ir.Binding{
		Name:     name,
		Behavior: ir.InstanceID(behavior),
		Layer:    ir.LayerID(layer),
	}, nil
}

func labelOf(v cue.Value) string {
	sels := v.Path().Selectors()
	if len(sels) == 0 {
		return ""
	}
	return sels[len(sels)-1].String()
}

func checkFields(v cue.Value, path string, allowed map[string]bool) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		if !allowed[iter.Label()] {
			return &CompileError{
				Field:   path + "." + iter.Label(),
				Message: "unknown field",
				Code:    ErrUnknownField,
				Pos:     iter.Value().Pos(),
			}
		}
	}
	return nil
}

// intField reads an optional integer field and checks it against [lo, hi].
func intField(v cue.Value, field string, lo, hi int64) (int64, bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, false, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, false, formatCUEError(err)
	}
	if n < lo || n > hi {
		return 0, false, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%d out of range [%d, %d]", n, lo, hi),
			Code:    ErrValueOutOfRange,
			Pos:     fv.Pos(),
		}
	}
	return n, true, nil
}

// positionsField reads an optional list of key positions. Lists longer
// than ir.MaxPositions compile to an overflowed set; Validate flags them.
func positionsField(v cue.Value, field string) (ir.PositionSet, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return ir.PositionSet{}, nil
	}
	iter, err := fv.List()
	if err != nil {
		return ir.PositionSet{}, formatCUEError(err)
	}

	var positions []ir.Position
	for iter.Next() {
		ev := iter.Value()
		n, err := ev.Int64()
		if err != nil {
			return ir.PositionSet{}, formatCUEError(err)
		}
		if n < 0 || n > math.MaxUint32 {
			return ir.PositionSet{}, &CompileError{
				Field:   field,
				Message: fmt.Sprintf("position %d out of range", n),
				Code:    ErrValueOutOfRange,
				Pos:     ev.Pos(),
			}
		}
		positions = append(positions, ir.Position(n))
	}
	return ir.NewPositionSet(positions...), nil
}
