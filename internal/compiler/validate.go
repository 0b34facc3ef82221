package compiler

import (
	"fmt"

	"github.com/roach88/toglayer/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrDuplicatePosition   = "E201" // position listed twice in one set
	ErrPositionsOverflow   = "E202" // position list over capacity
	ErrValueOutOfRange     = "E203" // negative or oversized numeric value
	ErrUnknownBehavior     = "E204" // binding names an undefined behavior
	ErrBindingLayerInvalid = "E205" // binding layer not defined by the keymap
	ErrNoBehaviors         = "E206" // at least one behavior required
	ErrLayersOutOfRange    = "E207" // layers outside 1..32
	ErrUnknownField        = "E208" // field not part of the schema
)

// MaxLayers is the largest supported layer count.
const MaxLayers = 32

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled keymap. Returns all errors found (does not
// fail-fast).
func Validate(cfg *ir.KeymapConfig) []ValidationError {
	var errs []ValidationError

	// E207
	if cfg.Layers < 1 || cfg.Layers > MaxLayers {
		errs = append(errs, ValidationError{
			Field:   "layers",
			Message: fmt.Sprintf("layers must be within 1..%d, got %d", MaxLayers, cfg.Layers),
			Code:    ErrLayersOutOfRange,
		})
	}

	// E206
	if len(cfg.Behaviors) == 0 {
		errs = append(errs, ValidationError{
			Field:   "behavior",
			Message: "at least one behavior is required",
			Code:    ErrNoBehaviors,
		})
	}

	for i := range cfg.Behaviors {
		bc := &cfg.Behaviors[i]
		prefix := "behavior." + string(bc.Name)
		errs = append(errs, validatePositions(prefix+".excluded_positions", bc.ExcludedPositions)...)
		errs = append(errs, validatePositions(prefix+".deactivation_positions", bc.DeactivationPositions)...)
		errs = append(errs, validatePositions(prefix+".hold_trigger_positions", bc.HoldTriggerPositions)...)
	}

	for _, b := range cfg.Bindings {
		prefix := "binding." + b.Name
		if _, ok := cfg.Behavior(b.Behavior); !ok {
			errs = append(errs, ValidationError{
				Field:   prefix + ".behavior",
				Message: fmt.Sprintf("unknown behavior %q", b.Behavior),
				Code:    ErrUnknownBehavior,
			})
		}
		if int(b.Layer) >= cfg.Layers {
			errs = append(errs, ValidationError{
				Field:   prefix + ".layer",
				Message: fmt.Sprintf("layer %d is not defined (layers: %d)", b.Layer, cfg.Layers),
				Code:    ErrBindingLayerInvalid,
			})
		}
	}

	return errs
}

func validatePositions(field string, set ir.PositionSet) []ValidationError {
	var errs []ValidationError

	// E202
	if set.Overflowed() {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("%d positions declared, at most %d allowed", set.Declared(), ir.MaxPositions),
			Code:    ErrPositionsOverflow,
		})
	}

	// E201
	seen := make(map[ir.Position]bool, ir.MaxPositions)
	for _, p := range set.Positions() {
		if seen[p] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate position %d", p),
				Code:    ErrDuplicatePosition,
			})
		}
		seen[p] = true
	}

	return errs
}
