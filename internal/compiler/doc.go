// Package compiler turns CUE keymap configuration into ir.KeymapConfig.
//
// A configuration directory holds one CUE package:
//
//	layers: 8
//	behavior: mouse: {
//		require_prior_idle_ms:  150
//		excluded_positions:     [0, 1]
//		deactivation_positions: [5]
//		hold_trigger_positions: []
//		time_to_live_ms:        0
//	}
//	binding: mouse_layer: { behavior: "mouse", layer: 3 }
//
// Compile* functions fail on the first type or range error with a
// *CompileError. Validate checks the compiled config as a whole and
// reports every problem it finds.
package compiler
