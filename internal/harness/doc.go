// Package harness runs toggle-layer scenarios on virtual time.
//
// A scenario names a CUE configuration directory and a flow of timed
// steps. Each run gets a fresh in-memory journal, a keymap.Stack and a
// testutil.VirtualScheduler; deferred actions due at or before a step's
// timestamp fire before the step's events are dispatched. The journaled
// transitions form the trace that assertions and golden files check.
//
// Scenario format:
//
//	name: quick_tap_suppresses
//	description: a press right after typing does not toggle
//	config: ../keymaps/mouse
//	session: test-session-quick-tap
//	flow:
//	  - { at: 0, tap: { position: 10 } }
//	  - { at: 100, press: { binding: mouse_layer } }
//	assertions:
//	  - { type: layer_active, layer: 3, active: false }
//	  - { type: trace_count, kind: press_suppressed, count: 1 }
package harness
