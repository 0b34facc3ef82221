// Package engine implements the toggle-layer decision engine.
//
// ARCHITECTURE:
//
// Single-Writer Dispatch:
// Every input event and every fired deferred action is handled by
// Engine.Dispatch on one goroutine. Behavior instances therefore need no
// locking, and the shared TimestampTracker is only touched from the same
// context. Handlers never dispatch further events synchronously; deferred
// work goes through the Scheduler and re-enters as an ir.Deferred event.
//
// Event Routing:
//   - binding_pressed: the named instance only
//   - position_changed: every instance, in declaration order
//   - keycode_changed: the shared tracker, once per event
//   - movement: the shared tracker, once per event
//   - deferred: the instance named in the message
//
// Deferred Actions:
// A Behavior never captures closures in the scheduler. It hands over an
// ir.Deferred message tagged with instance, slot and a token. When the
// message comes back, a token that no longer matches the pending one
// marks a cancelled action and is ignored. The transition table therefore
// stays in one place (behavior.go) and is testable without real timers.
//
// Journal:
// Inputs and transitions are stamped with a logical seq from Clock and
// handed to the optional Journal. Journal failures are logged and never
// abort dispatch.
package engine
