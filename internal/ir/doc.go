// Package ir provides the foundation types for the toggle-layer engine.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Timestamps are int64 milliseconds supplied by the event source,
//     never read from the wall clock inside the engine
//   - Position sets have a fixed capacity; an over-capacity declaration
//     matches nothing rather than reading past the stored entries
//   - All JSON tags use snake_case
package ir
