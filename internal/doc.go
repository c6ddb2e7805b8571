// Package internal contains helpers that are intentionally private to
// passless.
//
// # Sub-packages
//
//   - broadcast — async state-change event dispatch (Sink implementations)
//   - flows — pure-function flow orchestrators for every Machine operation
//   - logging — component-tagged slog helpers for the agent daemon
//   - metrics — lock-free counters
//   - rate — the client-side OTP request window
//
// # What this package must NOT do
//
//   - Export types that appear in the public passless API.
//   - Be imported by any package outside the passless module.
package internal
