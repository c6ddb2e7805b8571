// Package flows contains pure-function orchestrators for every Machine operation.
//
// Each flow function (RunInitiate, RunVerify, RunRefresh, etc.) accepts a
// typed dependency struct and returns results without side-effects beyond
// those dependencies. This design enables exhaustive unit testing with mock
// dependencies and keeps the Machine type thin.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the session store, provider client,
// rate window, metrics and broadcast emitter. They do NOT own any of these
// resources — ownership stays with the Machine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import passless (to avoid import cycles).
//   - Talk HTTP directly — provider calls are mediated through dependency
//     functions.
package flows
