// Package rate implements the client-side OTP request window: a sliding
// 15-minute window with a fixed request budget, tracked on the PendingOTP
// record itself rather than in a shared counter store.
//
// # Window semantics
//
// The window restarts (count back to 1) whenever a request arrives after the
// window start has aged past the configured duration — for the same or a
// different email, and even mid-flow. Inside a live window every request
// increments the count; the request that would exceed the budget is denied
// before any provider call is made.
//
// # What this package must NOT do
//
//   - Persist anything. The caller owns storage of the Window value.
//   - Act as a security boundary; the provider enforces real limits remotely.
package rate
