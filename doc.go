// Package passless implements the client side of a passwordless email-OTP
// login: a user submits an email, the identity provider mails a one-time
// code, and the code is exchanged for tokens that are persisted across
// restarts and refreshed silently before they expire.
//
// The central type is [Machine], the single authority for "who is logged
// in". It owns the flow state (LOGGED_OUT, PENDING_OTP, AUTHENTICATED,
// SESSION_EXPIRED), applies every transition, enforces the client-side OTP
// rate window, and persists everything through the dual-tier store so the
// process can be killed and respawned between any two operations.
//
// Surrounding packages: store holds the two storage partitions and the
// refresh-token cipher; provider is the stateless HTTP client for the
// identity provider; idtoken validates ID-token claims; router exposes the
// machine to UI surfaces and owns the refresh scheduler.
//
// Every public operation returns sentinel errors from this package, and
// [CodeOf] maps any of them to the wire-level {code, message} pair.
package passless
