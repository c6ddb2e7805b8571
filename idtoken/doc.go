// Package idtoken validates ID-token claims without verifying the token
// signature. Tokens in this flow arrive directly from the provider over an
// authenticated HTTPS exchange, never via a redirect through untrusted
// hands, so claim validation is the defense-in-depth layer implemented here.
// Callers that need full verification must add signature checking against
// the provider's published keys as an external concern.
//
// # What this package must NOT do
//
//   - Verify or even inspect the token signature.
//   - Perform network calls (no JWKS fetching).
//   - Hold any state between calls.
package idtoken
