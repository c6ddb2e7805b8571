// Package provider is the stateless HTTP client for the identity provider's
// passwordless contract: start an email OTP, exchange a code for tokens,
// refresh tokens and fetch the user profile.
//
// # Retry policy
//
// Transport failures and 5xx responses are retried up to three attempts
// total with jittered exponential backoff (1s initial, 5s cap). 4xx
// responses describe a request-content problem and are never retried; in
// particular any 4xx on the refresh grant burns the refresh token.
//
// # Error mapping
//
// Provider errors carry an "error" code and a free-form description. The
// passwordless grant reports both a wrong code and an expired code as
// invalid_grant, so expiry is disambiguated by substring match on the
// description. Unrecognized provider errors surface as [ErrUnrecognized].
//
// # What this package must NOT do
//
//   - Read or write any storage. It is a pure function of its inputs.
//   - Decide state transitions or invent error codes outside its sentinels.
package provider
