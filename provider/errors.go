package provider

import "errors"

// ErrInvalidEmail is returned when the provider rejects the start request as
// malformed.
var ErrInvalidEmail = errors.New("provider rejected email")

// ErrRateLimited is returned when the provider throttles the caller.
var ErrRateLimited = errors.New("provider rate limited")

// ErrInvalidOTP is returned when the submitted code is wrong.
var ErrInvalidOTP = errors.New("otp code invalid")

// ErrOTPExpired is returned when the submitted code is past its validity
// window.
var ErrOTPExpired = errors.New("otp code expired")

// ErrRefreshFailed is returned on any 4xx during the refresh grant. The
// refresh token is considered burned.
var ErrRefreshFailed = errors.New("refresh grant rejected")

// ErrUnauthorized is returned when a bearer-authenticated call is rejected
// with 401.
var ErrUnauthorized = errors.New("access token rejected")

// ErrUnavailable is returned after retries are exhausted against 5xx
// responses.
var ErrUnavailable = errors.New("provider unavailable")

// ErrNetwork is returned after retries are exhausted against transport
// failures.
var ErrNetwork = errors.New("network failure")

// ErrUnrecognized is returned for provider error payloads that map to no
// known condition.
var ErrUnrecognized = errors.New("unrecognized provider error")
