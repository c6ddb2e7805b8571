package rate

import "errors"

// ErrLimited is returned when the OTP request budget for the current window
// is exhausted.
var ErrLimited = errors.New("otp request rate limited")
