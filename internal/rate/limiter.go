package rate

import "time"

// Config holds the OTP request window tuning parameters.
type Config struct {
	Window      time.Duration
	MaxRequests int
}

// Window is the rate-limit state carried on a PendingOTP record: when the
// current window opened and how many startOTP calls it has absorbed.
type Window struct {
	Start time.Time
	Count int
}

// Advance applies one OTP request attempt to the window.
//
// If the window has elapsed (or was never opened) it returns a fresh window
// with Count=1. If the budget is exhausted it returns the window unchanged
// together with [ErrLimited]; the caller must not contact the provider in
// that case. Otherwise it returns the window with the count incremented.
func (c Config) Advance(w Window, now time.Time) (Window, error) {
	if w.Start.IsZero() || now.Sub(w.Start) > c.Window {
		return Window{Start: now, Count: 1}, nil
	}
	if w.Count >= c.MaxRequests {
		return w, ErrLimited
	}
	return Window{Start: w.Start, Count: w.Count + 1}, nil
}

// Remaining reports how many requests the current window still allows.
func (c Config) Remaining(w Window, now time.Time) int {
	if w.Start.IsZero() || now.Sub(w.Start) > c.Window {
		return c.MaxRequests
	}
	left := c.MaxRequests - w.Count
	if left < 0 {
		return 0
	}
	return left
}
