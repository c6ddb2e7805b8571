package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/passless/passless/internal/rate"
	"github.com/passless/passless/provider"
	"github.com/passless/passless/store"
)

// InitiateResult reports a successfully delivered code.
type InitiateResult struct {
	Email string
	// ExpiresAt is when the emailed code stops being accepted.
	ExpiresAt time.Time
	// AttemptsRemaining is the unused budget in the current window.
	AttemptsRemaining int
}

// emailLooksValid is a cheap local sanity check. The provider performs the
// authoritative validation; this only avoids an obviously pointless call.
func emailLooksValid(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	return !strings.ContainsAny(email, " \t\r\n") && strings.Contains(domain, ".")
}

func domainAllowed(email string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	at := strings.LastIndex(email, "@")
	domain := strings.ToLower(email[at+1:])
	for _, d := range allowed {
		if domain == strings.ToLower(d) {
			return true
		}
	}
	return false
}

// RunInitiate handles both the first OTP request and every resend: the rate
// window is shared across emails, so switching addresses mid-flow does not
// grant fresh budget. The window is checked before the provider is called;
// a locally limited request never reaches the network.
func RunInitiate(ctx context.Context, email string, deps Deps) (*InitiateResult, error) {
	if err := deps.defaults(); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if !emailLooksValid(email) {
		deps.MetricInc(deps.Metrics.OTPStartFailed)
		return nil, deps.Errors.InvalidEmail
	}
	if !domainAllowed(email, deps.AllowedDomains) {
		deps.MetricInc(deps.Metrics.OTPStartFailed)
		return nil, deps.Errors.DomainNotAllowed
	}

	now := deps.Now()
	pending, havePending, err := deps.Store.LoadPending(ctx)
	if err != nil {
		return nil, deps.storeErr(err)
	}

	window := rate.Window{}
	if havePending {
		window = rate.Window{Start: pending.WindowStart, Count: pending.AttemptCount}
	}
	window, err = deps.Rate.Advance(window, now)
	if errors.Is(err, rate.ErrLimited) {
		deps.MetricInc(deps.Metrics.OTPRateLimited)
		return nil, deps.Errors.RateLimited
	}

	if err := deps.StartOTP(ctx, email); err != nil {
		deps.MetricInc(deps.Metrics.OTPStartFailed)
		return nil, mapStartErr(err, deps.Errors)
	}

	next := store.PendingOTP{
		Email:        email,
		RequestedAt:  now,
		AttemptCount: window.Count,
		WindowStart:  window.Start,
	}
	if err := deps.Store.SavePending(ctx, next); err != nil {
		return nil, deps.storeErr(err)
	}
	if err := deps.Store.SaveFlowState(ctx, StatePendingOTP); err != nil {
		return nil, deps.storeErr(err)
	}

	deps.MetricInc(deps.Metrics.OTPStarted)
	return &InitiateResult{
		Email:             email,
		ExpiresAt:         now.Add(deps.CodeTTL),
		AttemptsRemaining: deps.Rate.Remaining(window, now),
	}, nil
}

func mapStartErr(err error, errs Errors) error {
	switch {
	case errors.Is(err, provider.ErrInvalidEmail):
		return errs.InvalidEmail
	case errors.Is(err, provider.ErrRateLimited):
		return errs.RateLimited
	case errors.Is(err, provider.ErrUnavailable):
		return errs.Unavailable
	case errors.Is(err, provider.ErrNetwork):
		return errs.Network
	default:
		return errs.Validation
	}
}
