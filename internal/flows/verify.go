package flows

import (
	"context"
	"errors"
	"time"

	"github.com/passless/passless/provider"
	"github.com/passless/passless/store"
)

// VerifyResult carries the freshly written access-side session half.
type VerifyResult struct {
	Record store.AuthRecord
	State  string
}

// RunVerify exchanges the pending code for tokens and writes the session.
// A wrong code leaves the pending request in place; an expired code clears
// it and drops the flow back to logged out.
func RunVerify(ctx context.Context, code string, deps Deps) (*VerifyResult, error) {
	if err := deps.defaults(); err != nil {
		return nil, err
	}
	now := deps.Now()

	pending, ok, err := deps.Store.LoadPending(ctx)
	if err != nil {
		return nil, deps.storeErr(err)
	}
	if !ok {
		return nil, deps.Errors.Validation
	}
	if now.Sub(pending.RequestedAt) > deps.CodeTTL {
		if err := deps.Store.ClearPending(ctx); err != nil {
			return nil, deps.storeErr(err)
		}
		if err := deps.Store.SaveFlowState(ctx, StateLoggedOut); err != nil {
			return nil, deps.storeErr(err)
		}
		deps.MetricInc(deps.Metrics.OTPVerifyFailed)
		return nil, deps.Errors.OTPExpired
	}

	bundle, err := deps.ExchangeOTP(ctx, pending.Email, code)
	if err != nil {
		deps.MetricInc(deps.Metrics.OTPVerifyFailed)
		if errors.Is(err, provider.ErrOTPExpired) {
			if clearErr := deps.Store.ClearPending(ctx); clearErr != nil {
				return nil, deps.storeErr(clearErr)
			}
			if stateErr := deps.Store.SaveFlowState(ctx, StateLoggedOut); stateErr != nil {
				return nil, deps.storeErr(stateErr)
			}
			return nil, deps.Errors.OTPExpired
		}
		// A wrong code is retryable; the pending request stays.
		return nil, mapExchangeErr(err, deps.Errors)
	}

	email := pending.Email
	if bundle.IDToken != "" && deps.ValidateIDToken != nil {
		claims, err := deps.ValidateIDToken(bundle.IDToken)
		if err != nil {
			deps.Warn("id token rejected: %v", err)
			deps.MetricInc(deps.Metrics.OTPVerifyFailed)
			return nil, deps.Errors.Validation
		}
		if claims.Email != "" {
			email = claims.Email
		}
	}

	rec := store.AuthRecord{
		Email:            email,
		AccessToken:      bundle.AccessToken,
		IDToken:          bundle.IDToken,
		AccessExpiresAt:  now.Add(time.Duration(bundle.ExpiresIn) * time.Second),
		SessionCreatedAt: now,
	}
	if err := deps.Store.SaveSession(ctx, rec, bundle.RefreshToken); err != nil {
		return nil, deps.storeErr(err)
	}
	if err := deps.Store.ClearPending(ctx); err != nil {
		return nil, deps.storeErr(err)
	}
	if err := deps.Store.SaveFlowState(ctx, StateAuthenticated); err != nil {
		return nil, deps.storeErr(err)
	}

	deps.MetricInc(deps.Metrics.OTPVerified)
	return &VerifyResult{Record: rec, State: StateAuthenticated}, nil
}

func mapExchangeErr(err error, errs Errors) error {
	switch {
	case errors.Is(err, provider.ErrInvalidOTP):
		return errs.InvalidOTP
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
