package flows

import (
	"context"
	"errors"
	"time"

	"github.com/passless/passless/provider"
	"github.com/passless/passless/store"
)

// RefreshResult carries the rewritten session half after a silent refresh.
type RefreshResult struct {
	Record store.AuthRecord
	// Expired is set when the session hit its absolute lifetime; the caller
	// broadcasts SESSION_EXPIRED instead of a plain failure.
	Expired bool
}

// RunRefresh performs one silent refresh. Any grant failure, including
// network failure after retries, burns the session: a stale access token
// must never outlive our ability to renew it.
func RunRefresh(ctx context.Context, deps Deps) (*RefreshResult, error) {
	if err := deps.defaults(); err != nil {
		return nil, err
	}
	now := deps.Now()

	sess, ok, err := deps.Store.LoadSession(ctx)
	if err != nil {
		return nil, deps.storeErr(err)
	}
	if !ok {
		return nil, deps.Errors.NotAuthenticated
	}

	if now.Sub(sess.SessionCreatedAt) > deps.SessionLifetime {
		if err := wipeToState(ctx, deps, StateSessionExpired); err != nil {
			return nil, err
		}
		deps.MetricInc(deps.Metrics.SessionExpired)
		return &RefreshResult{Expired: true}, deps.Errors.SessionExpired
	}

	bundle, err := deps.RefreshGrant(ctx, sess.RefreshToken)
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		if wipeErr := wipeToState(ctx, deps, StateLoggedOut); wipeErr != nil {
			return nil, wipeErr
		}
		if errors.Is(err, provider.ErrNetwork) || errors.Is(err, provider.ErrUnavailable) {
			deps.Warn("refresh grant unreachable, session dropped: %v", err)
		}
		return nil, deps.Errors.RefreshFailed
	}

	rec := sess.AuthRecord
	rec.AccessToken = bundle.AccessToken
	rec.AccessExpiresAt = now.Add(time.Duration(bundle.ExpiresIn) * time.Second)
	if bundle.IDToken != "" {
		if deps.ValidateIDToken != nil {
			if _, err := deps.ValidateIDToken(bundle.IDToken); err != nil {
				deps.Warn("refreshed id token rejected, keeping previous: %v", err)
			} else {
				rec.IDToken = bundle.IDToken
			}
		} else {
			rec.IDToken = bundle.IDToken
		}
	}

	// Durable half first: a crash between the two writes must leave the
	// rotated refresh token, not the burned one, next to the old auth record.
	if bundle.RefreshToken != "" {
		if err := deps.Store.UpdateRefreshToken(ctx, bundle.RefreshToken); err != nil {
			return nil, deps.storeErr(err)
		}
	}
	if err := deps.Store.UpdateAuth(ctx, rec); err != nil {
		return nil, deps.storeErr(err)
	}
	if err := deps.Store.SaveFlowState(ctx, StateAuthenticated); err != nil {
		return nil, deps.storeErr(err)
	}

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	return &RefreshResult{Record: rec}, nil
}

// NeedsRefresh reports whether expiresAt is already inside the proactive
// refresh margin.
func NeedsRefresh(expiresAt, now time.Time, margin time.Duration) bool {
	return !now.Add(margin).Before(expiresAt)
}

func wipeToState(ctx context.Context, deps Deps, state string) error {
	if err := deps.Store.ClearSession(ctx); err != nil {
		return deps.storeErr(err)
	}
	if err := deps.Store.SaveFlowState(ctx, state); err != nil {
		return deps.storeErr(err)
	}
	return nil
}
