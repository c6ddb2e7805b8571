package flows

import (
	"context"
	"errors"

	"github.com/passless/passless/provider"
	"github.com/passless/passless/store"
)

// ProfileResult carries the profile snapshot and whether it came from cache.
type ProfileResult struct {
	Profile store.CachedProfile
	Cached  bool
}

// RunProfile returns the user profile, serving from the cache while it is
// fresh. A 401 from the provider means the access token is stale; the caller
// is expected to refresh and retry rather than trust the cache.
func RunProfile(ctx context.Context, deps Deps) (*ProfileResult, error) {
	if err := deps.defaults(); err != nil {
		return nil, err
	}
	if deps.FetchProfile == nil {
		return nil, deps.Errors.NotReady
	}
	now := deps.Now()

	rec, ok, err := deps.Store.LoadAuth(ctx)
	if err != nil {
		return nil, deps.storeErr(err)
	}
	if !ok {
		return nil, deps.Errors.NotAuthenticated
	}

	cached, ok, err := deps.Store.LoadProfile(ctx)
	if err != nil {
		return nil, deps.storeErr(err)
	}
	if ok && now.Sub(cached.FetchedAt) <= deps.ProfileTTL {
		deps.MetricInc(deps.Metrics.ProfileCacheHit)
		return &ProfileResult{Profile: cached, Cached: true}, nil
	}

	fetched, err := deps.FetchProfile(ctx, rec.AccessToken)
	if err != nil {
		switch {
		case errors.Is(err, provider.ErrUnauthorized):
			return nil, deps.Errors.NotAuthenticated
		case errors.Is(err, provider.ErrRateLimited):
			return nil, deps.Errors.RateLimited
		case errors.Is(err, provider.ErrUnavailable):
			return nil, deps.Errors.Unavailable
		case errors.Is(err, provider.ErrNetwork):
			return nil, deps.Errors.Network
		default:
			return nil, deps.Errors.Validation
		}
	}

	snapshot := store.CachedProfile{
		Sub:           fetched.Sub,
		Email:         fetched.Email,
		EmailVerified: fetched.EmailVerified,
		Name:          fetched.Name,
		Picture:       fetched.Picture,
		FetchedAt:     now,
	}
	if err := deps.Store.SaveProfile(ctx, snapshot); err != nil {
		return nil, deps.storeErr(err)
	}
	deps.MetricInc(deps.Metrics.ProfileFetched)
	return &ProfileResult{Profile: snapshot}, nil
}
