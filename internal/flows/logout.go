package flows

import "context"

// RunLogout erases the session from both partitions along with any pending
// request and cached profile, then pins the flow state to logged out.
// Logout is idempotent; logging out while logged out succeeds.
func RunLogout(ctx context.Context, deps Deps) error {
	if err := deps.defaults(); err != nil {
		return err
	}
	if err := wipeToState(ctx, deps, StateLoggedOut); err != nil {
		return err
	}
	deps.MetricInc(deps.Metrics.Logout)
	return nil
}
