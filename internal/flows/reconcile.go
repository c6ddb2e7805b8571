package flows

import (
	"context"

	"github.com/passless/passless/store"
)

// ReconcileResult is the flow state rederived from durable facts.
type ReconcileResult struct {
	State  string
	Record *store.AuthRecord
	// ExpiredSession marks that a previously valid session was wiped because
	// it aged out, so the caller can announce the expiry.
	ExpiredSession bool
}

// RunReconcile rederives the flow state from what actually survives in
// storage. It never trusts the persisted flowState flag: the process may
// have been dead for days and the flag describes a world that no longer
// exists. It runs unconditionally on every process start and is idempotent.
func RunReconcile(ctx context.Context, deps Deps) (*ReconcileResult, error) {
	if err := deps.defaults(); err != nil {
		return nil, err
	}
	now := deps.Now()

	// LoadSession already self-heals a half-written session to absent.
	sess, ok, err := deps.Store.LoadSession(ctx)
	if err != nil {
		return nil, deps.storeErr(err)
	}
	if ok {
		if now.Sub(sess.SessionCreatedAt) > deps.SessionLifetime {
			if err := wipeToState(ctx, deps, StateLoggedOut); err != nil {
				return nil, err
			}
			deps.MetricInc(deps.Metrics.Reconciled)
			return &ReconcileResult{State: StateLoggedOut, ExpiredSession: true}, nil
		}
		if err := deps.Store.SaveFlowState(ctx, StateAuthenticated); err != nil {
			return nil, deps.storeErr(err)
		}
		deps.MetricInc(deps.Metrics.Reconciled)
		rec := sess.AuthRecord
		return &ReconcileResult{State: StateAuthenticated, Record: &rec}, nil
	}

	pending, ok, err := deps.Store.LoadPending(ctx)
	if err != nil {
		return nil, deps.storeErr(err)
	}
	if ok && now.Sub(pending.RequestedAt) <= deps.CodeTTL {
		if err := deps.Store.SaveFlowState(ctx, StatePendingOTP); err != nil {
			return nil, deps.storeErr(err)
		}
		deps.MetricInc(deps.Metrics.Reconciled)
		return &ReconcileResult{State: StatePendingOTP}, nil
	}
	if ok {
		if err := deps.Store.ClearPending(ctx); err != nil {
			return nil, deps.storeErr(err)
		}
	}

	if err := deps.Store.SaveFlowState(ctx, StateLoggedOut); err != nil {
		return nil, deps.storeErr(err)
	}
	deps.MetricInc(deps.Metrics.Reconciled)
	return &ReconcileResult{State: StateLoggedOut}, nil
}
