package router

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/passless/passless"
	"github.com/passless/passless/internal/logging"
)

// Router dispatches request envelopes to machine operations. A mutex keeps
// the one-message-at-a-time ordering the UI contract promises.
type Router struct {
	machine   *passless.Machine
	scheduler *Scheduler
	mu        sync.Mutex
}

// NewRouter wires a router. scheduler may be nil in embeds that handle
// refresh timing themselves.
func NewRouter(m *passless.Machine, s *Scheduler) *Router {
	return &Router{machine: m, scheduler: s}
}

// Startup reconciles the flow state from storage and re-arms the refresh
// timer. It must run before the first message on every process start.
func (r *Router) Startup(ctx context.Context) error {
	view, err := r.machine.Reconcile(ctx)
	if err != nil {
		return err
	}
	logging.Info("router", "reconciled flow state: %s", view.State)
	if r.scheduler != nil {
		if view.State == passless.FlowAuthenticated {
			r.scheduler.Arm(ctx)
		} else {
			r.scheduler.Cancel()
		}
	}
	return nil
}

// Handle answers one request envelope. Unknown types and malformed payloads
// fold into the error taxonomy rather than surfacing as raw failures.
func (r *Router) Handle(ctx context.Context, req Request) Response {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch req.Type {
	case MsgInitiateOTP:
		var payload initiatePayload
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return failure(passless.ErrValidation)
		}
		receipt, err := r.machine.InitiateOTP(ctx, payload.Email)
		if err != nil {
			return failure(err)
		}
		return success(receipt)

	case MsgVerifyOTP:
		var payload verifyPayload
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			return failure(passless.ErrValidation)
		}
		view, err := r.machine.VerifyOTP(ctx, payload.Code)
		if err != nil {
			return failure(err)
		}
		r.armAfterLogin(ctx)
		return success(view)

	case MsgResendOTP:
		receipt, err := r.machine.ResendOTP(ctx)
		if err != nil {
			return failure(err)
		}
		return success(receipt)

	case MsgRefreshToken:
		view, err := r.machine.RefreshNow(ctx)
		if err != nil {
			if r.scheduler != nil {
				r.scheduler.Cancel()
			}
			return failure(err)
		}
		r.armAfterLogin(ctx)
		return success(view)

	case MsgLogout:
		if err := r.machine.Logout(ctx); err != nil {
			return failure(err)
		}
		if r.scheduler != nil {
			r.scheduler.Cancel()
		}
		return success(map[string]bool{"loggedOut": true})

	case MsgGetAuthState:
		view, err := r.machine.AuthState(ctx)
		if err != nil {
			return failure(err)
		}
		return success(view)

	case MsgFetchUserInfo:
		info, err := r.machine.FetchUserInfo(ctx)
		if err != nil {
			return failure(err)
		}
		return success(info)

	default:
		return failure(passless.ErrValidation)
	}
}

func (r *Router) armAfterLogin(ctx context.Context) {
	if r.scheduler != nil {
		r.scheduler.Arm(ctx)
	}
}
