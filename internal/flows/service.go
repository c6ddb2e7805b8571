package flows

import "context"

// Service is the centralized flow runner built once by the root machine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Store != nil
}

func (s Service) Initiate(ctx context.Context, email string) (*InitiateResult, error) {
	return RunInitiate(ctx, email, s.deps)
}

func (s Service) Verify(ctx context.Context, code string) (*VerifyResult, error) {
	return RunVerify(ctx, code, s.deps)
}

func (s Service) Refresh(ctx context.Context) (*RefreshResult, error) {
	return RunRefresh(ctx, s.deps)
}

func (s Service) Logout(ctx context.Context) error {
	return RunLogout(ctx, s.deps)
}

func (s Service) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	return RunReconcile(ctx, s.deps)
}

func (s Service) Profile(ctx context.Context) (*ProfileResult, error) {
	return RunProfile(ctx, s.deps)
}
