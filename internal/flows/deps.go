package flows

import (
	"context"
	"time"

	"github.com/passless/passless/idtoken"
	"github.com/passless/passless/internal/rate"
	"github.com/passless/passless/provider"
	"github.com/passless/passless/store"
)

// Flow-state discriminants, persisted verbatim and sent verbatim to UI
// surfaces.
const (
	StateLoggedOut      = "LOGGED_OUT"
	StatePendingOTP     = "PENDING_OTP"
	StateAuthenticated  = "AUTHENTICATED"
	StateSessionExpired = "SESSION_EXPIRED"
)

// SessionStore is the slice of the store facade the flows need. *store.Store
// satisfies it.
type SessionStore interface {
	SaveSession(ctx context.Context, rec store.AuthRecord, refreshToken string) error
	UpdateAuth(ctx context.Context, rec store.AuthRecord) error
	UpdateRefreshToken(ctx context.Context, refreshToken string) error
	LoadAuth(ctx context.Context) (store.AuthRecord, bool, error)
	LoadSessionMeta(ctx context.Context) (store.SessionMeta, bool, error)
	LoadRefreshToken(ctx context.Context) (string, bool, error)
	LoadSession(ctx context.Context) (store.Session, bool, error)
	ClearSession(ctx context.Context) error

	SavePending(ctx context.Context, pending store.PendingOTP) error
	LoadPending(ctx context.Context) (store.PendingOTP, bool, error)
	ClearPending(ctx context.Context) error

	SaveProfile(ctx context.Context, profile store.CachedProfile) error
	LoadProfile(ctx context.Context) (store.CachedProfile, bool, error)
	ClearProfile(ctx context.Context) error

	SaveFlowState(ctx context.Context, state string) error
	LoadFlowState(ctx context.Context) (string, bool, error)
}

// Errors carries host-level sentinel errors so flows never mint their own.
type Errors struct {
	NotReady         error
	InvalidEmail     error
	DomainNotAllowed error
	RateLimited      error
	InvalidOTP       error
	OTPExpired       error
	Network          error
	Unavailable      error
	SessionExpired   error
	RefreshFailed    error
	Storage          error
	NotAuthenticated error
	Validation       error
}

// Metrics carries the counter IDs the flows increment.
type Metrics struct {
	OTPStarted      int
	OTPStartFailed  int
	OTPRateLimited  int
	OTPVerified     int
	OTPVerifyFailed int
	RefreshSuccess  int
	RefreshFailure  int
	SessionExpired  int
	Logout          int
	ProfileFetched  int
	ProfileCacheHit int
	Reconciled      int
}

// Deps captures everything the flows are allowed to touch.
type Deps struct {
	Now func() time.Time

	// Policy knobs, defaulted by the Machine from its config.
	Rate            rate.Config
	CodeTTL         time.Duration
	SessionLifetime time.Duration
	RefreshMargin   time.Duration
	ProfileTTL      time.Duration
	AllowedDomains  []string

	Store SessionStore

	StartOTP     func(ctx context.Context, email string) error
	ExchangeOTP  func(ctx context.Context, email, code string) (provider.TokenBundle, error)
	RefreshGrant func(ctx context.Context, refreshToken string) (provider.TokenBundle, error)
	FetchProfile func(ctx context.Context, accessToken string) (provider.Profile, error)

	// ValidateIDToken is optional; when nil the id token is stored unchecked.
	ValidateIDToken func(token string) (idtoken.Claims, error)

	MetricInc func(int)
	Warn      func(format string, args ...any)

	Metrics Metrics
	Errors  Errors
}

func (d *Deps) defaults() error {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.MetricInc == nil {
		d.MetricInc = func(int) {}
	}
	if d.Warn == nil {
		d.Warn = func(string, ...any) {}
	}
	if d.Store == nil || d.StartOTP == nil || d.ExchangeOTP == nil || d.RefreshGrant == nil {
		return d.Errors.NotReady
	}
	return nil
}

// storeErr folds a storage failure into the host taxonomy after logging it.
func (d *Deps) storeErr(err error) error {
	d.Warn("storage failure: %v", err)
	return d.Errors.Storage
}
