package passless

import (
	"context"
	"errors"
	"time"

	"github.com/passless/passless/idtoken"
	"github.com/passless/passless/internal/broadcast"
	"github.com/passless/passless/internal/flows"
	"github.com/passless/passless/internal/logging"
	"github.com/passless/passless/internal/rate"
	"github.com/passless/passless/provider"
	"github.com/passless/passless/store"
)

// Machine is the single authority for the authentication state. All state
// lives in the store; the Machine itself holds only wiring, so it can be
// torn down and rebuilt between any two operations without losing anything.
type Machine struct {
	config     Config
	store      *store.Store
	provider   *provider.Client
	flows      flows.Service
	dispatcher *broadcastDispatcher
	metrics    *Metrics
	now        func() time.Time
}

func newMachine(cfg Config, st *store.Store, client *provider.Client, sink BroadcastSink, clock func() time.Time) *Machine {
	if clock == nil {
		clock = time.Now
	}
	m := &Machine{
		config:     cfg,
		store:      st,
		provider:   client,
		dispatcher: newBroadcastDispatcher(cfg.Broadcast, sink),
		metrics:    NewMetrics(cfg.Metrics),
		now:        clock,
	}
	m.flows = flows.New(m.flowDeps())
	return m
}

func (m *Machine) flowDeps() flows.Deps {
	expected := idtoken.Expected{
		Issuer:         m.config.Provider.Issuer,
		Audience:       m.config.Provider.ClientID,
		ClockTolerance: m.config.Session.ClockTolerance,
		Now:            m.now,
	}
	return flows.Deps{
		Now: m.now,
		Rate: rate.Config{
			Window:      m.config.OTP.RateWindow,
			MaxRequests: m.config.OTP.RateMaxRequests,
		},
		CodeTTL:         m.config.OTP.CodeTTL,
		SessionLifetime: m.config.Session.Lifetime,
		RefreshMargin:   m.config.Session.RefreshMargin,
		ProfileTTL:      m.config.Session.ProfileTTL,
		AllowedDomains:  m.config.OTP.AllowedDomains,

		Store:        m.store,
		StartOTP:     m.provider.StartOTP,
		ExchangeOTP:  m.provider.ExchangeOTP,
		RefreshGrant: m.provider.Refresh,
		FetchProfile: m.provider.FetchProfile,
		ValidateIDToken: func(token string) (idtoken.Claims, error) {
			return idtoken.Validate(token, expected)
		},

		MetricInc: func(id int) { m.metrics.Inc(MetricID(id)) },
		Warn: func(format string, args ...any) {
			logging.Warn("machine", format, args...)
		},

		Metrics: flows.Metrics{
			OTPStarted:      int(MetricOTPStarted),
			OTPStartFailed:  int(MetricOTPStartFailed),
			OTPRateLimited:  int(MetricOTPRateLimited),
			OTPVerified:     int(MetricOTPVerified),
			OTPVerifyFailed: int(MetricOTPVerifyFailed),
			RefreshSuccess:  int(MetricRefreshSuccess),
			RefreshFailure:  int(MetricRefreshFailure),
			SessionExpired:  int(MetricSessionExpired),
			Logout:          int(MetricLogout),
			ProfileFetched:  int(MetricProfileFetched),
			ProfileCacheHit: int(MetricProfileCacheHit),
			Reconciled:      int(MetricReconciled),
		},
		Errors: flows.Errors{
			NotReady:         ErrNotReady,
			InvalidEmail:     ErrInvalidEmail,
			DomainNotAllowed: ErrEmailDomainNotAllowed,
			RateLimited:      ErrRateLimited,
			InvalidOTP:       ErrInvalidOTP,
			OTPExpired:       ErrOTPExpired,
			Network:          ErrNetwork,
			Unavailable:      ErrProviderUnavailable,
			SessionExpired:   ErrSessionExpired,
			RefreshFailed:    ErrRefreshFailed,
			Storage:          ErrStorage,
			NotAuthenticated: ErrNotAuthenticated,
			Validation:       ErrValidation,
		},
	}
}

// Close flushes and stops the broadcast dispatcher.
func (m *Machine) Close() {
	if m == nil {
		return
	}
	m.dispatcher.Close()
}

// BroadcastDropped reports events shed under dispatcher backpressure.
func (m *Machine) BroadcastDropped() uint64 {
	if m == nil {
		return 0
	}
	return m.dispatcher.Dropped()
}

// MetricsSnapshot copies all counters for exporters.
func (m *Machine) MetricsSnapshot() MetricsSnapshot {
	if m == nil || m.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return m.metrics.Snapshot()
}

// Config returns the effective configuration.
func (m *Machine) Config() Config {
	return m.config
}

func (m *Machine) emit(ctx context.Context, eventType string, view AuthStateView, reason string) {
	m.dispatcher.Emit(ctx, broadcast.Event{
		Timestamp:       m.now(),
		Type:            eventType,
		FlowState:       string(view.State),
		IsAuthenticated: view.IsAuthenticated,
		Email:           view.Email,
		ExpiresAt:       view.ExpiresAt,
		Reason:          reason,
	})
}

func (m *Machine) emitState(ctx context.Context) {
	view, err := m.AuthState(ctx)
	if err != nil {
		logging.Warn("machine", "state broadcast skipped: %v", err)
		return
	}
	m.emit(ctx, EventAuthStateChanged, *view, "")
}

// InitiateOTP starts the login flow: it asks the provider to email a code
// to the address and records the pending request.
func (m *Machine) InitiateOTP(ctx context.Context, email string) (*InitiateReceipt, error) {
	res, err := m.flows.Initiate(ctx, email)
	if err != nil {
		return nil, err
	}
	m.emitState(ctx)
	return &InitiateReceipt{
		Email:             res.Email,
		ExpiresAt:         res.ExpiresAt.UnixMilli(),
		AttemptsRemaining: res.AttemptsRemaining,
	}, nil
}

// ResendOTP re-sends a code to the pending email. It shares the rate window
// with InitiateOTP.
func (m *Machine) ResendOTP(ctx context.Context) (*InitiateReceipt, error) {
	pending, ok, err := m.store.LoadPending(ctx)
	if err != nil {
		return nil, ErrStorage
	}
	if !ok {
		return nil, ErrValidation
	}
	return m.InitiateOTP(ctx, pending.Email)
}

// VerifyOTP exchanges the submitted code for a session. A wrong code leaves
// the flow in PENDING_OTP; an expired code drops it back to LOGGED_OUT.
func (m *Machine) VerifyOTP(ctx context.Context, code string) (*AuthStateView, error) {
	_, err := m.flows.Verify(ctx, code)
	if err != nil {
		if errors.Is(err, ErrOTPExpired) {
			m.emitState(ctx)
		}
		return nil, err
	}
	view, viewErr := m.AuthState(ctx)
	if viewErr != nil {
		return nil, viewErr
	}
	m.emit(ctx, EventAuthStateChanged, *view, "")
	return view, nil
}

// RefreshNow performs one silent refresh immediately. Any failure burns the
// session and is announced to observers, since no caller may be waiting
// when a scheduled refresh fails.
func (m *Machine) RefreshNow(ctx context.Context) (*AuthStateView, error) {
	_, err := m.flows.Refresh(ctx)
	if err != nil {
		view := AuthStateView{State: FlowLoggedOut}
		switch {
		case errors.Is(err, ErrSessionExpired):
			expired := AuthStateView{State: FlowSessionExpired}
			m.emit(ctx, EventSessionExpired, expired, "session lifetime exceeded")
			m.emit(ctx, EventAuthStateChanged, expired, "")
		case errors.Is(err, ErrRefreshFailed):
			m.emit(ctx, EventSessionExpired, view, "refresh failed")
			m.emit(ctx, EventAuthStateChanged, view, "")
		}
		return nil, err
	}
	view, viewErr := m.AuthState(ctx)
	if viewErr != nil {
		return nil, viewErr
	}
	m.emit(ctx, EventTokenRefreshed, *view, "")
	return view, nil
}

// Logout erases the session from both partitions. It is idempotent.
func (m *Machine) Logout(ctx context.Context) error {
	if err := m.flows.Logout(ctx); err != nil {
		return err
	}
	m.emit(ctx, EventAuthStateChanged, AuthStateView{State: FlowLoggedOut}, "")
	return nil
}

// AuthState derives the read-only view from storage. It never mutates.
func (m *Machine) AuthState(ctx context.Context) (*AuthStateView, error) {
	now := m.now()

	rec, okAuth, err := m.store.LoadAuth(ctx)
	if err != nil {
		return nil, ErrStorage
	}
	if okAuth && now.Sub(rec.SessionCreatedAt) <= m.config.Session.Lifetime {
		return &AuthStateView{
			State:           FlowAuthenticated,
			IsAuthenticated: true,
			Email:           rec.Email,
			ExpiresAt:       rec.AccessExpiresAt.UnixMilli(),
			SessionAge:      now.Sub(rec.SessionCreatedAt),
		}, nil
	}

	pending, okPending, err := m.store.LoadPending(ctx)
	if err != nil {
		return nil, ErrStorage
	}
	if okPending && now.Sub(pending.RequestedAt) <= m.config.OTP.CodeTTL {
		return &AuthStateView{
			State:        FlowPendingOTP,
			PendingEmail: pending.Email,
			OTPExpiresAt: pending.RequestedAt.Add(m.config.OTP.CodeTTL).UnixMilli(),
		}, nil
	}

	if okAuth {
		// Session present but past its lifetime; observable once, then the
		// next reconcile or refresh wipes it.
		return &AuthStateView{State: FlowSessionExpired}, nil
	}
	return &AuthStateView{State: FlowLoggedOut}, nil
}

// FetchUserInfo returns the provider profile, cached for the configured TTL.
func (m *Machine) FetchUserInfo(ctx context.Context) (*UserInfo, error) {
	res, err := m.flows.Profile(ctx)
	if err != nil {
		return nil, err
	}
	return &UserInfo{
		Sub:           res.Profile.Sub,
		Email:         res.Profile.Email,
		EmailVerified: res.Profile.EmailVerified,
		Name:          res.Profile.Name,
		Picture:       res.Profile.Picture,
		Cached:        res.Cached,
	}, nil
}

// Reconcile rederives the flow state from durable facts. It must run on
// every process start before any other operation; it is idempotent and
// never trusts the persisted state flag.
func (m *Machine) Reconcile(ctx context.Context) (*AuthStateView, error) {
	res, err := m.flows.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	view, viewErr := m.AuthState(ctx)
	if viewErr != nil {
		return nil, viewErr
	}
	if res.ExpiredSession {
		m.emit(ctx, EventSessionExpired, *view, "session lifetime exceeded")
	}
	m.emit(ctx, EventAuthStateChanged, *view, "")
	return view, nil
}

// AccessExpiry reports the current access token expiry for the refresh
// scheduler, or ok=false when not authenticated.
func (m *Machine) AccessExpiry(ctx context.Context) (time.Time, bool, error) {
	rec, ok, err := m.store.LoadAuth(ctx)
	if err != nil {
		return time.Time{}, false, ErrStorage
	}
	if !ok {
		return time.Time{}, false, nil
	}
	return rec.AccessExpiresAt, true, nil
}
