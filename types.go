package passless

import (
	"time"

	"github.com/passless/passless/internal/flows"
)

// FlowState is the explicit discriminant driving the machine. It is
// persisted alongside the session so the current state survives process
// restarts, and rederived from durable facts on every start.
type FlowState string

const (
	FlowLoggedOut      FlowState = flows.StateLoggedOut
	FlowPendingOTP     FlowState = flows.StatePendingOTP
	FlowAuthenticated  FlowState = flows.StateAuthenticated
	FlowSessionExpired FlowState = flows.StateSessionExpired
)

// AuthStateView is the read-only snapshot handed to UI surfaces. Surfaces
// must not cache it beyond one render; broadcasts signal when to re-derive.
type AuthStateView struct {
	State           FlowState `json:"state"`
	IsAuthenticated bool      `json:"isAuthenticated"`
	Email           string    `json:"email,omitempty"`
	// ExpiresAt is the access token expiry as a Unix millisecond timestamp.
	ExpiresAt int64 `json:"expiresAt,omitempty"`
	// SessionAge is derived, never stored.
	SessionAge time.Duration `json:"sessionAgeMs,omitempty"`
	// PendingEmail is set while a code is in flight.
	PendingEmail string `json:"pendingEmail,omitempty"`
	// OTPExpiresAt is when the in-flight code stops being accepted, Unix ms.
	OTPExpiresAt int64 `json:"otpExpiresAt,omitempty"`
}

// InitiateReceipt is returned by InitiateOTP and ResendOTP.
type InitiateReceipt struct {
	Email string `json:"email"`
	// ExpiresAt is when the emailed code expires, Unix ms.
	ExpiresAt int64 `json:"expiresAt"`
	// AttemptsRemaining is the unused send budget in the current window.
	AttemptsRemaining int `json:"attemptsRemaining"`
}

// UserInfo is the profile payload returned by FetchUserInfo.
type UserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	// Cached reports whether the snapshot came from the local cache.
	Cached bool `json:"cached"`
}
