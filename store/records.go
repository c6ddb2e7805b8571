package store

import "time"

// AuthRecord is the access-side half of a session, stored in the volatile
// partition under the "auth" key. SessionCreatedAt is set once at first
// login and carried unchanged through every refresh.
type AuthRecord struct {
	Email            string    `json:"email"`
	AccessToken      string    `json:"accessToken"`
	IDToken          string    `json:"idToken,omitempty"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	SessionCreatedAt time.Time `json:"sessionCreatedAt"`
}

// SessionMeta is the durable-side metadata record. It exists so session age
// and owner can be judged after a restart without touching the sealed
// refresh token.
type SessionMeta struct {
	CreatedAt time.Time `json:"createdAt"`
	Email     string    `json:"email"`
}

// Session is the logical join of both halves.
type Session struct {
	AuthRecord
	RefreshToken string
}

// PendingOTP tracks the single in-flight verification attempt. It lives in
// the volatile partition: a half-finished login must not resume after the
// browser closes.
type PendingOTP struct {
	Email        string    `json:"email"`
	RequestedAt  time.Time `json:"requestedAt"`
	AttemptCount int       `json:"attemptCount"`
	WindowStart  time.Time `json:"windowStart"`
}

// CachedProfile is a non-authoritative snapshot of provider profile data,
// always safe to drop and refetch.
type CachedProfile struct {
	Sub           string    `json:"sub"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"emailVerified"`
	Name          string    `json:"name,omitempty"`
	Picture       string    `json:"picture,omitempty"`
	FetchedAt     time.Time `json:"fetchedAt"`
}
