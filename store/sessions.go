package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// durableSessionKeys are the durable entries removed on logout or self-heal.
// The installation identifier is deliberately not among them; the derived
// key must stay stable across logins.
var durableSessionKeys = []string{KeyEncryptedRefreshToken, KeyRefreshTokenIV, KeySessionMeta}

// Store is the typed facade over both partitions. Every session mutation in
// the system goes through it; no other component writes storage directly.
type Store struct {
	Volatile Partition
	Durable  Partition

	cipher *Cipher
}

// New builds the facade. The cipher derives its key lazily from the durable
// partition on first seal or open.
func New(volatile, durable Partition) *Store {
	return &Store{
		Volatile: volatile,
		Durable:  durable,
		cipher:   NewCipher(durable),
	}
}

func (s *Store) getJSON(ctx context.Context, p Partition, key string, out any) (bool, error) {
	data, ok, err := p.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		// A record we cannot parse is as good as absent. Erase it so the
		// next read starts clean.
		_ = p.Remove(ctx, key)
		return false, nil
	}
	return true, nil
}

func (s *Store) setJSON(ctx context.Context, p Partition, key string, in any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrUnavailable, key, err)
	}
	return p.Set(ctx, key, data)
}

// SaveSession persists a freshly exchanged session. The durable half is
// committed first so a crash between the two writes leaves a recoverable
// refresh token rather than an orphaned access token.
func (s *Store) SaveSession(ctx context.Context, rec AuthRecord, refreshToken string) error {
	ciphertext, nonce, err := s.cipher.Seal(ctx, []byte(refreshToken))
	if err != nil {
		return err
	}
	if err := s.Durable.Set(ctx, KeyEncryptedRefreshToken, ciphertext); err != nil {
		return err
	}
	if err := s.Durable.Set(ctx, KeyRefreshTokenIV, nonce); err != nil {
		return err
	}
	meta := SessionMeta{CreatedAt: rec.SessionCreatedAt, Email: rec.Email}
	if err := s.setJSON(ctx, s.Durable, KeySessionMeta, meta); err != nil {
		return err
	}
	return s.setJSON(ctx, s.Volatile, KeyAuth, rec)
}

// UpdateAuth overwrites only the access-side half, preserving the durable
// half. Used when a refresh response carries no new refresh token.
func (s *Store) UpdateAuth(ctx context.Context, rec AuthRecord) error {
	return s.setJSON(ctx, s.Volatile, KeyAuth, rec)
}

// UpdateRefreshToken reseals and replaces the durable refresh token.
func (s *Store) UpdateRefreshToken(ctx context.Context, refreshToken string) error {
	ciphertext, nonce, err := s.cipher.Seal(ctx, []byte(refreshToken))
	if err != nil {
		return err
	}
	if err := s.Durable.Set(ctx, KeyEncryptedRefreshToken, ciphertext); err != nil {
		return err
	}
	return s.Durable.Set(ctx, KeyRefreshTokenIV, nonce)
}

// LoadAuth reads the access-side half.
func (s *Store) LoadAuth(ctx context.Context) (AuthRecord, bool, error) {
	var rec AuthRecord
	ok, err := s.getJSON(ctx, s.Volatile, KeyAuth, &rec)
	return rec, ok, err
}

// LoadSessionMeta reads the durable metadata record.
func (s *Store) LoadSessionMeta(ctx context.Context) (SessionMeta, bool, error) {
	var meta SessionMeta
	ok, err := s.getJSON(ctx, s.Durable, KeySessionMeta, &meta)
	return meta, ok, err
}

// LoadRefreshToken opens the sealed refresh token. Any decrypt failure
// erases the durable session half and reports absence.
func (s *Store) LoadRefreshToken(ctx context.Context) (string, bool, error) {
	ciphertext, okCT, err := s.Durable.Get(ctx, KeyEncryptedRefreshToken)
	if err != nil {
		return "", false, err
	}
	nonce, okIV, err := s.Durable.Get(ctx, KeyRefreshTokenIV)
	if err != nil {
		return "", false, err
	}
	if !okCT || !okIV {
		return "", false, nil
	}
	plaintext, ok, err := s.cipher.Open(ctx, ciphertext, nonce)
	if err != nil {
		return "", false, err
	}
	if !ok {
		if err := s.clearDurableSession(ctx); err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	return string(plaintext), true, nil
}

// LoadSession joins both halves. When exactly one half exists the survivor
// is erased so the store converges back to "no session".
func (s *Store) LoadSession(ctx context.Context) (Session, bool, error) {
	rec, okAuth, err := s.LoadAuth(ctx)
	if err != nil {
		return Session{}, false, err
	}
	token, okToken, err := s.LoadRefreshToken(ctx)
	if err != nil {
		return Session{}, false, err
	}
	if okAuth != okToken {
		if err := s.ClearSession(ctx); err != nil {
			return Session{}, false, err
		}
		return Session{}, false, nil
	}
	if !okAuth {
		return Session{}, false, nil
	}
	return Session{AuthRecord: rec, RefreshToken: token}, true, nil
}

func (s *Store) clearDurableSession(ctx context.Context) error {
	for _, key := range durableSessionKeys {
		if err := s.Durable.Remove(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// ClearSession erases the session from both partitions: the whole volatile
// set and the durable session keys. The installation identifier survives.
func (s *Store) ClearSession(ctx context.Context) error {
	if err := s.clearDurableSession(ctx); err != nil {
		return err
	}
	return s.Volatile.Clear(ctx)
}

// SavePending writes the single in-flight OTP request.
func (s *Store) SavePending(ctx context.Context, pending PendingOTP) error {
	return s.setJSON(ctx, s.Volatile, KeyOTPRequest, pending)
}

// LoadPending reads the in-flight OTP request, if any.
func (s *Store) LoadPending(ctx context.Context) (PendingOTP, bool, error) {
	var pending PendingOTP
	ok, err := s.getJSON(ctx, s.Volatile, KeyOTPRequest, &pending)
	return pending, ok, err
}

// ClearPending removes the in-flight OTP request.
func (s *Store) ClearPending(ctx context.Context) error {
	return s.Volatile.Remove(ctx, KeyOTPRequest)
}

// SaveProfile caches a profile snapshot.
func (s *Store) SaveProfile(ctx context.Context, profile CachedProfile) error {
	return s.setJSON(ctx, s.Volatile, KeyUserProfile, profile)
}

// LoadProfile reads the cached profile snapshot, if any.
func (s *Store) LoadProfile(ctx context.Context) (CachedProfile, bool, error) {
	var profile CachedProfile
	ok, err := s.getJSON(ctx, s.Volatile, KeyUserProfile, &profile)
	return profile, ok, err
}

// ClearProfile drops the cached profile snapshot.
func (s *Store) ClearProfile(ctx context.Context) error {
	return s.Volatile.Remove(ctx, KeyUserProfile)
}

// SaveFlowState persists the machine's current discriminant.
func (s *Store) SaveFlowState(ctx context.Context, state string) error {
	return s.Volatile.Set(ctx, KeyFlowState, []byte(state))
}

// LoadFlowState reads the persisted discriminant. Callers must treat it as
// a hint; startup reconciliation rederives it from durable facts.
func (s *Store) LoadFlowState(ctx context.Context) (string, bool, error) {
	data, ok, err := s.Volatile.Get(ctx, KeyFlowState)
	if err != nil || !ok {
		return "", false, err
	}
	return string(data), true, nil
}
