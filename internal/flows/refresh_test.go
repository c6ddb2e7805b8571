package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/passless/passless/provider"
	"github.com/passless/passless/store"
)

func TestNeedsRefreshMarginBoundary(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	margin := 5 * time.Minute

	cases := []struct {
		name  string
		until time.Duration
		want  bool
	}{
		{"well outside margin", time.Hour, false},
		{"just outside margin", 5*time.Minute + 6*time.Second, false},
		{"exactly at margin", 5 * time.Minute, true},
		{"just inside margin", 4*time.Minute + 54*time.Second, true},
		{"already expired", -time.Minute, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NeedsRefresh(now.Add(tc.until), now, margin); got != tc.want {
				t.Fatalf("NeedsRefresh(now+%s): got %v, want %v", tc.until, got, tc.want)
			}
		})
	}
}

// recordingStore captures the order of facade calls during a flow.
type recordingStore struct {
	session    store.Session
	hasSession bool
	flowState  string
	ops        []string
}

func (s *recordingStore) note(op string) { s.ops = append(s.ops, op) }

func (s *recordingStore) SaveSession(_ context.Context, rec store.AuthRecord, refreshToken string) error {
	s.note("SaveSession")
	s.session = store.Session{AuthRecord: rec, RefreshToken: refreshToken}
	s.hasSession = true
	return nil
}

func (s *recordingStore) UpdateAuth(_ context.Context, rec store.AuthRecord) error {
	s.note("UpdateAuth")
	s.session.AuthRecord = rec
	return nil
}

func (s *recordingStore) UpdateRefreshToken(_ context.Context, refreshToken string) error {
	s.note("UpdateRefreshToken")
	s.session.RefreshToken = refreshToken
	return nil
}

func (s *recordingStore) LoadAuth(context.Context) (store.AuthRecord, bool, error) {
	s.note("LoadAuth")
	return s.session.AuthRecord, s.hasSession, nil
}

func (s *recordingStore) LoadSessionMeta(context.Context) (store.SessionMeta, bool, error) {
	s.note("LoadSessionMeta")
	if !s.hasSession {
		return store.SessionMeta{}, false, nil
	}
	return store.SessionMeta{CreatedAt: s.session.SessionCreatedAt, Email: s.session.Email}, true, nil
}

func (s *recordingStore) LoadRefreshToken(context.Context) (string, bool, error) {
	s.note("LoadRefreshToken")
	return s.session.RefreshToken, s.hasSession, nil
}

func (s *recordingStore) LoadSession(context.Context) (store.Session, bool, error) {
	s.note("LoadSession")
	return s.session, s.hasSession, nil
}

func (s *recordingStore) ClearSession(context.Context) error {
	s.note("ClearSession")
	s.session = store.Session{}
	s.hasSession = false
	return nil
}

func (s *recordingStore) SavePending(context.Context, store.PendingOTP) error {
	s.note("SavePending")
	return nil
}

func (s *recordingStore) LoadPending(context.Context) (store.PendingOTP, bool, error) {
	s.note("LoadPending")
	return store.PendingOTP{}, false, nil
}

func (s *recordingStore) ClearPending(context.Context) error {
	s.note("ClearPending")
	return nil
}

func (s *recordingStore) SaveProfile(context.Context, store.CachedProfile) error {
	s.note("SaveProfile")
	return nil
}

func (s *recordingStore) LoadProfile(context.Context) (store.CachedProfile, bool, error) {
	s.note("LoadProfile")
	return store.CachedProfile{}, false, nil
}

func (s *recordingStore) ClearProfile(context.Context) error {
	s.note("ClearProfile")
	return nil
}

func (s *recordingStore) SaveFlowState(_ context.Context, state string) error {
	s.note("SaveFlowState")
	s.flowState = state
	return nil
}

func (s *recordingStore) LoadFlowState(context.Context) (string, bool, error) {
	s.note("LoadFlowState")
	return s.flowState, s.flowState != "", nil
}

func (s *recordingStore) indexOf(op string) int {
	for i, o := range s.ops {
		if o == op {
			return i
		}
	}
	return -1
}

func refreshDeps(st SessionStore, now time.Time, grant func(context.Context, string) (provider.TokenBundle, error)) Deps {
	return Deps{
		Now:             func() time.Time { return now },
		SessionLifetime: 7 * 24 * time.Hour,
		Store:           st,
		StartOTP:        func(context.Context, string) error { return nil },
		ExchangeOTP: func(context.Context, string, string) (provider.TokenBundle, error) {
			return provider.TokenBundle{}, nil
		},
		RefreshGrant: grant,
		Errors: Errors{
			NotReady:         errors.New("not ready"),
			SessionExpired:   errors.New("session expired"),
			RefreshFailed:    errors.New("refresh failed"),
			Storage:          errors.New("storage"),
			NotAuthenticated: errors.New("not authenticated"),
		},
	}
}

func TestRefreshRotationWritesDurableHalfFirst(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	st := &recordingStore{
		session: store.Session{
			AuthRecord: store.AuthRecord{
				Email:            "user@example.com",
				AccessToken:      "at-1",
				AccessExpiresAt:  now.Add(2 * time.Minute),
				SessionCreatedAt: now.Add(-time.Hour),
			},
			RefreshToken: "rt-1",
		},
		hasSession: true,
	}

	deps := refreshDeps(st, now, func(_ context.Context, refreshToken string) (provider.TokenBundle, error) {
		if refreshToken != "rt-1" {
			t.Fatalf("grant saw token %q", refreshToken)
		}
		return provider.TokenBundle{AccessToken: "at-2", RefreshToken: "rt-2", ExpiresIn: 3600}, nil
	})

	res, err := RunRefresh(context.Background(), deps)
	if err != nil {
		t.Fatalf("RunRefresh failed: %v", err)
	}
	if res.Record.AccessToken != "at-2" {
		t.Fatalf("access token not rotated: %q", res.Record.AccessToken)
	}
	if st.session.RefreshToken != "rt-2" {
		t.Fatalf("refresh token not rotated: %q", st.session.RefreshToken)
	}

	// The rotated refresh token must land before the volatile auth record,
	// so a crash between the writes never strands a burned token.
	durable := st.indexOf("UpdateRefreshToken")
	volatile := st.indexOf("UpdateAuth")
	if durable == -1 || volatile == -1 {
		t.Fatalf("expected both writes, ops: %v", st.ops)
	}
	if durable > volatile {
		t.Fatalf("volatile half written before durable half, ops: %v", st.ops)
	}
}

func TestRefreshWithoutRotationKeepsStoredToken(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	st := &recordingStore{
		session: store.Session{
			AuthRecord: store.AuthRecord{
				Email:            "user@example.com",
				AccessToken:      "at-1",
				SessionCreatedAt: now.Add(-time.Hour),
			},
			RefreshToken: "rt-1",
		},
		hasSession: true,
	}

	deps := refreshDeps(st, now, func(context.Context, string) (provider.TokenBundle, error) {
		return provider.TokenBundle{AccessToken: "at-2", ExpiresIn: 3600}, nil
	})

	if _, err := RunRefresh(context.Background(), deps); err != nil {
		t.Fatalf("RunRefresh failed: %v", err)
	}
	if st.session.RefreshToken != "rt-1" {
		t.Fatalf("stored token lost: %q", st.session.RefreshToken)
	}
	if st.indexOf("UpdateRefreshToken") != -1 {
		t.Fatalf("unexpected refresh token write, ops: %v", st.ops)
	}
}
