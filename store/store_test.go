package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	durable, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	st := New(NewRedisPartition(rdb, ""), durable)
	return st, func() {
		rdb.Close()
		mr.Close()
	}
}

func testAuthRecord(now time.Time) AuthRecord {
	return AuthRecord{
		Email:            "user@example.com",
		AccessToken:      "at-1",
		IDToken:          "idt-1",
		AccessExpiresAt:  now.Add(time.Hour),
		SessionCreatedAt: now,
	}
}

func TestSessionRoundTrip(t *testing.T) {
	st, done := newTestStore(t)
	defer done()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	if err := st.SaveSession(ctx, testAuthRecord(now), "rt-secret"); err != nil {
		t.Fatalf("save session: %v", err)
	}

	sess, ok, err := st.LoadSession(ctx)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if !ok {
		t.Fatal("expected a complete session")
	}
	if sess.Email != "user@example.com" || sess.AccessToken != "at-1" {
		t.Fatalf("unexpected access half: %+v", sess.AuthRecord)
	}
	if sess.RefreshToken != "rt-secret" {
		t.Fatalf("expected refresh token round-trip, got %q", sess.RefreshToken)
	}
	if !sess.SessionCreatedAt.Equal(now) {
		t.Fatalf("sessionCreatedAt drifted: %v vs %v", sess.SessionCreatedAt, now)
	}

	meta, ok, err := st.LoadSessionMeta(ctx)
	if err != nil || !ok {
		t.Fatalf("load meta: ok=%v err=%v", ok, err)
	}
	if meta.Email != "user@example.com" || !meta.CreatedAt.Equal(now) {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}

func TestRefreshTokenNeverStoredInPlaintext(t *testing.T) {
	st, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	if err := st.SaveSession(ctx, testAuthRecord(time.Now()), "rt-secret"); err != nil {
		t.Fatalf("save session: %v", err)
	}
	raw, ok, err := st.Durable.Get(ctx, KeyEncryptedRefreshToken)
	if err != nil || !ok {
		t.Fatalf("read ciphertext: ok=%v err=%v", ok, err)
	}
	if string(raw) == "rt-secret" {
		t.Fatal("refresh token written in plaintext")
	}
}

func TestCorruptedCiphertextReportsAbsentAndErases(t *testing.T) {
	st, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	if err := st.SaveSession(ctx, testAuthRecord(time.Now()), "rt-secret"); err != nil {
		t.Fatalf("save session: %v", err)
	}
	if err := st.Durable.Set(ctx, KeyEncryptedRefreshToken, []byte("garbage")); err != nil {
		t.Fatalf("corrupt ciphertext: %v", err)
	}

	token, ok, err := st.LoadRefreshToken(ctx)
	if err != nil {
		t.Fatalf("decrypt failure must not be a hard error: %v", err)
	}
	if ok || token != "" {
		t.Fatalf("expected absent token, got %q", token)
	}

	// The corrupted entry and its siblings must be gone.
	for _, key := range []string{KeyEncryptedRefreshToken, KeyRefreshTokenIV, KeySessionMeta} {
		if _, present, _ := st.Durable.Get(ctx, key); present {
			t.Fatalf("durable key %s survived corruption self-heal", key)
		}
	}
}

func TestCorruptedNonceReportsAbsent(t *testing.T) {
	st, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	if err := st.SaveSession(ctx, testAuthRecord(time.Now()), "rt-secret"); err != nil {
		t.Fatalf("save session: %v", err)
	}
	if err := st.Durable.Set(ctx, KeyRefreshTokenIV, []byte{1, 2, 3}); err != nil {
		t.Fatalf("corrupt nonce: %v", err)
	}
	_, ok, err := st.LoadRefreshToken(ctx)
	if err != nil {
		t.Fatalf("decrypt failure must not be a hard error: %v", err)
	}
	if ok {
		t.Fatal("expected absent token after nonce corruption")
	}
}

func TestPartialSessionSelfHeals(t *testing.T) {
	st, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	if err := st.SaveSession(ctx, testAuthRecord(time.Now()), "rt-secret"); err != nil {
		t.Fatalf("save session: %v", err)
	}
	// Simulate the browser closing: the volatile half evaporates.
	if err := st.Volatile.Remove(ctx, KeyAuth); err != nil {
		t.Fatalf("drop volatile half: %v", err)
	}

	_, ok, err := st.LoadSession(ctx)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if ok {
		t.Fatal("half a session must read as no session")
	}
	if _, present, _ := st.Durable.Get(ctx, KeyEncryptedRefreshToken); present {
		t.Fatal("surviving durable half was not erased")
	}
}

func TestClearSessionKeepsInstallID(t *testing.T) {
	st, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	if err := st.SaveSession(ctx, testAuthRecord(time.Now()), "rt-1"); err != nil {
		t.Fatalf("save session: %v", err)
	}
	idBefore, ok, _ := st.Durable.Get(ctx, KeyInstallID)
	if !ok {
		t.Fatal("install id missing after first seal")
	}

	if err := st.ClearSession(ctx); err != nil {
		t.Fatalf("clear session: %v", err)
	}
	if _, ok, _ := st.LoadSession(ctx); ok {
		t.Fatal("session survived clear")
	}

	// A new login on the same installation must reuse the same identifier,
	// otherwise previously sealed data could never be judged corrupt vs
	// foreign.
	if err := st.SaveSession(ctx, testAuthRecord(time.Now()), "rt-2"); err != nil {
		t.Fatalf("save second session: %v", err)
	}
	idAfter, _, _ := st.Durable.Get(ctx, KeyInstallID)
	if string(idBefore) != string(idAfter) {
		t.Fatalf("install id changed across logout: %s vs %s", idBefore, idAfter)
	}
}

func TestPendingAndProfileRoundTrip(t *testing.T) {
	st, done := newTestStore(t)
	defer done()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	pending := PendingOTP{Email: "user@example.com", RequestedAt: now, AttemptCount: 2, WindowStart: now}
	if err := st.SavePending(ctx, pending); err != nil {
		t.Fatalf("save pending: %v", err)
	}
	got, ok, err := st.LoadPending(ctx)
	if err != nil || !ok {
		t.Fatalf("load pending: ok=%v err=%v", ok, err)
	}
	if got.AttemptCount != 2 || got.Email != pending.Email {
		t.Fatalf("unexpected pending: %+v", got)
	}
	if err := st.ClearPending(ctx); err != nil {
		t.Fatalf("clear pending: %v", err)
	}
	if _, ok, _ := st.LoadPending(ctx); ok {
		t.Fatal("pending survived clear")
	}

	profile := CachedProfile{Sub: "auth0|1", Email: "user@example.com", EmailVerified: true, FetchedAt: now}
	if err := st.SaveProfile(ctx, profile); err != nil {
		t.Fatalf("save profile: %v", err)
	}
	gotProfile, ok, err := st.LoadProfile(ctx)
	if err != nil || !ok {
		t.Fatalf("load profile: ok=%v err=%v", ok, err)
	}
	if gotProfile.Sub != "auth0|1" || !gotProfile.EmailVerified {
		t.Fatalf("unexpected profile: %+v", gotProfile)
	}
}

func TestUnparseableRecordReadsAsAbsent(t *testing.T) {
	st, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	if err := st.Volatile.Set(ctx, KeyOTPRequest, []byte("{not json")); err != nil {
		t.Fatalf("seed garbage: %v", err)
	}
	_, ok, err := st.LoadPending(ctx)
	if err != nil {
		t.Fatalf("garbage record must not be a hard error: %v", err)
	}
	if ok {
		t.Fatal("garbage record read as present")
	}
	if _, present, _ := st.Volatile.Get(ctx, KeyOTPRequest); present {
		t.Fatal("garbage record was not erased")
	}
}

func TestFlowStateRoundTrip(t *testing.T) {
	st, done := newTestStore(t)
	defer done()
	ctx := context.Background()

	if _, ok, _ := st.LoadFlowState(ctx); ok {
		t.Fatal("fresh store reported a flow state")
	}
	if err := st.SaveFlowState(ctx, "PENDING_OTP"); err != nil {
		t.Fatalf("save flow state: %v", err)
	}
	state, ok, err := st.LoadFlowState(ctx)
	if err != nil || !ok {
		t.Fatalf("load flow state: ok=%v err=%v", ok, err)
	}
	if state != "PENDING_OTP" {
		t.Fatalf("unexpected flow state %q", state)
	}
}
