package router

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/passless/passless"
	"github.com/passless/passless/internal/broadcast"
	"github.com/passless/passless/provider"
	"github.com/passless/passless/store"
)

type providerStub struct {
	srv          *httptest.Server
	refreshCalls atomic.Int64
}

func newProviderStub(t *testing.T) *providerStub {
	t.Helper()
	p := &providerStub{}
	mux := http.NewServeMux()
	mux.HandleFunc("/passwordless/start", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"_id": "x"})
	})
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		if body["grant_type"] == "refresh_token" {
			p.refreshCalls.Add(1)
		}
		if body["otp"] != "" && body["otp"] != "123456" {
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_grant",
				"error_description": "Wrong email or verification code.",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-1",
			"refresh_token": "rt-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub":            "auth0|user-1",
			"email":          "user@example.com",
			"email_verified": true,
		})
	})
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func newTestRouter(t *testing.T) (*Router, *broadcast.FanoutSink, *providerStub) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	durable, err := store.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	stub := newProviderStub(t)
	fanout := broadcast.NewFanoutSink()

	cfg := passless.Config{}
	cfg.Provider.BaseURL = stub.srv.URL
	cfg.Provider.ClientID = "client-abc"

	machine, err := passless.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithDurable(durable).
		WithProvider(provider.New(provider.Config{
			BaseURL:  stub.srv.URL,
			ClientID: "client-abc",
			MaxTries: 1,
		})).
		WithBroadcastSink(fanout).
		Build()
	if err != nil {
		t.Fatalf("build machine: %v", err)
	}
	t.Cleanup(machine.Close)

	scheduler := NewScheduler(machine)
	t.Cleanup(scheduler.Close)
	return NewRouter(machine, scheduler), fanout, stub
}

func mustPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func TestMessageFlowLoginAndLogout(t *testing.T) {
	r, _, _ := newTestRouter(t)
	ctx := context.Background()
	if err := r.Startup(ctx); err != nil {
		t.Fatalf("startup: %v", err)
	}

	resp := r.Handle(ctx, Request{Type: MsgGetAuthState})
	if !resp.Success {
		t.Fatalf("get auth state: %+v", resp.Error)
	}

	resp = r.Handle(ctx, Request{Type: MsgInitiateOTP, Payload: mustPayload(t, map[string]string{"email": "user@example.com"})})
	if !resp.Success {
		t.Fatalf("initiate: %+v", resp.Error)
	}

	resp = r.Handle(ctx, Request{Type: MsgVerifyOTP, Payload: mustPayload(t, map[string]string{"code": "123456"})})
	if !resp.Success {
		t.Fatalf("verify: %+v", resp.Error)
	}

	resp = r.Handle(ctx, Request{Type: MsgFetchUserInfo})
	if !resp.Success {
		t.Fatalf("fetch user info: %+v", resp.Error)
	}

	resp = r.Handle(ctx, Request{Type: MsgLogout})
	if !resp.Success {
		t.Fatalf("logout: %+v", resp.Error)
	}

	resp = r.Handle(ctx, Request{Type: MsgGetAuthState})
	view, ok := resp.Data.(*passless.AuthStateView)
	if !ok {
		t.Fatalf("unexpected data type %T", resp.Data)
	}
	if view.IsAuthenticated {
		t.Fatal("authenticated after logout")
	}
}

func TestWrongCodeEnvelope(t *testing.T) {
	r, _, _ := newTestRouter(t)
	ctx := context.Background()

	resp := r.Handle(ctx, Request{Type: MsgInitiateOTP, Payload: mustPayload(t, map[string]string{"email": "user@example.com"})})
	if !resp.Success {
		t.Fatalf("initiate: %+v", resp.Error)
	}

	resp = r.Handle(ctx, Request{Type: MsgVerifyOTP, Payload: mustPayload(t, map[string]string{"code": "000000"})})
	if resp.Success {
		t.Fatal("wrong code reported success")
	}
	if resp.Error == nil || resp.Error.Code != passless.CodeInvalidOTP {
		t.Fatalf("unexpected error envelope: %+v", resp.Error)
	}
	if resp.Error.Message == "" {
		t.Fatal("error message must be non-empty")
	}
}

func TestUnknownAndMalformedMessages(t *testing.T) {
	r, _, _ := newTestRouter(t)
	ctx := context.Background()

	resp := r.Handle(ctx, Request{Type: "Nonsense"})
	if resp.Success || resp.Error.Code != passless.CodeValidationError {
		t.Fatalf("unknown type: %+v", resp)
	}

	resp = r.Handle(ctx, Request{Type: MsgInitiateOTP, Payload: json.RawMessage(`{broken`)})
	if resp.Success || resp.Error.Code != passless.CodeValidationError {
		t.Fatalf("malformed payload: %+v", resp)
	}
}

func TestRefreshWithoutSession(t *testing.T) {
	r, _, _ := newTestRouter(t)
	ctx := context.Background()

	resp := r.Handle(ctx, Request{Type: MsgRefreshToken})
	if resp.Success || resp.Error.Code != passless.CodeNotAuthenticated {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHTTPMessageEndpoint(t *testing.T) {
	r, fanout, _ := newTestRouter(t)
	srv := httptest.NewServer(Handler(r, fanout))
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/v1/message", "application/json",
		strings.NewReader(`{"type":"GetAuthState"}`))
	if err != nil {
		t.Fatalf("post message: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			State string `json:"state"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Success || envelope.Data.State != "LOGGED_OUT" {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}

	health, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", health.StatusCode)
	}
}

func TestHTTPEventStreamDeliversBroadcast(t *testing.T) {
	r, fanout, _ := newTestRouter(t)
	srv := httptest.NewServer(Handler(r, fanout))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()

	// Give the subscription a moment to register before emitting.
	time.Sleep(50 * time.Millisecond)
	loginResp := r.Handle(context.Background(), Request{
		Type:    MsgInitiateOTP,
		Payload: mustPayload(t, map[string]string{"email": "user@example.com"}),
	})
	if !loginResp.Success {
		t.Fatalf("initiate: %+v", loginResp.Error)
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("stream read: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			var event broadcast.Event
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			if event.Type != broadcast.TypeAuthStateChanged {
				t.Fatalf("unexpected event type %q", event.Type)
			}
			return
		}
	}
}

func TestSchedulerImmediateRefreshInsideMargin(t *testing.T) {
	r, _, stub := newTestRouter(t)
	ctx := context.Background()

	resp := r.Handle(ctx, Request{Type: MsgInitiateOTP, Payload: mustPayload(t, map[string]string{"email": "user@example.com"})})
	if !resp.Success {
		t.Fatalf("initiate: %+v", resp.Error)
	}
	resp = r.Handle(ctx, Request{Type: MsgVerifyOTP, Payload: mustPayload(t, map[string]string{"code": "123456"})})
	if !resp.Success {
		t.Fatalf("verify: %+v", resp.Error)
	}

	// Pretend the clock jumped to inside the refresh margin: the token
	// expires in one hour, so a scheduler whose "now" is 56 minutes ahead
	// must refresh immediately instead of arming a timer.
	scheduler := r.scheduler
	scheduler.now = func() time.Time { return time.Now().Add(56 * time.Minute) }
	before := stub.refreshCalls.Load()
	scheduler.Arm(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for stub.refreshCalls.Load() == before {
		if time.Now().After(deadline) {
			t.Fatal("immediate refresh never fired")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSchedulerNoSessionCancels(t *testing.T) {
	r, _, stub := newTestRouter(t)
	ctx := context.Background()

	r.scheduler.Arm(ctx)
	time.Sleep(100 * time.Millisecond)
	if n := stub.refreshCalls.Load(); n != 0 {
		t.Fatalf("refresh fired without a session: %d", n)
	}
}
