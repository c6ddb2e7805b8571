package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// DefaultScope is requested when the configuration leaves Scope empty.
// offline_access is what makes the provider mint a refresh token.
const DefaultScope = "openid profile email offline_access"

const (
	grantPasswordlessOTP = "http://auth0.com/oauth/grant-type/passwordless/otp"
	grantRefreshToken    = "refresh_token"

	defaultMaxTries = 3
)

// Config describes one provider tenant and application.
type Config struct {
	// BaseURL is the tenant origin, e.g. https://tenant.auth0.com.
	BaseURL  string
	ClientID string
	// Audience is the optional API audience forwarded on the start call.
	Audience string
	// Scope defaults to DefaultScope when empty.
	Scope string

	// HTTPClient defaults to a client with a 10s timeout.
	HTTPClient *http.Client
	// MaxTries bounds attempts per operation, retries included.
	MaxTries uint
}

// Client talks to the provider. It holds no session data; every call is a
// pure function of its arguments.
type Client struct {
	baseURL  string
	clientID string
	audience string
	scope    string
	http     *http.Client
	maxTries uint

	// backOff is swapped in tests to avoid real sleeps.
	backOff func() backoff.BackOff
}

// New builds a Client, applying defaults for scope, HTTP client and retry
// budget.
func New(cfg Config) *Client {
	scope := cfg.Scope
	if scope == "" {
		scope = DefaultScope
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	maxTries := cfg.MaxTries
	if maxTries == 0 {
		maxTries = defaultMaxTries
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		clientID: cfg.ClientID,
		audience: cfg.Audience,
		scope:    scope,
		http:     httpClient,
		maxTries: maxTries,
		backOff:  newBackOff,
	}
}

// TokenBundle is the provider's token response. RefreshToken and IDToken are
// optional on refresh responses; callers fall back to their stored values.
type TokenBundle struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Profile is the /userinfo response.
type Profile struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

type apiError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
	Message     string `json:"message"`
}

func (e apiError) text() string {
	if e.Description != "" {
		return e.Description
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

type startRequest struct {
	ClientID   string          `json:"client_id"`
	Connection string          `json:"connection"`
	Email      string          `json:"email"`
	Send       string          `json:"send"`
	AuthParams startAuthParams `json:"authParams"`
}

type startAuthParams struct {
	Scope    string `json:"scope"`
	Audience string `json:"audience,omitempty"`
}

type exchangeRequest struct {
	GrantType string `json:"grant_type"`
	ClientID  string `json:"client_id"`
	Username  string `json:"username"`
	OTP       string `json:"otp"`
	Realm     string `json:"realm"`
	Scope     string `json:"scope"`
}

type refreshRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	RefreshToken string `json:"refresh_token"`
}

// StartOTP asks the provider to email a one-time code.
func (c *Client) StartOTP(ctx context.Context, email string) error {
	body := startRequest{
		ClientID:   c.clientID,
		Connection: "email",
		Email:      email,
		Send:       "code",
		AuthParams: startAuthParams{Scope: c.scope, Audience: c.audience},
	}
	var out json.RawMessage
	return c.call(ctx, http.MethodPost, "/passwordless/start", body, "", classifyStart, &out)
}

// ExchangeOTP trades a code for tokens via the passwordless grant.
func (c *Client) ExchangeOTP(ctx context.Context, email, code string) (TokenBundle, error) {
	body := exchangeRequest{
		GrantType: grantPasswordlessOTP,
		ClientID:  c.clientID,
		Username:  email,
		OTP:       code,
		Realm:     "email",
		Scope:     c.scope,
	}
	var bundle TokenBundle
	err := c.call(ctx, http.MethodPost, "/oauth/token", body, "", classifyExchange, &bundle)
	return bundle, err
}

// Refresh trades a refresh token for a fresh bundle.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (TokenBundle, error) {
	body := refreshRequest{
		GrantType:    grantRefreshToken,
		ClientID:     c.clientID,
		RefreshToken: refreshToken,
	}
	var bundle TokenBundle
	err := c.call(ctx, http.MethodPost, "/oauth/token", body, "", classifyRefresh, &bundle)
	return bundle, err
}

// FetchProfile reads /userinfo with the given bearer token.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (Profile, error) {
	var profile Profile
	err := c.call(ctx, http.MethodGet, "/userinfo", nil, accessToken, classifyProfile, &profile)
	return profile, err
}

func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 5 * time.Second
	b.RandomizationFactor = 0.5
	b.Multiplier = 2
	return b
}

// call performs one HTTP operation with the package retry policy. classify
// maps a non-2xx, non-5xx response to a sentinel; 5xx and transport errors
// are retried here before surfacing.
func (c *Client) call(ctx context.Context, method, path string, body any, bearer string, classify func(status int, e apiError) error, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", ErrUnrecognized, err)
		}
	}

	op := func() (struct{}, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w: build request: %v", ErrUnrecognized, err))
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("%w: %v", ErrNetwork, err)
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return struct{}{}, fmt.Errorf("%w: read response: %v", ErrNetwork, err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out != nil && len(data) > 0 {
				if err := json.Unmarshal(data, out); err != nil {
					return struct{}{}, backoff.Permanent(fmt.Errorf("%w: decode response: %v", ErrUnrecognized, err))
				}
			}
			return struct{}{}, nil
		}
		if resp.StatusCode >= 500 {
			return struct{}{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		}

		var apiErr apiError
		_ = json.Unmarshal(data, &apiErr)
		return struct{}{}, backoff.Permanent(classify(resp.StatusCode, apiErr))
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(c.backOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	return err
}

func classifyStart(status int, e apiError) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, e.text())
	case status == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalidEmail, e.text())
	default:
		return fmt.Errorf("%w: status %d: %s", ErrUnrecognized, status, e.text())
	}
}

// classifyExchange disambiguates a wrong code from an expired one by
// substring match on the description; the passwordless grant reports both as
// invalid_grant.
func classifyExchange(status int, e apiError) error {
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ErrRateLimited, e.text())
	}
	if e.Code == "invalid_grant" || e.Code == "invalid_user_password" {
		desc := strings.ToLower(e.Description)
		if strings.Contains(desc, "expired") || strings.Contains(desc, "maximum number") {
			return fmt.Errorf("%w: %s", ErrOTPExpired, e.text())
		}
		return fmt.Errorf("%w: %s", ErrInvalidOTP, e.text())
	}
	return fmt.Errorf("%w: status %d: %s", ErrUnrecognized, status, e.text())
}

func classifyRefresh(status int, e apiError) error {
	return fmt.Errorf("%w: status %d: %s", ErrRefreshFailed, status, e.text())
}

func classifyProfile(status int, e apiError) error {
	if status == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrUnauthorized, e.text())
	}
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s", ErrRateLimited, e.text())
	}
	return fmt.Errorf("%w: status %d: %s", ErrUnrecognized, status, e.text())
}
