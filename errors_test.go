package passless

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOfMapsEverySentinel(t *testing.T) {
	cases := []struct {
		err  error
		code Code
	}{
		{ErrInvalidEmail, CodeInvalidEmail},
		{ErrEmailDomainNotAllowed, CodeEmailDomainNotAllowed},
		{ErrRateLimited, CodeRateLimited},
		{ErrInvalidOTP, CodeInvalidOTP},
		{ErrOTPExpired, CodeOTPExpired},
		{ErrNetwork, CodeNetworkError},
		{ErrProviderUnavailable, CodeAuth0Unavailable},
		{ErrSessionExpired, CodeSessionExpired},
		{ErrRefreshFailed, CodeRefreshFailed},
		{ErrStorage, CodeStorageError},
		{ErrNotAuthenticated, CodeNotAuthenticated},
		{ErrValidation, CodeValidationError},
	}

	for _, tc := range cases {
		code, message := CodeOf(tc.err)
		if code != tc.code {
			t.Fatalf("CodeOf(%v): got %s, want %s", tc.err, code, tc.code)
		}
		if message == "" {
			t.Fatalf("CodeOf(%v): empty message", tc.err)
		}
	}
}

func TestCodeOfUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("initiate: %w", ErrRateLimited)
	code, _ := CodeOf(wrapped)
	if code != CodeRateLimited {
		t.Fatalf("wrapped error: got %s", code)
	}
}

func TestCodeOfFoldsUnknownErrors(t *testing.T) {
	code, message := CodeOf(errors.New("something internal"))
	if code != CodeValidationError {
		t.Fatalf("unknown error: got %s", code)
	}
	if message == "something internal" {
		t.Fatal("internal error text leaked into the user-facing message")
	}
}
