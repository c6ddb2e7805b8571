package passless

import "errors"

var (
	// ErrNotReady is returned when the machine is used before Build wired it.
	ErrNotReady = errors.New("machine not ready")
	// ErrInvalidEmail is returned for a syntactically or provider-rejected email.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrEmailDomainNotAllowed is returned when the email's domain is outside the configured allowlist.
	ErrEmailDomainNotAllowed = errors.New("email domain not allowed")
	// ErrRateLimited is returned when the OTP request window is exhausted, locally or remotely.
	ErrRateLimited = errors.New("otp requests rate limited")
	// ErrInvalidOTP is returned for a wrong code; the pending request survives.
	ErrInvalidOTP = errors.New("invalid otp code")
	// ErrOTPExpired is returned when the code aged out; the pending request is cleared.
	ErrOTPExpired = errors.New("otp code expired")
	// ErrNetwork is returned after transport-level retries are exhausted.
	ErrNetwork = errors.New("network failure")
	// ErrProviderUnavailable is returned after 5xx retries are exhausted.
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	// ErrSessionExpired is returned when the session passed its absolute lifetime.
	ErrSessionExpired = errors.New("session expired")
	// ErrRefreshFailed is returned when the refresh grant was rejected; the session is gone.
	ErrRefreshFailed = errors.New("token refresh failed")
	// ErrStorage is returned when a storage backend failed.
	ErrStorage = errors.New("storage failure")
	// ErrNotAuthenticated is returned for operations that need a session when none exists.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrValidation is returned for claim validation failures and unrecognized provider errors.
	ErrValidation = errors.New("validation failed")
)

// Code is the wire-level error discriminant sent to UI surfaces.
type Code string

const (
	CodeInvalidEmail          Code = "INVALID_EMAIL"
	CodeInvalidOTP            Code = "INVALID_OTP"
	CodeOTPExpired            Code = "OTP_EXPIRED"
	CodeRateLimited           Code = "RATE_LIMITED"
	CodeNetworkError          Code = "NETWORK_ERROR"
	CodeAuth0Unavailable      Code = "AUTH0_UNAVAILABLE"
	CodeSessionExpired        Code = "SESSION_EXPIRED"
	CodeRefreshFailed         Code = "REFRESH_FAILED"
	CodeStorageError          Code = "STORAGE_ERROR"
	CodeNotAuthenticated      Code = "NOT_AUTHENTICATED"
	CodeValidationError       Code = "VALIDATION_ERROR"
	CodeEmailDomainNotAllowed Code = "EMAIL_DOMAIN_NOT_ALLOWED"
)

// codeTable pins one fixed, non-technical message per code. Codes are never
// invented at call sites.
var codeTable = []struct {
	err     error
	code    Code
	message string
}{
	{ErrInvalidEmail, CodeInvalidEmail, "Please enter a valid email address."},
	{ErrEmailDomainNotAllowed, CodeEmailDomainNotAllowed, "This email domain is not allowed."},
	{ErrRateLimited, CodeRateLimited, "Too many code requests. Please wait a few minutes and try again."},
	{ErrInvalidOTP, CodeInvalidOTP, "That code is not correct. Please check and try again."},
	{ErrOTPExpired, CodeOTPExpired, "That code has expired. Please request a new one."},
	{ErrNetwork, CodeNetworkError, "Could not reach the sign-in service. Check your connection."},
	{ErrProviderUnavailable, CodeAuth0Unavailable, "The sign-in service is temporarily unavailable. Please try again shortly."},
	{ErrSessionExpired, CodeSessionExpired, "Your session has expired. Please sign in again."},
	{ErrRefreshFailed, CodeRefreshFailed, "Your session could not be renewed. Please sign in again."},
	{ErrStorage, CodeStorageError, "Something went wrong saving your session. Please try again."},
	{ErrNotAuthenticated, CodeNotAuthenticated, "You are not signed in."},
	{ErrValidation, CodeValidationError, "Something went wrong. Please try again."},
	{ErrNotReady, CodeValidationError, "Something went wrong. Please try again."},
}

// CodeOf maps any machine error to its wire code and fixed message. Unknown
// errors fold into VALIDATION_ERROR so no raw error ever crosses the UI
// boundary.
func CodeOf(err error) (Code, string) {
	for _, entry := range codeTable {
		if errors.Is(err, entry.err) {
			return entry.code, entry.message
		}
	}
	return CodeValidationError, "Something went wrong. Please try again."
}
