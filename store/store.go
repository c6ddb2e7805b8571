package store

import (
	"context"
	"errors"
)

// Storage keys. The volatile partition holds the access-side session half
// and all flow-scoped scratch state; the durable partition holds the sealed
// refresh token and the metadata needed to judge session age after restart.
const (
	KeyAuth        = "auth"
	KeyOTPRequest  = "otpRequest"
	KeyUserProfile = "userProfile"
	KeyFlowState   = "flowState"

	KeyEncryptedRefreshToken = "encryptedRefreshToken"
	KeyRefreshTokenIV        = "refreshTokenIV"
	KeySessionMeta           = "sessionMeta"
	KeyInstallID             = "installId"
)

// ErrUnavailable is returned when a storage backend cannot be reached or
// rejects an operation. Missing keys are not errors.
var ErrUnavailable = errors.New("storage backend unavailable")

// Partition is one of the two storage tiers. Get reports a missing key as
// (nil, false, nil); it never fails on absence.
type Partition interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
