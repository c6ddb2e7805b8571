package store

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"
)

const (
	kdfIterations = 100000
	kdfKeyLen     = 32
)

// kdfSalt is fixed. Uniqueness of the derived key comes from the
// per-installation identifier, not from the salt.
var kdfSalt = []byte("passless.refresh-token.v1")

// Cipher seals the refresh token for the durable partition. The key is
// derived once per process from a stable per-installation identifier and is
// never persisted; it can always be rederived from the identifier.
type Cipher struct {
	durable Partition

	mu  sync.Mutex
	key []byte
}

// NewCipher binds the cipher to the durable partition that holds the
// installation identifier. Key derivation is deferred until first use.
func NewCipher(durable Partition) *Cipher {
	return &Cipher{durable: durable}
}

// installID returns the stable per-installation identifier, creating and
// persisting one on first use.
func (c *Cipher) installID(ctx context.Context) (string, error) {
	data, ok, err := c.durable.Get(ctx, KeyInstallID)
	if err != nil {
		return "", err
	}
	if ok && len(data) > 0 {
		return string(data), nil
	}
	id := uuid.NewString()
	if err := c.durable.Set(ctx, KeyInstallID, []byte(id)); err != nil {
		return "", err
	}
	return id, nil
}

func (c *Cipher) deriveKey(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key != nil {
		return c.key, nil
	}
	id, err := c.installID(ctx)
	if err != nil {
		return nil, err
	}
	c.key = pbkdf2.Key([]byte(id), kdfSalt, kdfIterations, kdfKeyLen, sha256.New)
	return c.key, nil
}

func (c *Cipher) aead(ctx context.Context) (cipher.AEAD, error) {
	key, err := c.deriveKey(ctx)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: cipher init: %v", ErrUnavailable, err)
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with a fresh random nonce and returns ciphertext
// and nonce separately, matching the side-by-side storage layout.
func (c *Cipher) Seal(ctx context.Context, plaintext []byte) (ciphertext, nonce []byte, err error) {
	aead, err := c.aead(ctx)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("%w: nonce: %v", ErrUnavailable, err)
	}
	return aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Open decrypts a sealed value. Authentication failure is reported as
// (nil, false, nil), never as an error: a secret that cannot be opened is
// treated exactly like an absent one.
func (c *Cipher) Open(ctx context.Context, ciphertext, nonce []byte) ([]byte, bool, error) {
	aead, err := c.aead(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, false, nil
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, false, nil
	}
	return plaintext, true, nil
}
