package idtoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalid is the root of every validation failure in this package.
var ErrInvalid = errors.New("id token validation failed")

// DefaultClockTolerance absorbs small clock skew between the client and the
// provider when judging exp and iat.
const DefaultClockTolerance = 60 * time.Second

// Expected carries the verifier's side of the claim contract.
type Expected struct {
	Issuer         string
	Audience       string
	Nonce          string
	ClockTolerance time.Duration

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Claims is the validated subset of the ID token payload.
type Claims struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
	Nonce         string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

type payload struct {
	Issuer        string   `json:"iss"`
	Subject       string   `json:"sub"`
	Audience      audience `json:"aud"`
	AuthorizedP   string   `json:"azp"`
	ExpiresAt     int64    `json:"exp"`
	IssuedAt      int64    `json:"iat"`
	Nonce         string   `json:"nonce"`
	Email         string   `json:"email"`
	EmailVerified bool     `json:"email_verified"`
	Name          string   `json:"name"`
	Picture       string   `json:"picture"`
}

// audience tolerates both the single-string and array JSON encodings.
type audience []string

func (a *audience) UnmarshalJSON(data []byte) error {
	var claims jwt.ClaimStrings
	if err := claims.UnmarshalJSON(data); err != nil {
		return err
	}
	*a = audience(claims)
	return nil
}

// GetExpirationTime and friends satisfy jwt.Claims; temporal checks are done
// manually in Validate so the tolerance rules stay in one place.
func (p payload) GetExpirationTime() (*jwt.NumericDate, error) { return nil, nil }
func (p payload) GetIssuedAt() (*jwt.NumericDate, error)       { return nil, nil }
func (p payload) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (p payload) GetIssuer() (string, error)                   { return p.Issuer, nil }
func (p payload) GetSubject() (string, error)                  { return p.Subject, nil }
func (p payload) GetAudience() (jwt.ClaimStrings, error) {
	return jwt.ClaimStrings(p.Audience), nil
}

func fail(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate decodes token and checks structure, issuer, audience, expiry,
// issued-at and nonce against exp. The signature is deliberately not
// verified; see the package documentation.
func Validate(token string, exp Expected) (Claims, error) {
	if strings.Count(token, ".") != 2 {
		return Claims{}, fail("malformed token structure")
	}

	var p payload
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &p); err != nil {
		return Claims{}, fail("decode: %v", err)
	}

	if exp.Issuer != "" && p.Issuer != exp.Issuer {
		return Claims{}, fail("issuer mismatch: got %q", p.Issuer)
	}

	if exp.Audience != "" {
		found := false
		for _, aud := range p.Audience {
			if aud == exp.Audience {
				found = true
				break
			}
		}
		if !found {
			return Claims{}, fail("audience mismatch")
		}
		// With multiple audiences the authorized party must name us, or the
		// token could have been minted for a sibling client.
		if len(p.Audience) > 1 && p.AuthorizedP != exp.Audience {
			return Claims{}, fail("authorized party mismatch")
		}
	}

	tolerance := exp.ClockTolerance
	if tolerance <= 0 {
		tolerance = DefaultClockTolerance
	}
	now := time.Now()
	if exp.Now != nil {
		now = exp.Now()
	}

	if p.ExpiresAt == 0 {
		return Claims{}, fail("missing exp claim")
	}
	expiresAt := time.Unix(p.ExpiresAt, 0)
	if now.After(expiresAt.Add(tolerance)) {
		return Claims{}, fail("token expired at %s", expiresAt.UTC().Format(time.RFC3339))
	}
	if p.IssuedAt != 0 {
		issuedAt := time.Unix(p.IssuedAt, 0)
		if issuedAt.After(now.Add(tolerance)) {
			return Claims{}, fail("token issued in the future")
		}
	}

	if exp.Nonce != "" && p.Nonce != exp.Nonce {
		return Claims{}, fail("nonce mismatch")
	}

	return Claims{
		Subject:       p.Subject,
		Email:         p.Email,
		EmailVerified: p.EmailVerified,
		Name:          p.Name,
		Picture:       p.Picture,
		Nonce:         p.Nonce,
		IssuedAt:      time.Unix(p.IssuedAt, 0),
		ExpiresAt:     time.Unix(p.ExpiresAt, 0),
	}, nil
}
