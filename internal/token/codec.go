// Package token signs and verifies stateless HS256 identity tokens.
package token

import (
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/skillmarket/internal/model"
)

// DefaultLifetime is used when the configured lifetime is not positive.
const DefaultLifetime = 30 * 24 * time.Hour

// ErrEmptySecret is returned by NewCodec when no signing secret is configured.
var ErrEmptySecret = errors.New("token: empty signing secret")

// Claims is the identity claim set embedded in a token.
// Registered claims carry sub, iat and exp.
type Claims struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Identity converts verified claims into the authenticated principal.
func (c Claims) Identity() model.Identity {
	id, _ := uuid.FromString(c.Subject)
	return model.Identity{UserID: id, Email: c.Email, Username: c.Username}
}

// Codec issues and verifies tokens with a single process-wide secret.
// It holds no mutable state and is safe for concurrent use.
type Codec struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

// Option customizes a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for iat/exp and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// NewCodec constructs a Codec. The secret is copied.
func NewCodec(secret []byte, lifetime time.Duration, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	c := &Codec{
		secret:   append([]byte(nil), secret...),
		lifetime: lifetime,
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Lifetime reports how long issued tokens stay valid.
func (c *Codec) Lifetime() time.Duration { return c.lifetime }

// Sign creates a signed token for id with iat=now and exp=now+lifetime.
func (c *Codec) Sign(id model.Identity) (string, Claims, error) {
	now := c.now()
	claims := Claims{
		Email:    id.Email,
		Username: id.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.lifetime)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, claims, nil
}

// Verify returns the claims of a valid token. Malformed input, a foreign
// algorithm, a signature mismatch, a missing or past expiry, and a non-UUID
// subject all yield ok=false with no further detail.
func (c *Codec) Verify(raw string) (Claims, bool) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, false
	}
	if _, err := uuid.FromString(claims.Subject); err != nil {
		return Claims{}, false
	}
	return claims, true
}
