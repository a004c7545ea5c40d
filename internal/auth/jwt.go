// Package auth issues and verifies control tokens: HS256 JWTs held by
// operators and kiosk displays allowed to drive the shared animation.
// Read-only routes need no token.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token defaults.
const (
	DefaultTTL      = 12 * time.Hour
	DefaultIssuer   = "wxoverlay"
	DefaultAudience = "wxoverlay-control"
)

var (
	ErrInvalidToken = errors.New("invalid control token")
	ErrTokenExpired = errors.New("control token has expired")
	ErrDisabled     = errors.New("control tokens are disabled")
)

// Config configures Tokens. An empty Key disables control auth.
type Config struct {
	Key      string
	Issuer   string
	Audience string
	TTL      time.Duration

	// Now overrides the clock used to stamp and check tokens.
	Now func() time.Time
}

// Tokens issues and verifies control tokens.
type Tokens struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewTokens creates a token service, filling unset fields with defaults.
func NewTokens(cfg Config) *Tokens {
	t := &Tokens{
		key:      []byte(cfg.Key),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TTL,
		now:      cfg.Now,
	}
	if t.issuer == "" {
		t.issuer = DefaultIssuer
	}
	if t.audience == "" {
		t.audience = DefaultAudience
	}
	if t.ttl <= 0 {
		t.ttl = DefaultTTL
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// Enabled reports whether a signing key is configured.
func (t *Tokens) Enabled() bool {
	return t != nil && len(t.key) > 0
}

// Claims are the claims of a control token. The operator is the subject.
type Claims struct {
	jwt.RegisteredClaims
}

// Operator names the holder of the token.
func (c *Claims) Operator() string {
	return c.Subject
}

// Token is a signed control token.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Issue signs a token for operator.
func (t *Tokens) Issue(operator string) (Token, error) {
	if !t.Enabled() {
		return Token{}, ErrDisabled
	}
	now := t.now()
	exp := now.Add(t.ttl)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    t.issuer,
		Subject:   operator,
		Audience:  jwt.ClaimStrings{t.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}}).SignedString(t.key)
	if err != nil {
		return Token{}, fmt.Errorf("signing control token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// Verify parses raw and checks its signature, issuer, audience and expiry.
func (t *Tokens) Verify(raw string) (*Claims, error) {
	if !t.Enabled() {
		return nil, ErrDisabled
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return t.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(t.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	case claims.Subject == "":
		return nil, fmt.Errorf("%w: no operator", ErrInvalidToken)
	}
	return claims, nil
}
