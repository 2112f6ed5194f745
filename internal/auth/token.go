package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenKind selects which secret and lifetime a token is issued under.
type TokenKind string

const (
	// TokenAccess is the short-lived bearer token presented on requests.
	TokenAccess TokenKind = "access"
	// TokenRefresh is the longer-lived token used to mint new access tokens.
	TokenRefresh TokenKind = "refresh"
)

// TokenClaims is the minimal identity claim set embedded in every token.
type TokenClaims struct {
	UserID int64  `json:"uid"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// CodecConfig holds per-kind secrets and lifetimes. Access and refresh
// secrets must be disjoint; a leaked access secret must not forge refresh
// tokens.
type CodecConfig struct {
	AccessSecret  []byte
	AccessTTL     time.Duration
	RefreshSecret []byte
	RefreshTTL    time.Duration
	Issuer        string
}

// Codec signs and verifies HS256 bearer tokens.
type Codec struct {
	config CodecConfig
	clock  Clock
	parser *jwt.Parser
}

// NewCodec constructs a Codec. Zero TTLs fall back to 15 minutes for access
// and 7 days for refresh tokens.
func NewCodec(cfg CodecConfig, clock Clock) *Codec {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Codec{
		config: cfg,
		clock:  clock,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(clock.Now),
		),
	}
}

// Issue signs an identity token of the given kind for the user.
func (c *Codec) Issue(user *User, kind TokenKind) (string, error) {
	secret, ttl, err := c.kindParams(kind)
	if err != nil {
		return "", err
	}
	now := c.clock.Now()
	claims := TokenClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrTokenSigning, err)
	}
	return signed, nil
}

// TTL returns the configured lifetime for the given kind.
func (c *Codec) TTL(kind TokenKind) time.Duration {
	if kind == TokenRefresh {
		return c.config.RefreshTTL
	}
	return c.config.AccessTTL
}

// Verify validates signature and expiry against the kind's secret and
// returns the embedded claims. Expired, wrongly signed, and malformed
// tokens fail with distinct errors so callers can react differently.
func (c *Codec) Verify(token string, kind TokenKind) (*TokenClaims, error) {
	secret, _, err := c.kindParams(kind)
	if err != nil {
		return nil, err
	}
	claims := &TokenClaims{}
	_, err = c.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrTokenSignature
	default:
		return nil, fmt.Errorf("%w: %s", ErrTokenMalformed, err)
	}
}

func (c *Codec) kindParams(kind TokenKind) ([]byte, time.Duration, error) {
	switch kind {
	case TokenAccess:
		if len(c.config.AccessSecret) == 0 {
			return nil, 0, fmt.Errorf("%w: access secret not configured", ErrTokenSigning)
		}
		return c.config.AccessSecret, c.config.AccessTTL, nil
	case TokenRefresh:
		if len(c.config.RefreshSecret) == 0 {
			return nil, 0, fmt.Errorf("%w: refresh secret not configured", ErrTokenSigning)
		}
		return c.config.RefreshSecret, c.config.RefreshTTL, nil
	default:
		return nil, 0, fmt.Errorf("%w: unknown token kind %q", ErrTokenSigning, kind)
	}
}
