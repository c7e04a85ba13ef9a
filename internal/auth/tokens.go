package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenConfig carries the signing material for both token kinds. The
// refresh secret is distinct from the access secret so a leaked access
// token can never be replayed as a refresh token and the two can be
// rotated independently.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Claims are the session claims embedded into every token: identity,
// tenancy and role, plus a type discriminator. They are derived from the
// User at issuance and go stale on role change until the next refresh.
type Claims struct {
	Email          string `json:"email"`
	OrganizationID string `json:"org"`
	Role           Role   `json:"role"`
	TokenType      string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is the result of a successful authentication: a short-lived
// access token and a longer-lived refresh token.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// TokenService signs and validates session tokens. It is stateless: Issue
// is a pure function of the user's current claims and the signing
// configuration, with no side effects beyond signing.
type TokenService struct {
	cfg TokenConfig
	now func() time.Time
}

// TokenOption configures TokenService behavior.
type TokenOption func(*TokenService)

// WithClock overrides the time source, for tests.
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenService validates the configuration and constructs the service.
func NewTokenService(cfg TokenConfig, opts ...TokenOption) (*TokenService, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("auth: both access and refresh secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	svc := &TokenService{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Issue signs an access/refresh pair for the user's current claims.
func (s *TokenService) Issue(u *User) (TokenPair, error) {
	if u == nil || strings.TrimSpace(u.ID) == "" {
		return TokenPair{}, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	now := s.now().UTC()

	access, accessExp, err := s.sign(u, tokenTypeAccess, s.cfg.AccessSecret, s.cfg.AccessTTL, now)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.sign(u, tokenTypeRefresh, s.cfg.RefreshSecret, s.cfg.RefreshTTL, now)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// ValidateAccess verifies an access token and returns its claims. Expired,
// tampered, malformed and type-confused tokens all fail with
// ErrUnauthorized and nothing more specific.
func (s *TokenService) ValidateAccess(token string) (*Claims, error) {
	return s.validate(token, tokenTypeAccess, s.cfg.AccessSecret)
}

// ValidateRefresh verifies a refresh token using the refresh secret. A
// token without the refresh type discriminator is rejected even if the
// signature checks out.
func (s *TokenService) ValidateRefresh(token string) (*Claims, error) {
	return s.validate(token, tokenTypeRefresh, s.cfg.RefreshSecret)
}

func (s *TokenService) sign(u *User, tokenType string, secret []byte, ttl time.Duration, now time.Time) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := Claims{
		Email:          u.Email,
		OrganizationID: u.OrganizationID,
		Role:           u.Role,
		TokenType:      tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (s *TokenService) validate(token, wantType string, secret []byte) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthorized
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, ErrUnauthorized
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrUnauthorized
	}
	if claims.TokenType != wantType {
		return nil, ErrUnauthorized
	}
	if strings.TrimSpace(claims.Subject) == "" || !claims.Role.Valid() {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// HashToken derives the value stored on the user record for refresh-token
// rotation. Only the hash is ever persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// VerifyTokenHash compares a presented token against a stored hash in
// constant time.
func VerifyTokenHash(storedHash, token string) bool {
	actual := HashToken(token)
	if len(storedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(actual)) == 1
}
