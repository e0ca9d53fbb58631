// Package auth issues and validates the bearer tokens that identify a
// traveller to the planner API. Per-user preference models and trips are keyed
// by the token's user id.
package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenExpiry is how long issued access tokens are valid.
const AccessTokenExpiry = 1 * time.Hour

// Defaults used when the environment leaves the JWT settings empty.
const (
	DefaultIssuer   = "https://planner.viajejapon.dev"
	DefaultAudience = "planner-api"
)

var (
	ErrInvalidAccessToken = errors.New("invalid access token")
	ErrAccessTokenExpired = errors.New("access token has expired")
	ErrMissingSigningKey  = errors.New("jwt signing key is required")
	ErrMissingUserID      = errors.New("user id is required")
)

// Claims are the claims carried by planner access tokens.
type Claims struct {
	jwt.RegisteredClaims

	// UserID is the traveller's id.
	UserID string `json:"uid"`
}

// JWTConfig holds configuration for the JWT service.
type JWTConfig struct {
	// SigningKey is the HS256 secret.
	SigningKey string
	Issuer     string
	Audience   string

	// TTL defaults to AccessTokenExpiry.
	TTL time.Duration

	Now func() time.Time
}

// ConfigFromEnv reads JWT_SIGNING_KEY, JWT_ISSUER and JWT_AUDIENCE.
func ConfigFromEnv() JWTConfig {
	cfg := JWTConfig{
		SigningKey: os.Getenv("JWT_SIGNING_KEY"),
		Issuer:     os.Getenv("JWT_ISSUER"),
		Audience:   os.Getenv("JWT_AUDIENCE"),
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	return cfg
}

// JWTService handles JWT creation and validation.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	ttl        time.Duration
	now        func() time.Time
}

// NewJWTService creates a JWT service. It fails without a signing key.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.SigningKey == "" {
		return nil, ErrMissingSigningKey
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	if cfg.TTL <= 0 {
		cfg.TTL = AccessTokenExpiry
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &JWTService{
		signingKey: []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		ttl:        cfg.TTL,
		now:        cfg.Now,
	}, nil
}

// IssueAccessToken signs an access token for userID.
func (s *JWTService) IssueAccessToken(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, ErrMissingUserID
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		UserID: userID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateAccessToken verifies signature, issuer, audience and expiry and
// returns the token's user id.
func (s *JWTService) ValidateAccessToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrAccessTokenExpired
		}
		return "", fmt.Errorf("%w: %s", ErrInvalidAccessToken, err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrInvalidAccessToken
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", fmt.Errorf("%w: no user id", ErrInvalidAccessToken)
	}
	return userID, nil
}
