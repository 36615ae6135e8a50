package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultTokenTTL = 2 * time.Hour
	DefaultIssuer   = "movie-platform-app"
	DefaultAudience = "movie-platform-users"

	// ClockSkew is the tolerance applied to iat and exp across instances.
	ClockSkew = 30 * time.Second
)

// Authenticator is the contract every session source implements. The local
// TokenService is the system of record; an external identity provider can
// sit behind the same interface instead of it.
type Authenticator interface {
	Issue(userID, email string) (IssuedToken, error)
	Verify(ctx context.Context, token string) (Identity, error)
	Revoke(ctx context.Context, token, userID string, reason RevocationReason) error
}

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	Secret   string
	TTL      time.Duration
	Issuer   string
	Audience string
}

type TokenService struct {
	secret    []byte
	ttl       time.Duration
	issuer    string
	audience  string
	blacklist *Blacklist
	now       func() time.Time
}

func NewTokenService(cfg TokenConfig, blacklist *Blacklist) *TokenService {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}

	return &TokenService{
		secret:    []byte(cfg.Secret),
		ttl:       cfg.TTL,
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
		blacklist: blacklist,
		now:       time.Now,
	}
}

func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

func (s *TokenService) Issue(userID, email string) (IssuedToken, error) {
	if strings.TrimSpace(userID) == "" {
		return IssuedToken{}, fmt.Errorf("issue token: empty user id")
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	encoded, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign jwt: %w", err)
	}

	return IssuedToken{
		Token:     encoded,
		TokenType: "Bearer",
		ExpiresIn: int64(s.ttl.Seconds()),
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify checks the signature first, then the blacklist, then the time and
// audience claims. A forged token never reaches the store.
func (s *TokenService) Verify(ctx context.Context, token string) (Identity, error) {
	claims, err := s.parseSigned(token)
	if err != nil {
		return Identity{}, err
	}

	if s.blacklist != nil && s.blacklist.Contains(ctx, Fingerprint(token)) {
		return Identity{}, ErrTokenBlacklisted
	}

	validator := jwt.NewValidator(
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(ClockSkew),
		jwt.WithTimeFunc(s.now),
	)
	if err := validator.Validate(claims); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.UserID == "" {
		return Identity{}, fmt.Errorf("%w: missing user id", ErrTokenInvalid)
	}

	return identityFromClaims(claims), nil
}

// Revoke blacklists the token until its own expiry plus ClockSkew. Tokens
// past that point are left alone since they can no longer verify.
func (s *TokenService) Revoke(ctx context.Context, token, userID string, reason RevocationReason) error {
	if s.blacklist == nil {
		return fmt.Errorf("revoke token: no blacklist configured")
	}

	claims, err := s.parseSigned(token)
	if err != nil {
		return err
	}
	if claims.ExpiresAt == nil {
		return fmt.Errorf("%w: missing exp claim", ErrTokenInvalid)
	}
	if userID == "" {
		userID = claims.UserID
	}

	expiresAt := claims.ExpiresAt.Time.UTC().Add(ClockSkew)
	if !s.now().Before(expiresAt) {
		return nil
	}

	return s.blacklist.Add(ctx, Fingerprint(token), userID, reason, expiresAt)
}

func (s *TokenService) parseSigned(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	return claims, nil
}

func identityFromClaims(claims *Claims) Identity {
	identity := Identity{UserID: claims.UserID, Email: claims.Email}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return identity
}

// Fingerprint is the stored form of a bearer token or reset secret.
func Fingerprint(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
