// ABOUTME: Session token issuance and verification using HS256 signed JWTs
// ABOUTME: Claims carry identity, role and department; expiry is checked against an injectable clock

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/2389/petition-gateway/internal/store"
)

// Token errors
var (
	ErrInvalidSignature = errors.New("invalid token")
	ErrExpired          = errors.New("token expired")
	ErrRevoked          = errors.New("token revoked")
	ErrSecretTooShort   = errors.New("signing secret too short")
)

// MinSecretLength is the minimum accepted signing secret length in bytes.
const MinSecretLength = 32

// DefaultTokenLifetime is used when TokenConfig.Lifetime is zero.
const DefaultTokenLifetime = time.Hour

// Claims are the signed session attributes. The subject is the identity ID.
type Claims struct {
	jwt.RegisteredClaims
	Role         store.Role `json:"role"`
	DepartmentID *string    `json:"departmentId,omitempty"`
	DisplayName  string     `json:"displayName,omitempty"`
}

// IdentityID returns the subject of the token.
func (c *Claims) IdentityID() string {
	return c.Subject
}

// TokenConfig configures a TokenService.
type TokenConfig struct {
	Secret   []byte
	Lifetime time.Duration
	Issuer   string
	Cookie   CookieConfig

	// Denylist enables revocation of individual tokens when set.
	Denylist *Denylist

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// TokenService issues and verifies session tokens. It is immutable after
// construction and safe for concurrent use.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
	issuer   string
	cookie   CookieConfig
	denylist *Denylist
	now      func() time.Time
	parser   *jwt.Parser
}

// NewTokenService validates the secret and returns a ready service.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: got %d bytes, need at least %d", ErrSecretTooShort, len(cfg.Secret), MinSecretLength)
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = DefaultTokenLifetime
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &TokenService{
		secret:   append([]byte(nil), cfg.Secret...),
		lifetime: cfg.Lifetime,
		issuer:   cfg.Issuer,
		cookie:   cfg.Cookie.withDefaults(),
		denylist: cfg.Denylist,
		now:      cfg.Now,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s, nil
}

// Lifetime returns the validity period of issued tokens.
func (s *TokenService) Lifetime() time.Duration {
	return s.lifetime
}

// Issue signs a token for identity with exp = now + lifetime.
func (s *TokenService) Issue(identity *store.Identity) (string, *Claims, error) {
	// NumericDate has second precision, so keep iat and exp on whole seconds.
	now := s.now().UTC().Truncate(time.Second)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
			ID:        uuid.NewString(),
		},
		Role:         identity.Role,
		DepartmentID: identity.DepartmentID,
		DisplayName:  identity.DisplayName,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("signing token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature, format and expiry. Any tampering or malformation
// yields ErrInvalidSignature; a valid token at or past exp yields ErrExpired.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !token.Valid || claims.Subject == "" || !claims.Role.Valid() {
		return nil, ErrInvalidSignature
	}

	if s.denylist != nil && s.denylist.Contains(claims.ID, s.now()) {
		return nil, ErrRevoked
	}

	return claims, nil
}
