package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"bedlog-backend/internal/bed"
)

// ErrInvalidToken is returned for malformed, expired or revoked tokens.
var ErrInvalidToken = errors.New("invalid session token")

// Claims is the session token body.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity is what a valid token proves.
type Identity struct {
	UID   string
	Email string
	Claim bed.Role
}

// Issuer signs session tokens and keeps the revocation list and the
// outstanding password-reset tokens in memory.
type Issuer struct {
	secret   []byte
	ttl      time.Duration
	resetTTL time.Duration
	revoked  *cache.Cache
	resets   *cache.Cache
	now      func() time.Time
}

// NewIssuer creates an issuer signing with secret.
func NewIssuer(secret string, ttl, resetTTL time.Duration) *Issuer {
	return &Issuer{
		secret:   []byte(secret),
		ttl:      ttl,
		resetTTL: resetTTL,
		revoked:  cache.New(ttl, 10*time.Minute),
		resets:   cache.New(resetTTL, 10*time.Minute),
		now:      time.Now,
	}
}

// Issue signs a token for uid carrying the trusted role claim.
func (i *Issuer) Issue(uid, email string, claim bed.Role) (string, error) {
	now := i.now()
	claims := Claims{
		Email: email,
		Role:  string(claim),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and revocation.
func (i *Issuer) Verify(token string) (Identity, error) {
	claims, err := i.parse(token)
	if err != nil {
		return Identity{}, err
	}
	if _, revoked := i.revoked.Get(claims.ID); revoked {
		return Identity{}, ErrInvalidToken
	}

	ident := Identity{UID: claims.Subject, Email: claims.Email}
	if role, ok := bed.ParseRole(claims.Role); ok {
		ident.Claim = role
	}
	return ident, nil
}

// Revoke invalidates token until it would have expired anyway.
func (i *Issuer) Revoke(token string) error {
	claims, err := i.parse(token)
	if err != nil {
		return err
	}
	ttl := claims.ExpiresAt.Time.Sub(i.now())
	if ttl <= 0 {
		return nil
	}
	i.revoked.Set(claims.ID, struct{}{}, ttl)
	return nil
}

func (i *Issuer) parse(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IssueReset creates a single-use password-reset token for uid.
func (i *Issuer) IssueReset(uid string) string {
	token := uuid.NewString()
	i.resets.Set(token, uid, cache.DefaultExpiration)
	return token
}

// ConsumeReset redeems a reset token, returning the uid it was issued for.
func (i *Issuer) ConsumeReset(token string) (string, bool) {
	v, ok := i.resets.Get(token)
	if !ok {
		return "", false
	}
	i.resets.Delete(token)
	return v.(string), true
}
