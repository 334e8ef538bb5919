// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// TokenIssuer signs and verifies identity tokens. The key pair lives for the life of the process,
// so tokens do not survive a restart.
type TokenIssuer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	ttl        time.Duration
	now        func() time.Time
}

// NewTokenIssuer generates a fresh ed25519 key pair. A zero ttl issues tokens without an exp claim.
func NewTokenIssuer(ttl time.Duration) (*TokenIssuer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &TokenIssuer{privateKey: priv, publicKey: pub, ttl: ttl, now: time.Now}, nil
}

// Issue creates a signed token with sub = userID.
func (ti *TokenIssuer) Issue(userID uuid.UUID) (string, error) {
	now := ti.now()
	claims := jwt.RegisteredClaims{
		Subject:  userID.String(),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if ti.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ti.ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(ti.privateKey)
}

// Verify checks the signature and expiry and returns the user id in "sub".
func (ti *TokenIssuer) Verify(tokenString string) (uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	t, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ti.publicKey, nil
	}, jwt.WithTimeFunc(ti.now))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !t.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad sub: %w", ErrInvalidToken, err)
	}
	return userID, nil
}
