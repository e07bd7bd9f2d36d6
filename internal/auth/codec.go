package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Codec signs and verifies compact HS256 claim sets.
type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

func (c *Codec) Sign(claims Claims) (string, error) {
	if len(c.secret) == 0 {
		return "", ErrSigningKeyUnavailable
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   claims.Subject,
		ID:        claims.TokenID,
		IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
	})
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// Verify recomputes the signature and checks expiry. Every rejection is
// ErrTokenRejected regardless of cause.
func (c *Codec) Verify(tokenStr string) (Claims, error) {
	var registered jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &registered, func(token *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return Claims{}, ErrTokenRejected
	}
	if registered.Subject == "" || registered.ID == "" || registered.IssuedAt == nil {
		return Claims{}, ErrTokenRejected
	}

	return Claims{
		Subject:   registered.Subject,
		TokenID:   registered.ID,
		IssuedAt:  registered.IssuedAt.Time,
		ExpiresAt: registered.ExpiresAt.Time,
	}, nil
}
