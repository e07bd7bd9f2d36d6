package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
)

// Issuer builds signed access/refresh pairs for an identity. The refresh TTL
// must dwarf the access TTL: the refresh token carries session continuity,
// not request-level authorization.
type Issuer struct {
	codec      *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewIssuer(codec *Codec, accessTTL, refreshTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}

	return &Issuer{
		codec:      codec,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (i *Issuer) Issue(identityID string) (TokenPair, error) {
	now := time.Now().UTC()
	access := Claims{
		Subject:   identityID,
		TokenID:   uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(i.accessTTL),
	}
	refresh := Claims{
		Subject:   identityID,
		TokenID:   uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(i.refreshTTL),
	}

	accessToken, err := i.codec.Sign(access)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := i.codec.Sign(refresh)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:   accessToken,
		AccessClaims:  access,
		RefreshToken:  refreshToken,
		RefreshClaims: refresh,
	}, nil
}
