package redisstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenDenylist remembers access tokens revoked by sign-out until they expire.
type TokenDenylist struct {
	rdb redis.UniversalClient
}

// NewTokenDenylist constructs a denylist.
func NewTokenDenylist(rdb redis.UniversalClient) *TokenDenylist {
	return &TokenDenylist{rdb: rdb}
}

// Revoke stores the token hash until expiresAt. Already expired tokens are ignored.
func (d *TokenDenylist) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return d.rdb.Set(ctx, denyKey(token), "revoked", ttl).Err()
}

// IsRevoked reports whether the token was revoked.
func (d *TokenDenylist) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := d.rdb.Exists(ctx, denyKey(token)).Result()
	return n > 0, err
}

func denyKey(token string) string {
	h := sha256.Sum256([]byte(token))
	return "jwt:denylist:" + hex.EncodeToString(h[:])
}
