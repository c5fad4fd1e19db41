// Package cache stores JSON values by key, in Redis or in process.
package cache

import (
	"context"
	"time"
)

// Cache is a JSON key/value store with per-entry expiry.
type Cache interface {
	// GetJSON decodes the entry into dst. A missing, expired or undecodable
	// entry is a miss, not an error.
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	// SetJSON stores val for ttl; ttl <= 0 keeps it until deleted.
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
