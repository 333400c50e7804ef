package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss means the key was never set, or was deleted.
	ErrCacheMiss = errors.New("cache: key not found")
	// ErrExpired means the key existed but its TTL elapsed.
	ErrExpired = errors.New("cache: key expired")
)

// CacheService defines the interface for a shared cache.
type CacheService interface {
	// Get unmarshals the stored value into dest.
	Get(ctx context.Context, key string, dest interface{}) error

	// Set marshals value and stores it for ttl. A zero ttl never expires.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	Delete(ctx context.Context, key string) error
}

// IsMiss reports whether err means "nothing usable stored".
func IsMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss) || errors.Is(err, ErrExpired)
}
