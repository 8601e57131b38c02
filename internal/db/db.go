// Package db defines the key-value backend behind the find-similar cache.
// Implementations live in subpackages (redis serves both Redis and Valkey).
package db

import (
	"context"
	"time"
)

// Store is a key-value backend with its connection lifecycle.
type Store interface {
	KVStore
	Pinger
	// WaitForReady pings until the backend answers or timeout elapses.
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore stores opaque byte values. Get returns ErrKeyNotFound for missing or expired keys.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// SetWithTTL stores value for ttl; a non-positive ttl stores it without expiry.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
