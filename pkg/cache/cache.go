package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when a key is absent or expired
var ErrMiss = errors.New("cache miss")

// Store is a byte-oriented key-value cache with per-entry TTL
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close()
}

// Nop is a disabled cache, every read misses and writes are dropped.
// Used when no cache backend is configured.
type Nop struct{}

// NewNop creates a disabled cache
func NewNop() *Nop { return &Nop{} }

// Get always misses
func (n *Nop) Get(_ context.Context, _ string) ([]byte, error) { return nil, ErrMiss }

// Set drops the value
func (n *Nop) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }

// Delete is a no-op
func (n *Nop) Delete(_ context.Context, _ string) error { return nil }

// Close is a no-op
func (n *Nop) Close() {}
