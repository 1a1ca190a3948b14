package cache

import (
	"context"
	"errors"
	"log"
	"time"
)

// FailOpen wraps a Store so cache backend failures degrade to misses and
// dropped writes instead of surfacing errors. A broken cache must never take
// the read path down with it.
type FailOpen struct {
	store Store
}

// NewFailOpen wraps store with fail-open behavior
func NewFailOpen(store Store) *FailOpen {
	return &FailOpen{store: store}
}

// Get returns ErrMiss on any backend failure, logging the real error
func (f *FailOpen) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := f.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			log.Printf("[WARN] cache get failed, treating as miss: %v", err)
		}
		return nil, ErrMiss
	}
	return data, nil
}

// Set swallows backend failures, logging them
func (f *FailOpen) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := f.store.Set(ctx, key, value, ttl); err != nil {
		log.Printf("[WARN] cache set failed, skipping: %v", err)
	}
	return nil
}

// Delete swallows backend failures, logging them
func (f *FailOpen) Delete(ctx context.Context, key string) error {
	if err := f.store.Delete(ctx, key); err != nil {
		log.Printf("[WARN] cache delete failed, skipping: %v", err)
	}
	return nil
}

// Close closes the wrapped store
func (f *FailOpen) Close() {
	f.store.Close()
}
