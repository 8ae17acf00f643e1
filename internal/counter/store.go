// Package counter holds the shared ephemeral key-value store used for every
// anomaly window, and the rate-window helper built on top of it.
package counter

import (
	"context"
	"time"
)

// Store is the shared ephemeral key-value store.
//
// IncrementWithExpiry must be a single atomic operation: increment the key and,
// when the increment created it, set its expiry to window. The key disappears
// window after the first hit.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes val. A zero ttl means no expiry.
	Set(ctx context.Context, key, val string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	IncrementWithExpiry(ctx context.Context, key string, window time.Duration) (int64, error)
	Ping(ctx context.Context) error
}
