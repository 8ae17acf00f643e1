package counter

import (
	"context"
	"time"

	"github.com/styxgzi/nervesx-bot/internal/logging"
)

// NoCount is returned by Hit when the store could not be reached. Callers
// treat it as "no detection this cycle".
const NoCount int64 = -1

// RateWindow wraps a Store with a per-call timeout and error swallowing so
// guards never fail an event because the counter store is down.
type RateWindow struct {
	store   Store
	timeout time.Duration
}

func NewRateWindow(store Store, timeout time.Duration) *RateWindow {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RateWindow{store: store, timeout: timeout}
}

func (w *RateWindow) Store() Store {
	return w.store
}

// Hit increments key within window and returns the post-increment count, or NoCount.
func (w *RateWindow) Hit(ctx context.Context, key string, window time.Duration) int64 {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	n, err := w.store.IncrementWithExpiry(ctx, key, window)
	if err != nil {
		counterErrors.WithLabelValues("increment").Inc()
		logging.Warn("[COUNTER] increment %s failed: %v", key, err)
		return NoCount
	}
	return n
}

// Reset deletes key after a triggered response.
func (w *RateWindow) Reset(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := w.store.Delete(ctx, key); err != nil {
		counterErrors.WithLabelValues("delete").Inc()
		logging.Warn("[COUNTER] reset %s failed: %v", key, err)
	}
}
