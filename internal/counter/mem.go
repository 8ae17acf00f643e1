package counter

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memEntry struct {
	val     string
	expires time.Time // zero means no expiry
}

// MemStore is an in-process Store for single-node runs and tests.
type MemStore struct {
	mu   sync.Mutex
	data map[string]memEntry
	now  func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		data: make(map[string]memEntry),
		now:  time.Now,
	}
}

// WithClock replaces the time source. Tests use it to step over window boundaries.
func (s *MemStore) WithClock(now func() time.Time) *MemStore {
	s.now = now
	return s
}

// lookup returns the live entry for key, dropping it if expired. Caller holds mu.
func (s *MemStore) lookup(key string) (memEntry, bool) {
	e, ok := s.data[key]
	if !ok {
		return memEntry{}, false
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.data, key)
		return memEntry{}, false
	}
	return e, true
}

func (s *MemStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	return e.val, ok, nil
}

func (s *MemStore) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := memEntry{val: val}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.data[key] = e
	return nil
}

func (s *MemStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

func (s *MemStore) IncrementWithExpiry(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	var n int64
	if ok {
		var err error
		n, err = strconv.ParseInt(e.val, 10, 64)
		if err != nil {
			return 0, err
		}
	}
	n++
	e.val = strconv.FormatInt(n, 10)
	if n == 1 || e.expires.IsZero() {
		e.expires = s.now().Add(window)
	}
	s.data[key] = e
	return n, nil
}

func (s *MemStore) Ping(ctx context.Context) error {
	return nil
}
