package counter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestMemStoreWindowExpiresFromFirstHit(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	s := NewMemStore().WithClock(clock.Now)

	n, err := s.IncrementWithExpiry(ctx, "joins:g1", 60*time.Second)
	assert.NoError(err)
	assert.Equal(int64(1), n)

	// later hits do not push the expiry out
	clock.Advance(40 * time.Second)
	n, _ = s.IncrementWithExpiry(ctx, "joins:g1", 60*time.Second)
	assert.Equal(int64(2), n)

	clock.Advance(20*time.Second + time.Millisecond)
	n, _ = s.IncrementWithExpiry(ctx, "joins:g1", 60*time.Second)
	assert.Equal(int64(1), n, "event after window+epsilon starts a new window")
}

func TestMemStoreGetSetDelete(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	s := NewMemStore().WithClock(clock.Now)

	_, ok, err := s.Get(ctx, "k")
	assert.NoError(err)
	assert.False(ok)

	assert.NoError(s.Set(ctx, "k", "v", time.Second))
	v, ok, _ := s.Get(ctx, "k")
	assert.True(ok)
	assert.Equal("v", v)

	clock.Advance(time.Second)
	_, ok, _ = s.Get(ctx, "k")
	assert.False(ok)

	assert.NoError(s.Set(ctx, "forever", "1", 0))
	clock.Advance(24 * time.Hour)
	_, ok, _ = s.Get(ctx, "forever")
	assert.True(ok)

	assert.NoError(s.Delete(ctx, "forever"))
	_, ok, _ = s.Get(ctx, "forever")
	assert.False(ok)
}

func TestMemStoreConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 250; j++ {
				_, err := s.IncrementWithExpiry(ctx, "nuke:g1:CHANNEL_DELETE", time.Minute)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	v, ok, err := s.Get(ctx, "nuke:g1:CHANNEL_DELETE")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2000", v)
}

type brokenStore struct {
	*MemStore
}

func (*brokenStore) IncrementWithExpiry(ctx context.Context, key string, window time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

func (*brokenStore) Delete(ctx context.Context, key string) error {
	return errors.New("connection refused")
}

func TestRateWindowFailureIsNoCount(t *testing.T) {
	w := NewRateWindow(&brokenStore{NewMemStore()}, time.Second)

	assert.Equal(t, NoCount, w.Hit(context.Background(), "spam:g1:u1", time.Minute))
	assert.NotPanics(t, func() { w.Reset(context.Background(), "spam:g1:u1") })
}

func TestRateWindowCountsAndResets(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	w := NewRateWindow(NewMemStore(), 0)

	assert.Equal(int64(1), w.Hit(ctx, "k", time.Minute))
	assert.Equal(int64(2), w.Hit(ctx, "k", time.Minute))
	w.Reset(ctx, "k")
	assert.Equal(int64(1), w.Hit(ctx, "k", time.Minute))
}

func TestRedisStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)

	s, err := NewRedisStore("redis://"+mr.Addr(), "nervesx/")
	require.NoError(t, err)
	defer s.Close()

	n, err := s.IncrementWithExpiry(ctx, "nuke:g1:CHANNEL_DELETE", time.Minute)
	assert.NoError(err)
	assert.Equal(int64(1), n)
	n, err = s.IncrementWithExpiry(ctx, "nuke:g1:CHANNEL_DELETE", time.Minute)
	assert.NoError(err)
	assert.Equal(int64(2), n)
	assert.True(mr.Exists("nervesx/nuke:g1:CHANNEL_DELETE"))
	assert.Equal(time.Minute, mr.TTL("nervesx/nuke:g1:CHANNEL_DELETE"))

	mr.FastForward(time.Minute)
	n, err = s.IncrementWithExpiry(ctx, "nuke:g1:CHANNEL_DELETE", time.Minute)
	assert.NoError(err)
	assert.Equal(int64(1), n)

	assert.NoError(s.Set(ctx, "spam:g1:u1", `{"count":1}`, 5*time.Second))
	v, ok, err := s.Get(ctx, "spam:g1:u1")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(`{"count":1}`, v)

	assert.NoError(s.Delete(ctx, "spam:g1:u1"))
	_, ok, err = s.Get(ctx, "spam:g1:u1")
	assert.NoError(err)
	assert.False(ok)

	assert.NoError(s.Ping(ctx))
}

func TestRedisStoreRestoresMissingTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("joins:g1", "3"))

	s, err := NewRedisStore("redis://"+mr.Addr(), "")
	require.NoError(t, err)
	defer s.Close()

	n, err := s.IncrementWithExpiry(ctx, "joins:g1", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, 30*time.Second, mr.TTL("joins:g1"))
}
