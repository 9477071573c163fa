package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuspush/internal/types"
)

type fakeRedis struct {
	values  map[string]string
	getErr  error
	setErr  error
	pingErr error
	sets    int
	lastTTL time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.sets++
	f.lastTTL = expiration
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Ping(_ context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.pingErr)
}

type fakeDirectory struct {
	members map[string][]types.RecipientID
	err     error
	calls   int
}

func (f *fakeDirectory) MembersOf(_ context.Context, campus string) ([]types.RecipientID, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.members[campus], nil
}

func TestCachedDirectory_MissThenHit(t *testing.T) {
	rdb := newFakeRedis()
	store := &fakeDirectory{members: map[string][]types.RecipientID{"north": {"u1", "u2"}}}
	cache := NewCachedDirectory(store, rdb, 5*time.Minute, nil)
	ctx := context.Background()

	first, err := cache.MembersOf(ctx, "north")
	require.NoError(t, err)
	assert.Equal(t, []types.RecipientID{"u1", "u2"}, first)
	assert.Equal(t, 1, rdb.sets)
	assert.Equal(t, 5*time.Minute, rdb.lastTTL)

	second, err := cache.MembersOf(ctx, "north")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.calls, "second lookup should be served from cache")
}

func TestCachedDirectory_EmptyNotCached(t *testing.T) {
	rdb := newFakeRedis()
	store := &fakeDirectory{members: map[string][]types.RecipientID{}}
	cache := NewCachedDirectory(store, rdb, time.Minute, nil)

	members, err := cache.MembersOf(context.Background(), "empty")
	require.NoError(t, err)
	assert.Empty(t, members)
	assert.Zero(t, rdb.sets)
}

func TestCachedDirectory_ReadFailureFallsBackToStore(t *testing.T) {
	rdb := newFakeRedis()
	rdb.getErr = errors.New("dial tcp: connection refused")
	rdb.setErr = errors.New("dial tcp: connection refused")
	store := &fakeDirectory{members: map[string][]types.RecipientID{"north": {"u1"}}}
	cache := NewCachedDirectory(store, rdb, time.Minute, nil)

	members, err := cache.MembersOf(context.Background(), "north")
	require.NoError(t, err)
	assert.Equal(t, []types.RecipientID{"u1"}, members)
	assert.Equal(t, 1, store.calls)
}

func TestCachedDirectory_CorruptEntryIgnored(t *testing.T) {
	rdb := newFakeRedis()
	rdb.values[directoryCacheKeyPrefix+"north"] = "not-json"
	store := &fakeDirectory{members: map[string][]types.RecipientID{"north": {"u9"}}}
	cache := NewCachedDirectory(store, rdb, time.Minute, nil)

	members, err := cache.MembersOf(context.Background(), "north")
	require.NoError(t, err)
	assert.Equal(t, []types.RecipientID{"u9"}, members)
	assert.Equal(t, `["u9"]`, rdb.values[directoryCacheKeyPrefix+"north"])
}

func TestCachedDirectory_StoreErrorPropagates(t *testing.T) {
	rdb := newFakeRedis()
	storeErr := types.NewAppError(types.ErrCodeInternalDB, "failed to query campus members", errors.New("boom"))
	store := &fakeDirectory{err: storeErr}
	cache := NewCachedDirectory(store, rdb, time.Minute, nil)

	_, err := cache.MembersOf(context.Background(), "north")
	assert.ErrorIs(t, err, storeErr)
	assert.Zero(t, rdb.sets)
}

func TestProbes(t *testing.T) {
	rdb := newFakeRedis()
	probe := RedisProbe{Client: rdb}
	assert.Equal(t, "redis", probe.Name())
	assert.NoError(t, probe.Check(context.Background()))

	rdb.pingErr = errors.New("down")
	assert.Error(t, probe.Check(context.Background()))

	pool := PoolProbe{Pool: pingFunc(func(context.Context) error { return nil })}
	assert.Equal(t, "database", pool.Name())
	assert.NoError(t, pool.Check(context.Background()))
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }
