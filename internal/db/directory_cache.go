package db

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"campuspush/internal/types"
)

const directoryCacheKeyPrefix = "campuspush:campus-members:"

// DirectoryReader is the read side of the campus directory.
type DirectoryReader interface {
	MembersOf(ctx context.Context, campus string) ([]types.RecipientID, error)
}

// RedisClient is the subset of *redis.Client used by the cache.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// CachedDirectory is a read-through Redis cache in front of a DirectoryReader.
// Cache faults never fail a lookup: they are logged and the store is queried.
// Empty memberships are not cached so a newly populated campus is visible
// immediately.
type CachedDirectory struct {
	next   DirectoryReader
	rdb    RedisClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedDirectory wraps next with a Redis cache using the given TTL.
func NewCachedDirectory(next DirectoryReader, rdb RedisClient, ttl time.Duration, logger *slog.Logger) *CachedDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedDirectory{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

// MembersOf returns cached members when present, otherwise queries the store
// and populates the cache.
func (c *CachedDirectory) MembersOf(ctx context.Context, campus string) ([]types.RecipientID, error) {
	key := directoryCacheKeyPrefix + campus

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var members []types.RecipientID
		if decodeErr := json.Unmarshal(raw, &members); decodeErr == nil {
			return members, nil
		}
		c.logger.Warn("discarding undecodable directory cache entry", "campus", campus)
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("directory cache read failed", "campus", campus, "error", err)
	}

	members, err := c.next.MembersOf(ctx, campus)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return members, nil
	}

	encoded, err := json.Marshal(members)
	if err != nil {
		return members, nil
	}
	if err := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		c.logger.Warn("directory cache write failed", "campus", campus, "error", err)
	}

	return members, nil
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}
