package db

import "context"

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PoolProbe reports database reachability to the health endpoint.
type PoolProbe struct {
	Pool Pinger
}

func (p PoolProbe) Name() string { return "database" }

func (p PoolProbe) Check(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}

// RedisProbe reports cache reachability to the health endpoint.
type RedisProbe struct {
	Client RedisClient
}

func (p RedisProbe) Name() string { return "redis" }

func (p RedisProbe) Check(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
