package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nitin-nirvajna/crypto-mockfolio/internal/market"
	"github.com/redis/go-redis/v9"
)

const snapshotKey = "market:snapshot"

// SnapshotCache keeps the latest market snapshot in redis so a restart
// with the upstream API down can still value portfolios against slightly
// stale prices.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *SnapshotCache) Get(ctx context.Context) (*market.Snapshot, error) {
	payload, err := c.client.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var snap market.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, err
	}

	return &snap, nil
}

func (c *SnapshotCache) Set(ctx context.Context, snap *market.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, snapshotKey, payload, c.ttl).Err()
}
