package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/models"
	"github.com/CandyToyBox/analytics-wave-warz-sub000/internal/observability"
)

const profileKeyPrefix = "warz:profile:"

// ProfileCache keeps built trader profiles in Redis. Building a
// profile costs up to ten history pages, so even a short TTL takes
// real load off the upstream APIs. The cache is optional; a nil
// *ProfileCache disables it.
type ProfileCache struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

func NewProfileCache(rdb *redis.Client, ttl time.Duration) *ProfileCache {
	return &ProfileCache{
		rdb: rdb,
		ttl: ttl,
		log: observability.NewLogger("profile-cache"),
	}
}

// Get returns the cached profile, or nil on a miss.
func (c *ProfileCache) Get(ctx context.Context, wallet string) (*models.TraderProfileStats, error) {
	if c == nil {
		return nil, nil
	}

	blob, err := c.rdb.Get(ctx, profileKeyPrefix+wallet).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get profile %s: %w", wallet, err)
	}

	var profile models.TraderProfileStats
	if err := json.Unmarshal(blob, &profile); err != nil {
		return nil, fmt.Errorf("decode cached profile %s: %w", wallet, err)
	}
	return &profile, nil
}

// Put stores the profile for the configured TTL.
func (c *ProfileCache) Put(ctx context.Context, p *models.TraderProfileStats) error {
	if c == nil {
		return nil
	}

	blob, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile %s: %w", p.Wallet, err)
	}
	if err := c.rdb.Set(ctx, profileKeyPrefix+p.Wallet, blob, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set profile %s: %w", p.Wallet, err)
	}
	return nil
}

// Ping reports cache reachability for the health endpoint.
func (c *ProfileCache) Ping(ctx context.Context) error {
	if c == nil {
		return errors.New("profile cache disabled")
	}
	return c.rdb.Ping(ctx).Err()
}
