package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/matchcast/internal/domain"
)

// FeatureCache implements domain.FeatureCache. Vectors are stored as JSON
// under features:{team}:{opponent}:{date} and expire after the configured TTL.
// A rebuild invalidates everything through Flush.
type FeatureCache struct {
	c   *Client
	ttl time.Duration
}

// NewFeatureCache creates a FeatureCache. A non-positive ttl keeps entries
// until the next Flush.
func NewFeatureCache(c *Client, ttl time.Duration) *FeatureCache {
	return &FeatureCache{c: c, ttl: ttl}
}

func (fc *FeatureCache) featureKey(team, opponent string, date time.Time) string {
	return fc.c.key("features", team, opponent, date.UTC().Format(domain.DateLayout))
}

// Get returns a cached vector or domain.ErrNotFound.
func (fc *FeatureCache) Get(ctx context.Context, team, opponent string, date time.Time) (domain.FeatureVector, error) {
	data, err := fc.c.rdb.Get(ctx, fc.featureKey(team, opponent, date)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.FeatureVector{}, domain.ErrNotFound
		}
		return domain.FeatureVector{}, fmt.Errorf("redis: get features %s/%s: %w", team, opponent, err)
	}
	var fv domain.FeatureVector
	if err := json.Unmarshal(data, &fv); err != nil {
		return domain.FeatureVector{}, fmt.Errorf("redis: unmarshal features %s/%s: %w", team, opponent, err)
	}
	return fv, nil
}

// Set stores fv under its own team, opponent and date.
func (fc *FeatureCache) Set(ctx context.Context, fv domain.FeatureVector) error {
	data, err := json.Marshal(fv)
	if err != nil {
		return fmt.Errorf("redis: marshal features %s/%s: %w", fv.Team, fv.Opponent, err)
	}
	ttl := fc.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := fc.c.rdb.Set(ctx, fc.featureKey(fv.Team, fv.Opponent, fv.MatchDate), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set features %s/%s: %w", fv.Team, fv.Opponent, err)
	}
	return nil
}

// Flush deletes every cached vector and returns how many were removed.
func (fc *FeatureCache) Flush(ctx context.Context) (int64, error) {
	var (
		cursor  uint64
		removed int64
	)
	pattern := fc.c.key("features", "*")
	for {
		keys, next, err := fc.c.rdb.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return removed, fmt.Errorf("redis: scan features: %w", err)
		}
		if len(keys) > 0 {
			n, err := fc.c.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("redis: flush features: %w", err)
			}
			removed += n
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

var _ domain.FeatureCache = (*FeatureCache)(nil)
