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

// LiveMatchCache implements domain.LiveMatchCache.
//
// Key schema:
//
//	live_match:{id} - JSON encoded domain.LiveMatchState
type LiveMatchCache struct {
	c   *Client
	ttl time.Duration
}

// NewLiveMatchCache creates a LiveMatchCache whose entries expire ttl after
// the last write.
func NewLiveMatchCache(c *Client, ttl time.Duration) *LiveMatchCache {
	return &LiveMatchCache{c: c, ttl: ttl}
}

func (lc *LiveMatchCache) liveKey(id string) string { return lc.c.key("live_match", id) }

// Set stores the state, refreshing its TTL.
func (lc *LiveMatchCache) Set(ctx context.Context, state domain.LiveMatchState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("redis: marshal live match %s: %w", state.MatchID, err)
	}
	if err := lc.c.rdb.Set(ctx, lc.liveKey(state.MatchID), data, lc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set live match %s: %w", state.MatchID, err)
	}
	return nil
}

// Get returns domain.ErrNotFound when the match is not cached.
func (lc *LiveMatchCache) Get(ctx context.Context, matchID string) (domain.LiveMatchState, error) {
	data, err := lc.c.rdb.Get(ctx, lc.liveKey(matchID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.LiveMatchState{}, domain.ErrNotFound
		}
		return domain.LiveMatchState{}, fmt.Errorf("redis: get live match %s: %w", matchID, err)
	}
	var st domain.LiveMatchState
	if err := json.Unmarshal(data, &st); err != nil {
		return domain.LiveMatchState{}, fmt.Errorf("redis: unmarshal live match %s: %w", matchID, err)
	}
	return st, nil
}

// Delete removes the match. Missing keys are not an error.
func (lc *LiveMatchCache) Delete(ctx context.Context, matchID string) error {
	if err := lc.c.rdb.Del(ctx, lc.liveKey(matchID)).Err(); err != nil {
		return fmt.Errorf("redis: delete live match %s: %w", matchID, err)
	}
	return nil
}

var _ domain.LiveMatchCache = (*LiveMatchCache)(nil)
