package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const resultCacheTTL = 24 * time.Hour

// ResultCache keeps recent completion results in redis so a retried
// completion request can be answered with the original outcome instead
// of a bare duplicate error.
type ResultCache struct {
	rdb *redis.Client
}

func NewResultCache(rdb *redis.Client) *ResultCache {
	return &ResultCache{
		rdb: rdb,
	}
}

func resultCacheKey(sessionID string) string {
	return "completion:result:" + sessionID
}

func (c *ResultCache) Set(ctx context.Context, result *Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := c.rdb.Set(ctx, resultCacheKey(result.SessionID), data, resultCacheTTL).Err(); err != nil {
		return fmt.Errorf("cache result: %w", err)
	}
	return nil
}

// Get returns the cached result, or (nil, nil) when none is stored.
func (c *ResultCache) Get(ctx context.Context, sessionID string) (*Result, error) {
	data, err := c.rdb.Get(ctx, resultCacheKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached result: %w", err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal cached result: %w", err)
	}

	return &result, nil
}
