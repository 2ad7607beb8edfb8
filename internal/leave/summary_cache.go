package leave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const summaryVersionKey = "leavedesk:summary:version"

// SummaryCache stores dashboard counts in Redis under a versioned key.
// Bumping the version orphans every cached summary at once.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewSummaryCache constructs the cache. A nil client disables caching.
func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SummaryCache{client: client, ttl: ttl}
}

func (c *SummaryCache) version(ctx context.Context) (int64, error) {
	ver, err := c.client.Get(ctx, summaryVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

// Fetch returns the cached summary for scope or builds it with load.
// Concurrent misses for the same key share one load.
func (c *SummaryCache) Fetch(ctx context.Context, scope string, load func(context.Context) (Summary, error)) (Summary, error) {
	if c == nil || c.client == nil {
		return load(ctx)
	}
	ver, err := c.version(ctx)
	if err != nil {
		return Summary{}, err
	}
	key := fmt.Sprintf("leavedesk:summary:%s:%d", scope, ver)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached Summary
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return Summary{}, err
	}

	// The shared load must outlive any single caller; each caller still
	// stops waiting when its own context ends.
	ch := c.group.DoChan(key, func() (any, error) {
		loadCtx := context.WithoutCancel(ctx)
		summary, err := load(loadCtx)
		if err != nil {
			return Summary{}, err
		}
		raw, err := json.Marshal(summary)
		if err != nil {
			return Summary{}, err
		}
		if err := c.client.Set(loadCtx, key, raw, c.ttl).Err(); err != nil {
			return Summary{}, err
		}
		return summary, nil
	})
	select {
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Summary{}, res.Err
		}
		return res.Val.(Summary), nil
	}
}

// Bump invalidates every cached summary.
func (c *SummaryCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, summaryVersionKey).Err()
}
