package redis

import (
	"captchaguard/internal/ports"
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	windowKeyNameTemplate = "_captchaguard_rwin_%s_%d_%d"
)

// RateLimiter counts acquires in fixed-window buckets. INCR and EXPIRE run in one
// transaction; a bucket over capacity stays over capacity until it expires.
type RateLimiter struct {
	cli redis.UniversalClient
	now func() time.Time
}

func NewRateLimiter(cli redis.UniversalClient) *RateLimiter {
	return &RateLimiter{cli: cli, now: time.Now}
}

func (r *RateLimiter) Acquire(ctx context.Context, scope string, ratePerWindow int, window time.Duration) (bool, error) {
	if ratePerWindow <= 0 {
		return false, nil
	}
	cacheKey := getWindowKeyName(scope, window, ports.WindowBucket(r.now(), window))

	var incr *redis.IntCmd
	_, err := r.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, cacheKey)
		p.ExpireNX(ctx, cacheKey, 2*window)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= int64(ratePerWindow), nil
}

func getWindowKeyName(scope string, window time.Duration, bucket int64) string {
	return fmt.Sprintf(windowKeyNameTemplate, scope, int64(window/time.Second), bucket)
}
