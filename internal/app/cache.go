package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"woodheaven_farms/internal/domain"
)

// readThrough serves key from c when present, otherwise loads and stores
// it. A nil cache or a failing cache never fails the read.
func readThrough[T any](ctx context.Context, c domain.Cache, ttl time.Duration, key string, load func(context.Context) (T, error)) (T, error) {
	if c != nil {
		var v T
		ok, err := c.Get(ctx, key, &v)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		} else if ok {
			return v, nil
		}
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if c != nil && ttl > 0 {
		if err := c.Set(ctx, key, v, int(ttl.Seconds())); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache set failed")
		}
	}
	return v, nil
}

func evict(ctx context.Context, c domain.Cache, keys ...string) {
	if c == nil {
		return
	}
	for _, k := range keys {
		if err := c.Del(ctx, k); err != nil {
			log.Warn().Err(err).Str("key", k).Msg("cache evict failed")
		}
	}
}
