package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/flight-seat-reservation/internal/config"
	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// RedisCache keeps quotes as JSON under {prefix}:{flightID}:{class}.
type RedisCache struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCache returns nil when caching is disabled or rdb is nil, so
// the result can be handed to NewEngine directly.
func NewRedisCache(cfg config.PricingConfig, rdb redis.UniversalClient) Cache {
	if !cfg.CacheEnabled || rdb == nil {
		return nil
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	prefix := cfg.CachePrefix
	if prefix == "" {
		prefix = "price"
	}
	return &RedisCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(flightID string, class model.SeatClass) string {
	return fmt.Sprintf("%s:%s:%s", c.prefix, flightID, class)
}

func (c *RedisCache) Get(ctx context.Context, flightID string, class model.SeatClass) (*model.Quote, bool, error) {
	bs, err := c.rdb.Get(ctx, c.key(flightID, class)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var q model.Quote
	if err := json.Unmarshal(bs, &q); err != nil {
		return nil, false, err
	}
	return &q, true, nil
}

func (c *RedisCache) Set(ctx context.Context, q *model.Quote) error {
	bs, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return c.rdb.SetEx(ctx, c.key(q.FlightID, q.Class), bs, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, flightID string, classes ...model.SeatClass) error {
	if len(classes) == 0 {
		classes = model.SeatClasses
	}
	keys := make([]string, 0, len(classes))
	for _, cl := range classes {
		keys = append(keys, c.key(flightID, cl))
	}
	return c.rdb.Del(ctx, keys...).Err()
}
