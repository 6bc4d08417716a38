package hold

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// Records persists hold records so any instance can look a session up.
type Records interface {
	Save(ctx context.Context, h *model.Hold, ttl time.Duration) error
	// Get returns ErrNotFound once the record is deleted or its TTL ran out.
	Get(ctx context.Context, sessionID string) (*model.Hold, error)
	Delete(ctx context.Context, sessionID string) error
}

// RedisRecords stores holds as JSON under {prefix}:session:{id} with the
// hold's TTL.
type RedisRecords struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisRecords(rdb redis.UniversalClient, prefix string) *RedisRecords {
	if prefix == "" {
		prefix = "hold"
	}
	return &RedisRecords{rdb: rdb, prefix: prefix}
}

func (r *RedisRecords) key(id string) string { return r.prefix + ":session:" + id }

func (r *RedisRecords) Save(ctx context.Context, h *model.Hold, ttl time.Duration) error {
	bs, err := json.Marshal(h)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.key(h.SessionID), bs, ttl).Err()
}

func (r *RedisRecords) Get(ctx context.Context, sessionID string) (*model.Hold, error) {
	bs, err := r.rdb.Get(ctx, r.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var h model.Hold
	if err := json.Unmarshal(bs, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *RedisRecords) Delete(ctx context.Context, sessionID string) error {
	return r.rdb.Del(ctx, r.key(sessionID)).Err()
}
