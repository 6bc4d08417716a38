package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Script results shared by release and extend.
const (
	resNotHeld  = -1
	resNotOwner = -2
)

var releaseScript = redis.NewScript(`
	local v = redis.call('GET', KEYS[1])
	if not v then return -1 end
	if v ~= ARGV[1] then return -2 end
	redis.call('DEL', KEYS[1])
	return 1
`)

var extendScript = redis.NewScript(`
	local v = redis.call('GET', KEYS[1])
	if not v then return -1 end
	if v ~= ARGV[1] then return -2 end
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then ttl = 0 end
	local n = ttl + tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	if limit > 0 and n > limit then n = limit end
	redis.call('PEXPIRE', KEYS[1], n)
	return n
`)

var inspectScript = redis.NewScript(`
	local v = redis.call('GET', KEYS[1])
	if not v then return {'', -2} end
	return {v, redis.call('PTTL', KEYS[1])}
`)

// RedisLocker implements Locker on a single Redis primary with SET NX PX
// and Lua compare-and-act scripts.
type RedisLocker struct {
	rdb redis.UniversalClient
}

// NewRedisLocker returns a Locker backed by rdb.
func NewRedisLocker(rdb redis.UniversalClient) *RedisLocker {
	return &RedisLocker{rdb: rdb}
}

func (l *RedisLocker) Acquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("lock %s: ttl must be positive", key)
	}
	ok, err := l.rdb.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock %s: acquire: %w", key, err)
	}
	return ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, owner string) error {
	n, err := releaseScript.Run(ctx, l.rdb, []string{key}, owner).Int64()
	if err != nil {
		return fmt.Errorf("lock %s: release: %w", key, err)
	}
	switch n {
	case resNotHeld:
		return ErrNotHeld
	case resNotOwner:
		return ErrNotOwner
	}
	return nil
}

func (l *RedisLocker) Extend(ctx context.Context, key, owner string, extra, limit time.Duration) (time.Duration, error) {
	n, err := extendScript.Run(ctx, l.rdb, []string{key}, owner, extra.Milliseconds(), limit.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("lock %s: extend: %w", key, err)
	}
	switch n {
	case resNotHeld:
		return 0, ErrNotHeld
	case resNotOwner:
		return 0, ErrNotOwner
	}
	return time.Duration(n) * time.Millisecond, nil
}

func (l *RedisLocker) Inspect(ctx context.Context, key string) (string, time.Duration, error) {
	vals, err := inspectScript.Run(ctx, l.rdb, []string{key}).Slice()
	if err != nil {
		return "", 0, fmt.Errorf("lock %s: inspect: %w", key, err)
	}
	if len(vals) != 2 {
		return "", 0, fmt.Errorf("lock %s: inspect: unexpected reply %#v", key, vals)
	}
	owner, _ := vals[0].(string)
	ttl, _ := vals[1].(int64)
	if owner == "" {
		return "", 0, ErrNotHeld
	}
	return owner, time.Duration(ttl) * time.Millisecond, nil
}
