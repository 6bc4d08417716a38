package pricing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/flight-seat-reservation/internal/config"
	"github.com/iliyamo/flight-seat-reservation/internal/logger"
	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

// newStore returns a store with flight FL1 of 20 economy seats, booked
// seats E01..E{booked}.
func newStore(t *testing.T, booked int) *repository.MemoryStore {
	t.Helper()
	st := repository.NewMemoryStore()
	seats := make([]model.Seat, 0, 20)
	for i := 1; i <= 20; i++ {
		s := model.Seat{SeatID: fmt.Sprintf("E%02d", i), Class: model.ClassEconomy}
		if i <= booked {
			s.State = model.SeatBooked
		}
		seats = append(seats, s)
	}
	st.AddFlight(flightAt(time.Date(2026, time.April, 1, 10, 0, 0, 0, time.UTC), 10000), seats)
	return st
}

func newCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	c := NewRedisCache(config.PricingConfig{CacheEnabled: true, CacheTTL: 2 * time.Minute, CachePrefix: "price"}, rdb)
	require.NotNil(t, c)
	return c.(*RedisCache), mr
}

func TestEngineUsesOccupancyAndRoute(t *testing.T) {
	st := newStore(t, 8)
	st.AddRoute(model.Route{Origin: "AMS", Destination: "LIS", PopularityScore: 1.2})
	e := NewEngine(st, nil, clockwork.NewFakeClockAt(monday), logger.Discard())

	q, err := e.CalculatePrice(context.Background(), "FL1", model.ClassEconomy)
	require.NoError(t, err)
	assert.Equal(t, 40.0, q.OccupancyPercent)
	assert.Equal(t, int64(12000), q.FinalPriceCents)
}

func TestEngineUnknownFlight(t *testing.T) {
	e := NewEngine(repository.NewMemoryStore(), nil, clockwork.NewFakeClockAt(monday), logger.Discard())
	_, err := e.CalculatePrice(context.Background(), "nope", model.ClassEconomy)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEngineCachesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	st := newStore(t, 8)
	cache, mr := newCache(t)
	e := NewEngine(st, cache, clockwork.NewFakeClockAt(monday), logger.Discard())

	first, err := e.CalculatePrice(ctx, "FL1", model.ClassEconomy)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), first.FinalPriceCents)
	assert.True(t, mr.Exists("price:FL1:economy"))
	assert.Equal(t, 2*time.Minute, mr.TTL("price:FL1:economy"))

	for i := 9; i <= 19; i++ {
		require.NoError(t, st.SetSeatState(ctx, "FL1", fmt.Sprintf("E%02d", i), model.SeatBooked))
	}

	cached, err := e.CalculatePrice(ctx, "FL1", model.ClassEconomy)
	require.NoError(t, err)
	assert.Equal(t, first.FinalPriceCents, cached.FinalPriceCents)

	e.Invalidate(ctx, "FL1", model.ClassEconomy)
	assert.False(t, mr.Exists("price:FL1:economy"))

	fresh, err := e.CalculatePrice(ctx, "FL1", model.ClassEconomy)
	require.NoError(t, err)
	assert.Equal(t, 95.0, fresh.OccupancyPercent)
	assert.Equal(t, int64(20000), fresh.FinalPriceCents)
}

func TestEngineCacheEntryExpires(t *testing.T) {
	ctx := context.Background()
	st := newStore(t, 0)
	cache, mr := newCache(t)
	e := NewEngine(st, cache, clockwork.NewFakeClockAt(monday), logger.Discard())

	_, err := e.CalculatePrice(ctx, "FL1", model.ClassEconomy)
	require.NoError(t, err)
	mr.FastForward(3 * time.Minute)
	assert.False(t, mr.Exists("price:FL1:economy"))
}

func TestEngineSurvivesCacheOutage(t *testing.T) {
	st := newStore(t, 0)
	cache, mr := newCache(t)
	e := NewEngine(st, cache, clockwork.NewFakeClockAt(monday), logger.Discard())
	mr.Close()

	q, err := e.CalculatePrice(context.Background(), "FL1", model.ClassEconomy)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), q.FinalPriceCents)
}

func TestInvalidateAllClasses(t *testing.T) {
	ctx := context.Background()
	cache, mr := newCache(t)
	for _, c := range model.SeatClasses {
		require.NoError(t, cache.Set(ctx, &model.Quote{FlightID: "FL1", Class: c}))
	}
	require.NoError(t, cache.Invalidate(ctx, "FL1"))
	assert.Empty(t, mr.Keys())
}

func TestNewRedisCacheDisabled(t *testing.T) {
	assert.Nil(t, NewRedisCache(config.PricingConfig{CacheEnabled: false}, redis.NewClient(&redis.Options{})))
	assert.Nil(t, NewRedisCache(config.PricingConfig{CacheEnabled: true}, nil))
}
