package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

// Source is the part of the inventory store the engine reads.
type Source interface {
	GetFlight(ctx context.Context, flightID string) (*model.Flight, error)
	ClassInventory(ctx context.Context, flightID string, class model.SeatClass) (*model.ClassInventory, error)
	GetRoute(ctx context.Context, origin, destination string) (*model.Route, error)
}

// Cache stores recent quotes.  It is an optimisation only: the engine
// treats every cache error as a miss.
type Cache interface {
	Get(ctx context.Context, flightID string, class model.SeatClass) (*model.Quote, bool, error)
	Set(ctx context.Context, q *model.Quote) error
	Invalidate(ctx context.Context, flightID string, classes ...model.SeatClass) error
}

// Engine serves price quotes for flights and classes.
type Engine struct {
	src   Source
	cache Cache
	clock clockwork.Clock
	log   *slog.Logger
}

// NewEngine builds an Engine.  cache may be nil to disable caching.
func NewEngine(src Source, cache Cache, clock clockwork.Clock, log *slog.Logger) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{src: src, cache: cache, clock: clock, log: log.With("component", "pricing")}
}

// CalculatePrice returns the current quote for one seat of class on a
// flight, from cache when a fresh entry exists.
func (e *Engine) CalculatePrice(ctx context.Context, flightID string, class model.SeatClass) (*model.Quote, error) {
	if e.cache != nil {
		q, ok, err := e.cache.Get(ctx, flightID, class)
		if err != nil {
			e.log.Warn("price cache read failed", "flight_id", flightID, "class", class, "err", err)
		} else if ok {
			return q, nil
		}
	}
	in, err := e.inputs(ctx, flightID, class)
	if err != nil {
		return nil, err
	}
	q := Compute(in)
	if e.cache != nil {
		if err := e.cache.Set(ctx, &q); err != nil {
			e.log.Warn("price cache write failed", "flight_id", flightID, "class", class, "err", err)
		}
	}
	return &q, nil
}

func (e *Engine) inputs(ctx context.Context, flightID string, class model.SeatClass) (Inputs, error) {
	f, err := e.src.GetFlight(ctx, flightID)
	if err != nil {
		return Inputs{}, err
	}
	inv, err := e.src.ClassInventory(ctx, flightID, class)
	if err != nil {
		return Inputs{}, fmt.Errorf("pricing: inventory %s/%s: %w", flightID, class, err)
	}
	route, err := e.src.GetRoute(ctx, f.Origin, f.Destination)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return Inputs{}, fmt.Errorf("pricing: route %s: %w", f.RouteKey(), err)
		}
		route = nil
	}
	return Inputs{
		Flight:    *f,
		Class:     class,
		Now:       e.clock.Now().UTC(),
		Occupancy: inv.OccupancyPercent(),
		Route:     route,
	}, nil
}

// Invalidate drops cached quotes of a flight.  With no classes every
// class is dropped.  Failures are logged; stale entries age out on TTL.
func (e *Engine) Invalidate(ctx context.Context, flightID string, classes ...model.SeatClass) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx, flightID, classes...); err != nil {
		e.log.Warn("price cache invalidation failed", "flight_id", flightID, "err", err)
	}
}
