// Package pricing computes seat prices as the product of a class base
// fare and independent time, demand, route, day and seasonal factors.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// Inputs is everything a price depends on.
type Inputs struct {
	Flight    model.Flight
	Class     model.SeatClass
	Now       time.Time
	Occupancy float64 // booked share of the class capacity, in percent
	Route     *model.Route
}

// Compute prices one seat.  It has no side effects: the same Inputs
// always produce the same Quote.
func Compute(in Inputs) model.Quote {
	m := model.Multipliers{
		Time:     TimeMultiplier(in.Flight.DepartureAt, in.Now),
		Demand:   DemandMultiplier(in.Occupancy),
		Route:    RouteMultiplier(in.Route),
		Day:      DayMultiplier(in.Flight.DepartureAt),
		Seasonal: SeasonalMultiplier(in.Route, in.Flight.DepartureAt),
	}
	base := decimal.NewFromInt(in.Flight.BasePriceCents).Mul(decimal.NewFromFloat(ClassFactor(in.Class)))
	final := base
	for _, f := range []float64{m.Time, m.Demand, m.Route, m.Day, m.Seasonal} {
		final = final.Mul(decimal.NewFromFloat(f))
	}
	return model.Quote{
		FlightID:         in.Flight.ID,
		Class:            in.Class,
		BasePriceCents:   base.Round(0).IntPart(),
		FinalPriceCents:  final.Round(0).IntPart(),
		Currency:         in.Flight.Currency,
		Multipliers:      m,
		OccupancyPercent: in.Occupancy,
		ComputedAt:       in.Now,
	}
}
