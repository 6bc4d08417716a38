package pricing

import (
	"time"

	"github.com/iliyamo/flight-seat-reservation/internal/model"
)

// MaxRouteMultiplier caps the route popularity factor.
const MaxRouteMultiplier = 2.0

// ClassFactor returns the multiple of the flight base fare charged for a
// cabin class.  Unknown classes price as economy.
func ClassFactor(c model.SeatClass) float64 {
	switch c {
	case model.ClassBusiness:
		return 2.5
	case model.ClassFirst:
		return 4
	}
	return 1
}

// TimeMultiplier rises as departure approaches.  Departed flights are
// not surcharged.
func TimeMultiplier(departure, now time.Time) float64 {
	hours := departure.Sub(now).Hours()
	switch {
	case hours < 0:
		return 1.0
	case hours <= 6:
		return 1.8
	case hours <= 24:
		return 1.5
	case hours <= 72:
		return 1.3
	case hours <= 168:
		return 1.1
	}
	return 1.0
}

// DemandMultiplier maps the booked share of a class, in percent.
func DemandMultiplier(occupancy float64) float64 {
	switch {
	case occupancy >= 90:
		return 2.0
	case occupancy >= 80:
		return 1.7
	case occupancy >= 70:
		return 1.4
	case occupancy >= 60:
		return 1.2
	case occupancy >= 50:
		return 1.1
	}
	return 1.0
}

// RouteMultiplier is the route popularity score capped at
// MaxRouteMultiplier.  A missing route or a non-positive score yields 1.
func RouteMultiplier(r *model.Route) float64 {
	if r == nil || r.PopularityScore <= 0 {
		return 1.0
	}
	if r.PopularityScore > MaxRouteMultiplier {
		return MaxRouteMultiplier
	}
	return r.PopularityScore
}

// DayMultiplier surcharges weekend and Friday departures (UTC weekday).
func DayMultiplier(departure time.Time) float64 {
	switch departure.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return 1.2
	case time.Friday:
		return 1.1
	}
	return 1.0
}

// SeasonalMultiplier returns the multiplier of the first season of r
// containing departure.
func SeasonalMultiplier(r *model.Route, departure time.Time) float64 {
	if r == nil {
		return 1.0
	}
	d := departure.UTC()
	for _, s := range r.Seasons {
		if s.Contains(d) && s.Multiplier > 0 {
			return s.Multiplier
		}
	}
	return 1.0
}
