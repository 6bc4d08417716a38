package model

import "time"

// Flight statuses.
const (
    FlightScheduled = "scheduled"
    FlightCancelled = "cancelled"
    FlightDeparted  = "departed"
)

// Flight describes a single scheduled departure.  Seats belong to
// exactly one flight and are priced from its base fare.
//
// Fields:
//  ID             – flight identifier (e.g. "FL-2024-0001").
//  Number         – marketing flight number.
//  Origin         – IATA code of the departure airport.
//  Destination    – IATA code of the arrival airport.
//  DepartureAt    – scheduled departure, UTC.
//  ArrivalAt      – scheduled arrival, UTC.
//  BasePriceCents – economy base fare in minor currency units.
//  Currency       – ISO 4217 currency code.
//  Status         – scheduled, cancelled or departed.
type Flight struct {
    ID             string    `json:"id"`
    Number         string    `json:"number"`
    Origin         string    `json:"origin"`
    Destination    string    `json:"destination"`
    DepartureAt    time.Time `json:"departure_at"`
    ArrivalAt      time.Time `json:"arrival_at"`
    BasePriceCents int64     `json:"base_price_cents"`
    Currency       string    `json:"currency"`
    Status         string    `json:"status"`
    CreatedAt      time.Time `json:"created_at"`
    UpdatedAt      time.Time `json:"updated_at"`
}

// RouteKey returns the key used to look up route pricing configuration.
func (f *Flight) RouteKey() string { return f.Origin + "-" + f.Destination }

// ClassInventory holds the derived availability counters for one seat
// class of a flight.  The counters are recomputed from seat rows in the
// same transaction as every seat state change.
type ClassInventory struct {
    FlightID  string    `json:"flight_id"`
    Class     SeatClass `json:"class"`
    Capacity  int       `json:"capacity"`
    Available int       `json:"available"`
    Held      int       `json:"held"`
    Booked    int       `json:"booked"`
}

// OccupancyPercent returns the share of capacity in the booked state,
// in percent.  A class without capacity reports zero.
func (c ClassInventory) OccupancyPercent() float64 {
    if c.Capacity <= 0 {
        return 0
    }
    return float64(c.Booked) * 100 / float64(c.Capacity)
}

// Season is a month/day range with a price multiplier.  Ranges may wrap
// the year boundary (e.g. 12-15 → 01-05).
type Season struct {
    StartMonth time.Month `json:"start_month"`
    StartDay   int        `json:"start_day"`
    EndMonth   time.Month `json:"end_month"`
    EndDay     int        `json:"end_day"`
    Multiplier float64    `json:"multiplier"`
}

// Contains reports whether t's month and day fall inside the range.
func (s Season) Contains(t time.Time) bool {
    md := int(t.Month())*100 + t.Day()
    start := int(s.StartMonth)*100 + s.StartDay
    end := int(s.EndMonth)*100 + s.EndDay
    if start <= end {
        return md >= start && md <= end
    }
    return md >= start || md <= end
}

// Route carries pricing configuration for an origin/destination pair.
type Route struct {
    Origin          string   `json:"origin"`
    Destination     string   `json:"destination"`
    PopularityScore float64  `json:"popularity_score"`
    Seasons         []Season `json:"seasons"`
}
