package model

import "time"

// Multipliers is the breakdown of factors applied to a class base price.
type Multipliers struct {
    Time     float64 `json:"time"`
    Demand   float64 `json:"demand"`
    Route    float64 `json:"route"`
    Day      float64 `json:"day"`
    Seasonal float64 `json:"seasonal"`
}

// Quote is a computed price for one seat of a class on a flight.
type Quote struct {
    FlightID         string      `json:"flight_id"`
    Class            SeatClass   `json:"class"`
    BasePriceCents   int64       `json:"base_price_cents"`
    FinalPriceCents  int64       `json:"final_price_cents"`
    Currency         string      `json:"currency"`
    Multipliers      Multipliers `json:"multipliers"`
    OccupancyPercent float64     `json:"occupancy_percent"`
    ComputedAt       time.Time   `json:"computed_at"`
}
