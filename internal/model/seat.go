package model

import "fmt"

// SeatClass is the cabin class of a seat.
type SeatClass string

const (
    ClassEconomy  SeatClass = "economy"
    ClassBusiness SeatClass = "business"
    ClassFirst    SeatClass = "first"
)

// SeatClasses lists every cabin class in display order.
var SeatClasses = []SeatClass{ClassEconomy, ClassBusiness, ClassFirst}

// ParseSeatClass validates a class name.
func ParseSeatClass(s string) (SeatClass, error) {
    switch c := SeatClass(s); c {
    case ClassEconomy, ClassBusiness, ClassFirst:
        return c, nil
    }
    return "", fmt.Errorf("unknown seat class %q", s)
}

// SeatState is the availability state of a seat.
type SeatState string

const (
    SeatAvailable SeatState = "available"
    SeatHeld      SeatState = "held"
    SeatBooked    SeatState = "booked"
)

// Seat is one seat on one flight.  A seat is always in exactly one
// state; HoldSession is set only while the seat is held and names the
// hold that owns it.
//
// Fields:
//  FlightID    – flight the seat belongs to.
//  SeatID      – seat number, unique within the flight (e.g. "12A").
//  Class       – cabin class.
//  State       – available, held or booked.
//  HoldSession – session id of the owning hold while held.
//  PriceCents  – price snapshot recorded when the seat was booked.
type Seat struct {
    FlightID    string    `json:"flight_id"`
    SeatID      string    `json:"seat_id"`
    Class       SeatClass `json:"class"`
    State       SeatState `json:"state"`
    HoldSession string    `json:"-"`
    PriceCents  int64     `json:"price_cents,omitempty"`
}
