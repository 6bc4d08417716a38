package model

import "time"

// SeatQuote is the price quoted for one seat when it was held.
type SeatQuote struct {
    SeatID     string    `json:"seat_id"`
    Class      SeatClass `json:"class"`
    PriceCents int64     `json:"price_cents"`
}

// Hold is a time-bounded exclusive claim on one or more seats of a
// flight.  It is created by the hold manager, mutated only by extension
// and destroyed by release, expiry or a successful commit.
type Hold struct {
    SessionID  string      `json:"session_id"`
    FlightID   string      `json:"flight_id"`
    SeatIDs    []string    `json:"seat_ids"`
    HolderID   string      `json:"holder_id"`
    CreatedAt  time.Time   `json:"created_at"`
    ExpiresAt  time.Time   `json:"expires_at"`
    Quotes     []SeatQuote `json:"quotes,omitempty"`
    TotalCents int64       `json:"total_cents"`
    Currency   string      `json:"currency,omitempty"`
}

// Expired reports whether the hold is past its expiry at now.
func (h *Hold) Expired(now time.Time) bool { return !now.Before(h.ExpiresAt) }

// QuoteFor returns the quoted price of a seat on this hold.
func (h *Hold) QuoteFor(seatID string) (int64, bool) {
    for _, q := range h.Quotes {
        if q.SeatID == seatID {
            return q.PriceCents, true
        }
    }
    return 0, false
}
