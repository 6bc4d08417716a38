// Package queue defines the booking events exchanged over RabbitMQ, the
// publisher used by the booking coordinator and the background consumer
// that writes them to logs/booking.log.
package queue

import (
    "time"

    "github.com/iliyamo/flight-seat-reservation/internal/model"
)

// Queue names double as event types and routing keys on the default
// exchange.
const (
    QueueBookingConfirmed = "booking.confirmed"
    QueueBookingCancelled = "booking.cancelled"
)

// BookingEvent is published when a booking is confirmed or cancelled.
// It carries enough for downstream consumers to log, notify or feed
// analytics without querying the primary database.
type BookingEvent struct {
    Type          string   `json:"type"`
    Reference     string   `json:"reference"`
    FlightID      string   `json:"flight_id"`
    UserID        string   `json:"user_id"`
    SeatIDs       []string `json:"seats"`
    AmountCents   int64    `json:"amount_cents"`
    Currency      string   `json:"currency"`
    Status        string   `json:"status"`
    PaymentStatus string   `json:"payment_status"`
    Reason        string   `json:"reason,omitempty"`
    OccurredAt    string   `json:"occurred_at"`
}

// NewBookingEvent snapshots b as an event of the given type.
func NewBookingEvent(typ string, b *model.Booking, at time.Time) BookingEvent {
    return BookingEvent{
        Type:          typ,
        Reference:     b.Reference,
        FlightID:      b.FlightID,
        UserID:        b.UserID,
        SeatIDs:       append([]string(nil), b.SeatIDs...),
        AmountCents:   b.AmountCents,
        Currency:      b.Currency,
        Status:        string(b.Status),
        PaymentStatus: string(b.Payment),
        Reason:        b.CancelReason,
        OccurredAt:    at.UTC().Format(time.RFC3339),
    }
}
