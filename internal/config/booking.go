package config

import "time"

// BookingConfig holds the business-rule windows of the booking
// coordinator.
type BookingConfig struct {
    CancelCutoff     time.Duration // customers may not cancel closer to departure than this
    CheckInOpens     time.Duration // check-in opens this long before departure
    CheckInCloses    time.Duration // check-in closes this long before departure
    ReferenceRetries int           // attempts to draw an unused booking reference
}

func LoadBookingConfig() BookingConfig {
    c := BookingConfig{
        CancelCutoff:     envDur("BOOKING_CANCEL_CUTOFF", 2*time.Hour),
        CheckInOpens:     envDur("CHECKIN_OPENS_BEFORE", 24*time.Hour),
        CheckInCloses:    envDur("CHECKIN_CLOSES_BEFORE", time.Hour),
        ReferenceRetries: envInt("BOOKING_REFERENCE_RETRIES", 5),
    }
    if c.ReferenceRetries < 1 {
        c.ReferenceRetries = 1
    }
    return c
}
