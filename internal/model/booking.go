package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
    BookingPending   BookingStatus = "pending"
    BookingConfirmed BookingStatus = "confirmed"
    BookingCheckedIn BookingStatus = "checked_in"
    BookingCompleted BookingStatus = "completed"
    BookingCancelled BookingStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s BookingStatus) Terminal() bool {
    return s == BookingCompleted || s == BookingCancelled
}

// PaymentStatus is the settlement state of a booking's payment.
type PaymentStatus string

const (
    PaymentPending   PaymentStatus = "pending"
    PaymentCompleted PaymentStatus = "completed"
    PaymentFailed    PaymentStatus = "failed"
    PaymentRefunded  PaymentStatus = "refunded"
)

// PaymentResult is the outcome reported by the payment collaborator.
type PaymentResult struct {
    Status    PaymentStatus `json:"status" validate:"required,oneof=pending completed failed"`
    Reference string        `json:"reference,omitempty" validate:"max=128"`
}

// Passenger travels on one seat of a booking.
type Passenger struct {
    FirstName      string `json:"first_name" validate:"required,max=100"`
    LastName       string `json:"last_name" validate:"required,max=100"`
    Email          string `json:"email,omitempty" validate:"omitempty,email"`
    DocumentNumber string `json:"document_number,omitempty" validate:"max=50"`
    SeatID         string `json:"seat_id" validate:"required,max=8"`
}

// Booking records a committed purchase of one or more seats.
//
// Fields:
//  Reference    – globally unique booking code.
//  HoldSession  – session of the hold the booking was committed from.
//  FlightID     – flight the seats belong to.
//  UserID       – user who committed the hold.
//  SeatIDs      – seats contained in the booking.
//  Passengers   – one record per seat.
//  AmountCents  – price actually charged.
//  Status       – booking lifecycle state.
//  Payment      – payment settlement state.
//  PaymentRef   – external payment reference, if any.
//  CancelReason – reason supplied on cancellation.
//  CancelledBy  – actor who cancelled the booking.
type Booking struct {
    Reference    string        `json:"reference"`
    HoldSession  string        `json:"hold_session"`
    FlightID     string        `json:"flight_id"`
    UserID       string        `json:"user_id"`
    SeatIDs      []string      `json:"seat_ids"`
    Passengers   []Passenger   `json:"passengers"`
    AmountCents  int64         `json:"amount_cents"`
    Currency     string        `json:"currency"`
    Status       BookingStatus `json:"status"`
    Payment      PaymentStatus `json:"payment_status"`
    PaymentRef   string        `json:"payment_ref,omitempty"`
    CancelReason string        `json:"cancel_reason,omitempty"`
    CancelledBy  string        `json:"cancelled_by,omitempty"`
    CreatedAt    time.Time     `json:"created_at"`
    UpdatedAt    time.Time     `json:"updated_at"`
    CancelledAt  *time.Time    `json:"cancelled_at,omitempty"`
    CheckedInAt  *time.Time    `json:"checked_in_at,omitempty"`
}

// Actor identifies who is performing a booking operation.
type Actor struct {
    ID    string
    Admin bool
}
