// Package booking is the only place bookings are created or reversed.
// It turns a verified hold into a booking in one store transaction and
// applies the booking lifecycle: payment settlement, cancellation,
// check-in and completion.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/iliyamo/flight-seat-reservation/internal/config"
	"github.com/iliyamo/flight-seat-reservation/internal/hold"
	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/queue"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

// Holds is the part of the hold manager the coordinator needs.
type Holds interface {
	Verify(ctx context.Context, sessionID, holderID string) (*model.Hold, error)
	Consume(ctx context.Context, h *model.Hold)
	ReleaseHold(ctx context.Context, sessionID, holderID string) error
}

// Invalidator drops cached price quotes of a flight.
type Invalidator interface {
	Invalidate(ctx context.Context, flightID string, classes ...model.SeatClass)
}

// Coordinator creates and transitions bookings.
type Coordinator struct {
	store  repository.Store
	holds  Holds
	prices Invalidator
	events queue.Publisher
	clock  clockwork.Clock
	cfg    config.BookingConfig
	log    *slog.Logger
}

// NewCoordinator wires a Coordinator.  prices and events may be nil.
func NewCoordinator(store repository.Store, holds Holds, prices Invalidator, events queue.Publisher,
	clock clockwork.Clock, cfg config.BookingConfig, log *slog.Logger) *Coordinator {
	if events == nil {
		events = queue.NopPublisher{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.ReferenceRetries < 1 {
		cfg.ReferenceRetries = 5
	}
	return &Coordinator{
		store:  store,
		holds:  holds,
		prices: prices,
		events: events,
		clock:  clock,
		cfg:    cfg,
		log:    log.With("component", "booking"),
	}
}

// CommitRequest carries everything needed to turn a hold into a booking.
type CommitRequest struct {
	SessionID  string
	HolderID   string
	Passengers []model.Passenger
	Payment    model.PaymentResult
}

func (c *Coordinator) now() time.Time { return c.clock.Now().UTC() }

// Commit books the seats of a hold.  Retrying with the same session
// returns the booking already made.  If the transaction fails the seats
// stay held and no booking exists, so the caller may retry while the
// hold lives.
func (c *Coordinator) Commit(ctx context.Context, req CommitRequest) (*model.Booking, error) {
	if req.SessionID == "" || req.HolderID == "" {
		return nil, ErrInvalid
	}
	if b, err := c.bySession(ctx, req.SessionID); err != nil {
		return nil, err
	} else if b != nil {
		if b.UserID != req.HolderID {
			return nil, ErrHoldMismatch
		}
		return b, nil
	}

	h, err := c.holds.Verify(ctx, req.SessionID, req.HolderID)
	if err != nil {
		// A concurrent commit of the same session may have consumed the
		// hold between the lookup above and Verify.
		if b, lookupErr := c.bySession(ctx, req.SessionID); lookupErr == nil && b != nil && b.UserID == req.HolderID {
			return b, nil
		}
	}
	switch {
	case errors.Is(err, hold.ErrExpired):
		return nil, ErrHoldExpired
	case errors.Is(err, hold.ErrUnauthorized):
		return nil, ErrHoldMismatch
	case err != nil:
		return nil, err
	}
	if err := checkPassengers(h, req.Passengers); err != nil {
		return nil, err
	}

	var status model.BookingStatus
	switch req.Payment.Status {
	case model.PaymentCompleted:
		status = model.BookingConfirmed
	case model.PaymentPending:
		status = model.BookingPending
	case model.PaymentFailed:
		if err := c.holds.ReleaseHold(ctx, req.SessionID, req.HolderID); err != nil {
			c.log.Warn("release after failed payment", "session_id", req.SessionID, "err", err)
		}
		c.log.Info("payment failed; hold released", "session_id", req.SessionID, "flight_id", h.FlightID)
		return nil, ErrPaymentFailed
	default:
		return nil, fmt.Errorf("%w: payment status %q", ErrInvalid, req.Payment.Status)
	}

	now := c.now()
	var (
		booked  *model.Booking
		prior   *model.Booking
		classes []model.SeatClass
	)
	err = c.store.WithTx(ctx, func(tx repository.Tx) error {
		if b, err := tx.GetBookingBySession(ctx, h.SessionID); err == nil {
			prior = b
			return errCommitted
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		f, err := tx.GetFlight(ctx, h.FlightID)
		if err != nil {
			return err
		}
		if f.Status != model.FlightScheduled {
			return fmt.Errorf("%w: flight %s is %s", ErrInventoryConflict, f.ID, f.Status)
		}
		seen := map[model.SeatClass]bool{}
		for _, id := range h.SeatIDs {
			seat, err := tx.GetSeat(ctx, h.FlightID, id)
			if err != nil {
				return err
			}
			if seat.State != model.SeatHeld || seat.HoldSession != h.SessionID {
				// The seat lock serialises same-session commits, so a
				// winner that committed while this one waited is visible now.
				if b, err := tx.GetBookingBySession(ctx, h.SessionID); err == nil {
					prior = b
					return errCommitted
				}
				return fmt.Errorf("%w: seat %s/%s is %s", ErrInventoryConflict, h.FlightID, id, seat.State)
			}
			price, _ := h.QuoteFor(id)
			seat.State = model.SeatBooked
			seat.HoldSession = ""
			seat.PriceCents = price
			if err := tx.SaveSeat(ctx, seat); err != nil {
				return err
			}
			if !seen[seat.Class] {
				seen[seat.Class] = true
				classes = append(classes, seat.Class)
			}
		}
		ref, err := c.reference(ctx, tx, now)
		if err != nil {
			return err
		}
		currency := h.Currency
		if currency == "" {
			currency = f.Currency
		}
		b := &model.Booking{
			Reference:   ref,
			HoldSession: h.SessionID,
			FlightID:    h.FlightID,
			UserID:      h.HolderID,
			SeatIDs:     append([]string(nil), h.SeatIDs...),
			Passengers:  req.Passengers,
			AmountCents: h.TotalCents,
			Currency:    currency,
			Status:      status,
			Payment:     req.Payment.Status,
			PaymentRef:  req.Payment.Reference,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		booked = b
		return nil
	})
	if errors.Is(err, errCommitted) {
		return prior, nil
	}
	if err != nil {
		if errors.Is(err, ErrInventoryConflict) {
			c.log.Error("commit found seats outside the hold", "session_id", h.SessionID, "flight_id", h.FlightID, "err", err)
			return nil, err
		}
		if errors.Is(err, repository.ErrConflict) {
			// A concurrent commit of the same session won.
			if b, lookupErr := c.bySession(ctx, req.SessionID); lookupErr == nil && b != nil {
				return b, nil
			}
		}
		return nil, fmt.Errorf("booking: commit %s: %w", h.SessionID, err)
	}

	c.holds.Consume(ctx, h)
	c.invalidate(ctx, booked.FlightID, classes)
	if booked.Status == model.BookingConfirmed {
		c.publish(ctx, queue.QueueBookingConfirmed, booked)
	}
	c.log.Info("booking committed", "reference", booked.Reference, "flight_id", booked.FlightID,
		"seats", booked.SeatIDs, "status", booked.Status, "amount_cents", booked.AmountCents)
	return booked, nil
}

// checkPassengers requires one passenger per held seat.
func checkPassengers(h *model.Hold, ps []model.Passenger) error {
	if len(ps) != len(h.SeatIDs) {
		return fmt.Errorf("%w: %d passengers for %d seats", ErrInvalid, len(ps), len(h.SeatIDs))
	}
	want := make(map[string]bool, len(h.SeatIDs))
	for _, id := range h.SeatIDs {
		want[id] = true
	}
	for _, p := range ps {
		if !want[p.SeatID] {
			return fmt.Errorf("%w: passenger seat %q is not on the hold or is repeated", ErrInvalid, p.SeatID)
		}
		delete(want, p.SeatID)
	}
	return nil
}

// reference draws codes until an unused one is found.
func (c *Coordinator) reference(ctx context.Context, tx repository.Tx, now time.Time) (string, error) {
	for i := 0; i < c.cfg.ReferenceRetries; i++ {
		ref, err := NewReference(now)
		if err != nil {
			return "", err
		}
		taken, err := tx.BookingReferenceExists(ctx, ref)
		if err != nil {
			return "", err
		}
		if !taken {
			return ref, nil
		}
	}
	return "", fmt.Errorf("booking: no free reference after %d attempts", c.cfg.ReferenceRetries)
}

func (c *Coordinator) bySession(ctx context.Context, sessionID string) (*model.Booking, error) {
	var out *model.Booking
	err := c.store.WithTx(ctx, func(tx repository.Tx) error {
		b, err := tx.GetBookingBySession(ctx, sessionID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

// Cancel cancels a pending or confirmed booking and frees its seats.
// Customers may only cancel their own bookings and only more than the
// configured cutoff before departure; administrators are exempt from
// both.  Cancelling a cancelled booking returns it unchanged.
func (c *Coordinator) Cancel(ctx context.Context, reference string, actor model.Actor, reason string) (*model.Booking, error) {
	now := c.now()
	var (
		out     *model.Booking
		classes []model.SeatClass
		changed bool
	)
	err := c.store.WithTx(ctx, func(tx repository.Tx) error {
		b, err := tx.GetBooking(ctx, reference)
		if err != nil {
			return err
		}
		if !actor.Admin && b.UserID != actor.ID {
			return ErrForbidden
		}
		out = b
		if b.Status == model.BookingCancelled {
			return nil
		}
		if b.Status != model.BookingPending && b.Status != model.BookingConfirmed {
			return fmt.Errorf("%w: booking is %s", ErrNotCancellable, b.Status)
		}
		f, err := tx.GetFlight(ctx, b.FlightID)
		if err != nil {
			return err
		}
		if !actor.Admin && f.DepartureAt.Sub(now) <= c.cfg.CancelCutoff {
			return fmt.Errorf("%w: less than %s before departure", ErrNotCancellable, c.cfg.CancelCutoff)
		}
		b.Status = model.BookingCancelled
		if b.Payment == model.PaymentCompleted {
			b.Payment = model.PaymentRefunded
		}
		b.CancelReason = reason
		b.CancelledBy = actor.ID
		b.CancelledAt = &now
		b.UpdatedAt = now
		if classes, err = freeSeats(ctx, tx, b); err != nil {
			return err
		}
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		c.invalidate(ctx, out.FlightID, classes)
		c.publish(ctx, queue.QueueBookingCancelled, out)
		c.log.Info("booking cancelled", "reference", out.Reference, "by", actor.ID, "admin", actor.Admin)
	}
	return out, nil
}

// freeSeats returns the booked seats of b to available and reports the
// classes touched.
func freeSeats(ctx context.Context, tx repository.Tx, b *model.Booking) ([]model.SeatClass, error) {
	var classes []model.SeatClass
	seen := map[model.SeatClass]bool{}
	for _, id := range b.SeatIDs {
		seat, err := tx.GetSeat(ctx, b.FlightID, id)
		if err != nil {
			return nil, err
		}
		if seat.State != model.SeatBooked {
			continue
		}
		if err := tx.SetSeatState(ctx, b.FlightID, id, model.SeatAvailable); err != nil {
			return nil, err
		}
		if !seen[seat.Class] {
			seen[seat.Class] = true
			classes = append(classes, seat.Class)
		}
	}
	return classes, nil
}

// CheckIn checks a confirmed booking in while the window is open.
func (c *Coordinator) CheckIn(ctx context.Context, reference string, actor model.Actor) (*model.Booking, error) {
	now := c.now()
	var out *model.Booking
	err := c.store.WithTx(ctx, func(tx repository.Tx) error {
		b, err := tx.GetBooking(ctx, reference)
		if err != nil {
			return err
		}
		if !actor.Admin && b.UserID != actor.ID {
			return ErrForbidden
		}
		if b.Status != model.BookingConfirmed {
			return fmt.Errorf("%w: booking is %s", ErrInvalidState, b.Status)
		}
		f, err := tx.GetFlight(ctx, b.FlightID)
		if err != nil {
			return err
		}
		opens := f.DepartureAt.Add(-c.cfg.CheckInOpens)
		closes := f.DepartureAt.Add(-c.cfg.CheckInCloses)
		if now.Before(opens) || !now.Before(closes) {
			return fmt.Errorf("%w: open %s to %s", ErrNotCheckinWindow,
				opens.Format(time.RFC3339), closes.Format(time.RFC3339))
		}
		b.Status = model.BookingCheckedIn
		b.CheckedInAt = &now
		b.UpdatedAt = now
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("booking checked in", "reference", out.Reference)
	return out, nil
}

// ConfirmPayment settles the payment of a pending booking.  A completed
// payment confirms it; a failed one cancels it and frees the seats.
// Reporting the settled outcome again returns the booking unchanged.
func (c *Coordinator) ConfirmPayment(ctx context.Context, reference string, actor model.Actor, p model.PaymentResult) (*model.Booking, error) {
	now := c.now()
	var (
		out     *model.Booking
		classes []model.SeatClass
		event   string
	)
	err := c.store.WithTx(ctx, func(tx repository.Tx) error {
		b, err := tx.GetBooking(ctx, reference)
		if err != nil {
			return err
		}
		if !actor.Admin && b.UserID != actor.ID {
			return ErrForbidden
		}
		out = b
		if b.Status != model.BookingPending {
			if b.Payment == p.Status {
				return nil
			}
			return fmt.Errorf("%w: booking is %s", ErrInvalidState, b.Status)
		}
		if p.Reference != "" {
			b.PaymentRef = p.Reference
		}
		b.UpdatedAt = now
		switch p.Status {
		case model.PaymentPending:
		case model.PaymentCompleted:
			b.Status = model.BookingConfirmed
			b.Payment = model.PaymentCompleted
			event = queue.QueueBookingConfirmed
		case model.PaymentFailed:
			b.Status = model.BookingCancelled
			b.Payment = model.PaymentFailed
			b.CancelReason = "payment failed"
			b.CancelledBy = actor.ID
			b.CancelledAt = &now
			if classes, err = freeSeats(ctx, tx, b); err != nil {
				return err
			}
			event = queue.QueueBookingCancelled
		default:
			return fmt.Errorf("%w: payment status %q", ErrInvalid, p.Status)
		}
		return tx.UpdateBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	if event != "" {
		if len(classes) > 0 {
			c.invalidate(ctx, out.FlightID, classes)
		}
		c.publish(ctx, event, out)
		c.log.Info("booking payment settled", "reference", out.Reference, "status", out.Status)
	}
	return out, nil
}

// Complete closes a checked-in booking once its flight has departed.
func (c *Coordinator) Complete(ctx context.Context, reference string) (*model.Booking, error) {
	now := c.now()
	var out *model.Booking
	err := c.store.WithTx(ctx, func(tx repository.Tx) error {
		b, err := tx.GetBooking(ctx, reference)
		if err != nil {
			return err
		}
		if b.Status == model.BookingCompleted {
			out = b
			return nil
		}
		if b.Status != model.BookingCheckedIn {
			return fmt.Errorf("%w: booking is %s", ErrInvalidState, b.Status)
		}
		f, err := tx.GetFlight(ctx, b.FlightID)
		if err != nil {
			return err
		}
		if now.Before(f.DepartureAt) {
			return fmt.Errorf("%w: flight has not departed", ErrInvalidState)
		}
		b.Status = model.BookingCompleted
		b.UpdatedAt = now
		out = b
		return tx.UpdateBooking(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a booking visible to actor.
func (c *Coordinator) Get(ctx context.Context, reference string, actor model.Actor) (*model.Booking, error) {
	b, err := c.store.GetBooking(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && b.UserID != actor.ID {
		return nil, ErrForbidden
	}
	return b, nil
}

// ListForUser returns a user's bookings, newest first.
func (c *Coordinator) ListForUser(ctx context.Context, userID string) ([]model.Booking, error) {
	return c.store.ListBookingsByUser(ctx, userID)
}

func (c *Coordinator) invalidate(ctx context.Context, flightID string, classes []model.SeatClass) {
	if c.prices != nil && len(classes) > 0 {
		c.prices.Invalidate(ctx, flightID, classes...)
	}
}

// publish is best effort; the booking is already durable.
func (c *Coordinator) publish(ctx context.Context, typ string, b *model.Booking) {
	if err := c.events.Publish(ctx, queue.NewBookingEvent(typ, b, c.now())); err != nil {
		c.log.Warn("booking event not published", "type", typ, "reference", b.Reference, "err", err)
	}
}
