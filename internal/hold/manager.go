// Package hold implements time-bounded exclusive claims on flight seats.
//
// A claim is a distributed lock per seat plus a held marker on the seat
// row.  The lock decides who owns a seat; the seat row is what every
// other reader of the inventory sees.  The lock is always taken before
// the row is marked and the row is always reverted before the lock is
// given back, and every row change is conditional on the hold session,
// so a slow writer can never clobber a newer owner.
package hold

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/iliyamo/flight-seat-reservation/internal/config"
	"github.com/iliyamo/flight-seat-reservation/internal/lock"
	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

// Pricer quotes seats and drops cached quotes when availability moves.
type Pricer interface {
	CalculatePrice(ctx context.Context, flightID string, class model.SeatClass) (*model.Quote, error)
	Invalidate(ctx context.Context, flightID string, classes ...model.SeatClass)
}

// releaseScanBatch is the page size used to find the seats of an
// expired hold.
const releaseScanBatch = 500

// Manager acquires, releases and extends seat holds.
type Manager struct {
	store   repository.Store
	locks   lock.Locker
	records Records
	pricer  Pricer
	clock   clockwork.Clock
	cfg     config.HoldConfig
	log     *slog.Logger
}

// NewManager wires a Manager.  pricer may be nil, in which case holds
// carry no quote.
func NewManager(store repository.Store, locks lock.Locker, records Records, pricer Pricer,
	clock clockwork.Clock, cfg config.HoldConfig, log *slog.Logger) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.LockPrefix == "" {
		cfg.LockPrefix = "seatlock"
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.MaxTTL < cfg.DefaultTTL {
		cfg.MaxTTL = cfg.DefaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	return &Manager{
		store:   store,
		locks:   locks,
		records: records,
		pricer:  pricer,
		clock:   clock,
		cfg:     cfg,
		log:     log.With("component", "hold"),
	}
}

// LockKey is the lock service key of a seat.  Every instance derives
// the same key so any of them can inspect or release any hold.
func (m *Manager) LockKey(flightID, seatID string) string {
	return fmt.Sprintf("%s:%s:%s", m.cfg.LockPrefix, flightID, seatID)
}

func lockOwner(holderID, sessionID string) string { return holderID + "|" + sessionID }

func splitOwner(v string) (holderID, sessionID string) {
	holderID, sessionID, _ = strings.Cut(v, "|")
	return holderID, sessionID
}

func (m *Manager) now() time.Time { return m.clock.Now().UTC() }

// holdTTL applies the default and clamps to the configured maximum.
func (m *Manager) holdTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return m.cfg.DefaultTTL
	}
	if d > m.cfg.MaxTTL {
		return m.cfg.MaxTTL
	}
	return d
}

// canonical removes duplicates and sorts seat ids ascending.  Every
// caller takes locks in this order, so overlapping multi-seat requests
// cannot wait on each other in a cycle.
func canonical(seatIDs []string) []string {
	seen := make(map[string]struct{}, len(seatIDs))
	out := make([]string, 0, len(seatIDs))
	for _, id := range seatIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// BlockSeat holds one seat.  Contention is returned as a *ConflictError.
func (m *Manager) BlockSeat(ctx context.Context, flightID, seatID, holderID string, holdTime time.Duration) (*model.Hold, error) {
	h, err := m.BlockSeats(ctx, flightID, []string{seatID}, holderID, holdTime)
	var pf *PartialFailureError
	if errors.As(err, &pf) {
		return nil, pf.Cause
	}
	return h, err
}

// BlockSeats holds every seat in seatIDs under one fresh session, or
// none of them.  When a seat cannot be taken the seats already taken in
// this attempt are released before a *PartialFailureError is returned.
func (m *Manager) BlockSeats(ctx context.Context, flightID string, seatIDs []string, holderID string, holdTime time.Duration) (*model.Hold, error) {
	ids := canonical(seatIDs)
	if len(ids) == 0 || holderID == "" || strings.Contains(holderID, "|") {
		return nil, ErrInvalid
	}
	f, err := m.store.GetFlight(ctx, flightID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if f.Status != model.FlightScheduled || !f.DepartureAt.After(now) {
		return nil, ErrFlightClosed
	}

	ttl := m.holdTTL(holdTime)
	session := uuid.NewString()
	owner := lockOwner(holderID, session)

	seats := make([]*model.Seat, 0, len(ids))
	for _, id := range ids {
		seat, err := m.acquire(ctx, flightID, id, owner, session, ttl)
		if err != nil {
			released := m.rollback(ctx, seats, owner, session)
			return nil, &PartialFailureError{Failed: []string{id}, Released: released, Cause: err}
		}
		seats = append(seats, seat)
	}

	classes := seatClasses(seats)
	if m.pricer != nil {
		m.pricer.Invalidate(ctx, flightID, classes...)
	}

	h := &model.Hold{
		SessionID: session,
		FlightID:  flightID,
		SeatIDs:   ids,
		HolderID:  holderID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Currency:  f.Currency,
	}
	if err := m.quote(ctx, h, seats); err != nil {
		m.rollback(ctx, seats, owner, session)
		return nil, fmt.Errorf("hold: quote: %w", err)
	}
	if err := m.records.Save(ctx, h, ttl); err != nil {
		m.rollback(ctx, seats, owner, session)
		return nil, fmt.Errorf("hold: save record: %w", err)
	}
	m.log.Info("seats held", "flight_id", flightID, "seats", ids, "holder_id", holderID,
		"session_id", session, "expires_at", h.ExpiresAt)
	return h, nil
}

// acquire takes the lock of one seat and marks the seat held by session.
func (m *Manager) acquire(ctx context.Context, flightID, seatID, owner, session string, ttl time.Duration) (*model.Seat, error) {
	key := m.LockKey(flightID, seatID)
	var ok bool
	err := retry(ctx, m.cfg.RetryAttempts, func() error {
		var err error
		ok, err = m.locks.Acquire(ctx, key, owner, ttl)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("hold: lock %s: %w", key, err)
	}
	if !ok {
		ce := &ConflictError{FlightID: flightID, SeatID: seatID}
		if cur, left, err := m.locks.Inspect(ctx, key); err == nil {
			ce.Holder, _ = splitOwner(cur)
			ce.ExpiresAt = m.now().Add(left)
		}
		m.log.Debug("seat contended", "flight_id", flightID, "seat_id", seatID, "holder_id", ce.Holder)
		return nil, ce
	}

	var held *model.Seat
	err = m.store.WithTx(ctx, func(tx repository.Tx) error {
		seat, err := tx.GetSeat(ctx, flightID, seatID)
		if err != nil {
			return err
		}
		if seat.State == model.SeatBooked {
			return &ConflictError{FlightID: flightID, SeatID: seatID, Booked: true}
		}
		// A held marker under a lock we now own was left by an expired
		// hold the sweeper has not reached yet.
		seat.State = model.SeatHeld
		seat.HoldSession = session
		if err := tx.SaveSeat(ctx, seat); err != nil {
			return err
		}
		held = seat
		return nil
	})
	if err != nil {
		m.unlock(ctx, key, owner)
		if errors.Is(err, ErrConflict) {
			m.log.Debug("seat already booked", "flight_id", flightID, "seat_id", seatID)
		}
		return nil, err
	}
	return held, nil
}

// rollback undoes acquire for seats and returns their ids.
func (m *Manager) rollback(ctx context.Context, seats []*model.Seat, owner, session string) []string {
	released := make([]string, 0, len(seats))
	for _, s := range seats {
		if _, err := m.revertSeat(ctx, s.FlightID, s.SeatID, session); err != nil {
			m.log.Error("rollback: revert seat", "flight_id", s.FlightID, "seat_id", s.SeatID, "err", err)
		}
		m.unlock(ctx, m.LockKey(s.FlightID, s.SeatID), owner)
		released = append(released, s.SeatID)
	}
	if len(seats) > 0 && m.pricer != nil {
		m.pricer.Invalidate(ctx, seats[0].FlightID, seatClasses(seats)...)
	}
	return released
}

// revertSeat returns a seat to available if it is still held by session
// and reports the seat's class when it did.
func (m *Manager) revertSeat(ctx context.Context, flightID, seatID, session string) (model.SeatClass, error) {
	var class model.SeatClass
	err := m.store.WithTx(ctx, func(tx repository.Tx) error {
		seat, err := tx.GetSeat(ctx, flightID, seatID)
		if err != nil {
			return err
		}
		if seat.State != model.SeatHeld || seat.HoldSession != session {
			return nil
		}
		class = seat.Class
		return tx.SetSeatState(ctx, flightID, seatID, model.SeatAvailable)
	})
	return class, err
}

// unlock releases a lock we own, tolerating that it already vanished.
func (m *Manager) unlock(ctx context.Context, key, owner string) {
	err := retry(ctx, m.cfg.RetryAttempts, func() error { return m.locks.Release(ctx, key, owner) })
	if err != nil && !errors.Is(err, lock.ErrNotHeld) {
		m.log.Warn("lock release failed", "key", key, "err", err)
	}
}

// quote snapshots the current price of every held seat on h.
func (m *Manager) quote(ctx context.Context, h *model.Hold, seats []*model.Seat) error {
	if m.pricer == nil {
		return nil
	}
	byClass := make(map[model.SeatClass]*model.Quote)
	for _, s := range seats {
		q, ok := byClass[s.Class]
		if !ok {
			var err error
			q, err = m.pricer.CalculatePrice(ctx, h.FlightID, s.Class)
			if err != nil {
				return err
			}
			byClass[s.Class] = q
		}
		h.Quotes = append(h.Quotes, model.SeatQuote{SeatID: s.SeatID, Class: s.Class, PriceCents: q.FinalPriceCents})
		h.TotalCents += q.FinalPriceCents
		if q.Currency != "" {
			h.Currency = q.Currency
		}
	}
	return nil
}

func seatClasses(seats []*model.Seat) []model.SeatClass {
	var out []model.SeatClass
	seen := map[model.SeatClass]bool{}
	for _, s := range seats {
		if !seen[s.Class] {
			seen[s.Class] = true
			out = append(out, s.Class)
		}
	}
	return out
}

// ReleaseSeat gives one seat of a hold back.  Only the holder and session
// that own the lock may release it; a lock that is already gone is a
// success.
func (m *Manager) ReleaseSeat(ctx context.Context, flightID, seatID, holderID, sessionID string) error {
	if holderID == "" || sessionID == "" {
		return ErrInvalid
	}
	key := m.LockKey(flightID, seatID)
	owner := lockOwner(holderID, sessionID)

	var cur string
	err := retry(ctx, m.cfg.RetryAttempts, func() error {
		var err error
		cur, _, err = m.locks.Inspect(ctx, key)
		return err
	})
	switch {
	case errors.Is(err, lock.ErrNotHeld):
		cur = ""
	case err != nil:
		return fmt.Errorf("hold: inspect %s: %w", key, err)
	case cur != owner:
		return ErrUnauthorized
	}

	// The row may still be marked if the lock expired unswept.
	class, err := m.revertSeat(ctx, flightID, seatID, sessionID)
	if err != nil {
		return err
	}
	if cur != "" {
		err := retry(ctx, m.cfg.RetryAttempts, func() error { return m.locks.Release(ctx, key, owner) })
		switch {
		case errors.Is(err, lock.ErrNotOwner):
			return ErrUnauthorized
		case err != nil && !errors.Is(err, lock.ErrNotHeld):
			return fmt.Errorf("hold: release %s: %w", key, err)
		}
	}
	m.dropFromRecord(ctx, sessionID, holderID, seatID)
	if class != "" && m.pricer != nil {
		m.pricer.Invalidate(ctx, flightID, class)
	}
	m.log.Info("seat released", "flight_id", flightID, "seat_id", seatID, "session_id", sessionID)
	return nil
}

// dropFromRecord removes a seat from its hold record and deletes the
// record once it is empty.
func (m *Manager) dropFromRecord(ctx context.Context, sessionID, holderID, seatID string) {
	h, err := m.records.Get(ctx, sessionID)
	if err != nil || h.HolderID != holderID {
		return
	}
	keep := h.SeatIDs[:0]
	for _, id := range h.SeatIDs {
		if id != seatID {
			keep = append(keep, id)
		}
	}
	h.SeatIDs = keep
	quotes := h.Quotes[:0]
	h.TotalCents = 0
	for _, q := range h.Quotes {
		if q.SeatID != seatID {
			quotes = append(quotes, q)
			h.TotalCents += q.PriceCents
		}
	}
	h.Quotes = quotes
	left := h.ExpiresAt.Sub(m.now())
	if len(h.SeatIDs) == 0 || left <= 0 {
		err = m.records.Delete(ctx, sessionID)
	} else {
		err = m.records.Save(ctx, h, left)
	}
	if err != nil {
		m.log.Warn("hold record update failed", "session_id", sessionID, "err", err)
	}
}

// ExtendSeatBlock adds extra to the remaining lifetime of one seat lock.
// The session id stays the same; the remaining lifetime never exceeds
// the configured maximum.  It returns the new expiry.
func (m *Manager) ExtendSeatBlock(ctx context.Context, flightID, seatID, holderID, sessionID string, extra time.Duration) (time.Time, error) {
	if holderID == "" || sessionID == "" || extra <= 0 {
		return time.Time{}, ErrInvalid
	}
	key := m.LockKey(flightID, seatID)
	var left time.Duration
	err := retry(ctx, m.cfg.RetryAttempts, func() error {
		var err error
		left, err = m.locks.Extend(ctx, key, lockOwner(holderID, sessionID), extra, m.cfg.MaxTTL)
		return err
	})
	switch {
	case errors.Is(err, lock.ErrNotHeld):
		return time.Time{}, ErrNotFound
	case errors.Is(err, lock.ErrNotOwner):
		return time.Time{}, ErrUnauthorized
	case err != nil:
		return time.Time{}, fmt.Errorf("hold: extend %s: %w", key, err)
	}
	expiresAt := m.now().Add(left)
	if h, err := m.records.Get(ctx, sessionID); err == nil && h.HolderID == holderID && expiresAt.After(h.ExpiresAt) {
		h.ExpiresAt = expiresAt
		if err := m.records.Save(ctx, h, left); err != nil {
			m.log.Warn("hold record update failed", "session_id", sessionID, "err", err)
		}
	}
	m.log.Info("seat hold extended", "flight_id", flightID, "seat_id", seatID, "session_id", sessionID, "expires_at", expiresAt)
	return expiresAt, nil
}

// ExtendHold extends every seat of a hold and returns the new expiry of
// the hold, the earliest of its seats.
func (m *Manager) ExtendHold(ctx context.Context, sessionID, holderID string, extra time.Duration) (*model.Hold, error) {
	h, err := m.GetHold(ctx, sessionID, holderID)
	if err != nil {
		return nil, err
	}
	var earliest time.Time
	for _, id := range h.SeatIDs {
		exp, err := m.ExtendSeatBlock(ctx, h.FlightID, id, holderID, sessionID, extra)
		if err != nil {
			return nil, err
		}
		if earliest.IsZero() || exp.Before(earliest) {
			earliest = exp
		}
	}
	h.ExpiresAt = earliest
	if err := m.records.Save(ctx, h, earliest.Sub(m.now())); err != nil {
		return nil, fmt.Errorf("hold: save record: %w", err)
	}
	return h, nil
}

// GetHold returns the live record of a session owned by holderID.
func (m *Manager) GetHold(ctx context.Context, sessionID, holderID string) (*model.Hold, error) {
	h, err := m.records.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if h.HolderID != holderID {
		return nil, ErrUnauthorized
	}
	if h.Expired(m.now()) {
		return nil, ErrNotFound
	}
	return h, nil
}

// ReleaseHold releases every seat of a hold and deletes its record.  A
// record that already expired no longer names the seats, so those are
// found by their hold marker instead.
func (m *Manager) ReleaseHold(ctx context.Context, sessionID, holderID string) error {
	if holderID == "" || sessionID == "" {
		return ErrInvalid
	}
	h, err := m.records.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return m.releaseBySession(ctx, sessionID, holderID)
	}
	if err != nil {
		return err
	}
	if h.HolderID != holderID {
		return ErrUnauthorized
	}
	for _, id := range h.SeatIDs {
		if err := m.ReleaseSeat(ctx, h.FlightID, id, holderID, sessionID); err != nil && !errors.Is(err, ErrUnauthorized) {
			return err
		}
	}
	if err := m.records.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("hold: delete record: %w", err)
	}
	return nil
}

// releaseBySession reverts the seats still marked with sessionID.  Seats
// whose lock is still live must be owned by holderID.  It returns
// ErrNotFound when no seat carries the session.
func (m *Manager) releaseBySession(ctx context.Context, sessionID, holderID string) error {
	var (
		cursor  repository.SeatCursor
		matched []model.Seat
	)
	for {
		seats, err := m.store.ListHeldSeats(ctx, cursor, releaseScanBatch)
		if err != nil {
			return fmt.Errorf("hold: release %s: %w", sessionID, err)
		}
		for _, s := range seats {
			if s.HoldSession == sessionID {
				matched = append(matched, s)
			}
		}
		if len(seats) < releaseScanBatch {
			break
		}
		last := seats[len(seats)-1]
		cursor = repository.SeatCursor{FlightID: last.FlightID, SeatID: last.SeatID}
	}
	if len(matched) == 0 {
		return ErrNotFound
	}
	for _, s := range matched {
		if err := m.ReleaseSeat(ctx, s.FlightID, s.SeatID, holderID, sessionID); err != nil {
			return err
		}
	}
	m.log.Info("expired hold released", "session_id", sessionID, "seats", len(matched))
	return nil
}

// Verify checks that a hold about to be committed is intact: the record
// exists, is unexpired and belongs to holderID, and every seat lock is
// still owned by the session.
func (m *Manager) Verify(ctx context.Context, sessionID, holderID string) (*model.Hold, error) {
	h, err := m.records.Get(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrExpired
	}
	if err != nil {
		return nil, err
	}
	if h.Expired(m.now()) {
		return nil, ErrExpired
	}
	if h.HolderID != holderID {
		return nil, ErrUnauthorized
	}
	owner := lockOwner(holderID, sessionID)
	for _, id := range h.SeatIDs {
		key := m.LockKey(h.FlightID, id)
		var cur string
		err := retry(ctx, m.cfg.RetryAttempts, func() error {
			var err error
			cur, _, err = m.locks.Inspect(ctx, key)
			return err
		})
		switch {
		case errors.Is(err, lock.ErrNotHeld):
			return nil, ErrExpired
		case err != nil:
			return nil, fmt.Errorf("hold: inspect %s: %w", key, err)
		case cur != owner:
			return nil, ErrUnauthorized
		}
	}
	return h, nil
}

// Consume ends a hold whose seats were booked: the locks are released
// and the record deleted.  Seat rows are left alone.
func (m *Manager) Consume(ctx context.Context, h *model.Hold) {
	owner := lockOwner(h.HolderID, h.SessionID)
	for _, id := range h.SeatIDs {
		m.unlock(ctx, m.LockKey(h.FlightID, id), owner)
	}
	if err := m.records.Delete(ctx, h.SessionID); err != nil {
		m.log.Warn("hold record delete failed", "session_id", h.SessionID, "err", err)
	}
}
