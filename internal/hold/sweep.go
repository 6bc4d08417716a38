package hold

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/flight-seat-reservation/internal/lock"
	"github.com/iliyamo/flight-seat-reservation/internal/model"
	"github.com/iliyamo/flight-seat-reservation/internal/repository"
)

// Sweep reverts seats still marked held whose lock has expired.  The
// lock store forgets expired holds on its own; this brings the seat rows
// and their class counters back in line.  Held seats are read in pages
// of SweepBatch until a short page, so live holds at the front of the
// ordering never hide expired ones behind them.  It returns the number
// of seats reverted.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	batch := m.cfg.SweepBatch
	if batch <= 0 {
		batch = 500
	}
	touched := make(map[string]map[model.SeatClass]bool)
	reverted := 0
	var (
		cursor  repository.SeatCursor
		listErr error
	)
	for ctx.Err() == nil {
		seats, err := m.store.ListHeldSeats(ctx, cursor, batch)
		if err != nil {
			listErr = fmt.Errorf("hold: sweep: %w", err)
			break
		}
		for _, s := range seats {
			if ctx.Err() != nil {
				break
			}
			class, ok := m.sweepSeat(ctx, s)
			if !ok {
				continue
			}
			reverted++
			if touched[s.FlightID] == nil {
				touched[s.FlightID] = map[model.SeatClass]bool{}
			}
			touched[s.FlightID][class] = true
		}
		if len(seats) < batch {
			break
		}
		last := seats[len(seats)-1]
		cursor = repository.SeatCursor{FlightID: last.FlightID, SeatID: last.SeatID}
	}
	if m.pricer != nil {
		for flightID, classes := range touched {
			list := make([]model.SeatClass, 0, len(classes))
			for c := range classes {
				list = append(list, c)
			}
			m.pricer.Invalidate(ctx, flightID, list...)
		}
	}
	if reverted > 0 {
		m.log.Info("expired holds swept", "seats", reverted)
	}
	return reverted, listErr
}

// sweepSeat reverts one held seat when its lock is gone.
func (m *Manager) sweepSeat(ctx context.Context, s model.Seat) (model.SeatClass, bool) {
	_, _, err := m.locks.Inspect(ctx, m.LockKey(s.FlightID, s.SeatID))
	if err == nil {
		// Live lock: either this hold, or a new owner that is about
		// to overwrite the marker.
		return "", false
	}
	if !errors.Is(err, lock.ErrNotHeld) {
		m.log.Warn("sweep: inspect failed", "flight_id", s.FlightID, "seat_id", s.SeatID, "err", err)
		return "", false
	}
	class, err := m.revertSeat(ctx, s.FlightID, s.SeatID, s.HoldSession)
	if err != nil {
		m.log.Warn("sweep: revert failed", "flight_id", s.FlightID, "seat_id", s.SeatID, "err", err)
		return "", false
	}
	if class == "" {
		return "", false
	}
	m.log.Debug("expired hold swept", "flight_id", s.FlightID, "seat_id", s.SeatID, "session_id", s.HoldSession)
	return class, true
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context) {
	t := m.clock.NewTicker(m.cfg.SweepInterval)
	defer t.Stop()
	m.log.Info("hold sweeper started", "interval", m.cfg.SweepInterval)
	for {
		select {
		case <-ctx.Done():
			m.log.Info("hold sweeper stopped")
			return
		case <-t.Chan():
			if _, err := m.Sweep(ctx); err != nil {
				m.log.Error("hold sweep failed", "err", err)
			}
		}
	}
}
