package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "strings"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/flight-seat-reservation/internal/model"
)

// BookingRepo provides persistence for bookings and their seats.  Seats
// booked under a booking are stored in the booking_seats table;
// passengers are stored as a JSON document on the booking row.  All
// timestamp fields are stored in UTC.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `reference, hold_session, flight_id, user_id, amount_cents, currency,
                        status, payment_status, payment_ref, cancel_reason, cancelled_by,
                        passengers, created_at, updated_at, cancelled_at, checked_in_at`

// CreateTx inserts a booking and its seat rows within the scope of an
// existing transaction.  A duplicate reference or hold session is
// reported as ErrConflict.  The caller must commit or roll back.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
    passengers, err := json.Marshal(b.Passengers)
    if err != nil {
        return err
    }
    const q = `INSERT INTO bookings (reference, hold_session, flight_id, user_id, amount_cents, currency,
                                     status, payment_status, payment_ref, passengers, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
    _, err = tx.ExecContext(ctx, q,
        b.Reference, b.HoldSession, b.FlightID, b.UserID, b.AmountCents, b.Currency,
        string(b.Status), string(b.Payment), nullString(b.PaymentRef), passengers,
        b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
    )
    if err != nil {
        if isDuplicate(err) {
            return ErrConflict
        }
        return err
    }
    if len(b.SeatIDs) == 0 {
        return nil
    }
    // Insert every seat in one statement, mirroring the price snapshot
    // written to the seat row.
    query := `INSERT INTO booking_seats (booking_ref, flight_id, seat_id) VALUES `
    args := make([]interface{}, 0, len(b.SeatIDs)*3)
    for i, sid := range b.SeatIDs {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?)"
        args = append(args, b.Reference, b.FlightID, sid)
    }
    _, err = tx.ExecContext(ctx, query, args...)
    return err
}

// GetTx loads a booking and locks its row until tx ends.
func (r *BookingRepo) GetTx(ctx context.Context, tx *sql.Tx, reference string) (*model.Booking, error) {
    return r.get(ctx, tx, `WHERE reference = ? FOR UPDATE`, reference)
}

// GetBySessionTx loads the booking committed from a hold session.
func (r *BookingRepo) GetBySessionTx(ctx context.Context, tx *sql.Tx, sessionID string) (*model.Booking, error) {
    return r.get(ctx, tx, `WHERE hold_session = ? FOR UPDATE`, sessionID)
}

// Get loads a booking outside any transaction.
func (r *BookingRepo) Get(ctx context.Context, reference string) (*model.Booking, error) {
    return r.get(ctx, r.db, `WHERE reference = ?`, reference)
}

// ExistsTx reports whether a booking reference is already taken.
func (r *BookingRepo) ExistsTx(ctx context.Context, tx *sql.Tx, reference string) (bool, error) {
    var one int
    err := tx.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE reference = ?`, reference).Scan(&one)
    if errors.Is(err, sql.ErrNoRows) {
        return false, nil
    }
    if err != nil {
        return false, err
    }
    return true, nil
}

// UpdateTx writes the mutable fields of a booking: status, payment
// state, cancellation details and check-in time.
func (r *BookingRepo) UpdateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
    const q = `UPDATE bookings
               SET status = ?, payment_status = ?, payment_ref = ?, cancel_reason = ?, cancelled_by = ?,
                   updated_at = ?, cancelled_at = ?, checked_in_at = ?
               WHERE reference = ?`
    res, err := tx.ExecContext(ctx, q,
        string(b.Status), string(b.Payment), nullString(b.PaymentRef),
        nullString(b.CancelReason), nullString(b.CancelledBy),
        b.UpdatedAt.UTC(), nullTime(b.CancelledAt), nullTime(b.CheckedInAt),
        b.Reference,
    )
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrBookingNotFound
    }
    return nil
}

// ListByUser returns all bookings of a user, newest first.  When no
// bookings exist, an empty slice is returned.
func (r *BookingRepo) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
    q := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = ? ORDER BY created_at DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Booking, 0)
    index := make(map[string]int)
    for rows.Next() {
        b, err := scanBooking(rows)
        if err != nil {
            return nil, err
        }
        index[b.Reference] = len(out)
        out = append(out, *b)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    if len(out) == 0 {
        return out, nil
    }
    // Populate seats for all bookings in a single query.
    refs := make([]interface{}, 0, len(out))
    placeholders := make([]string, 0, len(out))
    for _, b := range out {
        refs = append(refs, b.Reference)
        placeholders = append(placeholders, "?")
    }
    seatQuery := `SELECT booking_ref, seat_id FROM booking_seats
                  WHERE booking_ref IN (` + strings.Join(placeholders, ",") + `)
                  ORDER BY booking_ref, seat_id`
    srows, err := r.db.QueryContext(ctx, seatQuery, refs...)
    if err != nil {
        return nil, err
    }
    defer srows.Close()
    for srows.Next() {
        var ref, sid string
        if err := srows.Scan(&ref, &sid); err != nil {
            return nil, err
        }
        if idx, ok := index[ref]; ok {
            out[idx].SeatIDs = append(out[idx].SeatIDs, sid)
        }
    }
    if err := srows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

func (r *BookingRepo) get(ctx context.Context, q querier, where string, arg string) (*model.Booking, error) {
    b, err := scanBooking(q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings `+where, arg))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, ErrBookingNotFound
        }
        return nil, err
    }
    rows, err := q.QueryContext(ctx, `SELECT seat_id FROM booking_seats WHERE booking_ref = ? ORDER BY seat_id`, b.Reference)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    for rows.Next() {
        var sid string
        if err := rows.Scan(&sid); err != nil {
            return nil, err
        }
        b.SeatIDs = append(b.SeatIDs, sid)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return b, nil
}

func scanBooking(row rowScanner) (*model.Booking, error) {
    var b model.Booking
    var status, payment string
    var payRef, reason, by sql.NullString
    var passengers []byte
    var cancelledAt, checkedInAt sql.NullTime
    if err := row.Scan(
        &b.Reference, &b.HoldSession, &b.FlightID, &b.UserID, &b.AmountCents, &b.Currency,
        &status, &payment, &payRef, &reason, &by,
        &passengers, &b.CreatedAt, &b.UpdatedAt, &cancelledAt, &checkedInAt,
    ); err != nil {
        return nil, err
    }
    b.Status = model.BookingStatus(status)
    b.Payment = model.PaymentStatus(payment)
    b.PaymentRef = payRef.String
    b.CancelReason = reason.String
    b.CancelledBy = by.String
    if len(passengers) > 0 {
        if err := json.Unmarshal(passengers, &b.Passengers); err != nil {
            return nil, err
        }
    }
    if cancelledAt.Valid {
        t := cancelledAt.Time.UTC()
        b.CancelledAt = &t
    }
    if checkedInAt.Valid {
        t := checkedInAt.Time.UTC()
        b.CheckedInAt = &t
    }
    return &b, nil
}

func nullString(s string) sql.NullString {
    return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
    if t == nil {
        return sql.NullTime{}
    }
    return sql.NullTime{Time: t.UTC(), Valid: true}
}

// isDuplicate reports a MySQL unique-key violation (error 1062).
func isDuplicate(err error) bool {
    var me *mysql.MySQLError
    return errors.As(err, &me) && me.Number == 1062
}
