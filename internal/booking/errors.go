package booking

import "errors"

var (
	// ErrHoldExpired means the hold is gone or past its expiry; the
	// caller must hold the seats again.
	ErrHoldExpired = errors.New("hold expired")
	// ErrHoldMismatch means the hold or one of its seat locks belongs to
	// another holder or session.
	ErrHoldMismatch = errors.New("hold does not belong to this session")
	// ErrInventoryConflict means a seat was not held by the committing
	// session inside the commit transaction.  It points at a
	// coordination bug or an external change and is logged as an error.
	ErrInventoryConflict = errors.New("inventory conflict")
	// ErrPaymentFailed is returned after a failed payment released the hold.
	ErrPaymentFailed = errors.New("payment failed")
	// ErrNotCancellable rejects cancellation by state or cutoff.
	ErrNotCancellable = errors.New("booking cannot be cancelled")
	// ErrNotCheckinWindow rejects check-in outside the window.
	ErrNotCheckinWindow = errors.New("outside check-in window")
	// ErrInvalidState rejects a transition the booking's status forbids.
	ErrInvalidState = errors.New("booking state does not allow this operation")
	// ErrForbidden means the actor may not act on the booking.
	ErrForbidden = errors.New("booking belongs to another user")
	// ErrInvalid reports malformed commit input.
	ErrInvalid = errors.New("invalid booking request")
)

// errCommitted aborts a commit transaction that found the session
// already booked; the existing booking is returned instead.
var errCommitted = errors.New("session already committed")
