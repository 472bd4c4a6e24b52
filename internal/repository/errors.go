// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as services
// and handlers to distinguish between failure scenarios.  ErrSeatConflict
// is the ledger's verdict that a seat is already taken for a showtime and
// must reach the shopper as SEAT_CONFLICT; ErrDuplicateOrder signals that
// an orderId has already been used, which is how repeated payment
// callbacks are detected.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot proceed because of the
// row's current state.  Handlers translate this into HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrSeatConflict is returned when at least one requested seat is already
// booked (or leased by another checkout) for the showtime.
var ErrSeatConflict = errors.New("seat conflict")

// ErrDuplicateOrder is returned when a booking or payment for the orderId
// already exists.
var ErrDuplicateOrder = errors.New("duplicate order id")

// ErrAlreadyCancelled is returned when cancelling a CANCELLED booking.
var ErrAlreadyCancelled = errors.New("booking already cancelled")

// ErrInsufficientSeats is returned when the cached available_seats counter
// cannot cover the requested seat count.
var ErrInsufficientSeats = errors.New("not enough available seats")

// Not-found sentinels.
var (
	ErrShowtimeNotFound = errors.New("showtime not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrCheckoutNotFound = errors.New("checkout request not found")
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// duplicateKey reports whether err is a unique-key violation and, when it
// is, the name of the violated key as MySQL reports it ("PRIMARY",
// "uq_payments_order", ...).
func duplicateKey(err error) (string, bool) {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return "", false
	}
	// Message format: Duplicate entry 'x' for key 'table.key'
	msg := me.Message
	if i := strings.LastIndex(msg, "for key '"); i >= 0 {
		key := strings.TrimSuffix(msg[i+len("for key '"):], "'")
		if j := strings.LastIndex(key, "."); j >= 0 {
			key = key[j+1:]
		}
		return key, true
	}
	return "", true
}
