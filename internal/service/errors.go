// Package service holds the checkout domain: the showtime catalog, seat
// inventory, the booking ledger, the payment orchestrator and the expiry
// sweeper.  Handlers translate the errors defined here into HTTP statuses.
package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/cinema-checkout/internal/repository"
)

var (
	// ErrAmountMismatch: the paid or declared amount differs from the
	// order total.
	ErrAmountMismatch = errors.New("amount does not match the order total")
	// ErrBookingDataMismatch: the bookingData carried through the redirect
	// does not verify or disagrees with the checkout request.
	ErrBookingDataMismatch = errors.New("booking data does not match the order")
	// ErrProviderFailure: the payment provider rejected or could not serve
	// the request.  No booking or payment row was written.
	ErrProviderFailure = errors.New("payment provider failure")
	// ErrPartialConfirmation: money moved and a booking exists, but the
	// payment could not be recorded.  Never retried automatically.
	ErrPartialConfirmation = errors.New("booking created but payment could not be recorded")
	// ErrConfirmInProgress: another request is confirming the same order.
	ErrConfirmInProgress = errors.New("confirmation already in progress")
	// ErrCheckoutClosed: the checkout request already failed.
	ErrCheckoutClosed = errors.New("checkout request is closed")
	// ErrInvalidSeat: empty selection or a seat outside the layout.
	ErrInvalidSeat = errors.New("invalid seat selection")
	// ErrInvalidStatus: a booking status the caller may not set.
	ErrInvalidStatus = errors.New("invalid booking status")
	// ErrInvalidDate: a date that is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")
	// ErrShowtimeStarted: the showtime can no longer be booked.
	ErrShowtimeStarted = errors.New("showtime already started")
)

// SeatConflictError reports the seats that were lost to another shopper.
// Refunded is set when an already approved payment was cancelled at the
// provider because of the conflict.
type SeatConflictError struct {
	Seats    []string
	Refunded bool
}

func (e *SeatConflictError) Error() string {
	if len(e.Seats) == 0 {
		return "seats are no longer available"
	}
	return fmt.Sprintf("seats no longer available: %s", strings.Join(e.Seats, ", "))
}

func (e *SeatConflictError) Unwrap() error { return repository.ErrSeatConflict }
