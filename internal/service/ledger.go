package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/cinema-checkout/internal/model"
	"github.com/iliyamo/cinema-checkout/internal/payment"
	"github.com/iliyamo/cinema-checkout/internal/queue"
	"github.com/iliyamo/cinema-checkout/internal/repository"
)

// PaymentLookup is the part of the payment store the ledger needs to refund
// a booking on cancellation.  repository.PaymentRepo implements it.
type PaymentLookup interface {
	GetByBooking(ctx context.Context, bookingID uint64) (*model.Payment, error)
	MarkCanceled(ctx context.Context, paymentKey, reason string, at time.Time) error
}

// NewBooking is a request to write a booking into the ledger.
type NewBooking struct {
	UserID     uint64
	ShowtimeID uint64
	Seats      []string
	TotalPrice int64
	Status     string
	OrderID    string
}

// Ledger is the single authority over seat exclusivity.  Every write runs
// in one transaction that locks the showtime row, so two bookings of the
// same seat are serialized and the loser is rejected with a seat conflict.
type Ledger struct {
	db        *sql.DB
	bookings  *repository.BookingRepo
	holds     *repository.SeatHoldRepo
	checkouts *repository.CheckoutRepo
	payments  PaymentLookup
	provider  payment.Provider
	events    EventPublisher
	now       func() time.Time
}

// NewLedger wires a Ledger.  payments, provider and events may be nil; a
// nil provider means paid bookings cannot be refunded on cancellation.
func NewLedger(db *sql.DB, bookings *repository.BookingRepo, holds *repository.SeatHoldRepo, checkouts *repository.CheckoutRepo,
	payments PaymentLookup, provider payment.Provider, events EventPublisher) *Ledger {
	return &Ledger{
		db:        db,
		bookings:  bookings,
		holds:     holds,
		checkouts: checkouts,
		payments:  payments,
		provider:  provider,
		events:    events,
		now:       time.Now,
	}
}

// CreateBooking writes a booking and claims its seats.  An order id that
// already has a booking yields repository.ErrDuplicateOrder before any seat
// is checked.  Seats leased by a different order, or already claimed, yield
// *SeatConflictError.  The total must equal seat count times the showtime
// price.
func (l *Ledger) CreateBooking(ctx context.Context, nb NewBooking) (*model.Booking, error) {
	seats, err := model.ParseSeats(nb.Seats)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeat, err)
	}
	if len(seats) == 0 {
		return nil, fmt.Errorf("%w: no seats", ErrInvalidSeat)
	}
	codes := model.SeatCodes(seats)
	status := nb.Status
	if status == "" {
		status = model.BookingPending
	}
	if status != model.BookingPending && status != model.BookingConfirmed {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	price, _, start, err := l.bookings.LockShowtimeTx(ctx, tx, nb.ShowtimeID)
	if err != nil {
		return nil, err
	}
	if nb.OrderID != "" {
		booked, err := l.bookings.OrderBookedTx(ctx, tx, nb.OrderID)
		if err != nil {
			return nil, err
		}
		if booked {
			return nil, fmt.Errorf("%w: %s", repository.ErrDuplicateOrder, nb.OrderID)
		}
	}
	if !start.After(l.now()) {
		return nil, ErrShowtimeStarted
	}
	if want := price * int64(len(codes)); nb.TotalPrice != want {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrAmountMismatch, nb.TotalPrice, want)
	}
	if _, err := l.holds.ExpireHoldsTx(ctx, tx, nb.ShowtimeID); err != nil {
		return nil, err
	}
	leased, err := l.holds.LeasedByOthersTx(ctx, tx, nb.ShowtimeID, codes, nb.OrderID)
	if err != nil {
		return nil, err
	}
	if len(leased) > 0 {
		return nil, &SeatConflictError{Seats: leased}
	}
	taken, err := l.bookings.TakenSeatsTx(ctx, tx, nb.ShowtimeID, codes)
	if err != nil {
		return nil, err
	}
	if len(taken) > 0 {
		return nil, &SeatConflictError{Seats: taken}
	}

	b := &model.Booking{
		UserID:     nb.UserID,
		ShowtimeID: nb.ShowtimeID,
		Seats:      codes,
		TotalPrice: nb.TotalPrice,
		Status:     status,
	}
	if nb.OrderID != "" {
		id := nb.OrderID
		b.OrderID = &id
	}
	if err := l.bookings.CreateTx(ctx, tx, b); err != nil {
		return nil, err
	}
	if err := l.bookings.InsertSeatsTx(ctx, tx, b.ID, nb.ShowtimeID, codes); err != nil {
		if errors.Is(err, repository.ErrSeatConflict) {
			return nil, &SeatConflictError{Seats: codes}
		}
		return nil, err
	}
	if err := l.bookings.AdjustAvailableTx(ctx, tx, nb.ShowtimeID, -len(codes)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return b, nil
}

// OpenCheckout leases the request's seats until req.ExpiresAt and stores the
// request as OPEN, atomically.
func (l *Ledger) OpenCheckout(ctx context.Context, req *model.CheckoutRequest) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, _, _, err := l.bookings.LockShowtimeTx(ctx, tx, req.ShowtimeID); err != nil {
		return err
	}
	if _, err := l.holds.ExpireHoldsTx(ctx, tx, req.ShowtimeID); err != nil {
		return err
	}
	taken, err := l.bookings.TakenSeatsTx(ctx, tx, req.ShowtimeID, req.Seats)
	if err != nil {
		return err
	}
	if len(taken) > 0 {
		return &SeatConflictError{Seats: taken}
	}
	leased, err := l.holds.LeasedByOthersTx(ctx, tx, req.ShowtimeID, req.Seats, req.OrderID)
	if err != nil {
		return err
	}
	if len(leased) > 0 {
		return &SeatConflictError{Seats: leased}
	}
	holds := repository.GenerateHoldRecords(req.OrderID, req.UserID, req.ShowtimeID, req.Seats, req.ExpiresAt)
	if err := l.holds.CreateMultipleTx(ctx, tx, holds); err != nil {
		if errors.Is(err, repository.ErrSeatConflict) {
			return &SeatConflictError{Seats: req.Seats}
		}
		return err
	}
	if err := l.checkouts.CreateTx(ctx, tx, req); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ReleaseLeases drops every lease of a checkout request.
func (l *Ledger) ReleaseLeases(ctx context.Context, orderID string) (int64, error) {
	return l.holds.DeleteByOrder(ctx, orderID)
}

// ConfirmBooking moves a PENDING booking to CONFIRMED.  Confirming a
// CONFIRMED booking is a no-op; a CANCELLED one is a conflict.
func (l *Ledger) ConfirmBooking(ctx context.Context, bookingID uint64) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	b, err := l.bookings.GetForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		return err
	}
	switch b.Status {
	case model.BookingConfirmed:
		return nil
	case model.BookingCancelled:
		return fmt.Errorf("%w: booking %d is cancelled", repository.ErrConflict, bookingID)
	}
	if err := l.bookings.UpdateStatusTx(ctx, tx, bookingID, model.BookingPending, model.BookingConfirmed); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// CancelBooking cancels a booking owned by userID and releases its seats.
// A DONE payment is refunded at the provider first; if the refund fails the
// booking stays as it was.
func (l *Ledger) CancelBooking(ctx context.Context, bookingID, userID uint64) (*model.Booking, error) {
	return l.CancelWithReason(ctx, bookingID, userID, "booking cancelled by customer")
}

// CancelWithReason is CancelBooking with the refund reason sent to the
// provider.  The booking row stays locked from the status check until the
// seats are released, so concurrent cancellations refund at most once.
func (l *Ledger) CancelWithReason(ctx context.Context, bookingID, userID uint64, reason string) (*model.Booking, error) {
	b, err := l.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, repository.ErrForbidden
	}
	if b.Status == model.BookingCancelled {
		return nil, repository.ErrAlreadyCancelled
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	cur, err := l.bookings.GetForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	if cur.Status == model.BookingCancelled {
		return nil, repository.ErrAlreadyCancelled
	}
	refunded, err := l.refund(ctx, b.ID, reason)
	if err != nil {
		return nil, err
	}
	if err := l.releaseTx(ctx, tx, cur); err != nil {
		if refunded {
			log.Printf("ledger: REFUNDED_NOT_RELEASED booking_id=%d: %v", b.ID, err)
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		if refunded {
			log.Printf("ledger: REFUNDED_NOT_RELEASED booking_id=%d: %v", b.ID, err)
		}
		return nil, err
	}
	committed = true
	b.Status = model.BookingCancelled
	b.UpdatedAt = l.now().UTC()

	notify(l.events, queue.BookingCancelledQueue, queue.BookingCancelledEvent{
		BookingID:   b.ID,
		UserID:      b.UserID,
		ShowtimeID:  b.ShowtimeID,
		Seats:       b.Seats,
		Reason:      reason,
		Refunded:    refunded,
		CancelledAt: b.UpdatedAt.Format(time.RFC3339),
	})
	return b, nil
}

// refund cancels the booking's DONE payment at the provider.  It reports
// whether money was returned.
func (l *Ledger) refund(ctx context.Context, bookingID uint64, reason string) (bool, error) {
	if l.payments == nil {
		return false, nil
	}
	p, err := l.payments.GetByBooking(ctx, bookingID)
	if errors.Is(err, repository.ErrPaymentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if p.Status != model.PaymentDone {
		return false, nil
	}
	if l.provider == nil {
		return false, fmt.Errorf("%w: no provider configured to refund payment %s", ErrProviderFailure, p.PaymentKey)
	}
	if err := l.provider.Cancel(ctx, p.PaymentKey, reason); err != nil {
		log.Printf("ledger: refund failed booking_id=%d payment_key=%s order_id=%s: %v", bookingID, p.PaymentKey, p.OrderID, err)
		return false, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	if err := l.payments.MarkCanceled(ctx, p.PaymentKey, reason, l.now()); err != nil && !errors.Is(err, repository.ErrConflict) {
		log.Printf("ledger: refunded but could not mark payment cancelled booking_id=%d payment_key=%s: %v", bookingID, p.PaymentKey, err)
	}
	return true, nil
}

// release moves a booking to CANCELLED, deletes its seats and gives them
// back to the showtime.  When onlyFrom is set the booking must currently be
// in that status, otherwise repository.ErrConflict is returned.
func (l *Ledger) release(ctx context.Context, bookingID uint64, onlyFrom string) (*model.Booking, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	cur, err := l.bookings.GetForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	if cur.Status == model.BookingCancelled {
		return nil, repository.ErrAlreadyCancelled
	}
	if onlyFrom != "" && cur.Status != onlyFrom {
		return nil, repository.ErrConflict
	}
	if err := l.releaseTx(ctx, tx, cur); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	cur.Status = model.BookingCancelled
	return cur, nil
}

// releaseTx cancels a booking already locked by tx and frees its seats.
func (l *Ledger) releaseTx(ctx context.Context, tx *sql.Tx, cur *model.Booking) error {
	if err := l.bookings.UpdateStatusTx(ctx, tx, cur.ID, cur.Status, model.BookingCancelled); err != nil {
		return err
	}
	if err := l.bookings.DeleteSeatsTx(ctx, tx, cur.ID); err != nil {
		return err
	}
	return l.bookings.AdjustAvailableTx(ctx, tx, cur.ShowtimeID, cur.SeatCount)
}

// ExpirePending cancels PENDING bookings created more than olderThan ago
// and releases their seats.  A PENDING booking that already has a DONE
// payment is confirmed instead.  It returns how many bookings expired.
func (l *Ledger) ExpirePending(ctx context.Context, olderThan time.Duration) (int, error) {
	ids, err := l.bookings.PendingOlderThan(ctx, olderThan, 200)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, id := range ids {
		if l.payments != nil {
			p, err := l.payments.GetByBooking(ctx, id)
			if err == nil && p.Status == model.PaymentDone {
				if err := l.ConfirmBooking(ctx, id); err != nil {
					log.Printf("ledger: reconcile paid pending booking %d failed: %v", id, err)
				}
				continue
			}
		}
		b, err := l.release(ctx, id, model.BookingPending)
		if err != nil {
			if !errors.Is(err, repository.ErrConflict) && !errors.Is(err, repository.ErrAlreadyCancelled) {
				log.Printf("ledger: expire booking %d failed: %v", id, err)
			}
			continue
		}
		expired++
		notify(l.events, queue.BookingCancelledQueue, queue.BookingCancelledEvent{
			BookingID:   b.ID,
			UserID:      b.UserID,
			ShowtimeID:  b.ShowtimeID,
			Seats:       b.Seats,
			Reason:      "expired",
			CancelledAt: l.now().UTC().Format(time.RFC3339),
		})
	}
	return expired, nil
}

// GetBooking returns a booking with its showtime details.
func (l *Ledger) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	return l.bookings.GetByID(ctx, id)
}

// BookingByOrder returns the booking written for a checkout attempt.
func (l *Ledger) BookingByOrder(ctx context.Context, orderID string) (*model.Booking, error) {
	return l.bookings.GetByOrderID(ctx, orderID)
}

// ListBookings returns a user's bookings, newest first.
func (l *Ledger) ListBookings(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return l.bookings.ListByUser(ctx, userID)
}

// GetOccupiedSeats returns the seats claimed for a showtime.
func (l *Ledger) GetOccupiedSeats(ctx context.Context, showtimeID uint64) ([]string, error) {
	return l.bookings.OccupiedSeats(ctx, showtimeID)
}
