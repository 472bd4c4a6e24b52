package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/iliyamo/cinema-checkout/internal/model"
	"github.com/iliyamo/cinema-checkout/internal/payment"
	"github.com/iliyamo/cinema-checkout/internal/queue"
	"github.com/iliyamo/cinema-checkout/internal/repository"
	"github.com/iliyamo/cinema-checkout/internal/reservation"
)

// BookingLedger is the part of *Ledger the orchestrator drives.
type BookingLedger interface {
	CreateBooking(ctx context.Context, nb NewBooking) (*model.Booking, error)
	ConfirmBooking(ctx context.Context, bookingID uint64) error
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	BookingByOrder(ctx context.Context, orderID string) (*model.Booking, error)
	OpenCheckout(ctx context.Context, req *model.CheckoutRequest) error
	ReleaseLeases(ctx context.Context, orderID string) (int64, error)
	CancelWithReason(ctx context.Context, bookingID, userID uint64, reason string) (*model.Booking, error)
}

// CheckoutRequests is implemented by repository.CheckoutRepo.
type CheckoutRequests interface {
	Get(ctx context.Context, orderID string) (*model.CheckoutRequest, error)
	Transition(ctx context.Context, orderID, status string, reason *string) (bool, error)
}

// PaymentStore is implemented by repository.PaymentRepo.
type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByOrderID(ctx context.Context, orderID string) (*model.Payment, error)
	GetByKey(ctx context.Context, paymentKey string) (*model.Payment, error)
	GetByBooking(ctx context.Context, bookingID uint64) (*model.Payment, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Payment, error)
	MarkCanceled(ctx context.Context, paymentKey, reason string, at time.Time) error
}

// ShowtimeReader is implemented by *Catalog and repository.CatalogRepo.
type ShowtimeReader interface {
	GetShowtime(ctx context.Context, id uint64) (*model.Showtime, error)
}

// OccupancySource is implemented by *Inventory.
type OccupancySource interface {
	Occupied(ctx context.Context, showtimeID uint64, viewerOrderID string) ([]string, error)
}

// Locker is implemented by *ConfirmLock.
type Locker interface {
	Acquire(ctx context.Context, orderID string) (func(), error)
}

// OrchestratorDeps are the collaborators of an Orchestrator.  Lock and
// Events may be nil.
type OrchestratorDeps struct {
	Ledger    BookingLedger
	Checkouts CheckoutRequests
	Payments  PaymentStore
	Showtimes ShowtimeReader
	Occupancy OccupancySource
	Provider  payment.Provider
	Lock      Locker
	Events    EventPublisher
}

// OrchestratorConfig holds callback URLs and timing.
type OrchestratorConfig struct {
	PublicBaseURL     string
	SuccessPath       string
	FailPath          string
	BookingDataSecret string
	LeaseTTL          time.Duration
	BookingDataTTL    time.Duration
}

// Orchestrator bridges a checkout request to the payment provider and
// reconciles the outcome into exactly one booking and one payment per
// order id.
type Orchestrator struct {
	OrchestratorDeps
	cfg OrchestratorConfig
	now func() time.Time
}

// NewOrchestrator wires an Orchestrator.
func NewOrchestrator(deps OrchestratorDeps, cfg OrchestratorConfig) *Orchestrator {
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 5 * time.Minute
	}
	if cfg.BookingDataTTL <= 0 {
		cfg.BookingDataTTL = time.Hour
	}
	return &Orchestrator{OrchestratorDeps: deps, cfg: cfg, now: time.Now}
}

// StartCheckoutInput is the shopper's "proceed to payment" request.
type StartCheckoutInput struct {
	UserID       uint64
	CustomerName string
	ShowtimeID   uint64
	Seats        []string
}

// CheckoutStart is everything the client needs to open the payment page.
type CheckoutStart struct {
	OrderID      string                      `json:"orderId"`
	OrderName    string                      `json:"orderName"`
	Amount       int64                       `json:"amount"`
	CustomerName string                      `json:"customerName"`
	SuccessURL   string                      `json:"successUrl"`
	FailURL      string                      `json:"failUrl"`
	ExpiresAt    time.Time                   `json:"expiresAt"`
	Request      reservation.CheckoutRequest `json:"request"`
	Redirect     *payment.Redirect           `json:"redirect"`
}

// StartCheckout validates the selection against fresh occupancy, leases the
// seats and prepares the provider redirect.
func (o *Orchestrator) StartCheckout(ctx context.Context, in StartCheckoutInput) (*CheckoutStart, error) {
	seats, err := model.ParseSeats(in.Seats)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeat, err)
	}
	st, err := o.Showtimes.GetShowtime(ctx, in.ShowtimeID)
	if err != nil {
		return nil, err
	}
	now := o.now()
	if !st.StartTime.After(now) {
		return nil, ErrShowtimeStarted
	}
	occupied, err := o.Occupancy.Occupied(ctx, in.ShowtimeID, "")
	if err != nil {
		return nil, err
	}

	sess := reservation.NewSession(in.ShowtimeID, st.Price, occupied)
	var lost []string
	for _, s := range seats {
		if _, err := sess.ToggleSeat(s.Code()); err != nil {
			if errors.Is(err, reservation.ErrSeatOccupied) {
				lost = append(lost, s.Code())
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrInvalidSeat, err)
		}
	}
	if len(lost) > 0 {
		return nil, &SeatConflictError{Seats: lost}
	}
	creq, err := sess.Submit()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeat, err)
	}
	if creq.SeatCount > st.AvailableSeats {
		return nil, repository.ErrInsufficientSeats
	}

	orderID := payment.NewOrderID(now)
	req := &model.CheckoutRequest{
		OrderID:    orderID,
		UserID:     in.UserID,
		ShowtimeID: in.ShowtimeID,
		Seats:      creq.Seats,
		UnitPrice:  st.Price,
		TotalPrice: creq.TotalPrice,
		OrderName:  payment.OrderName(st.MovieTitle, creq.Seats),
		ExpiresAt:  now.Add(o.cfg.LeaseTTL).UTC(),
	}
	if err := o.Ledger.OpenCheckout(ctx, req); err != nil {
		return nil, err
	}

	token, err := payment.EncodeBookingData(o.cfg.BookingDataSecret, orderID, payment.BookingData{
		ShowtimeID: creq.ShowtimeID,
		Seats:      creq.Seats,
		SeatCount:  creq.SeatCount,
		TotalPrice: creq.TotalPrice,
	}, o.cfg.BookingDataTTL)
	if err != nil {
		o.abandon(ctx, orderID, model.CheckoutFailed, "encode booking data: "+err.Error())
		return nil, err
	}
	out := &CheckoutStart{
		OrderID:      orderID,
		OrderName:    req.OrderName,
		Amount:       req.TotalPrice,
		CustomerName: in.CustomerName,
		SuccessURL:   o.callbackURL(o.cfg.SuccessPath, url.Values{"bookingData": {token}}),
		FailURL:      o.callbackURL(o.cfg.FailPath, url.Values{"orderId": {orderID}}),
		ExpiresAt:    req.ExpiresAt,
		Request:      creq,
	}
	redirect, err := o.Provider.Prepare(ctx, payment.CheckoutParams{
		OrderID:      orderID,
		OrderName:    out.OrderName,
		CustomerName: in.CustomerName,
		Amount:       out.Amount,
		SuccessURL:   out.SuccessURL,
		FailURL:      out.FailURL,
	})
	if err != nil {
		o.abandon(ctx, orderID, model.CheckoutFailed, "prepare: "+err.Error())
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	out.Redirect = redirect
	return out, nil
}

func (o *Orchestrator) callbackURL(path string, q url.Values) string {
	return strings.TrimRight(o.cfg.PublicBaseURL, "/") + path + "?" + q.Encode()
}

// abandon closes a checkout request and gives its seats back.  Errors are
// logged: leases expire on their own.
func (o *Orchestrator) abandon(ctx context.Context, orderID, status, reason string) {
	var r *string
	if reason != "" {
		r = &reason
	}
	if _, err := o.Checkouts.Transition(ctx, orderID, status, r); err != nil {
		log.Printf("orchestrator: mark %s %s failed: %v", orderID, status, err)
	}
	if _, err := o.Ledger.ReleaseLeases(ctx, orderID); err != nil {
		log.Printf("orchestrator: release leases of %s failed: %v", orderID, err)
	}
}

// SuccessCallback carries the parameters of the provider's success redirect.
type SuccessCallback struct {
	UserID      uint64
	PaymentKey  string
	OrderID     string
	Amount      int64
	BookingData string
}

// Confirmation is the outcome of a success callback.  Replayed is set when
// the order had already been confirmed and nothing new was written.
type Confirmation struct {
	Booking  *model.Booking `json:"booking"`
	Payment  *model.Payment `json:"payment"`
	Replayed bool           `json:"replayed"`
}

// HandleSuccess confirms a paid order: it approves the payment, writes the
// booking, then records the payment.  Calling it again with the same order
// id returns the first result and writes nothing.
func (o *Orchestrator) HandleSuccess(ctx context.Context, cb SuccessCallback) (*Confirmation, error) {
	if res, err := o.replay(ctx, cb.OrderID, cb.UserID); res != nil || err != nil {
		return res, err
	}

	release, err := o.acquire(ctx, cb.OrderID)
	if err != nil {
		return nil, err
	}
	defer release()

	// A concurrent confirmation may have finished while we waited.
	if res, err := o.replay(ctx, cb.OrderID, cb.UserID); res != nil || err != nil {
		return res, err
	}

	req, err := o.Checkouts.Get(ctx, cb.OrderID)
	if err != nil {
		return nil, err
	}
	if req.UserID != cb.UserID {
		return nil, repository.ErrForbidden
	}
	if req.Status == model.CheckoutFailed {
		return nil, ErrCheckoutClosed
	}
	if cb.Amount != req.TotalPrice {
		return nil, fmt.Errorf("%w: paid %d, order total %d", ErrAmountMismatch, cb.Amount, req.TotalPrice)
	}
	bd, err := payment.DecodeBookingData(o.cfg.BookingDataSecret, cb.OrderID, cb.BookingData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBookingDataMismatch, err)
	}
	if bd.ShowtimeID != req.ShowtimeID || bd.TotalPrice != cb.Amount || bd.SeatCount != len(req.Seats) || !slices.Equal(bd.Seats, req.Seats) {
		return nil, ErrBookingDataMismatch
	}

	approval, err := o.Provider.Confirm(ctx, payment.ConfirmParams{PaymentKey: cb.PaymentKey, OrderID: cb.OrderID, Amount: cb.Amount})
	if err != nil {
		o.abandon(ctx, cb.OrderID, model.CheckoutFailed, "provider confirm: "+err.Error())
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	b, err := o.Ledger.CreateBooking(ctx, NewBooking{
		UserID:     req.UserID,
		ShowtimeID: req.ShowtimeID,
		Seats:      req.Seats,
		TotalPrice: req.TotalPrice,
		Status:     model.BookingConfirmed,
		OrderID:    cb.OrderID,
	})
	if errors.Is(err, repository.ErrDuplicateOrder) {
		// Another instance got here first without the lock.
		res, rerr := o.replay(ctx, cb.OrderID, cb.UserID)
		if res == nil && rerr == nil {
			rerr = err
		}
		return res, rerr
	}
	if err != nil {
		var sc *SeatConflictError
		if errors.As(err, &sc) || errors.Is(err, repository.ErrInsufficientSeats) {
			// The seats may be held by this order's own booking, written by a
			// confirmation that ran without the lock.
			if res, rerr := o.replay(ctx, cb.OrderID, cb.UserID); res != nil || rerr != nil {
				return res, rerr
			}
		}
		refunded := o.refundApproved(ctx, cb, err)
		o.abandon(ctx, cb.OrderID, model.CheckoutFailed, "create booking: "+err.Error())
		if errors.As(err, &sc) {
			sc.Refunded = refunded
			return nil, sc
		}
		if errors.Is(err, repository.ErrInsufficientSeats) {
			return nil, &SeatConflictError{Seats: req.Seats, Refunded: refunded}
		}
		return nil, err
	}

	method := approval.Method
	if method == "" {
		method = "card"
	}
	status := approval.Status
	if status == "" {
		status = model.PaymentDone
	}
	approvedAt := approval.ApprovedAt
	p := &model.Payment{
		PaymentKey: cb.PaymentKey,
		OrderID:    cb.OrderID,
		UserID:     req.UserID,
		BookingID:  b.ID,
		Amount:     cb.Amount,
		Method:     method,
		OrderName:  req.OrderName,
		Status:     status,
		ApprovedAt: &approvedAt,
	}
	if err := o.Payments.Create(ctx, p); err != nil {
		log.Printf("orchestrator: PARTIAL_CONFIRMATION order_id=%s booking_id=%d payment_key=%s amount=%d: %v",
			cb.OrderID, b.ID, cb.PaymentKey, cb.Amount, err)
		return nil, fmt.Errorf("%w: order %s booking %d: %v", ErrPartialConfirmation, cb.OrderID, b.ID, err)
	}

	if _, err := o.Checkouts.Transition(ctx, cb.OrderID, model.CheckoutConfirmed, nil); err != nil {
		log.Printf("orchestrator: mark %s confirmed failed: %v", cb.OrderID, err)
	}
	if _, err := o.Ledger.ReleaseLeases(ctx, cb.OrderID); err != nil {
		log.Printf("orchestrator: release leases of %s failed: %v", cb.OrderID, err)
	}
	if full, err := o.Ledger.GetBooking(ctx, b.ID); err == nil {
		b = full
	}
	o.publishConfirmed(b, p)
	return &Confirmation{Booking: b, Payment: p}, nil
}

// replay answers a repeated success callback from the durable state.  It
// returns (nil, nil) when the order has no booking yet.  A booking without
// a payment is a partial confirmation only when it is CONFIRMED; an unpaid
// PENDING booking made through POST /bookings is paid via /payment/confirm.
func (o *Orchestrator) replay(ctx context.Context, orderID string, userID uint64) (*Confirmation, error) {
	b, err := o.Ledger.BookingByOrder(ctx, orderID)
	if errors.Is(err, repository.ErrBookingNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, repository.ErrForbidden
	}
	p, err := o.Payments.GetByOrderID(ctx, orderID)
	if errors.Is(err, repository.ErrPaymentNotFound) {
		switch b.Status {
		case model.BookingConfirmed:
			return nil, fmt.Errorf("%w: order %s booking %d has no payment record", ErrPartialConfirmation, orderID, b.ID)
		case model.BookingPending:
			return nil, fmt.Errorf("%w: order %s has unpaid booking %d, confirm it through /payment/confirm", repository.ErrConflict, orderID, b.ID)
		default:
			return nil, fmt.Errorf("%w: order %s booking %d is cancelled", ErrCheckoutClosed, orderID, b.ID)
		}
	}
	if err != nil {
		return nil, err
	}
	return &Confirmation{Booking: b, Payment: p, Replayed: true}, nil
}

func (o *Orchestrator) acquire(ctx context.Context, orderID string) (func(), error) {
	if o.Lock == nil {
		return func() {}, nil
	}
	return o.Lock.Acquire(ctx, orderID)
}

// refundApproved cancels an approved payment whose booking could not be
// written.  It reports whether the refund went through.
func (o *Orchestrator) refundApproved(ctx context.Context, cb SuccessCallback, cause error) bool {
	reason := "booking could not be created"
	if errors.Is(cause, repository.ErrSeatConflict) || errors.Is(cause, repository.ErrInsufficientSeats) {
		reason = "seat no longer available"
	}
	if err := o.Provider.Cancel(ctx, cb.PaymentKey, reason); err != nil {
		log.Printf("orchestrator: REFUND_FAILED order_id=%s payment_key=%s amount=%d cause=%v: %v",
			cb.OrderID, cb.PaymentKey, cb.Amount, cause, err)
		return false
	}
	log.Printf("orchestrator: refunded order_id=%s payment_key=%s: %v", cb.OrderID, cb.PaymentKey, cause)
	return true
}

func (o *Orchestrator) publishConfirmed(b *model.Booking, p *model.Payment) {
	ev := queue.BookingConfirmedEvent{
		BookingID:   b.ID,
		PaymentKey:  p.PaymentKey,
		OrderID:     p.OrderID,
		UserID:      b.UserID,
		ShowtimeID:  b.ShowtimeID,
		MovieTitle:  b.MovieTitle,
		TheaterName: b.TheaterName,
		ScreenName:  b.ScreenName,
		Seats:       b.Seats,
		TotalPrice:  b.TotalPrice,
		ConfirmedAt: o.now().UTC().Format(time.RFC3339),
	}
	if !b.StartTime.IsZero() {
		ev.StartsAt = b.StartTime.UTC().Format(time.RFC3339)
	}
	notify(o.Events, queue.BookingConfirmedQueue, ev)
}

// Failure is the outcome of a fail callback.
type Failure struct {
	OrderID string `json:"orderId"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// HandleFailure closes the checkout request and releases its leases.  No
// booking or payment is written.  An unknown order id still yields the
// provider's message.
func (o *Orchestrator) HandleFailure(ctx context.Context, userID uint64, orderID, code, message string) (*Failure, error) {
	if message == "" {
		message = "payment was not completed"
	}
	out := &Failure{OrderID: orderID, Code: code, Message: message}
	if orderID == "" {
		return out, nil
	}
	req, err := o.Checkouts.Get(ctx, orderID)
	if errors.Is(err, repository.ErrCheckoutNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, repository.ErrForbidden
	}
	reason := message
	if code != "" {
		reason = code + ": " + message
	}
	o.abandon(ctx, orderID, model.CheckoutFailed, reason)
	return out, nil
}

// PaymentConfirm is the body of POST /payment/confirm.
type PaymentConfirm struct {
	UserID     uint64
	PaymentKey string
	OrderID    string
	Amount     int64
	BookingID  uint64
	Method     string
	OrderName  string
}

// RecordPayment approves and records the payment of an existing booking and
// confirms it.  The order id makes the call idempotent: a repeat returns the
// stored payment with replayed set.
func (o *Orchestrator) RecordPayment(ctx context.Context, in PaymentConfirm) (*model.Payment, bool, error) {
	release, err := o.acquire(ctx, in.OrderID)
	if err != nil {
		return nil, false, err
	}
	defer release()

	if p, err := o.Payments.GetByOrderID(ctx, in.OrderID); err == nil {
		if p.BookingID != in.BookingID || p.PaymentKey != in.PaymentKey || p.UserID != in.UserID {
			return nil, false, repository.ErrDuplicateOrder
		}
		return p, true, nil
	} else if !errors.Is(err, repository.ErrPaymentNotFound) {
		return nil, false, err
	}

	b, err := o.Ledger.GetBooking(ctx, in.BookingID)
	if err != nil {
		return nil, false, err
	}
	if b.UserID != in.UserID {
		return nil, false, repository.ErrForbidden
	}
	if b.Status == model.BookingCancelled {
		return nil, false, fmt.Errorf("%w: booking %d is cancelled", repository.ErrConflict, b.ID)
	}
	prior, err := o.Payments.GetByBooking(ctx, b.ID)
	if err == nil && prior.Status == model.PaymentDone {
		return nil, false, fmt.Errorf("%w: booking %d is already paid by order %s", repository.ErrConflict, b.ID, prior.OrderID)
	}
	if err != nil && !errors.Is(err, repository.ErrPaymentNotFound) {
		return nil, false, err
	}
	if in.Amount != b.TotalPrice {
		return nil, false, fmt.Errorf("%w: paid %d, booking total %d", ErrAmountMismatch, in.Amount, b.TotalPrice)
	}

	approval, err := o.Provider.Confirm(ctx, payment.ConfirmParams{PaymentKey: in.PaymentKey, OrderID: in.OrderID, Amount: in.Amount})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	method := in.Method
	if method == "" {
		method = approval.Method
	}
	approvedAt := approval.ApprovedAt
	p := &model.Payment{
		PaymentKey: in.PaymentKey,
		OrderID:    in.OrderID,
		UserID:     in.UserID,
		BookingID:  b.ID,
		Amount:     in.Amount,
		Method:     method,
		OrderName:  in.OrderName,
		Status:     model.PaymentDone,
		ApprovedAt: &approvedAt,
	}
	if err := o.Payments.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicateOrder) {
			if existing, gerr := o.Payments.GetByOrderID(ctx, in.OrderID); gerr == nil {
				return existing, true, nil
			}
		}
		log.Printf("orchestrator: PARTIAL_CONFIRMATION order_id=%s booking_id=%d payment_key=%s amount=%d: %v",
			in.OrderID, b.ID, in.PaymentKey, in.Amount, err)
		return nil, false, fmt.Errorf("%w: order %s booking %d: %v", ErrPartialConfirmation, in.OrderID, b.ID, err)
	}

	if b.Status == model.BookingPending {
		// The sweeper confirms a paid PENDING booking if this fails.
		if err := o.Ledger.ConfirmBooking(ctx, b.ID); err != nil {
			log.Printf("orchestrator: confirm booking %d after payment %s failed: %v", b.ID, in.PaymentKey, err)
		} else {
			b.Status = model.BookingConfirmed
			o.publishConfirmed(b, p)
		}
	}
	return p, false, nil
}

// CancelPayment refunds a payment at the provider and marks it CANCELED.
// Cancelling a CANCELED payment is a conflict.  The payment of a live
// booking is refunded by cancelling the booking, which also frees its seats.
func (o *Orchestrator) CancelPayment(ctx context.Context, userID uint64, paymentKey, reason string) (*model.Payment, error) {
	p, err := o.Payments.GetByKey(ctx, paymentKey)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, repository.ErrForbidden
	}
	if p.Status == model.PaymentCanceled {
		return nil, fmt.Errorf("%w: payment already cancelled", repository.ErrConflict)
	}
	if reason == "" {
		reason = "customer request"
	}
	b, err := o.Ledger.GetBooking(ctx, p.BookingID)
	if err != nil && !errors.Is(err, repository.ErrBookingNotFound) {
		return nil, err
	}
	if err == nil && b.Status != model.BookingCancelled && p.Status == model.PaymentDone {
		if _, err := o.Ledger.CancelWithReason(ctx, b.ID, userID, reason); err != nil && !errors.Is(err, repository.ErrAlreadyCancelled) {
			return nil, err
		}
		cur, err := o.Payments.GetByKey(ctx, paymentKey)
		if err != nil {
			return nil, err
		}
		if cur.Status == model.PaymentCanceled {
			return cur, nil
		}
	}
	if err := o.Provider.Cancel(ctx, paymentKey, reason); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	at := o.now().UTC()
	if err := o.Payments.MarkCanceled(ctx, paymentKey, reason, at); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: payment already cancelled", repository.ErrConflict)
		}
		return nil, err
	}
	p.Status = model.PaymentCanceled
	p.CancelReason = &reason
	p.CanceledAt = &at
	return p, nil
}

// PaymentsByUser lists a user's payments, newest first.
func (o *Orchestrator) PaymentsByUser(ctx context.Context, userID uint64) ([]model.Payment, error) {
	return o.Payments.ListByUser(ctx, userID)
}

// PaymentByKey returns a payment the user owns.
func (o *Orchestrator) PaymentByKey(ctx context.Context, userID uint64, paymentKey string) (*model.Payment, error) {
	p, err := o.Payments.GetByKey(ctx, paymentKey)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, repository.ErrForbidden
	}
	return p, nil
}

// PaymentByBooking returns the latest payment of a booking the user owns.
func (o *Orchestrator) PaymentByBooking(ctx context.Context, userID, bookingID uint64) (*model.Payment, error) {
	p, err := o.Payments.GetByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, repository.ErrForbidden
	}
	return p, nil
}
