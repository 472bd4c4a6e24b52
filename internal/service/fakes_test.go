package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iliyamo/cinema-checkout/internal/model"
	"github.com/iliyamo/cinema-checkout/internal/payment"
	"github.com/iliyamo/cinema-checkout/internal/repository"
)

// memLedger is an in-memory BookingLedger with the same check order as the
// SQL ledger: a booked order id first, then seat exclusivity.
type memLedger struct {
	mu        sync.Mutex
	nextID    uint64
	bookings  map[uint64]*model.Booking
	byOrder   map[string]uint64
	claimed   map[string]uint64
	checkouts *memCheckouts
	payments  *memPayments
	provider  *fakeProvider
	released  []string
	createErr error
	// orderMisses makes that many BookingByOrder calls miss, as when the
	// booking's transaction has not committed yet.
	orderMisses int
}

func newMemLedger(checkouts *memCheckouts) *memLedger {
	return &memLedger{
		bookings:  map[uint64]*model.Booking{},
		byOrder:   map[string]uint64{},
		claimed:   map[string]uint64{},
		checkouts: checkouts,
	}
}

func seatKey(showtimeID uint64, code string) string { return fmt.Sprintf("%d/%s", showtimeID, code) }

func (l *memLedger) CreateBooking(ctx context.Context, nb NewBooking) (*model.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.createErr != nil {
		return nil, l.createErr
	}
	if _, dup := l.byOrder[nb.OrderID]; dup && nb.OrderID != "" {
		return nil, repository.ErrDuplicateOrder
	}
	var taken []string
	for _, s := range nb.Seats {
		if _, ok := l.claimed[seatKey(nb.ShowtimeID, s)]; ok {
			taken = append(taken, s)
		}
	}
	if len(taken) > 0 {
		return nil, &SeatConflictError{Seats: taken}
	}
	l.nextID++
	b := &model.Booking{
		ID:         l.nextID,
		UserID:     nb.UserID,
		ShowtimeID: nb.ShowtimeID,
		Seats:      append([]string(nil), nb.Seats...),
		SeatCount:  len(nb.Seats),
		TotalPrice: nb.TotalPrice,
		Status:     nb.Status,
	}
	if nb.OrderID != "" {
		id := nb.OrderID
		b.OrderID = &id
		l.byOrder[id] = b.ID
	}
	for _, s := range nb.Seats {
		l.claimed[seatKey(nb.ShowtimeID, s)] = b.ID
	}
	l.bookings[b.ID] = b
	return b, nil
}

func (l *memLedger) ConfirmBooking(ctx context.Context, id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	if b.Status == model.BookingCancelled {
		return repository.ErrConflict
	}
	b.Status = model.BookingConfirmed
	return nil
}

func (l *memLedger) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (l *memLedger) BookingByOrder(ctx context.Context, orderID string) (*model.Booking, error) {
	l.mu.Lock()
	id, ok := l.byOrder[orderID]
	if l.orderMisses > 0 {
		l.orderMisses--
		ok = false
	}
	l.mu.Unlock()
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return l.GetBooking(ctx, id)
}

func (l *memLedger) OpenCheckout(ctx context.Context, req *model.CheckoutRequest) error {
	req.Status = model.CheckoutOpen
	req.SeatCount = len(req.Seats)
	l.checkouts.put(req)
	return nil
}

func (l *memLedger) ReleaseLeases(ctx context.Context, orderID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = append(l.released, orderID)
	return 1, nil
}

func (l *memLedger) CancelWithReason(ctx context.Context, bookingID, userID uint64, reason string) (*model.Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.bookings[bookingID]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	if b.UserID != userID {
		return nil, repository.ErrForbidden
	}
	if b.Status == model.BookingCancelled {
		return nil, repository.ErrAlreadyCancelled
	}
	if l.payments != nil {
		if p, err := l.payments.GetByBooking(ctx, bookingID); err == nil && p.Status == model.PaymentDone {
			if err := l.provider.Cancel(ctx, p.PaymentKey, reason); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
			}
			_ = l.payments.MarkCanceled(ctx, p.PaymentKey, reason, time.Now())
		}
	}
	b.Status = model.BookingCancelled
	for _, s := range b.Seats {
		delete(l.claimed, seatKey(b.ShowtimeID, s))
	}
	cp := *b
	return &cp, nil
}

func (l *memLedger) status(id uint64) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.bookings[id]; ok {
		return b.Status
	}
	return ""
}

func (l *memLedger) seatClaimed(showtimeID uint64, code string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.claimed[seatKey(showtimeID, code)]
	return ok
}

func (l *memLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.bookings)
}

type memCheckouts struct {
	mu   sync.Mutex
	reqs map[string]*model.CheckoutRequest
}

func newMemCheckouts() *memCheckouts {
	return &memCheckouts{reqs: map[string]*model.CheckoutRequest{}}
}

func (m *memCheckouts) put(req *model.CheckoutRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *req
	m.reqs[req.OrderID] = &cp
}

func (m *memCheckouts) Get(ctx context.Context, orderID string) (*model.CheckoutRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[orderID]
	if !ok {
		return nil, repository.ErrCheckoutNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memCheckouts) Transition(ctx context.Context, orderID, status string, reason *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[orderID]
	if !ok || r.Status != model.CheckoutOpen {
		return false, nil
	}
	r.Status = status
	r.FailReason = reason
	return true, nil
}

func (m *memCheckouts) status(orderID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.reqs[orderID]; ok {
		return r.Status
	}
	return ""
}

type memPayments struct {
	mu        sync.Mutex
	nextID    uint64
	byOrder   map[string]*model.Payment
	createErr error
}

func newMemPayments() *memPayments { return &memPayments{byOrder: map[string]*model.Payment{}} }

func (m *memPayments) Create(ctx context.Context, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, dup := m.byOrder[p.OrderID]; dup {
		return repository.ErrDuplicateOrder
	}
	m.nextID++
	p.ID = m.nextID
	cp := *p
	m.byOrder[p.OrderID] = &cp
	return nil
}

func (m *memPayments) find(match func(*model.Payment) bool) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byOrder {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPaymentNotFound
}

func (m *memPayments) GetByOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	return m.find(func(p *model.Payment) bool { return p.OrderID == orderID })
}

func (m *memPayments) GetByKey(ctx context.Context, key string) (*model.Payment, error) {
	return m.find(func(p *model.Payment) bool { return p.PaymentKey == key })
}

func (m *memPayments) GetByBooking(ctx context.Context, bookingID uint64) (*model.Payment, error) {
	return m.find(func(p *model.Payment) bool { return p.BookingID == bookingID })
}

func (m *memPayments) ListByUser(ctx context.Context, userID uint64) ([]model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Payment{}
	for _, p := range m.byOrder {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memPayments) MarkCanceled(ctx context.Context, key, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byOrder {
		if p.PaymentKey == key {
			if p.Status == model.PaymentCanceled {
				return repository.ErrConflict
			}
			p.Status = model.PaymentCanceled
			p.CancelReason = &reason
			p.CanceledAt = &at
			return nil
		}
	}
	return repository.ErrConflict
}

func (m *memPayments) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byOrder)
}

type fakeProvider struct {
	mu         sync.Mutex
	confirmErr error
	cancelErr  error
	confirms   int
	cancels    []string
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Prepare(ctx context.Context, cp payment.CheckoutParams) (*payment.Redirect, error) {
	return &payment.Redirect{Provider: "fake", Params: map[string]any{"orderId": cp.OrderID, "amount": cp.Amount}}, nil
}

func (p *fakeProvider) Confirm(ctx context.Context, cp payment.ConfirmParams) (*payment.Approval, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.confirmErr != nil {
		return nil, p.confirmErr
	}
	p.confirms++
	return &payment.Approval{
		PaymentKey:  cp.PaymentKey,
		OrderID:     cp.OrderID,
		Status:      model.PaymentDone,
		Method:      "card",
		TotalAmount: cp.Amount,
		ApprovedAt:  time.Now().UTC(),
	}, nil
}

func (p *fakeProvider) Cancel(ctx context.Context, key, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelErr != nil {
		return p.cancelErr
	}
	p.cancels = append(p.cancels, key)
	return nil
}

type fakeShowtimes struct {
	st model.Showtime
}

func (f fakeShowtimes) GetShowtime(ctx context.Context, id uint64) (*model.Showtime, error) {
	if id != f.st.ID {
		return nil, repository.ErrShowtimeNotFound
	}
	cp := f.st
	return &cp, nil
}

type fakeOccupancySource struct {
	seats []string
}

func (f fakeOccupancySource) Occupied(ctx context.Context, showtimeID uint64, viewerOrderID string) ([]string, error) {
	return f.seats, nil
}

type heldLock struct{}

func (heldLock) Acquire(ctx context.Context, orderID string) (func(), error) {
	return nil, ErrConfirmInProgress
}

type recordingPublisher struct {
	mu     sync.Mutex
	queues []string
}

func (r *recordingPublisher) Publish(ctx context.Context, queue string, v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queues = append(r.queues, queue)
	return nil
}

func (r *recordingPublisher) published() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queues...)
}
