package service

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-checkout/internal/model"
	"github.com/iliyamo/cinema-checkout/internal/payment"
	"github.com/iliyamo/cinema-checkout/internal/queue"
	"github.com/iliyamo/cinema-checkout/internal/repository"
)

const testSecret = "booking-data-secret"

type orchestratorFixture struct {
	o         *Orchestrator
	ledger    *memLedger
	checkouts *memCheckouts
	payments  *memPayments
	provider  *fakeProvider
	events    *recordingPublisher
}

func newOrchestratorFixture(t *testing.T, occupied ...string) *orchestratorFixture {
	t.Helper()
	checkouts := newMemCheckouts()
	f := &orchestratorFixture{
		ledger:    newMemLedger(checkouts),
		checkouts: checkouts,
		payments:  newMemPayments(),
		provider:  &fakeProvider{},
		events:    &recordingPublisher{},
	}
	f.ledger.payments = f.payments
	f.ledger.provider = f.provider
	f.o = NewOrchestrator(OrchestratorDeps{
		Ledger:    f.ledger,
		Checkouts: f.checkouts,
		Payments:  f.payments,
		Showtimes: fakeShowtimes{st: model.Showtime{
			ID:             7,
			MovieTitle:     "Dune",
			Price:          12000,
			TotalSeats:     240,
			AvailableSeats: 240,
			StartTime:      time.Now().Add(24 * time.Hour),
		}},
		Occupancy: fakeOccupancySource{seats: occupied},
		Provider:  f.provider,
		Events:    f.events,
	}, OrchestratorConfig{
		PublicBaseURL:     "https://cinema.example/",
		SuccessPath:       "/payment/success",
		FailPath:          "/payment/fail",
		BookingDataSecret: testSecret,
		LeaseTTL:          5 * time.Minute,
	})
	return f
}

// checkout starts a checkout for A1+A2 and returns the success callback the
// provider would send.
func (f *orchestratorFixture) checkout(t *testing.T) (*CheckoutStart, SuccessCallback) {
	t.Helper()
	start, err := f.o.StartCheckout(context.Background(), StartCheckoutInput{
		UserID: 42, CustomerName: "Kim", ShowtimeID: 7, Seats: []string{"A1", "A2"},
	})
	require.NoError(t, err)
	u, err := url.Parse(start.SuccessURL)
	require.NoError(t, err)
	return start, SuccessCallback{
		UserID:      42,
		PaymentKey:  "pk_" + start.OrderID,
		OrderID:     start.OrderID,
		Amount:      start.Amount,
		BookingData: u.Query().Get("bookingData"),
	}
}

func TestStartCheckoutComputesTotalAndLeases(t *testing.T) {
	f := newOrchestratorFixture(t)
	start, _ := f.checkout(t)

	assert.Equal(t, int64(24000), start.Amount)
	assert.Equal(t, "Dune - A1, A2", start.OrderName)
	assert.Equal(t, "Kim", start.CustomerName)
	assert.Regexp(t, `^ORDER_\d+_[0-9a-f]{8}$`, start.OrderID)
	assert.Contains(t, start.SuccessURL, "https://cinema.example/payment/success?bookingData=")
	assert.Contains(t, start.FailURL, "orderId="+start.OrderID)
	assert.Equal(t, []string{"A1", "A2"}, start.Request.Seats)
	assert.Equal(t, 2, start.Request.SeatCount)
	require.NotNil(t, start.Redirect)
	assert.Equal(t, model.CheckoutOpen, f.checkouts.status(start.OrderID))
}

func TestStartCheckoutRejectsOccupiedSeat(t *testing.T) {
	f := newOrchestratorFixture(t, "A1")
	_, err := f.o.StartCheckout(context.Background(), StartCheckoutInput{UserID: 42, ShowtimeID: 7, Seats: []string{"A1", "A2"}})

	var sc *SeatConflictError
	require.ErrorAs(t, err, &sc)
	assert.Equal(t, []string{"A1"}, sc.Seats)
	assert.ErrorIs(t, err, repository.ErrSeatConflict)
}

func TestStartCheckoutRejectsInvalidSelection(t *testing.T) {
	f := newOrchestratorFixture(t)
	_, err := f.o.StartCheckout(context.Background(), StartCheckoutInput{UserID: 42, ShowtimeID: 7, Seats: []string{"Z99"}})
	assert.ErrorIs(t, err, ErrInvalidSeat)

	_, err = f.o.StartCheckout(context.Background(), StartCheckoutInput{UserID: 42, ShowtimeID: 7})
	assert.ErrorIs(t, err, ErrInvalidSeat)
}

func TestHandleSuccessIsIdempotent(t *testing.T) {
	f := newOrchestratorFixture(t)
	start, cb := f.checkout(t)

	first, err := f.o.HandleSuccess(context.Background(), cb)
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	assert.Equal(t, model.BookingConfirmed, first.Booking.Status)
	assert.Equal(t, int64(24000), first.Payment.Amount)
	assert.Equal(t, first.Booking.ID, first.Payment.BookingID)

	second, err := f.o.HandleSuccess(context.Background(), cb)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Booking.ID, second.Booking.ID)
	assert.Equal(t, first.Payment.ID, second.Payment.ID)

	assert.Equal(t, 1, f.ledger.count())
	assert.Equal(t, 1, f.payments.count())
	assert.Equal(t, 1, f.provider.confirms)
	assert.Equal(t, model.CheckoutConfirmed, f.checkouts.status(start.OrderID))
	assert.Contains(t, f.ledger.released, start.OrderID)
	assert.Equal(t, []string{queue.BookingConfirmedQueue}, f.events.published())
}

func TestHandleSuccessRejectsAmountMismatch(t *testing.T) {
	f := newOrchestratorFixture(t)
	_, cb := f.checkout(t)
	cb.Amount = 20000

	_, err := f.o.HandleSuccess(context.Background(), cb)
	assert.ErrorIs(t, err, ErrAmountMismatch)
	assert.Zero(t, f.ledger.count())
	assert.Zero(t, f.provider.confirms)
}

func TestHandleSuccessRejectsForeignBookingData(t *testing.T) {
	f := newOrchestratorFixture(t)
	_, cb := f.checkout(t)
	other, err := payment.EncodeBookingData(testSecret, "ORDER_other", payment.BookingData{
		ShowtimeID: 7, Seats: []string{"A1", "A2"}, SeatCount: 2, TotalPrice: 24000,
	}, time.Minute)
	require.NoError(t, err)
	cb.BookingData = other

	_, err = f.o.HandleSuccess(context.Background(), cb)
	assert.ErrorIs(t, err, ErrBookingDataMismatch)
	assert.Zero(t, f.provider.confirms)
}

func TestHandleSuccessSeatConflictRefunds(t *testing.T) {
	f := newOrchestratorFixture(t)
	start, cb := f.checkout(t)
	// Another shopper's booking lands on A1 while this one is paying.
	_, err := f.ledger.CreateBooking(context.Background(), NewBooking{UserID: 9, ShowtimeID: 7, Seats: []string{"A1"}, TotalPrice: 12000, Status: model.BookingConfirmed})
	require.NoError(t, err)

	_, err = f.o.HandleSuccess(context.Background(), cb)
	var sc *SeatConflictError
	require.ErrorAs(t, err, &sc)
	assert.True(t, sc.Refunded)
	assert.Equal(t, []string{"A1"}, sc.Seats)
	assert.Equal(t, []string{cb.PaymentKey}, f.provider.cancels)
	assert.Equal(t, model.CheckoutFailed, f.checkouts.status(start.OrderID))
	assert.Zero(t, f.payments.count())
	assert.Equal(t, 1, f.ledger.count())
}

// twin writes the booking and payment a concurrent confirmation of the same
// order would have committed.
func (f *orchestratorFixture) twin(t *testing.T, cb SuccessCallback) *model.Booking {
	t.Helper()
	b, err := f.ledger.CreateBooking(context.Background(), NewBooking{
		UserID: 42, ShowtimeID: 7, Seats: []string{"A1", "A2"}, TotalPrice: 24000,
		Status: model.BookingConfirmed, OrderID: cb.OrderID,
	})
	require.NoError(t, err)
	require.NoError(t, f.payments.Create(context.Background(), &model.Payment{
		PaymentKey: cb.PaymentKey, OrderID: cb.OrderID, UserID: 42, BookingID: b.ID,
		Amount: cb.Amount, Method: "card", Status: model.PaymentDone,
	}))
	return b
}

func TestHandleSuccessLosingTwinReplaysWithoutRefund(t *testing.T) {
	f := newOrchestratorFixture(t)
	start, cb := f.checkout(t)
	b := f.twin(t, cb)
	// Both early replays ran before the twin committed.
	f.ledger.orderMisses = 2

	res, err := f.o.HandleSuccess(context.Background(), cb)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, b.ID, res.Booking.ID)
	assert.Empty(t, f.provider.cancels)
	assert.Equal(t, 1, f.ledger.count())
	assert.Equal(t, 1, f.payments.count())
	assert.Equal(t, model.CheckoutOpen, f.checkouts.status(start.OrderID))
}

func TestHandleSuccessSeatConflictOnOwnOrderDoesNotRefund(t *testing.T) {
	f := newOrchestratorFixture(t)
	_, cb := f.checkout(t)
	f.twin(t, cb)
	f.ledger.orderMisses = 2
	f.ledger.createErr = &SeatConflictError{Seats: []string{"A1", "A2"}}

	res, err := f.o.HandleSuccess(context.Background(), cb)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Empty(t, f.provider.cancels)
	assert.Equal(t, 1, f.payments.count())
}

func TestHandleSuccessOnUnpaidPendingBookingConflicts(t *testing.T) {
	f := newOrchestratorFixture(t)
	start, cb := f.checkout(t)
	_, err := f.ledger.CreateBooking(context.Background(), NewBooking{
		UserID: 42, ShowtimeID: 7, Seats: []string{"A1", "A2"}, TotalPrice: 24000,
		Status: model.BookingPending, OrderID: start.OrderID,
	})
	require.NoError(t, err)

	_, err = f.o.HandleSuccess(context.Background(), cb)
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.NotErrorIs(t, err, ErrPartialConfirmation)
	assert.Zero(t, f.provider.confirms)
	assert.Empty(t, f.provider.cancels)
}

func TestHandleSuccessProviderFailureWritesNothing(t *testing.T) {
	f := newOrchestratorFixture(t)
	start, cb := f.checkout(t)
	f.provider.confirmErr = &payment.Error{Code: "REJECT_CARD_PAYMENT", Message: "limit exceeded"}

	_, err := f.o.HandleSuccess(context.Background(), cb)
	assert.ErrorIs(t, err, ErrProviderFailure)
	assert.Contains(t, err.Error(), "limit exceeded")
	assert.Zero(t, f.ledger.count())
	assert.Zero(t, f.payments.count())
	assert.Equal(t, model.CheckoutFailed, f.checkouts.status(start.OrderID))
	assert.Contains(t, f.ledger.released, start.OrderID)
}

func TestHandleSuccessPartialConfirmationIsNotRetried(t *testing.T) {
	f := newOrchestratorFixture(t)
	_, cb := f.checkout(t)
	f.payments.createErr = errors.New("payments table unavailable")

	_, err := f.o.HandleSuccess(context.Background(), cb)
	assert.ErrorIs(t, err, ErrPartialConfirmation)

	f.payments.createErr = nil
	_, err = f.o.HandleSuccess(context.Background(), cb)
	assert.ErrorIs(t, err, ErrPartialConfirmation)
	assert.Equal(t, 1, f.ledger.count())
	assert.Zero(t, f.payments.count())
	assert.Equal(t, 1, f.provider.confirms)
	assert.Empty(t, f.provider.cancels)
}

func TestHandleSuccessConfirmInProgress(t *testing.T) {
	f := newOrchestratorFixture(t)
	_, cb := f.checkout(t)
	f.o.Lock = heldLock{}

	_, err := f.o.HandleSuccess(context.Background(), cb)
	assert.ErrorIs(t, err, ErrConfirmInProgress)
	assert.Zero(t, f.provider.confirms)
}

func TestHandleSuccessRejectsOtherUser(t *testing.T) {
	f := newOrchestratorFixture(t)
	_, cb := f.checkout(t)
	cb.UserID = 99

	_, err := f.o.HandleSuccess(context.Background(), cb)
	assert.ErrorIs(t, err, repository.ErrForbidden)
}

func TestHandleFailureClosesRequest(t *testing.T) {
	f := newOrchestratorFixture(t)
	start, _ := f.checkout(t)

	res, err := f.o.HandleFailure(context.Background(), 42, start.OrderID, "PAY_PROCESS_CANCELED", "user cancelled")
	require.NoError(t, err)
	assert.Equal(t, "user cancelled", res.Message)
	assert.Equal(t, model.CheckoutFailed, f.checkouts.status(start.OrderID))
	assert.Contains(t, f.ledger.released, start.OrderID)
	assert.Zero(t, f.ledger.count())
	assert.Zero(t, f.payments.count())

	res, err = f.o.HandleFailure(context.Background(), 42, "ORDER_unknown", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Message)
}

func TestRecordPayment(t *testing.T) {
	f := newOrchestratorFixture(t)
	b, err := f.ledger.CreateBooking(context.Background(), NewBooking{UserID: 42, ShowtimeID: 7, Seats: []string{"A1", "A2"}, TotalPrice: 24000, Status: model.BookingPending})
	require.NoError(t, err)

	in := PaymentConfirm{UserID: 42, PaymentKey: "pk_1", OrderID: "ORDER_1_abcdef12", Amount: 24000, BookingID: b.ID, OrderName: "Dune - A1, A2"}

	_, _, err = f.o.RecordPayment(context.Background(), PaymentConfirm{UserID: 42, PaymentKey: "pk_1", OrderID: "ORDER_1_abcdef12", Amount: 20000, BookingID: b.ID})
	assert.ErrorIs(t, err, ErrAmountMismatch)

	p, replayed, err := f.o.RecordPayment(context.Background(), in)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, model.PaymentDone, p.Status)
	assert.Equal(t, "card", p.Method)

	got, err := f.ledger.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, got.Status)

	again, replayed, err := f.o.RecordPayment(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, p.ID, again.ID)
	assert.Equal(t, 1, f.provider.confirms)
	assert.Equal(t, 1, f.payments.count())
}

func TestCancelPaymentTwiceConflicts(t *testing.T) {
	f := newOrchestratorFixture(t)
	b, err := f.ledger.CreateBooking(context.Background(), NewBooking{UserID: 42, ShowtimeID: 7, Seats: []string{"C3"}, TotalPrice: 12000, Status: model.BookingPending})
	require.NoError(t, err)
	_, _, err = f.o.RecordPayment(context.Background(), PaymentConfirm{UserID: 42, PaymentKey: "pk_c", OrderID: "ORDER_c", Amount: 12000, BookingID: b.ID})
	require.NoError(t, err)

	p, err := f.o.CancelPayment(context.Background(), 42, "pk_c", "")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCanceled, p.Status)
	require.NotNil(t, p.CancelReason)

	_, err = f.o.CancelPayment(context.Background(), 42, "pk_c", "again")
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Equal(t, []string{"pk_c"}, f.provider.cancels)

	_, err = f.o.CancelPayment(context.Background(), 7, "pk_c", "")
	assert.ErrorIs(t, err, repository.ErrForbidden)
}

func TestRecordPaymentRejectsSecondPaymentForPaidBooking(t *testing.T) {
	f := newOrchestratorFixture(t)
	_, cb := f.checkout(t)
	first, err := f.o.HandleSuccess(context.Background(), cb)
	require.NoError(t, err)

	_, _, err = f.o.RecordPayment(context.Background(), PaymentConfirm{
		UserID: 42, PaymentKey: "pk_other", OrderID: "ORDER_other", Amount: 24000, BookingID: first.Booking.ID,
	})
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Equal(t, 1, f.provider.confirms)
	assert.Equal(t, 1, f.payments.count())
}

func TestCancelPaymentCancelsBookingAndFreesSeats(t *testing.T) {
	f := newOrchestratorFixture(t)
	_, cb := f.checkout(t)
	first, err := f.o.HandleSuccess(context.Background(), cb)
	require.NoError(t, err)

	p, err := f.o.CancelPayment(context.Background(), 42, cb.PaymentKey, "changed plans")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCanceled, p.Status)
	require.NotNil(t, p.CancelReason)
	assert.Equal(t, "changed plans", *p.CancelReason)
	assert.Equal(t, []string{cb.PaymentKey}, f.provider.cancels)
	assert.Equal(t, model.BookingCancelled, f.ledger.status(first.Booking.ID))
	assert.False(t, f.ledger.seatClaimed(7, "A1"))
	assert.False(t, f.ledger.seatClaimed(7, "A2"))

	_, err = f.o.CancelPayment(context.Background(), 42, cb.PaymentKey, "")
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Len(t, f.provider.cancels, 1)
}
