package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-checkout/internal/model"
	"github.com/iliyamo/cinema-checkout/internal/repository"
)

var ledgerNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T, payments PaymentLookup, provider *fakeProvider) (*Ledger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	var l *Ledger
	if provider != nil {
		l = NewLedger(db, repository.NewBookingRepo(db), repository.NewSeatHoldRepo(db), repository.NewCheckoutRepo(db), payments, provider, nil)
	} else {
		l = NewLedger(db, repository.NewBookingRepo(db), repository.NewSeatHoldRepo(db), repository.NewCheckoutRepo(db), payments, nil, nil)
	}
	l.now = func() time.Time { return ledgerNow }
	return l, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func expectLockedShowtime(mock sqlmock.Sqlmock, showtimeID uint64, price int64) {
	mock.ExpectQuery(q("SELECT price, available_seats, start_time FROM showtimes WHERE id = ? FOR UPDATE")).
		WithArgs(showtimeID).
		WillReturnRows(sqlmock.NewRows([]string{"price", "available_seats", "start_time"}).
			AddRow(price, 240, ledgerNow.Add(48*time.Hour)))
}

func expectOrderFree(mock sqlmock.Sqlmock, orderID string) {
	mock.ExpectQuery(q("SELECT id FROM bookings WHERE order_id = ? FOR UPDATE")).
		WithArgs(orderID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
}

func expectNoConflicts(mock sqlmock.Sqlmock, showtimeID uint64, orderID string, seats ...string) {
	mock.ExpectExec(q("DELETE FROM seat_holds WHERE showtime_id = ? AND expires_at <= UTC_TIMESTAMP()")).
		WithArgs(showtimeID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	leaseArgs := []any{showtimeID, orderID}
	takenArgs := []any{showtimeID}
	for _, s := range seats {
		leaseArgs = append(leaseArgs, s)
		takenArgs = append(takenArgs, s)
	}
	mock.ExpectQuery(q("SELECT seat_code FROM seat_holds")).
		WithArgs(toDriverArgs(leaseArgs)...).
		WillReturnRows(sqlmock.NewRows([]string{"seat_code"}))
	mock.ExpectQuery(q("SELECT seat_code FROM booking_seats WHERE showtime_id = ? AND seat_code IN")).
		WithArgs(toDriverArgs(takenArgs)...).
		WillReturnRows(sqlmock.NewRows([]string{"seat_code"}))
}

func toDriverArgs(in []any) []driver.Value {
	out := make([]driver.Value, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

var bookingCols = []string{"id", "user_id", "showtime_id", "seats", "seat_count", "total_price", "status", "order_id", "created_at", "updated_at"}

func bookingDetailRows(status string) *sqlmock.Rows {
	cols := append(append([]string{}, bookingCols...), "movie_id", "title", "theater", "screen", "start_time", "end_time")
	return sqlmock.NewRows(cols).AddRow(
		uint64(55), uint64(42), uint64(7), "A1,A2", 2, int64(24000), status, nil, ledgerNow, ledgerNow,
		"tmdb_1", "Dune", "CGV Yongsan", "IMAX", ledgerNow.Add(48*time.Hour), ledgerNow.Add(51*time.Hour),
	)
}

func TestCreateBookingCommits(t *testing.T) {
	l, mock := newTestLedger(t, nil, nil)

	mock.ExpectBegin()
	expectLockedShowtime(mock, 7, 12000)
	expectOrderFree(mock, "ORDER_1")
	expectNoConflicts(mock, 7, "ORDER_1", "A1", "A2")
	mock.ExpectExec(q("INSERT INTO bookings")).
		WithArgs(42, 7, "A1,A2", 2, 24000, model.BookingConfirmed, "ORDER_1").
		WillReturnResult(sqlmock.NewResult(55, 1))
	mock.ExpectQuery(q("SELECT created_at, updated_at FROM bookings WHERE id = ?")).
		WithArgs(55).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(ledgerNow, ledgerNow))
	mock.ExpectExec(q("INSERT INTO booking_seats (booking_id, showtime_id, seat_code) VALUES (?, ?, ?),(?, ?, ?)")).
		WithArgs(55, 7, "A1", 55, 7, "A2").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(q("UPDATE showtimes SET available_seats = available_seats - ? WHERE id = ? AND available_seats >= ?")).
		WithArgs(2, 7, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b, err := l.CreateBooking(context.Background(), NewBooking{
		UserID: 42, ShowtimeID: 7, Seats: []string{"a1", "A2"}, TotalPrice: 24000,
		Status: model.BookingConfirmed, OrderID: "ORDER_1",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(55), b.ID)
	assert.Equal(t, []string{"A1", "A2"}, b.Seats)
	assert.Equal(t, 2, b.SeatCount)
	require.NotNil(t, b.OrderID)
	assert.Equal(t, "ORDER_1", *b.OrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingLosesRaceOnDuplicateSeat(t *testing.T) {
	l, mock := newTestLedger(t, nil, nil)

	mock.ExpectBegin()
	expectLockedShowtime(mock, 7, 12000)
	expectNoConflicts(mock, 7, "", "A1")
	mock.ExpectExec(q("INSERT INTO bookings")).WillReturnResult(sqlmock.NewResult(56, 1))
	mock.ExpectQuery(q("SELECT created_at, updated_at FROM bookings")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(ledgerNow, ledgerNow))
	mock.ExpectExec(q("INSERT INTO booking_seats")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '7-A1' for key 'booking_seats.PRIMARY'"})
	mock.ExpectRollback()

	_, err := l.CreateBooking(context.Background(), NewBooking{UserID: 43, ShowtimeID: 7, Seats: []string{"A1"}, TotalPrice: 12000})
	assert.ErrorIs(t, err, repository.ErrSeatConflict)
	var sc *SeatConflictError
	require.ErrorAs(t, err, &sc)
	assert.Equal(t, []string{"A1"}, sc.Seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingReportsBookedOrderBeforeSeats(t *testing.T) {
	l, mock := newTestLedger(t, nil, nil)

	mock.ExpectBegin()
	expectLockedShowtime(mock, 7, 12000)
	mock.ExpectQuery(q("SELECT id FROM bookings WHERE order_id = ? FOR UPDATE")).
		WithArgs("ORDER_1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uint64(55)))
	mock.ExpectRollback()

	_, err := l.CreateBooking(context.Background(), NewBooking{
		UserID: 42, ShowtimeID: 7, Seats: []string{"A1", "A2"}, TotalPrice: 24000,
		Status: model.BookingConfirmed, OrderID: "ORDER_1",
	})
	assert.ErrorIs(t, err, repository.ErrDuplicateOrder)
	var sc *SeatConflictError
	assert.False(t, errors.As(err, &sc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingRejectsTakenSeat(t *testing.T) {
	l, mock := newTestLedger(t, nil, nil)

	mock.ExpectBegin()
	expectLockedShowtime(mock, 7, 12000)
	mock.ExpectExec(q("DELETE FROM seat_holds")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT seat_code FROM seat_holds")).WillReturnRows(sqlmock.NewRows([]string{"seat_code"}))
	mock.ExpectQuery(q("SELECT seat_code FROM booking_seats")).
		WillReturnRows(sqlmock.NewRows([]string{"seat_code"}).AddRow("A2"))
	mock.ExpectRollback()

	_, err := l.CreateBooking(context.Background(), NewBooking{UserID: 43, ShowtimeID: 7, Seats: []string{"A1", "A2"}, TotalPrice: 24000})
	var sc *SeatConflictError
	require.ErrorAs(t, err, &sc)
	assert.Equal(t, []string{"A2"}, sc.Seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingRejectsSeatLeasedByOtherOrder(t *testing.T) {
	l, mock := newTestLedger(t, nil, nil)

	mock.ExpectBegin()
	expectLockedShowtime(mock, 7, 12000)
	mock.ExpectExec(q("DELETE FROM seat_holds")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("SELECT seat_code FROM seat_holds")).
		WillReturnRows(sqlmock.NewRows([]string{"seat_code"}).AddRow("A1"))
	mock.ExpectRollback()

	_, err := l.CreateBooking(context.Background(), NewBooking{UserID: 43, ShowtimeID: 7, Seats: []string{"A1"}, TotalPrice: 12000})
	assert.ErrorIs(t, err, repository.ErrSeatConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingRejectsWrongTotal(t *testing.T) {
	l, mock := newTestLedger(t, nil, nil)

	mock.ExpectBegin()
	expectLockedShowtime(mock, 7, 12000)
	mock.ExpectRollback()

	_, err := l.CreateBooking(context.Background(), NewBooking{UserID: 42, ShowtimeID: 7, Seats: []string{"A1", "A2"}, TotalPrice: 20000})
	assert.ErrorIs(t, err, ErrAmountMismatch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingValidatesInput(t *testing.T) {
	l, _ := newTestLedger(t, nil, nil)

	_, err := l.CreateBooking(context.Background(), NewBooking{ShowtimeID: 7, Seats: []string{"Q1"}})
	assert.ErrorIs(t, err, ErrInvalidSeat)
	_, err = l.CreateBooking(context.Background(), NewBooking{ShowtimeID: 7})
	assert.ErrorIs(t, err, ErrInvalidSeat)
	_, err = l.CreateBooking(context.Background(), NewBooking{ShowtimeID: 7, Seats: []string{"A1"}, Status: model.BookingCancelled})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

type stubPayments struct {
	p        *model.Payment
	canceled []string
}

func (s *stubPayments) GetByBooking(ctx context.Context, bookingID uint64) (*model.Payment, error) {
	if s.p == nil || s.p.BookingID != bookingID {
		return nil, repository.ErrPaymentNotFound
	}
	cp := *s.p
	return &cp, nil
}

func (s *stubPayments) MarkCanceled(ctx context.Context, key, reason string, at time.Time) error {
	s.canceled = append(s.canceled, key)
	return nil
}

func expectLockedBooking(mock sqlmock.Sqlmock, status string) {
	mock.ExpectQuery(q("FROM bookings b WHERE b.id = ? FOR UPDATE")).
		WithArgs(55).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(uint64(55), uint64(42), uint64(7), "A1,A2", 2, int64(24000), status, "ORDER_1", ledgerNow, ledgerNow))
}

func expectRelease(mock sqlmock.Sqlmock, from string) {
	mock.ExpectBegin()
	expectLockedBooking(mock, from)
	mock.ExpectExec(q("UPDATE bookings SET status = ? WHERE id = ? AND status = ?")).
		WithArgs(model.BookingCancelled, 55, from).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("DELETE FROM booking_seats WHERE booking_id = ?")).
		WithArgs(55).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(q("UPDATE showtimes SET available_seats = LEAST(total_seats, available_seats + ?) WHERE id = ?")).
		WithArgs(2, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func TestCancelBookingRefundsAndReleasesOnce(t *testing.T) {
	payments := &stubPayments{p: &model.Payment{PaymentKey: "pk_1", OrderID: "ORDER_1", BookingID: 55, Status: model.PaymentDone}}
	provider := &fakeProvider{}
	l, mock := newTestLedger(t, payments, provider)

	mock.ExpectQuery(q("JOIN showtimes st")).WithArgs(55).WillReturnRows(bookingDetailRows(model.BookingConfirmed))
	expectRelease(mock, model.BookingConfirmed)

	b, err := l.CancelBooking(context.Background(), 55, 42)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, b.Status)
	assert.Equal(t, []string{"pk_1"}, provider.cancels)
	assert.Equal(t, []string{"pk_1"}, payments.canceled)

	mock.ExpectQuery(q("JOIN showtimes st")).WithArgs(55).WillReturnRows(bookingDetailRows(model.BookingCancelled))
	_, err = l.CancelBooking(context.Background(), 55, 42)
	assert.ErrorIs(t, err, repository.ErrAlreadyCancelled)
	assert.Len(t, provider.cancels, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBookingRequiresOwner(t *testing.T) {
	l, mock := newTestLedger(t, nil, nil)
	mock.ExpectQuery(q("JOIN showtimes st")).WithArgs(55).WillReturnRows(bookingDetailRows(model.BookingConfirmed))

	_, err := l.CancelBooking(context.Background(), 55, 7)
	assert.ErrorIs(t, err, repository.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBookingKeepsBookingWhenRefundFails(t *testing.T) {
	payments := &stubPayments{p: &model.Payment{PaymentKey: "pk_1", BookingID: 55, Status: model.PaymentDone}}
	provider := &fakeProvider{cancelErr: sql.ErrConnDone}
	l, mock := newTestLedger(t, payments, provider)
	mock.ExpectQuery(q("JOIN showtimes st")).WithArgs(55).WillReturnRows(bookingDetailRows(model.BookingConfirmed))
	mock.ExpectBegin()
	expectLockedBooking(mock, model.BookingConfirmed)
	mock.ExpectRollback()

	_, err := l.CancelBooking(context.Background(), 55, 42)
	assert.ErrorIs(t, err, ErrProviderFailure)
	assert.Empty(t, payments.canceled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBookingChecksStatusUnderRowLock(t *testing.T) {
	payments := &stubPayments{p: &model.Payment{PaymentKey: "pk_1", BookingID: 55, Status: model.PaymentDone}}
	provider := &fakeProvider{}
	l, mock := newTestLedger(t, payments, provider)

	// A concurrent cancel commits between the read and the lock.
	mock.ExpectQuery(q("JOIN showtimes st")).WithArgs(55).WillReturnRows(bookingDetailRows(model.BookingConfirmed))
	mock.ExpectBegin()
	expectLockedBooking(mock, model.BookingCancelled)
	mock.ExpectRollback()

	_, err := l.CancelBooking(context.Background(), 55, 42)
	assert.ErrorIs(t, err, repository.ErrAlreadyCancelled)
	assert.Empty(t, provider.cancels)
	assert.Empty(t, payments.canceled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpirePendingReleasesUnpaidBookings(t *testing.T) {
	l, mock := newTestLedger(t, &stubPayments{}, nil)

	mock.ExpectQuery(q("SELECT id FROM bookings WHERE status = 'PENDING' AND created_at < UTC_TIMESTAMP() - INTERVAL ? SECOND")).
		WithArgs(600, 200).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uint64(55)))
	expectRelease(mock, model.BookingPending)

	n, err := l.ExpirePending(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
