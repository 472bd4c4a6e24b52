package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/cinema-checkout/internal/model"
)

// BookingRepo provides data access to bookings and booking_seats.  Writes
// take an explicit transaction so the ledger can combine the conflict
// check, the insert and the available_seats update into one unit.  All
// timestamps are stored in UTC.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying sql.DB so callers can begin transactions
// spanning several repositories.
func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingColumns = `b.id, b.user_id, b.showtime_id, b.seats, b.seat_count, b.total_price, b.status, b.order_id, b.created_at, b.updated_at`

const bookingDetailColumns = bookingColumns + `,
       st.movie_id, COALESCE(m.title, ''), t.name, sc.name, st.start_time, st.end_time`

const bookingDetailJoins = `FROM bookings b
JOIN showtimes st ON st.id = b.showtime_id
JOIN screens sc ON sc.id = st.screen_id
JOIN theaters t ON t.id = sc.theater_id
LEFT JOIN movies m ON m.id = st.movie_id`

func scanBooking(sc rowScanner, extra ...any) (model.Booking, error) {
	var b model.Booking
	var seats string
	var orderID sql.NullString
	dest := []any{&b.ID, &b.UserID, &b.ShowtimeID, &seats, &b.SeatCount, &b.TotalPrice, &b.Status, &orderID, &b.CreatedAt, &b.UpdatedAt}
	if err := sc.Scan(append(dest, extra...)...); err != nil {
		return model.Booking{}, err
	}
	b.Seats = model.SplitSeats(seats)
	if orderID.Valid {
		id := orderID.String
		b.OrderID = &id
	}
	return b, nil
}

func scanBookingDetail(sc rowScanner) (model.Booking, error) {
	var movieID, title, theater, screen string
	var start, end time.Time
	b, err := scanBooking(sc, &movieID, &title, &theater, &screen, &start, &end)
	if err != nil {
		return b, err
	}
	b.MovieID, b.MovieTitle, b.TheaterName, b.ScreenName = movieID, title, theater, screen
	b.StartTime, b.EndTime = start, end
	return b, nil
}

// LockShowtimeTx locks the showtime row for the rest of the transaction and
// returns its seat price, cached availability and start time.
func (r *BookingRepo) LockShowtimeTx(ctx context.Context, tx *sql.Tx, showtimeID uint64) (price int64, available int, start time.Time, err error) {
	const q = `SELECT price, available_seats, start_time FROM showtimes WHERE id = ? FOR UPDATE`
	err = tx.QueryRowContext(ctx, q, showtimeID).Scan(&price, &available, &start)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrShowtimeNotFound
	}
	return price, available, start, err
}

// CreateTx inserts a booking and populates its generated ID and timestamps.
// A reused order id yields ErrDuplicateOrder.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (user_id, showtime_id, seats, seat_count, total_price, status, order_id) VALUES (?, ?, ?, ?, ?, ?, ?)`
	var orderID any
	if b.OrderID != nil {
		orderID = *b.OrderID
	}
	res, err := tx.ExecContext(ctx, q, b.UserID, b.ShowtimeID, model.JoinSeats(b.Seats), len(b.Seats), b.TotalPrice, b.Status, orderID)
	if err != nil {
		if _, dup := duplicateKey(err); dup {
			return ErrDuplicateOrder
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	b.SeatCount = len(b.Seats)
	// Query back the timestamps populated by column defaults
	const sel = `SELECT created_at, updated_at FROM bookings WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, b.ID).Scan(&b.CreatedAt, &b.UpdatedAt)
}

// InsertSeatsTx claims the seats of a booking in a single statement.  The
// (showtime_id, seat_code) primary key makes this the point where two
// concurrent bookings of one seat are told apart: the loser gets
// ErrSeatConflict and must roll back.
func (r *BookingRepo) InsertSeatsTx(ctx context.Context, tx *sql.Tx, bookingID, showtimeID uint64, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	query := `INSERT INTO booking_seats (booking_id, showtime_id, seat_code) VALUES `
	args := make([]any, 0, len(codes)*3)
	for i, c := range codes {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, bookingID, showtimeID, c)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if _, dup := duplicateKey(err); dup {
			return ErrSeatConflict
		}
		return err
	}
	return nil
}

// OrderBookedTx reports whether a booking already exists for orderID and
// locks it, so a concurrent write for the same order waits for this one.
func (r *BookingRepo) OrderBookedTx(ctx context.Context, tx *sql.Tx, orderID string) (bool, error) {
	var id uint64
	err := tx.QueryRowContext(ctx, `SELECT id FROM bookings WHERE order_id = ? FOR UPDATE`, orderID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// TakenSeatsTx returns which of codes are already claimed for the showtime.
func (r *BookingRepo) TakenSeatsTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	q := `SELECT seat_code FROM booking_seats WHERE showtime_id = ? AND seat_code IN (?` + strings.Repeat(", ?", len(codes)-1) + `)`
	args := make([]any, 0, len(codes)+1)
	args = append(args, showtimeID)
	for _, c := range codes {
		args = append(args, c)
	}
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var taken []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		taken = append(taken, c)
	}
	return taken, rows.Err()
}

// DeleteSeatsTx releases every seat held by the booking.
func (r *BookingRepo) DeleteSeatsTx(ctx context.Context, tx *sql.Tx, bookingID uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM booking_seats WHERE booking_id = ?`, bookingID)
	return err
}

// AdjustAvailableTx moves the cached available_seats counter by delta.  A
// decrement that would go below zero fails with ErrInsufficientSeats; an
// increment never exceeds total_seats.
func (r *BookingRepo) AdjustAvailableTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, delta int) error {
	var (
		res sql.Result
		err error
	)
	if delta < 0 {
		res, err = tx.ExecContext(ctx,
			`UPDATE showtimes SET available_seats = available_seats - ? WHERE id = ? AND available_seats >= ?`,
			-delta, showtimeID, -delta)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE showtimes SET available_seats = LEAST(total_seats, available_seats + ?) WHERE id = ?`,
			delta, showtimeID)
	}
	if err != nil {
		return err
	}
	if delta < 0 {
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrInsufficientSeats
		}
	}
	return nil
}

// GetForUpdateTx loads a booking and locks its row.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = ? FOR UPDATE`
	b, err := scanBooking(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// UpdateStatusTx moves a booking to status `to` provided it is currently
// in status `from`.  It returns ErrConflict when the row was not in `from`.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string) error {
	res, err := tx.ExecContext(ctx, `UPDATE bookings SET status = ? WHERE id = ? AND status = ?`, to, id, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// GetByID returns a booking with its showtime details.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	q := `SELECT ` + bookingDetailColumns + `
` + bookingDetailJoins + `
WHERE b.id = ?`
	b, err := scanBookingDetail(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// GetByOrderID returns the booking created for a checkout attempt.
func (r *BookingRepo) GetByOrderID(ctx context.Context, orderID string) (*model.Booking, error) {
	q := `SELECT ` + bookingDetailColumns + `
` + bookingDetailJoins + `
WHERE b.order_id = ?`
	b, err := scanBookingDetail(r.db.QueryRowContext(ctx, q, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// ListByUser returns the user's bookings, newest first.  The result is an
// empty slice rather than nil when there are none.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	q := `SELECT ` + bookingDetailColumns + `
` + bookingDetailJoins + `
WHERE b.user_id = ?
ORDER BY b.created_at DESC, b.id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBookingDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// OccupiedSeats returns the claimed seat codes of a showtime in grid order.
func (r *BookingRepo) OccupiedSeats(ctx context.Context, showtimeID uint64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT seat_code FROM booking_seats WHERE showtime_id = ?`, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	SortSeatCodes(out)
	return out, nil
}

// PendingOlderThan returns ids of PENDING bookings created more than age
// ago.  The cutoff is computed by the server so it compares in the same
// clock that filled created_at.
func (r *BookingRepo) PendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM bookings WHERE status = 'PENDING' AND created_at < UTC_TIMESTAMP() - INTERVAL ? SECOND ORDER BY id LIMIT ?`,
		int64(age/time.Second), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SortSeatCodes orders codes row by row, then by seat number ("A2" < "A10").
func SortSeatCodes(codes []string) {
	sort.SliceStable(codes, func(i, j int) bool {
		a, errA := model.ParseSeat(codes[i])
		b, errB := model.ParseSeat(codes[j])
		if errA != nil || errB != nil {
			return codes[i] < codes[j]
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Number < b.Number
	})
}
