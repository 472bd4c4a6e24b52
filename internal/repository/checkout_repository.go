package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cinema-checkout/internal/model"
)

// CheckoutRepo persists checkout requests, the server-side record of a
// shopper's selection that survives the payment provider redirect.
type CheckoutRepo struct {
	db *sql.DB
}

// NewCheckoutRepo returns a new CheckoutRepo bound to the given database.
func NewCheckoutRepo(db *sql.DB) *CheckoutRepo { return &CheckoutRepo{db: db} }

// CreateTx inserts an OPEN checkout request.
func (r *CheckoutRepo) CreateTx(ctx context.Context, tx *sql.Tx, c *model.CheckoutRequest) error {
	const q = `INSERT INTO checkout_requests
        (order_id, user_id, showtime_id, seats, seat_count, unit_price, total_price, order_name, status, expires_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	c.Status = model.CheckoutOpen
	c.SeatCount = len(c.Seats)
	_, err := tx.ExecContext(ctx, q, c.OrderID, c.UserID, c.ShowtimeID, model.JoinSeats(c.Seats), c.SeatCount,
		c.UnitPrice, c.TotalPrice, c.OrderName, c.Status, c.ExpiresAt.UTC())
	if err != nil {
		if _, dup := duplicateKey(err); dup {
			return ErrDuplicateOrder
		}
		return err
	}
	c.CreatedAt = time.Now().UTC()
	return nil
}

// Get loads a checkout request by order id.
func (r *CheckoutRepo) Get(ctx context.Context, orderID string) (*model.CheckoutRequest, error) {
	const q = `SELECT order_id, user_id, showtime_id, seats, seat_count, unit_price, total_price,
                      order_name, status, fail_reason, expires_at, created_at
               FROM checkout_requests WHERE order_id = ?`
	var c model.CheckoutRequest
	var seats string
	var reason sql.NullString
	err := r.db.QueryRowContext(ctx, q, orderID).Scan(&c.OrderID, &c.UserID, &c.ShowtimeID, &seats, &c.SeatCount,
		&c.UnitPrice, &c.TotalPrice, &c.OrderName, &c.Status, &reason, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCheckoutNotFound
		}
		return nil, err
	}
	c.Seats = model.SplitSeats(seats)
	if reason.Valid {
		s := reason.String
		c.FailReason = &s
	}
	return &c, nil
}

// Transition moves a request from OPEN to status.  It reports whether the
// row changed; a request that already left OPEN is not touched.
func (r *CheckoutRepo) Transition(ctx context.Context, orderID, status string, reason *string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE checkout_requests SET status = ?, fail_reason = ? WHERE order_id = ? AND status = 'OPEN'`,
		status, reason, orderID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ExpireOpen marks OPEN requests whose lease window has passed as EXPIRED
// and returns their order ids.
func (r *CheckoutRepo) ExpireOpen(ctx context.Context, now time.Time, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT order_id FROM checkout_requests WHERE status = 'OPEN' AND expires_at <= ? ORDER BY expires_at LIMIT ?`,
		now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	expired := ids[:0]
	for _, id := range ids {
		changed, err := r.Transition(ctx, id, model.CheckoutExpired, nil)
		if err != nil {
			return expired, err
		}
		if changed {
			expired = append(expired, id)
		}
	}
	return expired, nil
}
