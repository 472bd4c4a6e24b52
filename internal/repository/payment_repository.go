package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/cinema-checkout/internal/model"
)

// PaymentRepo provides data access to payments.  order_id and payment_key
// are both unique; a second insert for the same checkout attempt is
// reported as ErrDuplicateOrder.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, payment_key, order_id, user_id, booking_id, amount, method, order_name, status,
       cancel_reason, canceled_at, approved_at, created_at`

func scanPayment(sc rowScanner) (model.Payment, error) {
	var p model.Payment
	var reason sql.NullString
	var canceledAt, approvedAt sql.NullTime
	if err := sc.Scan(&p.ID, &p.PaymentKey, &p.OrderID, &p.UserID, &p.BookingID, &p.Amount, &p.Method, &p.OrderName,
		&p.Status, &reason, &canceledAt, &approvedAt, &p.CreatedAt); err != nil {
		return model.Payment{}, err
	}
	if reason.Valid {
		s := reason.String
		p.CancelReason = &s
	}
	if canceledAt.Valid {
		t := canceledAt.Time
		p.CanceledAt = &t
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		p.ApprovedAt = &t
	}
	return p, nil
}

// Create inserts a payment and populates its ID.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	const q = `INSERT INTO payments (payment_key, order_id, user_id, booking_id, amount, method, order_name, status, approved_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, p.PaymentKey, p.OrderID, p.UserID, p.BookingID, p.Amount, p.Method,
		p.OrderName, p.Status, p.ApprovedAt)
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
	p.ID = uint64(id)
	p.CreatedAt = time.Now().UTC()
	return nil
}

func (r *PaymentRepo) getOne(ctx context.Context, where string, arg any) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + where + ` ORDER BY id DESC LIMIT 1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetByOrderID returns the payment recorded for a checkout attempt.
func (r *PaymentRepo) GetByOrderID(ctx context.Context, orderID string) (*model.Payment, error) {
	return r.getOne(ctx, "order_id = ?", orderID)
}

// GetByKey returns the payment with the provider-issued key.
func (r *PaymentRepo) GetByKey(ctx context.Context, paymentKey string) (*model.Payment, error) {
	return r.getOne(ctx, "payment_key = ?", paymentKey)
}

// GetByBooking returns the most recent payment of a booking.
func (r *PaymentRepo) GetByBooking(ctx context.Context, bookingID uint64) (*model.Payment, error) {
	return r.getOne(ctx, "booking_id = ?", bookingID)
}

// ListByUser returns the user's payments, newest first.
func (r *PaymentRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkCanceled flips a payment to CANCELED.  ErrConflict means it already was.
func (r *PaymentRepo) MarkCanceled(ctx context.Context, paymentKey, reason string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = 'CANCELED', cancel_reason = ?, canceled_at = ? WHERE payment_key = ? AND status <> 'CANCELED'`,
		reason, at.UTC(), paymentKey)
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
