package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-checkout/internal/model"
)

// SeatHoldRepo provides data access to the seat_holds table, the lease store
// for seats under checkout.  A lease is active while expires_at is in the
// future; comparisons use the database clock (UTC_TIMESTAMP()) so every
// instance agrees on expiry.
type SeatHoldRepo struct {
	db *sql.DB
}

// NewSeatHoldRepo returns a new SeatHoldRepo bound to the provided database.
func NewSeatHoldRepo(db *sql.DB) *SeatHoldRepo { return &SeatHoldRepo{db: db} }

// ExpireHoldsTx removes the expired leases of one showtime so the unique
// (showtime_id, seat_code) key only guards live leases.  Call it before
// acquiring new leases in the same transaction.
func (r *SeatHoldRepo) ExpireHoldsTx(ctx context.Context, tx *sql.Tx, showtimeID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`DELETE FROM seat_holds WHERE showtime_id = ? AND expires_at <= UTC_TIMESTAMP()`,
		showtimeID,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PurgeExpired removes expired leases across all showtimes.
func (r *SeatHoldRepo) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM seat_holds WHERE expires_at <= UTC_TIMESTAMP()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LeasedByOthersTx returns which of codes are under a live lease that
// belongs to a different order.  An empty orderID matches every lease.
func (r *SeatHoldRepo) LeasedByOthersTx(ctx context.Context, tx *sql.Tx, showtimeID uint64, codes []string, orderID string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	q := `SELECT seat_code FROM seat_holds
          WHERE showtime_id = ? AND expires_at > UTC_TIMESTAMP() AND order_id <> ?
            AND seat_code IN (?` + strings.Repeat(", ?", len(codes)-1) + `)`
	args := make([]any, 0, len(codes)+2)
	args = append(args, showtimeID, orderID)
	for _, c := range codes {
		args = append(args, c)
	}
	rows, err := tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var leased []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		leased = append(leased, c)
	}
	return leased, rows.Err()
}

// CreateMultipleTx inserts leases in one statement.  A seat already leased
// (live, since expired rows were purged first) yields ErrSeatConflict.
// Passing an empty slice has no effect and returns nil.
func (r *SeatHoldRepo) CreateMultipleTx(ctx context.Context, tx *sql.Tx, holds []model.SeatHold) error {
	if len(holds) == 0 {
		return nil
	}
	query := `INSERT INTO seat_holds (order_id, user_id, showtime_id, seat_code, hold_token, expires_at) VALUES `
	args := make([]any, 0, len(holds)*6)
	for i, h := range holds {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?)"
		args = append(args, h.OrderID, h.UserID, h.ShowtimeID, h.SeatCode, h.HoldToken, h.ExpiresAt.UTC())
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if _, dup := duplicateKey(err); dup {
			return ErrSeatConflict
		}
		return err
	}
	return nil
}

// DeleteByOrder releases every lease taken for a checkout request and
// returns how many were removed.
func (r *SeatHoldRepo) DeleteByOrder(ctx context.Context, orderID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM seat_holds WHERE order_id = ?`, orderID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ActiveByShowtime lists the live leases of a showtime.
func (r *SeatHoldRepo) ActiveByShowtime(ctx context.Context, showtimeID uint64) ([]model.SeatHold, error) {
	const q = `SELECT id, order_id, user_id, showtime_id, seat_code, hold_token, expires_at, created_at
               FROM seat_holds
               WHERE showtime_id = ? AND expires_at > UTC_TIMESTAMP()`
	rows, err := r.db.QueryContext(ctx, q, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var holds []model.SeatHold
	for rows.Next() {
		var h model.SeatHold
		if err := rows.Scan(&h.ID, &h.OrderID, &h.UserID, &h.ShowtimeID, &h.SeatCode, &h.HoldToken, &h.ExpiresAt, &h.CreatedAt); err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}

// GenerateHoldRecords builds one lease per seat for a checkout request, each
// with a fresh random token.
func GenerateHoldRecords(orderID string, userID, showtimeID uint64, codes []string, expiresAt time.Time) []model.SeatHold {
	holds := make([]model.SeatHold, 0, len(codes))
	for _, c := range codes {
		holds = append(holds, model.SeatHold{
			OrderID:    orderID,
			UserID:     userID,
			ShowtimeID: showtimeID,
			SeatCode:   c,
			HoldToken:  uuid.NewString(),
			ExpiresAt:  expiresAt,
		})
	}
	return holds
}
