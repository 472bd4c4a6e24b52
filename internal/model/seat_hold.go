package model

import "time"

// SeatHold is a lease on one seat of a showtime, taken for the lifetime of
// a checkout request.  Leases expire automatically at ExpiresAt; an expired
// lease no longer blocks anyone and is purged by the sweeper.
type SeatHold struct {
	ID         uint64    // seat_holds.id
	OrderID    string    // seat_holds.order_id
	UserID     uint64    // seat_holds.user_id
	ShowtimeID uint64    // seat_holds.showtime_id
	SeatCode   string    // seat_holds.seat_code
	HoldToken  string    // seat_holds.hold_token
	ExpiresAt  time.Time // seat_holds.expires_at
	CreatedAt  time.Time // seat_holds.created_at
}
