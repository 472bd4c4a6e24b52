package model

import "time"

// Checkout request statuses.
const (
	CheckoutOpen      = "OPEN"
	CheckoutConfirmed = "CONFIRMED"
	CheckoutFailed    = "FAILED"
	CheckoutExpired   = "EXPIRED"
)

// CheckoutRequest is the server-visible reservation request created when a
// shopper proceeds to payment.  It outlives the provider redirect and is the
// reference the success callback is reconciled against.
type CheckoutRequest struct {
	OrderID    string    `json:"orderId"`              // checkout_requests.order_id
	UserID     uint64    `json:"userId"`               // checkout_requests.user_id
	ShowtimeID uint64    `json:"showtimeId"`           // checkout_requests.showtime_id
	Seats      []string  `json:"seats"`                // checkout_requests.seats
	SeatCount  int       `json:"seatCount"`            // checkout_requests.seat_count
	UnitPrice  int64     `json:"unitPrice"`            // checkout_requests.unit_price
	TotalPrice int64     `json:"totalPrice"`           // checkout_requests.total_price
	OrderName  string    `json:"orderName"`            // checkout_requests.order_name
	Status     string    `json:"status"`               // checkout_requests.status
	FailReason *string   `json:"failReason,omitempty"` // checkout_requests.fail_reason
	ExpiresAt  time.Time `json:"expiresAt"`            // lease expiry
	CreatedAt  time.Time `json:"createdAt"`            // checkout_requests.created_at
}
