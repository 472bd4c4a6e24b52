package model

import "time"

// Booking statuses.  PENDING -> CONFIRMED on payment, PENDING|CONFIRMED ->
// CANCELLED on cancellation or expiry; nothing leaves CANCELLED.
const (
	BookingPending   = "PENDING"
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"
)

// Booking is a ledger entry.  Seats keep the order the shopper chose them in.
type Booking struct {
	ID          uint64    `json:"bookingId"`         // bookings.id
	UserID      uint64    `json:"userId"`            // bookings.user_id
	ShowtimeID  uint64    `json:"showtimeId"`        // bookings.showtime_id
	Seats       []string  `json:"seats"`             // bookings.seats ("A1,A2")
	SeatCount   int       `json:"seatCount"`         // bookings.seat_count
	TotalPrice  int64     `json:"totalPrice"`        // bookings.total_price
	Status      string    `json:"bookingStatus"`     // bookings.status
	OrderID     *string   `json:"orderId,omitempty"` // bookings.order_id (nullable)
	CreatedAt   time.Time `json:"createdAt"`         // bookings.created_at
	UpdatedAt   time.Time `json:"updatedAt"`         // bookings.updated_at
	MovieID     string    `json:"movieId,omitempty"`
	MovieTitle  string    `json:"movieTitle,omitempty"`
	TheaterName string    `json:"theaterName,omitempty"`
	ScreenName  string    `json:"screenName,omitempty"`
	StartTime   time.Time `json:"startTime,omitempty"`
	EndTime     time.Time `json:"endTime,omitempty"`
}
