// Package queue defines message payloads exchanged over the message broker
// and the publisher and consumer that move them.
package queue

// Queue names.  Routing keys equal queue names on the default exchange.
const (
    BookingConfirmedQueue = "booking.confirmed"
    BookingCancelledQueue = "booking.cancelled"
)

// BookingConfirmedEvent is published when a paid booking has been written to
// the ledger.  It carries enough detail for downstream consumers to log or
// notify without querying the primary database.
type BookingConfirmedEvent struct {
    BookingID   uint64   `json:"booking_id"`
    OrderID     string   `json:"order_id"`
    PaymentKey  string   `json:"payment_key"`
    UserID      uint64   `json:"user_id"`
    ShowtimeID  uint64   `json:"showtime_id"`
    MovieTitle  string   `json:"movie_title"`
    TheaterName string   `json:"theater_name"`
    ScreenName  string   `json:"screen_name"`
    StartsAt    string   `json:"starts_at"`
    Seats       []string `json:"seats"`
    TotalPrice  int64    `json:"total_price"`
    ConfirmedAt string   `json:"confirmed_at"`
}

// BookingCancelledEvent is published when a booking moves to CANCELLED,
// whether by the shopper or by the expiry sweeper.
type BookingCancelledEvent struct {
    BookingID   uint64   `json:"booking_id"`
    UserID      uint64   `json:"user_id"`
    ShowtimeID  uint64   `json:"showtime_id"`
    Seats       []string `json:"seats"`
    Reason      string   `json:"reason"`
    Refunded    bool     `json:"refunded"`
    CancelledAt string   `json:"cancelled_at"`
}
