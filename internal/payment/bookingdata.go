package payment

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidBookingData is returned when a bookingData token fails
// verification or has expired.
var ErrInvalidBookingData = errors.New("invalid booking data")

// BookingData travels through the provider redirect as an opaque signed
// token so the success callback can check that what was paid for is what
// was selected.
type BookingData struct {
	ShowtimeID uint64   `json:"showtimeId"`
	Seats      []string `json:"seats"`
	SeatCount  int      `json:"seatCount"`
	TotalPrice int64    `json:"totalPrice"`
}

type bookingClaims struct {
	BookingData
	jwt.RegisteredClaims
}

// EncodeBookingData signs d with HS256.  The token id is the order id.
func EncodeBookingData(secret, orderID string, d BookingData, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := bookingClaims{
		BookingData: d,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        orderID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// DecodeBookingData verifies a token produced by EncodeBookingData and checks
// that it was issued for orderID.
func DecodeBookingData(secret, orderID, token string) (BookingData, error) {
	var claims bookingClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return BookingData{}, fmt.Errorf("%w: %v", ErrInvalidBookingData, err)
	}
	if claims.ID != orderID {
		return BookingData{}, fmt.Errorf("%w: issued for another order", ErrInvalidBookingData)
	}
	return claims.BookingData, nil
}
