package handler // handler defines http handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-checkout/internal/repository"
	"github.com/iliyamo/cinema-checkout/internal/service"
)

// getUserID extracts the user_id from echo.Context and converts it to uint64.
// JWTAuth stores the raw "sub" claim, which decodes as float64 or string.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		if t > 0 {
			return uint64(t), nil
		}
	case int64:
		if t > 0 {
			return uint64(t), nil
		}
	case float64:
		if t > 0 {
			return uint64(t), nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "code": "UNAUTHORIZED"})
}

func badRequest(c echo.Context, code, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg, "code": code})
}

// classify maps a domain error to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	var sc *service.SeatConflictError
	switch {
	case errors.As(err, &sc), errors.Is(err, repository.ErrSeatConflict):
		return http.StatusConflict, "SEAT_CONFLICT"
	case errors.Is(err, repository.ErrAlreadyCancelled):
		return http.StatusConflict, "ALREADY_CANCELLED"
	case errors.Is(err, repository.ErrInsufficientSeats):
		return http.StatusConflict, "SOLD_OUT"
	case errors.Is(err, service.ErrConfirmInProgress):
		return http.StatusConflict, "CONFIRM_IN_PROGRESS"
	case errors.Is(err, service.ErrCheckoutClosed):
		return http.StatusConflict, "CHECKOUT_CLOSED"
	case errors.Is(err, service.ErrShowtimeStarted):
		return http.StatusConflict, "SHOWTIME_STARTED"
	case errors.Is(err, repository.ErrDuplicateOrder):
		return http.StatusConflict, "DUPLICATE_ORDER"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, service.ErrAmountMismatch):
		return http.StatusBadRequest, "AMOUNT_MISMATCH"
	case errors.Is(err, service.ErrBookingDataMismatch):
		return http.StatusBadRequest, "BOOKING_DATA_MISMATCH"
	case errors.Is(err, service.ErrInvalidSeat):
		return http.StatusBadRequest, "INVALID_SEATS"
	case errors.Is(err, service.ErrInvalidStatus):
		return http.StatusBadRequest, "INVALID_STATUS"
	case errors.Is(err, service.ErrInvalidDate):
		return http.StatusBadRequest, "INVALID_DATE"
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, repository.ErrShowtimeNotFound),
		errors.Is(err, repository.ErrBookingNotFound),
		errors.Is(err, repository.ErrPaymentNotFound),
		errors.Is(err, repository.ErrCheckoutNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, service.ErrProviderFailure):
		return http.StatusBadGateway, "PROVIDER_FAILURE"
	case errors.Is(err, service.ErrPartialConfirmation):
		return http.StatusInternalServerError, "PARTIAL_CONFIRMATION"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

// respondError writes err as {"error", "code"}.  Seat conflicts also carry
// the lost seats and whether the payment was refunded.  Unclassified errors
// are logged and hidden from the client.
func respondError(c echo.Context, err error) error {
	status, code := classify(err)
	msg := err.Error()
	if code == "INTERNAL" {
		log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
		msg = "internal error"
	}
	body := echo.Map{"error": msg, "code": code}
	var sc *service.SeatConflictError
	if errors.As(err, &sc) {
		body["seats"] = sc.Seats
		body["refunded"] = sc.Refunded
	}
	return c.JSON(status, body)
}
