package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-checkout/internal/model"
	"github.com/iliyamo/cinema-checkout/internal/repository"
	"github.com/iliyamo/cinema-checkout/internal/service"
)

// BookingService is the ledger as seen by the booking endpoints.
type BookingService interface {
	CreateBooking(ctx context.Context, nb service.NewBooking) (*model.Booking, error)
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	CancelBooking(ctx context.Context, bookingID, userID uint64) (*model.Booking, error)
	ListBookings(ctx context.Context, userID uint64) ([]model.Booking, error)
}

// CheckoutLookup resolves an orderId to its checkout request.
type CheckoutLookup interface {
	Get(ctx context.Context, orderID string) (*model.CheckoutRequest, error)
}

// BookingHandler exposes the booking ledger to authenticated shoppers.
// Every method assumes JWTAuth has already run.
type BookingHandler struct {
	Ledger    BookingService
	Checkouts CheckoutLookup
}

// NewBookingHandler panics on a nil ledger.  checkouts may be nil, in which
// case POST /bookings does not accept an orderId.
func NewBookingHandler(ledger BookingService, checkouts CheckoutLookup) *BookingHandler {
	if ledger == nil {
		panic("nil ledger passed to NewBookingHandler")
	}
	return &BookingHandler{Ledger: ledger, Checkouts: checkouts}
}

type createBookingRequest struct {
	UserID        uint64   `json:"userId"`
	ShowtimeID    uint64   `json:"showtimeId" validate:"required"`
	Seats         []string `json:"seats" validate:"required,min=1,max=10,dive,seatcode"`
	SeatCount     int      `json:"seatCount" validate:"omitempty,min=1,max=10"`
	TotalPrice    int64    `json:"totalPrice" validate:"required,gt=0"`
	BookingStatus string   `json:"bookingStatus" validate:"omitempty,oneof=PENDING CONFIRMED"`
	OrderID       string   `json:"orderId" validate:"omitempty,max=64"`
}

// Create handles POST /bookings.  Bookings made here are always PENDING:
// CONFIRMED is reached only through a recorded payment.  A seat that is
// already taken answers 409 SEAT_CONFLICT with the lost seats.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req createBookingRequest
	if msg, ok := bindAndValidate(c, &req); !ok {
		return badRequest(c, "INVALID_REQUEST", msg)
	}
	if req.UserID != 0 && req.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "userId does not match the token", "code": "FORBIDDEN"})
	}
	if req.SeatCount != 0 && req.SeatCount != len(req.Seats) {
		return badRequest(c, "INVALID_SEATS", "seatCount does not match seats")
	}
	if req.BookingStatus == model.BookingConfirmed {
		return respondError(c, fmt.Errorf("%w: bookings are confirmed by payment", service.ErrInvalidStatus))
	}
	ctx := c.Request().Context()
	orderID := strings.TrimSpace(req.OrderID)
	if orderID != "" {
		if err := h.ownsOrder(ctx, orderID, userID); err != nil {
			return respondError(c, err)
		}
	}
	b, err := h.Ledger.CreateBooking(ctx, service.NewBooking{
		UserID:     userID,
		ShowtimeID: req.ShowtimeID,
		Seats:      req.Seats,
		TotalPrice: req.TotalPrice,
		Status:     model.BookingPending,
		OrderID:    orderID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// ownsOrder lets a shopper book against the leases of its own checkout.
func (h *BookingHandler) ownsOrder(ctx context.Context, orderID string, userID uint64) error {
	if h.Checkouts == nil {
		return repository.ErrCheckoutNotFound
	}
	req, err := h.Checkouts.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if req.UserID != userID {
		return repository.ErrForbidden
	}
	if req.Status != model.CheckoutOpen {
		return service.ErrCheckoutClosed
	}
	return nil
}

// Get handles GET /bookings/:id.  Only the owner may read a booking.
func (h *BookingHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "INVALID_REQUEST", "invalid booking id")
	}
	b, err := h.Ledger.GetBooking(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	if b.UserID != userID {
		return respondError(c, repository.ErrForbidden)
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel handles DELETE /bookings/:id.  A paid booking is refunded at the
// provider before its seats are released.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := parseID(c, "id")
	if !ok {
		return badRequest(c, "INVALID_REQUEST", "invalid booking id")
	}
	b, err := h.Ledger.CancelBooking(c.Request().Context(), id, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// ListByUser handles GET /bookings/user/:userId.  Callers may only list
// their own bookings.
func (h *BookingHandler) ListByUser(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	target, ok := parseID(c, "userId")
	if !ok {
		return badRequest(c, "INVALID_REQUEST", "invalid user id")
	}
	if target != userID {
		return respondError(c, repository.ErrForbidden)
	}
	out, err := h.Ledger.ListBookings(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	if out == nil {
		out = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}
