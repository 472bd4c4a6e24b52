package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-checkout/internal/model"
	"github.com/iliyamo/cinema-checkout/internal/service"
)

// PaymentService is the payment orchestrator as seen by the checkout and
// payment endpoints.
type PaymentService interface {
	StartCheckout(ctx context.Context, in service.StartCheckoutInput) (*service.CheckoutStart, error)
	HandleSuccess(ctx context.Context, cb service.SuccessCallback) (*service.Confirmation, error)
	HandleFailure(ctx context.Context, userID uint64, orderID, code, message string) (*service.Failure, error)
	RecordPayment(ctx context.Context, in service.PaymentConfirm) (*model.Payment, bool, error)
	CancelPayment(ctx context.Context, userID uint64, paymentKey, reason string) (*model.Payment, error)
	PaymentsByUser(ctx context.Context, userID uint64) ([]model.Payment, error)
	PaymentByKey(ctx context.Context, userID uint64, paymentKey string) (*model.Payment, error)
	PaymentByBooking(ctx context.Context, userID, bookingID uint64) (*model.Payment, error)
}

// PaymentHandler drives checkout: it starts the provider handoff, receives
// the success and fail redirects, and exposes payment records.
type PaymentHandler struct {
	Orchestrator PaymentService
}

// NewPaymentHandler panics on a nil orchestrator.
func NewPaymentHandler(o PaymentService) *PaymentHandler {
	if o == nil {
		panic("nil orchestrator passed to NewPaymentHandler")
	}
	return &PaymentHandler{Orchestrator: o}
}

type checkoutRequest struct {
	ShowtimeID   uint64   `json:"showtimeId" validate:"required"`
	Seats        []string `json:"seats" validate:"required,min=1,max=10,dive,seatcode"`
	CustomerName string   `json:"customerName" validate:"max=100"`
}

// Checkout handles POST /checkout.  It leases the seats and answers with the
// orderId and the provider redirect the client must follow.
func (h *PaymentHandler) Checkout(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req checkoutRequest
	if msg, ok := bindAndValidate(c, &req); !ok {
		return badRequest(c, "INVALID_REQUEST", msg)
	}
	out, err := h.Orchestrator.StartCheckout(c.Request().Context(), service.StartCheckoutInput{
		UserID:       userID,
		CustomerName: strings.TrimSpace(req.CustomerName),
		ShowtimeID:   req.ShowtimeID,
		Seats:        req.Seats,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// Success handles GET /payment/success?paymentKey=&orderId=&amount=&bookingData=.
// A repeated call for a confirmed order answers 200 with the original
// booking and payment and writes nothing.
func (h *PaymentHandler) Success(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	paymentKey := strings.TrimSpace(c.QueryParam("paymentKey"))
	orderID := strings.TrimSpace(c.QueryParam("orderId"))
	bookingData := c.QueryParam("bookingData")
	amount, err := strconv.ParseInt(c.QueryParam("amount"), 10, 64)
	if paymentKey == "" || orderID == "" || bookingData == "" || err != nil || amount <= 0 {
		return badRequest(c, "INVALID_REQUEST", "paymentKey, orderId, amount and bookingData are required")
	}
	res, err := h.Orchestrator.HandleSuccess(c.Request().Context(), service.SuccessCallback{
		UserID:      userID,
		PaymentKey:  paymentKey,
		OrderID:     orderID,
		Amount:      amount,
		BookingData: bookingData,
	})
	if err != nil {
		return respondError(c, err)
	}
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	return c.JSON(status, res)
}

// Fail handles GET /payment/fail?code=&message=&orderId=.  The checkout is
// closed and its leases released; the provider's message is echoed back.
func (h *PaymentHandler) Fail(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	res, err := h.Orchestrator.HandleFailure(c.Request().Context(), userID,
		strings.TrimSpace(c.QueryParam("orderId")),
		strings.TrimSpace(c.QueryParam("code")),
		strings.TrimSpace(c.QueryParam("message")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

type confirmPaymentRequest struct {
	PaymentKey string `json:"paymentKey" validate:"required,max=200"`
	OrderID    string `json:"orderId" validate:"required,max=64"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
	UserID     uint64 `json:"userId"`
	BookingID  uint64 `json:"bookingId" validate:"required"`
	Method     string `json:"method" validate:"max=32"`
	OrderName  string `json:"orderName" validate:"max=200"`
}

// Confirm handles POST /payment/confirm: it pays for an existing PENDING
// booking.  Repeating the call with the same orderId returns the stored
// payment with 200.
func (h *PaymentHandler) Confirm(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req confirmPaymentRequest
	if msg, ok := bindAndValidate(c, &req); !ok {
		return badRequest(c, "INVALID_REQUEST", msg)
	}
	if req.UserID != 0 && req.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "userId does not match the token", "code": "FORBIDDEN"})
	}
	p, replayed, err := h.Orchestrator.RecordPayment(c.Request().Context(), service.PaymentConfirm{
		UserID:     userID,
		PaymentKey: req.PaymentKey,
		OrderID:    req.OrderID,
		Amount:     req.Amount,
		BookingID:  req.BookingID,
		Method:     req.Method,
		OrderName:  req.OrderName,
	})
	if err != nil {
		return respondError(c, err)
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	return c.JSON(status, echo.Map{"payment": p, "replayed": replayed})
}

type cancelPaymentRequest struct {
	PaymentKey   string `json:"paymentKey" validate:"required,max=200"`
	CancelReason string `json:"cancelReason" validate:"max=200"`
}

// Cancel handles POST /payment/cancel.
func (h *PaymentHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req cancelPaymentRequest
	if msg, ok := bindAndValidate(c, &req); !ok {
		return badRequest(c, "INVALID_REQUEST", msg)
	}
	reason := strings.TrimSpace(req.CancelReason)
	if reason == "" {
		reason = "customer request"
	}
	p, err := h.Orchestrator.CancelPayment(c.Request().Context(), userID, req.PaymentKey, reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// ByUser handles GET /payment/user/:userId.
func (h *PaymentHandler) ByUser(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	target, ok := parseID(c, "userId")
	if !ok {
		return badRequest(c, "INVALID_REQUEST", "invalid user id")
	}
	if target != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "code": "FORBIDDEN"})
	}
	out, err := h.Orchestrator.PaymentsByUser(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	if out == nil {
		out = []model.Payment{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// ByBooking handles GET /payment/booking/:bookingId.
func (h *PaymentHandler) ByBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	bookingID, ok := parseID(c, "bookingId")
	if !ok {
		return badRequest(c, "INVALID_REQUEST", "invalid booking id")
	}
	p, err := h.Orchestrator.PaymentByBooking(c.Request().Context(), userID, bookingID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// ByKey handles GET /payment/:paymentKey.
func (h *PaymentHandler) ByKey(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	key := strings.TrimSpace(c.Param("paymentKey"))
	if key == "" {
		return badRequest(c, "INVALID_REQUEST", "invalid payment key")
	}
	p, err := h.Orchestrator.PaymentByKey(c.Request().Context(), userID, key)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}
