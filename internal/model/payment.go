package model

import "time"

// Payment statuses as reported by the provider.
const (
	PaymentReady           = "READY"
	PaymentInProgress      = "IN_PROGRESS"
	PaymentDone            = "DONE"
	PaymentCanceled        = "CANCELED"
	PaymentPartialCanceled = "PARTIAL_CANCELED"
	PaymentAborted         = "ABORTED"
	PaymentExpired         = "EXPIRED"
)

// Payment records one approved provider transaction.  OrderID is unique,
// which makes it the durable idempotency key of a checkout attempt.
type Payment struct {
	ID           uint64     `json:"id"`                     // payments.id
	PaymentKey   string     `json:"paymentKey"`             // provider issued
	OrderID      string     `json:"orderId"`                // merchant issued
	UserID       uint64     `json:"userId"`                 // payments.user_id
	BookingID    uint64     `json:"bookingId"`              // payments.booking_id
	Amount       int64      `json:"amount"`                 // payments.amount
	Method       string     `json:"method"`                 // card, transfer, ...
	OrderName    string     `json:"orderName"`              // payments.order_name
	Status       string     `json:"status"`                 // payments.status
	CancelReason *string    `json:"cancelReason,omitempty"` // payments.cancel_reason
	CanceledAt   *time.Time `json:"canceledAt,omitempty"`   // payments.canceled_at
	ApprovedAt   *time.Time `json:"approvedAt,omitempty"`   // payments.approved_at
	CreatedAt    time.Time  `json:"createdAt"`              // payments.created_at
}
