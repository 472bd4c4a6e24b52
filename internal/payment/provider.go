// Package payment talks to external payment providers.  A provider
// approves money movement after the shopper returns from the hosted
// payment page, and can cancel (refund) an approved payment.  Providers
// never touch the booking ledger.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable wraps transport failures: the provider could not be reached
// or answered with a server error.  Nothing was approved.
var ErrUnavailable = errors.New("payment provider unavailable")

// Error is a business rejection reported by the provider.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("payment provider rejected request: %s: %s", e.Code, e.Message)
}

// CheckoutParams describes the hosted payment page a shopper is sent to.
type CheckoutParams struct {
	OrderID      string
	OrderName    string
	CustomerName string
	Amount       int64
	SuccessURL   string
	FailURL      string
}

// Redirect tells the client how to reach the provider.  Widget-style
// providers only need Params; hosted-page providers return a URL.
type Redirect struct {
	Provider string         `json:"provider"`
	URL      string         `json:"url,omitempty"`
	Params   map[string]any `json:"params"`
}

// ConfirmParams identifies the payment to approve.
type ConfirmParams struct {
	PaymentKey string
	OrderID    string
	Amount     int64
}

// Approval is the provider's confirmation of an approved payment.
type Approval struct {
	PaymentKey  string
	OrderID     string
	Status      string
	Method      string
	TotalAmount int64
	ApprovedAt  time.Time
}

// Provider is implemented by TossClient and StripeProvider.
type Provider interface {
	Name() string
	Prepare(ctx context.Context, p CheckoutParams) (*Redirect, error)
	Confirm(ctx context.Context, p ConfirmParams) (*Approval, error)
	Cancel(ctx context.Context, paymentKey, reason string) error
}
