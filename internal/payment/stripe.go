package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/iliyamo/cinema-checkout/internal/model"
)

// StripeProvider runs checkout through Stripe Checkout Sessions.  The
// session id plays the role of the payment key.
type StripeProvider struct {
	sc       *stripe.Client
	currency string
}

// NewStripeProvider creates a provider for the given secret key.  Amounts
// are passed through unchanged, so currency should be zero-decimal (krw)
// or amounts must already be in minor units.
func NewStripeProvider(secretKey, currency string) *StripeProvider {
	return &StripeProvider{sc: stripe.NewClient(secretKey), currency: currency}
}

func (s *StripeProvider) Name() string { return "stripe" }

// Prepare creates a Checkout Session.  Unlike Toss, Stripe does not append
// the order parameters to the success URL, so they are added here; Stripe
// substitutes {CHECKOUT_SESSION_ID}, which reaches the callback as
// paymentKey.  The placeholder must stay unescaped.
func (s *StripeProvider) Prepare(ctx context.Context, p CheckoutParams) (*Redirect, error) {
	successURL := fmt.Sprintf("%s&orderId=%s&amount=%d&paymentKey={CHECKOUT_SESSION_ID}",
		p.SuccessURL, url.QueryEscape(p.OrderID), p.Amount)
	params := &stripe.CheckoutSessionCreateParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(p.FailURL),
		ClientReferenceID: stripe.String(p.OrderID),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(s.currency),
					UnitAmount: stripe.Int64(p.Amount),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(p.OrderName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{"orderId": p.OrderID},
	}
	params.SetIdempotencyKey(p.OrderID)
	sess, err := s.sc.V1CheckoutSessions.Create(ctx, params)
	if err != nil {
		return nil, stripeErr(err)
	}
	return &Redirect{
		Provider: s.Name(),
		URL:      sess.URL,
		Params:   map[string]any{"sessionId": sess.ID, "orderId": p.OrderID, "amount": p.Amount},
	}, nil
}

// Confirm checks that the session was paid in full for this order.
// Stripe captures on its own side, so nothing is moved here.
func (s *StripeProvider) Confirm(ctx context.Context, p ConfirmParams) (*Approval, error) {
	sess, err := s.sc.V1CheckoutSessions.Retrieve(ctx, p.PaymentKey, &stripe.CheckoutSessionRetrieveParams{})
	if err != nil {
		return nil, stripeErr(err)
	}
	switch {
	case sess.ClientReferenceID != p.OrderID:
		return nil, &Error{Code: "ORDER_MISMATCH", Message: "session belongs to another order"}
	case sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid:
		return nil, &Error{Code: "NOT_PAID", Message: fmt.Sprintf("session payment status %s", sess.PaymentStatus)}
	case sess.AmountTotal != p.Amount:
		return nil, &Error{Code: "AMOUNT_MISMATCH", Message: fmt.Sprintf("paid %d, expected %d", sess.AmountTotal, p.Amount)}
	}
	return &Approval{
		PaymentKey:  sess.ID,
		OrderID:     p.OrderID,
		Status:      model.PaymentDone,
		Method:      "card",
		TotalAmount: sess.AmountTotal,
		ApprovedAt:  time.Now().UTC(),
	}, nil
}

// Cancel refunds the session's payment intent.
func (s *StripeProvider) Cancel(ctx context.Context, paymentKey, reason string) error {
	sess, err := s.sc.V1CheckoutSessions.Retrieve(ctx, paymentKey, &stripe.CheckoutSessionRetrieveParams{})
	if err != nil {
		return stripeErr(err)
	}
	if sess.PaymentIntent == nil {
		return &Error{Code: "NO_PAYMENT_INTENT", Message: "session has no payment to refund"}
	}
	_, err = s.sc.V1Refunds.Create(ctx, &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(sess.PaymentIntent.ID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
		Metadata:      map[string]string{"cancelReason": reason},
	})
	if err != nil {
		return stripeErr(err)
	}
	return nil
}

func stripeErr(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		if se.HTTPStatusCode >= http.StatusInternalServerError || se.HTTPStatusCode == 0 {
			return fmt.Errorf("%w: %s", ErrUnavailable, se.Msg)
		}
		return &Error{Code: string(se.Code), Message: se.Msg, Status: se.HTTPStatusCode}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
