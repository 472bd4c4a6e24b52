package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TossClient is a Toss Payments client.  The payment page itself is opened
// by the client-side widget; this server only confirms and cancels.
type TossClient struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

// NewTossClient builds a client.  A nil hc gets a client with a 15s timeout.
func NewTossClient(baseURL, secretKey string, hc *http.Client) *TossClient {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &TossClient{baseURL: strings.TrimRight(baseURL, "/"), secretKey: secretKey, http: hc}
}

func (c *TossClient) Name() string { return "toss" }

// Prepare returns the parameters the widget's requestPayment call expects.
func (c *TossClient) Prepare(_ context.Context, p CheckoutParams) (*Redirect, error) {
	return &Redirect{
		Provider: c.Name(),
		Params: map[string]any{
			"amount":       p.Amount,
			"orderId":      p.OrderID,
			"orderName":    p.OrderName,
			"customerName": p.CustomerName,
			"successUrl":   p.SuccessURL,
			"failUrl":      p.FailURL,
		},
	}, nil
}

type tossPayment struct {
	PaymentKey  string `json:"paymentKey"`
	OrderID     string `json:"orderId"`
	Status      string `json:"status"`
	Method      string `json:"method"`
	TotalAmount int64  `json:"totalAmount"`
	ApprovedAt  string `json:"approvedAt"`
}

type tossError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Confirm approves a payment.  The orderId doubles as the Idempotency-Key so
// a retried confirm cannot charge twice.
func (c *TossClient) Confirm(ctx context.Context, p ConfirmParams) (*Approval, error) {
	body := map[string]any{"paymentKey": p.PaymentKey, "orderId": p.OrderID, "amount": p.Amount}
	var out tossPayment
	if err := c.post(ctx, "/v1/payments/confirm", p.OrderID, body, &out); err != nil {
		return nil, err
	}
	if out.TotalAmount != p.Amount {
		return nil, &Error{Code: "AMOUNT_MISMATCH", Message: fmt.Sprintf("approved %d, expected %d", out.TotalAmount, p.Amount)}
	}
	approvedAt, err := time.Parse(time.RFC3339, out.ApprovedAt)
	if err != nil {
		approvedAt = time.Now()
	}
	return &Approval{
		PaymentKey:  out.PaymentKey,
		OrderID:     out.OrderID,
		Status:      out.Status,
		Method:      out.Method,
		TotalAmount: out.TotalAmount,
		ApprovedAt:  approvedAt.UTC(),
	}, nil
}

// Cancel refunds the full payment.
func (c *TossClient) Cancel(ctx context.Context, paymentKey, reason string) error {
	path := "/v1/payments/" + url.PathEscape(paymentKey) + "/cancel"
	return c.post(ctx, path, "", map[string]string{"cancelReason": reason}, nil)
}

func (c *TossClient) post(ctx context.Context, path, idempotencyKey string, in, out any) error {
	buf, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.secretKey+":")))
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		var te tossError
		_ = json.Unmarshal(raw, &te)
		if te.Code == "" {
			te.Code = http.StatusText(resp.StatusCode)
		}
		return &Error{Code: te.Code, Message: te.Message, Status: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
