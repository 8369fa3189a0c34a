// Package gateway adapts the external payment gateway's create-order API.
// The storefront hands the returned payment session id to the gateway's
// own checkout widget; the widget performs the full-page redirect, so a
// successful initiate never returns control to the buyer's page.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

type Customer struct {
	ID    string `json:"customer_id"`
	Phone string `json:"customer_phone"`
	Email string `json:"customer_email"`
}

type CreateOrderRequest struct {
	Amount    float64
	Currency  string
	Customer  Customer
	Note      string
	ReturnURL string
}

// Session is the gateway's handle for one checkout attempt.
type Session struct {
	GatewayOrderID   string
	PaymentSessionID string
}

// Error is a create-order failure the caller can show to the buyer. The
// pending transaction must be rolled back when one of these comes back.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway: create order failed (%d): %s", e.StatusCode, e.Message)
}

var ErrNoSession = errors.New("gateway: response carried no payment session id")

type Client struct {
	BaseURL   string
	KeyID     string
	KeySecret string

	httpc   *http.Client
	breaker *gobreaker.CircuitBreaker[*Session]
}

func New(baseURL, keyID, keySecret string) *Client {
	return &Client{
		BaseURL:   baseURL,
		KeyID:     keyID,
		KeySecret: keySecret,
		httpc:     &http.Client{Timeout: 10 * time.Second},
		breaker: gobreaker.NewCircuitBreaker[*Session](gobreaker.Settings{
			Name:    "gateway-create-order",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
	}
}

type createOrderBody struct {
	OrderAmount   float64   `json:"order_amount"`
	OrderCurrency string    `json:"order_currency"`
	Customer      Customer  `json:"customer_details"`
	OrderNote     string    `json:"order_note,omitempty"`
	OrderMeta     orderMeta `json:"order_meta"`
}

type orderMeta struct {
	ReturnURL string `json:"return_url"`
}

type createOrderResponse struct {
	OrderID          string `json:"order_id"`
	PaymentSessionID string `json:"payment_session_id"`
	Message          string `json:"message"`
}

// CreateOrder registers the amount due now with the gateway and returns
// the session handle for the redirect. Failures count toward the breaker;
// an open breaker fails fast without touching the network.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Session, error) {
	return c.breaker.Execute(func() (*Session, error) {
		return c.createOrder(ctx, req)
	})
}

func (c *Client) createOrder(ctx context.Context, req CreateOrderRequest) (*Session, error) {
	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}
	body := createOrderBody{
		OrderAmount:   req.Amount,
		OrderCurrency: currency,
		Customer:      req.Customer,
		OrderNote:     req.Note,
		OrderMeta:     orderMeta{ReturnURL: req.ReturnURL},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/orders", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-version", "2023-08-01")
	httpReq.Header.Set("x-client-id", c.KeyID)
	httpReq.Header.Set("x-client-secret", c.KeySecret)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var out createOrderResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Message: "unparseable gateway response"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := out.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &Error{StatusCode: resp.StatusCode, Message: msg}
	}
	if out.PaymentSessionID == "" {
		return nil, ErrNoSession
	}
	return &Session{GatewayOrderID: out.OrderID, PaymentSessionID: out.PaymentSessionID}, nil
}
