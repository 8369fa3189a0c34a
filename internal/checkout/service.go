// Package checkout owns the payment orchestration flow: installment plan
// selection, the pending transaction written before the gateway redirect,
// and the exactly-once reconciliation when the buyer comes back.
package checkout

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/bazario/emi-checkout/internal/emi"
	"github.com/bazario/emi-checkout/internal/gateway"
	"github.com/bazario/emi-checkout/internal/orders"
)

type GatewayClient interface {
	CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.Session, error)
}

// Finalizer is the backend side of reconciliation: it turns a reconciled
// gateway payment into a persisted order.
type Finalizer interface {
	FinalizeEMI(ctx context.Context, p orders.FinalizePayload) (*orders.Order, error)
	FinalizeOnline(ctx context.Context, p orders.FinalizePayload) (*orders.Order, error)
}

type Service struct {
	Pending   PendingStore
	Guard     Guard
	Carts     CartClearer
	Gateway   GatewayClient
	Finalizer Finalizer

	// ReturnURL is where the gateway sends the buyer back, e.g.
	// https://api.example.com/checkout/return
	ReturnURL string
}

type EMISelection struct {
	DownPaymentPercent int `json:"down_payment_percent"`
	TenureMonths       int `json:"tenure_months"`
}

type InitiateRequest struct {
	BuyerID       string             `json:"buyer_id"`
	VendorID      string             `json:"vendor_id"`
	Items         []orders.ItemInput `json:"items"`
	Address       orders.Address     `json:"address"`
	Note          string             `json:"note"`
	TermsAccepted bool               `json:"terms_accepted"`
	EMI           *EMISelection      `json:"emi,omitempty"`
}

type InitiateResult struct {
	GatewayOrderID   string    `json:"gateway_order_id"`
	PaymentSessionID string    `json:"payment_session_id"`
	AmountDueNow     float64   `json:"amount_due_now"`
	Plan             *emi.Plan `json:"plan,omitempty"`
}

// Initiate validates the submission, computes the installment plan when
// one was selected, saves the pending transaction and creates the gateway
// order. On gateway failure the pending transaction is rolled back so the
// buyer stays on the checkout page with nothing in flight.
func (s *Service) Initiate(ctx context.Context, sessionID string, req InitiateRequest) (*InitiateResult, error) {
	if sessionID == "" {
		return nil, invalid("session", "missing checkout session id")
	}
	if err := validate(req); err != nil {
		return nil, err
	}

	total := round2(cartTotal(req.Items))
	dueNow := total

	var plan *emi.Plan
	if req.EMI != nil {
		p, err := emi.ComputePlan(total, req.EMI.DownPaymentPercent, req.EMI.TenureMonths)
		if err != nil {
			return nil, err
		}
		plan = &p
		dueNow = p.TotalDueNow
	}

	pending := &PendingTransaction{
		BuyerID:     req.BuyerID,
		VendorID:    req.VendorID,
		Items:       req.Items,
		TotalAmount: total,
		Address:     req.Address,
		CreatedAt:   time.Now().UTC(),
	}
	if plan != nil {
		pending.IsEMI = true
		pending.DownPayment = plan.DownPaymentAmount
		pending.ProcessingFee = plan.ProcessingFee
		pending.BillingCycleDays = emi.BillingCycleDays
		pending.TotalInstallments = plan.TenureMonths
		pending.InstallmentAmount = plan.MonthlyInstallment
	}

	// Saved before the gateway call: once the widget redirects, this
	// record is all that remains of the attempt.
	if err := s.Pending.Save(ctx, sessionID, pending); err != nil {
		return nil, fmt.Errorf("save pending transaction: %w", err)
	}

	sess, err := s.Gateway.CreateOrder(ctx, gateway.CreateOrderRequest{
		Amount: dueNow,
		Customer: gateway.Customer{
			ID:    req.BuyerID,
			Phone: req.Address.Phone,
			Email: req.Address.Email,
		},
		Note:      req.Note,
		ReturnURL: fmt.Sprintf("%s?session=%s&order_id={order_id}", s.ReturnURL, sessionID),
	})
	if err != nil {
		// No session handle means no redirect happens; the flight is over.
		if cerr := s.Pending.Clear(ctx, sessionID); cerr != nil {
			log.Printf("rollback pending tx for session %s: %v", sessionID, cerr)
		}
		return nil, err
	}

	return &InitiateResult{
		GatewayOrderID:   sess.GatewayOrderID,
		PaymentSessionID: sess.PaymentSessionID,
		AmountDueNow:     dueNow,
		Plan:             plan,
	}, nil
}

func validate(req InitiateRequest) error {
	if req.BuyerID == "" {
		return invalid("buyer_id", "required")
	}
	if req.VendorID == "" {
		return invalid("vendor_id", "required")
	}
	if len(req.Items) == 0 {
		return invalid("items", "cart is empty")
	}
	for _, it := range req.Items {
		if it.ProductServiceID == "" {
			return invalid("items", "missing product id")
		}
		if it.Quantity < 1 {
			return invalid("items", fmt.Sprintf("quantity must be at least 1 for %s", it.ProductServiceID))
		}
		if it.UnitPrice <= 0 {
			return invalid("items", fmt.Sprintf("unit price must be positive for %s", it.ProductServiceID))
		}
	}
	if req.Address.FullName == "" || req.Address.Phone == "" || req.Address.AddressLine == "" || req.Address.City == "" {
		return invalid("address", "incomplete shipping address")
	}
	if !req.TermsAccepted {
		return invalid("terms_accepted", "terms must be accepted")
	}
	return nil
}

func cartTotal(items []orders.ItemInput) float64 {
	var total float64
	for _, it := range items {
		total += float64(it.Quantity) * it.UnitPrice
	}
	return total
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
