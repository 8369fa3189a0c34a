package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderFinalized        = "OrderFinalized"
	EventInstallmentsScheduled = "InstallmentsScheduled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderFinalizedPayload struct {
	OrderID        string         `json:"order_id"`
	GatewayOrderID string         `json:"gateway_order_id"`
	BuyerID        string         `json:"buyer_id"`
	VendorID       string         `json:"vendor_id"`
	PaymentType    PaymentType    `json:"payment_type"`
	TotalAmount    float64        `json:"total_amount"`
	EMI            *EMITermsInput `json:"emi,omitempty"`
	FinalizedAt    time.Time      `json:"finalized_at"`
}

type InstallmentsScheduledPayload struct {
	OrderID           string    `json:"order_id"`
	TotalInstallments int       `json:"total_installments"`
	InstallmentAmount float64   `json:"installment_amount"`
	FirstDueDate      time.Time `json:"first_due_date"`
}
