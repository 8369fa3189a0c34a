package orders

import "time"

type PaymentType string

const (
	PaymentTypeFull PaymentType = "FULL"
	PaymentTypeEMI  PaymentType = "EMI"
)

type Status string

const (
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

type Order struct {
	ID             string      `json:"id"`
	GatewayOrderID string      `json:"gateway_order_id"`
	BuyerID        string      `json:"buyer_id"`
	VendorID       string      `json:"vendor_id"`
	PaymentType    PaymentType `json:"payment_type"`
	Status         Status      `json:"status"`
	TotalAmount    float64     `json:"total_amount"`
	Address        Address     `json:"address"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

type OrderItem struct {
	OrderID          string  `json:"order_id"`
	ProductServiceID string  `json:"product_service_id"`
	Quantity         int     `json:"quantity"`
	UnitPrice        float64 `json:"unit_price"`
}

// EMITerms is the per-order installment contract captured at finalize time.
type EMITerms struct {
	OrderID           string  `json:"order_id"`
	DownPayment       float64 `json:"down_payment"`
	ProcessingFee     float64 `json:"processing_fee"`
	BillingCycleDays  int     `json:"billing_cycle_days"`
	TotalInstallments int     `json:"total_installments"`
	InstallmentAmount float64 `json:"installment_amount"`
}

type Installment struct {
	OrderID string    `json:"order_id"`
	Seq     int       `json:"seq"`
	Amount  float64   `json:"amount"`
	DueDate time.Time `json:"due_date"`
	Status  string    `json:"status"` // DUE | PAID
}

type Address struct {
	FullName    string `json:"full_name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	PostalCode  string `json:"postal_code"`
}

type ItemInput struct {
	ProductServiceID string  `json:"product_service_id"`
	Quantity         int     `json:"quantity"`
	UnitPrice        float64 `json:"unit_price"`
}

// EMITermsInput carries the plan figures the storefront locked in before
// the gateway redirect.
type EMITermsInput struct {
	DownPayment       float64 `json:"down_payment"`
	ProcessingFee     float64 `json:"processing_fee"`
	BillingCycleDays  int     `json:"billing_cycle_days"`
	TotalInstallments int     `json:"total_installments"`
	InstallmentAmount float64 `json:"installment_amount"`
}

// FinalizePayload is everything needed to turn a reconciled gateway
// payment into a persisted order.
type FinalizePayload struct {
	BuyerID        string        `json:"user_id"`
	VendorID       string        `json:"vendor_id"`
	Items          []ItemInput   `json:"items"`
	TotalAmount    float64       `json:"total_amount"`
	Address        Address       `json:"address"`
	GatewayOrderID string        `json:"gateway_order_id"`
	EMI            *EMITermsInput `json:"emi,omitempty"`
}
