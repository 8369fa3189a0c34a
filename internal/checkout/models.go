package checkout

import (
	"time"

	"github.com/bazario/emi-checkout/internal/orders"
)

// PendingTransaction is the single durable record written before the
// buyer is redirected to the gateway. Its presence in the store is the
// only signal that a payment is in flight for the session; it is read
// once on return and deleted unconditionally when reconciliation ends.
type PendingTransaction struct {
	BuyerID     string             `json:"buyer_id"`
	VendorID    string             `json:"vendor_id"`
	Items       []orders.ItemInput `json:"items"`
	TotalAmount float64            `json:"total_amount"`
	Address     orders.Address     `json:"address"`

	IsEMI bool `json:"is_emi"`
	// Plan figures the backend needs to finalize an installment order;
	// zero-valued when IsEMI is false.
	DownPayment       float64 `json:"down_payment"`
	ProcessingFee     float64 `json:"processing_fee"`
	BillingCycleDays  int     `json:"billing_cycle_days"`
	TotalInstallments int     `json:"total_installments"`
	InstallmentAmount float64 `json:"installment_amount"`

	CreatedAt time.Time `json:"created_at"`
}

func (p *PendingTransaction) finalizePayload(gatewayOrderID string) orders.FinalizePayload {
	out := orders.FinalizePayload{
		BuyerID:        p.BuyerID,
		VendorID:       p.VendorID,
		Items:          p.Items,
		TotalAmount:    p.TotalAmount,
		Address:        p.Address,
		GatewayOrderID: gatewayOrderID,
	}
	if p.IsEMI {
		out.EMI = &orders.EMITermsInput{
			DownPayment:       p.DownPayment,
			ProcessingFee:     p.ProcessingFee,
			BillingCycleDays:  p.BillingCycleDays,
			TotalInstallments: p.TotalInstallments,
			InstallmentAmount: p.InstallmentAmount,
		}
	}
	return out
}
