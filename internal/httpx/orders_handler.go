package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bazario/emi-checkout/internal/orders"
	"github.com/bazario/emi-checkout/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

// OrdersHandler exposes the finalize endpoints the reconciler uses
// in-process, plus order lookup for the storefront.
type OrdersHandler struct {
	Svc   *orders.Service
	Repo  *orders.Repo
	Redis *redis.Client
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/checkout/emi", h.finalizeEMI)
	r.Post("/checkout/online", h.finalizeOnline)
	r.Get("/orders/{id}", h.getOrder)
}

// finalizeBody follows the storefront's wire contract.
type finalizeBody struct {
	UserID         string             `json:"userId"`
	VendorID       string             `json:"vendorId"`
	Items          []orders.ItemInput `json:"items"`
	TotalAmount    float64            `json:"totalAmount"`
	Address        orders.Address     `json:"address"`
	GatewayOrderID string             `json:"gatewayOrderId"`

	// EMI-only fields.
	DownPayment       float64 `json:"downPayment,omitempty"`
	ProcessingFee     float64 `json:"processingFee,omitempty"`
	BillingCycleDays  int     `json:"billingCycleInDays,omitempty"`
	TotalInstallments int     `json:"totalInstallments,omitempty"`
	InstallmentAmount float64 `json:"installmentAmount,omitempty"`
}

type finalizeResp struct {
	Success bool          `json:"success"`
	Order   *orders.Order `json:"order,omitempty"`
	Message string        `json:"message,omitempty"`
}

func (b finalizeBody) payload(emiTerms bool) orders.FinalizePayload {
	p := orders.FinalizePayload{
		BuyerID:        b.UserID,
		VendorID:       b.VendorID,
		Items:          b.Items,
		TotalAmount:    b.TotalAmount,
		Address:        b.Address,
		GatewayOrderID: b.GatewayOrderID,
	}
	if emiTerms {
		p.EMI = &orders.EMITermsInput{
			DownPayment:       b.DownPayment,
			ProcessingFee:     b.ProcessingFee,
			BillingCycleDays:  b.BillingCycleDays,
			TotalInstallments: b.TotalInstallments,
			InstallmentAmount: b.InstallmentAmount,
		}
	}
	return p
}

func (h *OrdersHandler) finalizeEMI(w http.ResponseWriter, r *http.Request) {
	h.finalize(w, r, true)
}

func (h *OrdersHandler) finalizeOnline(w http.ResponseWriter, r *http.Request) {
	h.finalize(w, r, false)
}

func (h *OrdersHandler) finalize(w http.ResponseWriter, r *http.Request, isEMI bool) {
	var body finalizeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, finalizeResp{Message: "invalid json"})
		return
	}
	if body.UserID == "" || body.VendorID == "" || body.GatewayOrderID == "" || len(body.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, finalizeResp{Message: "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var (
		order *orders.Order
		err   error
	)
	if isEMI {
		order, err = h.Svc.FinalizeEMI(ctx, body.payload(true))
	} else {
		order, err = h.Svc.FinalizeOnline(ctx, body.payload(false))
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, finalizeResp{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, finalizeResp{Success: true, Order: order})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// cache first, DB as truth
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	order, err := h.Repo.GetOrder(ctx, orderID)
	if errors.Is(err, orders.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if h.Redis != nil {
		if b, err := json.Marshal(order); err == nil {
			_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
		}
	}
	writeJSON(w, http.StatusOK, order)
}
