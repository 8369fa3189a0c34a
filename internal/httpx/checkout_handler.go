package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/bazario/emi-checkout/internal/checkout"
	"github.com/bazario/emi-checkout/internal/emi"
	"github.com/bazario/emi-checkout/internal/gateway"
	"github.com/go-chi/chi/v5"
)

type CheckoutHandler struct {
	Svc *checkout.Service

	// Storefront pages the return endpoint redirects to. The Location
	// never carries the gateway's query parameters, so a refresh of the
	// landing page cannot re-trigger reconciliation.
	SuccessPageURL string
	FailurePageURL string
	StorefrontURL  string
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/checkout/initiate", h.initiate)
	r.Get("/checkout/return", h.handleReturn)
}

type initiateBody struct {
	SessionID string `json:"session_id"`
	checkout.InitiateRequest
}

type initiateResp struct {
	Success          bool     `json:"success"`
	GatewayOrderID   string   `json:"order_id,omitempty"`
	PaymentSessionID string   `json:"payment_session_id,omitempty"`
	AmountDueNow     float64  `json:"amount_due_now,omitempty"`
	Plan             any      `json:"plan,omitempty"`
	Message          string   `json:"message,omitempty"`
}

func (h *CheckoutHandler) initiate(w http.ResponseWriter, r *http.Request) {
	var body initiateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, initiateResp{Message: "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	res, err := h.Svc.Initiate(ctx, body.SessionID, body.InitiateRequest)
	if err != nil {
		writeJSON(w, initiateStatus(err), initiateResp{Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, initiateResp{
		Success:          true,
		GatewayOrderID:   res.GatewayOrderID,
		PaymentSessionID: res.PaymentSessionID,
		AmountDueNow:     res.AmountDueNow,
		Plan:             res.Plan,
	})
}

func initiateStatus(err error) int {
	var verr *checkout.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, emi.ErrBelowMinimum),
		errors.Is(err, emi.ErrInvalidDownPayment),
		errors.Is(err, emi.ErrInvalidTenure),
		errors.Is(err, emi.ErrInconsistentPlan):
		return http.StatusBadRequest
	}
	var gerr *gateway.Error
	if errors.As(err, &gerr) || errors.Is(err, gateway.ErrNoSession) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// handleReturn is the gateway's redirect target. Reconciliation runs at
// most once per return; whatever the outcome, the buyer leaves with a
// clean URL.
func (h *CheckoutHandler) handleReturn(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID := q.Get("session")
	gatewayOrderID := q.Get("order_id")

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	out := h.Svc.Reconcile(ctx, sessionID, gatewayOrderID)

	switch {
	case out.State == checkout.StateFinalizedSuccess:
		http.Redirect(w, r, h.SuccessPageURL+"?order="+url.QueryEscape(out.Order.ID), http.StatusSeeOther)
	case out.State == checkout.StateFinalizedFailure:
		http.Redirect(w, r, h.FailurePageURL, http.StatusSeeOther)
	case out.Duplicate:
		// Another mount of the same return is already finalizing; send
		// this one to the storefront rather than double-processing.
		http.Redirect(w, r, h.StorefrontURL, http.StatusSeeOther)
	default:
		// Orphan return or a store hiccup: nothing to finalize here.
		http.Redirect(w, r, h.StorefrontURL, http.StatusSeeOther)
	}
}
