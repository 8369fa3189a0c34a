package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/bazario/emi-checkout/internal/checkout"
	"github.com/bazario/emi-checkout/internal/gateway"
	"github.com/bazario/emi-checkout/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend implements every dependency of checkout.Service in memory.
type stubBackend struct {
	mu      sync.Mutex
	pending map[string]*checkout.PendingTransaction
	guards  map[string]bool

	session    *gateway.Session
	gatewayErr error

	order       *orders.Order
	finalizeErr error
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		pending: make(map[string]*checkout.PendingTransaction),
		guards:  make(map[string]bool),
		session: &gateway.Session{GatewayOrderID: "gw-1", PaymentSessionID: "sess-1"},
		order:   &orders.Order{ID: "ord-1"},
	}
}

func (s *stubBackend) Save(_ context.Context, id string, tx *checkout.PendingTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[id] = tx
	return nil
}

func (s *stubBackend) Load(_ context.Context, id string) (*checkout.PendingTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[id], nil
}

func (s *stubBackend) Clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
	return nil
}

func (s *stubBackend) TryAcquire(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.guards[id] {
		return false, nil
	}
	s.guards[id] = true
	return true, nil
}

func (s *stubBackend) Release(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.guards, id)
	return nil
}

func (s *stubBackend) ClearCart(_ context.Context, _ string) error { return nil }

func (s *stubBackend) CreateOrder(_ context.Context, _ gateway.CreateOrderRequest) (*gateway.Session, error) {
	if s.gatewayErr != nil {
		return nil, s.gatewayErr
	}
	return s.session, nil
}

func (s *stubBackend) FinalizeEMI(_ context.Context, _ orders.FinalizePayload) (*orders.Order, error) {
	if s.finalizeErr != nil {
		return nil, s.finalizeErr
	}
	return s.order, nil
}

func (s *stubBackend) FinalizeOnline(_ context.Context, _ orders.FinalizePayload) (*orders.Order, error) {
	if s.finalizeErr != nil {
		return nil, s.finalizeErr
	}
	return s.order, nil
}

func newTestHandler(b *stubBackend) *CheckoutHandler {
	return &CheckoutHandler{
		Svc: &checkout.Service{
			Pending:   b,
			Guard:     b,
			Carts:     b,
			Gateway:   b,
			Finalizer: b,
			ReturnURL: "https://api.test/checkout/return",
		},
		SuccessPageURL: "https://shop.test/order-confirmation",
		FailurePageURL: "https://shop.test/payment-failed",
		StorefrontURL:  "https://shop.test",
	}
}

func initiateJSON(sessionID string) []byte {
	b, _ := json.Marshal(map[string]any{
		"session_id": sessionID,
		"buyer_id":   "buyer-1",
		"vendor_id":  "vendor-1",
		"items": []map[string]any{
			{"product_service_id": "p1", "quantity": 1, "unit_price": 2000},
		},
		"address": map[string]any{
			"full_name":    "Test Buyer",
			"phone":        "0123",
			"email":        "b@example.com",
			"address_line": "1 Lane",
			"city":         "Testville",
		},
		"terms_accepted": true,
	})
	return b
}

func TestInitiateEndpoint_Success(t *testing.T) {
	backend := newStubBackend()
	router := NewRouter()
	newTestHandler(backend).Register(router)

	req := httptest.NewRequest(http.MethodPost, "/checkout/initiate", bytes.NewReader(initiateJSON("tab-1")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp initiateResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "sess-1", resp.PaymentSessionID)
	assert.Equal(t, 2000.0, resp.AmountDueNow)
}

func TestInitiateEndpoint_ValidationError(t *testing.T) {
	backend := newStubBackend()
	router := NewRouter()
	newTestHandler(backend).Register(router)

	body := []byte(`{"session_id":"tab-1","buyer_id":"buyer-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/checkout/initiate", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInitiateEndpoint_GatewayFailure(t *testing.T) {
	backend := newStubBackend()
	backend.gatewayErr = &gateway.Error{StatusCode: 503, Message: "unavailable"}
	router := NewRouter()
	newTestHandler(backend).Register(router)

	req := httptest.NewRequest(http.MethodPost, "/checkout/initiate", bytes.NewReader(initiateJSON("tab-1")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, backend.pending, "pending transaction rolled back")
}

func TestReturnEndpoint_SuccessRedirect(t *testing.T) {
	backend := newStubBackend()
	router := NewRouter()
	handler := newTestHandler(backend)
	handler.Register(router)

	require.NoError(t, backend.Save(context.Background(), "tab-1", &checkout.PendingTransaction{
		BuyerID: "buyer-1", VendorID: "vendor-1", TotalAmount: 2000,
		Items: []orders.ItemInput{{ProductServiceID: "p1", Quantity: 1, UnitPrice: 2000}},
	}))

	req := httptest.NewRequest(http.MethodGet, "/checkout/return?session=tab-1&order_id=gw-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc := rec.Header().Get("Location")
	assert.Equal(t, "https://shop.test/order-confirmation?order=ord-1", loc)
	assert.NotContains(t, loc, "order_id=gw-1", "gateway parameters are stripped")
	assert.Empty(t, backend.pending)
	assert.Empty(t, backend.guards)
}

func TestReturnEndpoint_FailureRedirect(t *testing.T) {
	backend := newStubBackend()
	backend.finalizeErr = assert.AnError
	router := NewRouter()
	newTestHandler(backend).Register(router)

	require.NoError(t, backend.Save(context.Background(), "tab-1", &checkout.PendingTransaction{
		BuyerID: "buyer-1", VendorID: "vendor-1", TotalAmount: 2000,
		Items: []orders.ItemInput{{ProductServiceID: "p1", Quantity: 1, UnitPrice: 2000}},
	}))

	req := httptest.NewRequest(http.MethodGet, "/checkout/return?session=tab-1&order_id=gw-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://shop.test/payment-failed", rec.Header().Get("Location"))
	assert.Empty(t, backend.pending, "pending cleared even on failure")
	assert.Empty(t, backend.guards)
}

func TestReturnEndpoint_OrphanReturn(t *testing.T) {
	backend := newStubBackend()
	router := NewRouter()
	newTestHandler(backend).Register(router)

	req := httptest.NewRequest(http.MethodGet, "/checkout/return?session=tab-unknown&order_id=gw-stale", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://shop.test", rec.Header().Get("Location"))
	assert.Empty(t, backend.guards, "orphan return leaves no guard")
}

func TestReturnEndpoint_NoGatewayParams(t *testing.T) {
	backend := newStubBackend()
	router := NewRouter()
	newTestHandler(backend).Register(router)

	req := httptest.NewRequest(http.MethodGet, "/checkout/return", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://shop.test", rec.Header().Get("Location"))
}
