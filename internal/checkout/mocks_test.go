package checkout

import (
	"context"
	"sync"

	"github.com/bazario/emi-checkout/internal/gateway"
	"github.com/bazario/emi-checkout/internal/orders"
)

// MockStore implements PendingStore, Guard and CartClearer in memory.
// A mutex stands in for redis's single-threaded command execution so the
// guard keeps its try-acquire semantics under concurrent reconciles.
type MockStore struct {
	mu      sync.Mutex
	pending map[string]*PendingTransaction
	guards  map[string]bool

	SaveErr  error
	LoadErr  error
	ClearErr error

	ClearedCarts []string
}

func NewMockStore() *MockStore {
	return &MockStore{
		pending: make(map[string]*PendingTransaction),
		guards:  make(map[string]bool),
	}
}

func (m *MockStore) Save(_ context.Context, sessionID string, tx *PendingTransaction) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[sessionID] = tx
	return nil
}

func (m *MockStore) Load(_ context.Context, sessionID string) (*PendingTransaction, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending[sessionID], nil
}

func (m *MockStore) Clear(_ context.Context, sessionID string) error {
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, sessionID)
	return nil
}

func (m *MockStore) TryAcquire(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.guards[sessionID] {
		return false, nil
	}
	m.guards[sessionID] = true
	return true, nil
}

func (m *MockStore) Release(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.guards, sessionID)
	return nil
}

func (m *MockStore) ClearCart(ctx context.Context, buyerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClearedCarts = append(m.ClearedCarts, buyerID)
	return nil
}

func (m *MockStore) HasPending(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending[sessionID] != nil
}

func (m *MockStore) GuardHeld(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.guards[sessionID]
}

// MockGateway implements GatewayClient.
type MockGateway struct {
	Session *gateway.Session
	Err     error

	Requests []gateway.CreateOrderRequest
}

func (m *MockGateway) CreateOrder(_ context.Context, req gateway.CreateOrderRequest) (*gateway.Session, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Session, nil
}

// MockFinalizer implements Finalizer and counts calls.
type MockFinalizer struct {
	mu    sync.Mutex
	Order *orders.Order
	Err   error

	EMICalls    int
	OnlineCalls int
	LastPayload orders.FinalizePayload
}

func (m *MockFinalizer) FinalizeEMI(_ context.Context, p orders.FinalizePayload) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EMICalls++
	m.LastPayload = p
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Order, nil
}

func (m *MockFinalizer) FinalizeOnline(_ context.Context, p orders.FinalizePayload) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OnlineCalls++
	m.LastPayload = p
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Order, nil
}

func (m *MockFinalizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.EMICalls + m.OnlineCalls
}

func newTestService(store *MockStore, gw *MockGateway, fin *MockFinalizer) *Service {
	return &Service{
		Pending:   store,
		Guard:     store,
		Carts:     store,
		Gateway:   gw,
		Finalizer: fin,
		ReturnURL: "https://api.test/checkout/return",
	}
}

func validRequest() InitiateRequest {
	return InitiateRequest{
		BuyerID:  "buyer-1",
		VendorID: "vendor-1",
		Items: []orders.ItemInput{
			{ProductServiceID: "p1", Quantity: 2, UnitPrice: 750},
			{ProductServiceID: "p2", Quantity: 1, UnitPrice: 500},
		},
		Address: orders.Address{
			FullName:    "Test Buyer",
			Phone:       "0123456789",
			Email:       "buyer@example.com",
			AddressLine: "1 Test Lane",
			City:        "Testville",
			PostalCode:  "1207",
		},
		TermsAccepted: true,
	}
}
