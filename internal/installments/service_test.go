package installments

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkax "github.com/bazario/emi-checkout/internal/kafka"
	"github.com/bazario/emi-checkout/internal/orders"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockScheduleStore struct {
	AlreadyScheduled bool
	// FailTimes makes the next N ScheduleAll calls fail, simulating a
	// transient insert failure.
	FailTimes int

	ScheduleCalls int
	written       bool
	OrderID       string
	Count         int
	Amount        float64
	CycleDays     int
	From          time.Time
}

func (m *MockScheduleStore) Scheduled(_ context.Context, orderID string, count int) (bool, error) {
	return m.AlreadyScheduled || m.written, nil
}

func (m *MockScheduleStore) ScheduleAll(_ context.Context, orderID string, count int, amount float64, cycleDays int, from time.Time) error {
	m.ScheduleCalls++
	m.OrderID = orderID
	m.Count = count
	m.Amount = amount
	m.CycleDays = cycleDays
	m.From = from
	if m.FailTimes > 0 {
		m.FailTimes--
		return errors.New("insert installments: connection reset")
	}
	m.written = true
	return nil
}

type MockDedup struct {
	seen map[string]bool
}

func (m *MockDedup) SeenOrMark(_ context.Context, eventID string) (bool, error) {
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	if m.seen[eventID] {
		return true, nil
	}
	m.seen[eventID] = true
	return false, nil
}

type MockPublisher struct {
	Messages [][]byte
}

func (m *MockPublisher) Publish(_, value []byte, _ ...kafkago.Header) {
	m.Messages = append(m.Messages, value)
}

func finalizedMessage(t *testing.T, pt orders.PaymentType, emi *orders.EMITermsInput) kafkago.Message {
	t.Helper()
	finalizedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderFinalized,
		EventVersion:  1,
		OccurredAt:    finalizedAt,
		Producer:      "checkout-api",
		CorrelationID: "ord-1",
		Payload: kafkax.MustMarshal(orders.OrderFinalizedPayload{
			OrderID:     "ord-1",
			BuyerID:     "buyer-1",
			PaymentType: pt,
			TotalAmount: 2000,
			EMI:         emi,
			FinalizedAt: finalizedAt,
		}),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func emiTerms() *orders.EMITermsInput {
	return &orders.EMITermsInput{
		DownPayment:       400,
		ProcessingFee:     100,
		BillingCycleDays:  30,
		TotalInstallments: 6,
		InstallmentAmount: 266.67,
	}
}

func newTestService(repo *MockScheduleStore, pub *MockPublisher) *Service {
	return &Service{Repo: repo, Dedup: &MockDedup{}, Producer: pub, ServiceName: "test-installments"}
}

func TestHandleOrderFinalized_SchedulesEMIOrder(t *testing.T) {
	repo := &MockScheduleStore{}
	pub := &MockPublisher{}
	svc := newTestService(repo, pub)

	err := svc.HandleOrderFinalized(context.Background(), finalizedMessage(t, orders.PaymentTypeEMI, emiTerms()))

	require.NoError(t, err)
	assert.Equal(t, 1, repo.ScheduleCalls)
	assert.Equal(t, "ord-1", repo.OrderID)
	assert.Equal(t, 6, repo.Count)
	assert.Equal(t, 266.67, repo.Amount)
	assert.Equal(t, 30, repo.CycleDays)

	require.Len(t, pub.Messages, 1)
	var env orders.Envelope
	require.NoError(t, json.Unmarshal(pub.Messages[0], &env))
	assert.Equal(t, orders.EventInstallmentsScheduled, env.EventType)

	var p orders.InstallmentsScheduledPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, 6, p.TotalInstallments)
	assert.Equal(t, time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC), p.FirstDueDate)
}

func TestHandleOrderFinalized_SkipsFullPayment(t *testing.T) {
	repo := &MockScheduleStore{}
	pub := &MockPublisher{}
	svc := newTestService(repo, pub)

	err := svc.HandleOrderFinalized(context.Background(), finalizedMessage(t, orders.PaymentTypeFull, nil))

	require.NoError(t, err)
	assert.Zero(t, repo.ScheduleCalls)
	assert.Empty(t, pub.Messages)
}

func TestHandleOrderFinalized_DedupsRedelivery(t *testing.T) {
	repo := &MockScheduleStore{}
	pub := &MockPublisher{}
	svc := newTestService(repo, pub)

	msg := finalizedMessage(t, orders.PaymentTypeEMI, emiTerms())
	require.NoError(t, svc.HandleOrderFinalized(context.Background(), msg))
	require.NoError(t, svc.HandleOrderFinalized(context.Background(), msg))

	assert.Equal(t, 1, repo.ScheduleCalls)
	assert.Len(t, pub.Messages, 1)
}

func TestHandleOrderFinalized_ShortCircuitsExistingSchedule(t *testing.T) {
	repo := &MockScheduleStore{AlreadyScheduled: true}
	pub := &MockPublisher{}
	svc := newTestService(repo, pub)

	err := svc.HandleOrderFinalized(context.Background(), finalizedMessage(t, orders.PaymentTypeEMI, emiTerms()))

	require.NoError(t, err)
	assert.Zero(t, repo.ScheduleCalls)
	// re-announcing an existing schedule is harmless
	assert.Len(t, pub.Messages, 1)
}

func TestHandleOrderFinalized_RedeliveryRetriesAfterStoreFailure(t *testing.T) {
	repo := &MockScheduleStore{FailTimes: 1}
	pub := &MockPublisher{}
	svc := newTestService(repo, pub)
	msg := finalizedMessage(t, orders.PaymentTypeEMI, emiTerms())

	// first delivery hits a transient insert failure; the dedup key must
	// not be marked, or the redelivery would be swallowed
	require.Error(t, svc.HandleOrderFinalized(context.Background(), msg))
	assert.Empty(t, pub.Messages)

	// kafka redelivers; the schedule is written this time
	require.NoError(t, svc.HandleOrderFinalized(context.Background(), msg))
	assert.Equal(t, 2, repo.ScheduleCalls)
	assert.True(t, repo.written)
	assert.Len(t, pub.Messages, 1)
}

func TestHandleOrderFinalized_IgnoresOtherEvents(t *testing.T) {
	repo := &MockScheduleStore{}
	pub := &MockPublisher{}
	svc := newTestService(repo, pub)

	env := orders.Envelope{
		EventID:   uuid.NewString(),
		EventType: orders.EventInstallmentsScheduled,
		Payload:   json.RawMessage(`{}`),
	}
	err := svc.HandleOrderFinalized(context.Background(), kafkago.Message{Value: kafkax.MustMarshal(env)})

	require.NoError(t, err)
	assert.Zero(t, repo.ScheduleCalls)
	assert.Empty(t, pub.Messages)
}
