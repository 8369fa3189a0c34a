package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkax "github.com/bazario/emi-checkout/internal/kafka"
	"github.com/bazario/emi-checkout/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Store is what the finalize service needs from persistence.
type Store interface {
	CreateFinalOrder(ctx context.Context, p FinalizePayload, pt PaymentType) (*Order, bool, error)
}

// Publisher is satisfied by *kafkax.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Service owns the two finalize operations the reconciler (and the
// finalize HTTP endpoints) call after the gateway redirect.
type Service struct {
	Store       Store
	Producer    Publisher
	Redis       *redis.Client
	ServiceName string
}

// FinalizeEMI records an installment purchase: down payment and fee were
// charged at the gateway, the remainder is owed over the schedule.
func (s *Service) FinalizeEMI(ctx context.Context, p FinalizePayload) (*Order, error) {
	if p.EMI == nil {
		return nil, fmt.Errorf("finalize emi: missing installment terms for gateway order %s", p.GatewayOrderID)
	}
	return s.finalize(ctx, p, PaymentTypeEMI)
}

// FinalizeOnline records a paid-in-full purchase.
func (s *Service) FinalizeOnline(ctx context.Context, p FinalizePayload) (*Order, error) {
	p.EMI = nil
	return s.finalize(ctx, p, PaymentTypeFull)
}

func (s *Service) finalize(ctx context.Context, p FinalizePayload, pt PaymentType) (*Order, error) {
	if p.GatewayOrderID == "" {
		return nil, fmt.Errorf("finalize: missing gateway order id")
	}

	order, existed, err := s.Store.CreateFinalOrder(ctx, p, pt)
	if err != nil {
		return nil, err
	}

	if s.Redis != nil {
		if b, merr := json.Marshal(order); merr == nil {
			key := fmt.Sprintf(redisx.KeyOrderStatus, order.ID)
			_ = s.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
		}
	}

	// Replayed finalizes must not re-announce the order.
	if !existed && s.Producer != nil {
		s.publishFinalized(order, p.EMI)
	}
	return order, nil
}

func (s *Service) publishFinalized(o *Order, emi *EMITermsInput) {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderFinalized,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(OrderFinalizedPayload{
			OrderID:        o.ID,
			GatewayOrderID: o.GatewayOrderID,
			BuyerID:        o.BuyerID,
			VendorID:       o.VendorID,
			PaymentType:    o.PaymentType,
			TotalAmount:    o.TotalAmount,
			EMI:            emi,
			FinalizedAt:    time.Now().UTC(),
		}),
	}
	s.Producer.Publish(PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderFinalized)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
