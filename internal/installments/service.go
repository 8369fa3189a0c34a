// Package installments materialises repayment schedules for finalized
// EMI orders, driven by order.finalized events.
package installments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkax "github.com/bazario/emi-checkout/internal/kafka"
	"github.com/bazario/emi-checkout/internal/orders"
	"github.com/bazario/emi-checkout/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

type ScheduleStore interface {
	Scheduled(ctx context.Context, orderID string, count int) (bool, error)
	ScheduleAll(ctx context.Context, orderID string, count int, amount float64, cycleDays int, from time.Time) error
}

// Dedup remembers processed event ids so redelivered messages are no-ops.
type Dedup interface {
	// SeenOrMark marks the id and reports whether it was already marked.
	SeenOrMark(ctx context.Context, eventID string) (bool, error)
}

type RedisDedup struct{ RDB *redis.Client }

func (d *RedisDedup) SeenOrMark(ctx context.Context, eventID string) (bool, error) {
	key := fmt.Sprintf(redisx.KeyDedup, "installments", eventID)
	set, err := d.RDB.SetNX(ctx, key, "1", redisx.TTLDedup).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

type Service struct {
	Repo        ScheduleStore
	Dedup       Dedup
	Producer    orders.Publisher
	ServiceName string
}

// HandleOrderFinalized is wired as the consumer handler.
func (s *Service) HandleOrderFinalized(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderFinalized {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderFinalizedPayload](env.Payload)
	if err != nil {
		return err
	}
	// Full payments carry no schedule.
	if p.PaymentType != orders.PaymentTypeEMI || p.EMI == nil {
		return nil
	}
	if p.EMI.TotalInstallments <= 0 {
		return nil
	}

	// Scheduled + ON CONFLICT make the write idempotent, so a redelivery
	// is safe to retry in full. The dedup key is marked only after the
	// schedule is durably written: marking first would let a transient
	// insert failure swallow every redelivery and lose the schedule.
	written, err := s.Repo.Scheduled(ctx, p.OrderID, p.EMI.TotalInstallments)
	if err != nil {
		return err
	}
	if !written {
		if err := s.Repo.ScheduleAll(ctx, p.OrderID, p.EMI.TotalInstallments,
			p.EMI.InstallmentAmount, p.EMI.BillingCycleDays, p.FinalizedAt); err != nil {
			return err
		}
	}

	seen, err := s.Dedup.SeenOrMark(ctx, env.EventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}
	return s.publishScheduled(p, env.TraceID)
}

func (s *Service) publishScheduled(p orders.OrderFinalizedPayload, trace string) error {
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventInstallmentsScheduled,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: p.OrderID,
		Payload: kafkax.MustMarshal(orders.InstallmentsScheduledPayload{
			OrderID:           p.OrderID,
			TotalInstallments: p.EMI.TotalInstallments,
			InstallmentAmount: p.EMI.InstallmentAmount,
			FirstDueDate:      p.FinalizedAt.AddDate(0, 0, p.EMI.BillingCycleDays),
		}),
	}
	s.Producer.Publish(orders.PartitionKey(p.OrderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventInstallmentsScheduled)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	return nil
}
