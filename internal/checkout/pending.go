package checkout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bazario/emi-checkout/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// PendingStore is the durable slot that survives the gateway redirect
// round-trip. One slot per checkout session.
type PendingStore interface {
	Save(ctx context.Context, sessionID string, tx *PendingTransaction) error
	// Load returns nil, nil when no transaction is pending.
	Load(ctx context.Context, sessionID string) (*PendingTransaction, error)
	Clear(ctx context.Context, sessionID string) error
}

// Guard is the try-acquire flag that keeps two near-simultaneous returns
// for the same session from both reconciling.
type Guard interface {
	TryAcquire(ctx context.Context, sessionID string) (bool, error)
	Release(ctx context.Context, sessionID string) error
}

type CartClearer interface {
	ClearCart(ctx context.Context, buyerID string) error
}

// RedisStore backs PendingStore, Guard and CartClearer with one redis
// client. Writes are synchronous with the caller, so a redirect issued
// right after Save cannot race the write.
type RedisStore struct {
	RDB *redis.Client
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, tx *PendingTransaction) error {
	b, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(redisx.KeyPendingTx, sessionID)
	return s.RDB.Set(ctx, key, b, redisx.TTLPendingTx).Err()
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*PendingTransaction, error) {
	key := fmt.Sprintf(redisx.KeyPendingTx, sessionID)
	raw, err := s.RDB.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tx PendingTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	return s.RDB.Del(ctx, fmt.Sprintf(redisx.KeyPendingTx, sessionID)).Err()
}

func (s *RedisStore) TryAcquire(ctx context.Context, sessionID string) (bool, error) {
	key := fmt.Sprintf(redisx.KeyReconcileGuard, sessionID)
	return s.RDB.SetNX(ctx, key, "1", redisx.TTLGuard).Result()
}

func (s *RedisStore) Release(ctx context.Context, sessionID string) error {
	return s.RDB.Del(ctx, fmt.Sprintf(redisx.KeyReconcileGuard, sessionID)).Err()
}

func (s *RedisStore) ClearCart(ctx context.Context, buyerID string) error {
	return s.RDB.Del(ctx, fmt.Sprintf(redisx.KeyCart, buyerID)).Err()
}
