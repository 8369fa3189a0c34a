package redisx

import "time"

const (
	// Pending transaction slot, one per checkout session:
	// checkout:pending:{session_id} -> PendingTransaction JSON.
	// Its presence is the sole signal that a payment is in flight.
	KeyPendingTx = "checkout:pending:%s"

	// Reconciliation guard: checkout:guard:{session_id} -> "1".
	// Acquired with SETNX; a second return for the same session loses.
	KeyReconcileGuard = "checkout:guard:%s"

	// Buyer cart: cart:{buyer_id} -> cart JSON (owned by the storefront,
	// cleared here after a successful checkout).
	KeyCart = "cart:%s"

	// Order read cache: order_status:{order_id} -> order JSON.
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	// Abandoned flights expire on their own; a buyer who walks away from
	// the gateway page does not wedge the session forever.
	TTLPendingTx = 24 * time.Hour

	// Guard outlives any realistic finalize call but not a stuck one.
	TTLGuard = 5 * time.Minute

	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
