package checkout

import (
	"context"
	"log"
	"time"

	"github.com/bazario/emi-checkout/internal/orders"
)

// Outcome is what the return handler routes on.
type Outcome struct {
	State State
	// Order is set on FINALIZED_SUCCESS.
	Order *orders.Order
	// Duplicate marks a return already being reconciled by another
	// in-flight request for the same session.
	Duplicate bool
	Err       error
}

const finalizeTimeout = 15 * time.Second

// Reconcile runs once per gateway return. Processing order:
//
//  1. load the pending transaction; absent -> ORPHAN_RETURN, no-op
//  2. try-acquire the guard; held -> duplicate, no-op
//  3. finalize with the backend (EMI or full payment)
//  4. unconditionally delete the pending transaction and the guard
//
// A finalize failure is not retried here: the pending record is gone, so
// a buyer who tries again starts a fresh transaction instead of risking a
// double charge.
func (s *Service) Reconcile(ctx context.Context, sessionID, gatewayOrderID string) Outcome {
	if sessionID == "" || gatewayOrderID == "" {
		return Outcome{State: StateOrphanReturn}
	}

	pending, err := s.Pending.Load(ctx, sessionID)
	if err != nil {
		// Could not even look: leave the slot alone so a reload can retry.
		return Outcome{State: StateAwaitingRedirect, Err: err}
	}
	if pending == nil {
		return Outcome{State: StateOrphanReturn}
	}

	acquired, err := s.Guard.TryAcquire(ctx, sessionID)
	if err != nil {
		return Outcome{State: StateAwaitingRedirect, Err: err}
	}
	if !acquired {
		return Outcome{State: StateReconciling, Duplicate: true}
	}

	// Re-read under the guard: a return that finished between our first
	// look and the acquire has already deleted the slot.
	pending, err = s.Pending.Load(ctx, sessionID)
	if err != nil || pending == nil {
		_ = s.Guard.Release(ctx, sessionID)
		if err != nil {
			return Outcome{State: StateAwaitingRedirect, Err: err}
		}
		return Outcome{State: StateOrphanReturn}
	}

	st := StateAwaitingRedirect
	if !CanTransition(st, StateReconciling) {
		return Outcome{State: st, Err: ErrIllegalTransition}
	}
	st = StateReconciling

	// Cleanup happens no matter how finalization went, on a context that
	// survives request cancellation; a page refresh must find nothing to
	// re-trigger.
	defer func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.Pending.Clear(cctx, sessionID); err != nil {
			log.Printf("clear pending tx for session %s: %v", sessionID, err)
		}
		if err := s.Guard.Release(cctx, sessionID); err != nil {
			log.Printf("release guard for session %s: %v", sessionID, err)
		}
	}()

	fctx, cancel := context.WithTimeout(ctx, finalizeTimeout)
	defer cancel()

	payload := pending.finalizePayload(gatewayOrderID)
	order, ferr := func() (*orders.Order, error) {
		if pending.IsEMI {
			return s.Finalizer.FinalizeEMI(fctx, payload)
		}
		return s.Finalizer.FinalizeOnline(fctx, payload)
	}()
	if ferr != nil {
		st = StateFinalizedFailure
		return Outcome{State: st, Err: ferr}
	}

	if s.Carts != nil {
		// Same cancellation-proof context as the cleanup defer: the order
		// is finalized, so an aborted request must not strand the cart.
		cctx, ccancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := s.Carts.ClearCart(cctx, pending.BuyerID); err != nil {
			log.Printf("clear cart for buyer %s: %v", pending.BuyerID, err)
		}
		ccancel()
	}

	st = StateFinalizedSuccess
	return Outcome{State: st, Order: order}
}
