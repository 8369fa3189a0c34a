package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

var ErrNotFound = errors.New("order not found")

// CreateFinalOrder persists a reconciled payment as an order, idempotent
// via gateway_order_id: a replayed finalize for the same gateway order
// returns the existing row (existed=true) without touching anything.
func (r *Repo) CreateFinalOrder(ctx context.Context, p FinalizePayload, pt PaymentType) (*Order, bool, error) {
	if existing, err := r.getByGatewayOrderID(ctx, p.GatewayOrderID); err == nil {
		return existing, true, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	if len(p.Items) == 0 {
		return nil, false, fmt.Errorf("no items for gateway order %s", p.GatewayOrderID)
	}
	for _, it := range p.Items {
		if it.Quantity < 1 {
			return nil, false, fmt.Errorf("invalid qty for product %s", it.ProductServiceID)
		}
	}

	addr, err := json.Marshal(p.Address)
	if err != nil {
		return nil, false, err
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	orderID := uuid.NewString()
	var o Order
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(id, gateway_order_id, buyer_id, vendor_id, payment_type, status, total_amount, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, orderID, p.GatewayOrderID, p.BuyerID, p.VendorID, pt, StatusConfirmed, p.TotalAmount, addr).
		Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		// A concurrent finalize for the same gateway order may slip past
		// the pre-check and lose the unique race at the insert.
		if isUniqueViolation(err) {
			if existing, gerr := r.getByGatewayOrderID(ctx, p.GatewayOrderID); gerr == nil {
				return existing, true, nil
			}
		}
		return nil, false, err
	}

	for _, it := range p.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_service_id, qty, unit_price)
			VALUES ($1, $2, $3, $4)`,
			orderID, it.ProductServiceID, it.Quantity, it.UnitPrice,
		); err != nil {
			return nil, false, err
		}
	}

	if pt == PaymentTypeEMI {
		if p.EMI == nil {
			return nil, false, fmt.Errorf("missing emi terms for gateway order %s", p.GatewayOrderID)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO emi_terms(order_id, down_payment, processing_fee, billing_cycle_days, total_installments, installment_amount)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			orderID, p.EMI.DownPayment, p.EMI.ProcessingFee, p.EMI.BillingCycleDays, p.EMI.TotalInstallments, p.EMI.InstallmentAmount,
		); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		// A concurrent finalize for the same gateway order may have won
		// the unique race; surface the row it created.
		if existing, gerr := r.getByGatewayOrderID(ctx, p.GatewayOrderID); gerr == nil {
			return existing, true, nil
		}
		return nil, false, err
	}

	o.ID = orderID
	o.GatewayOrderID = p.GatewayOrderID
	o.BuyerID = p.BuyerID
	o.VendorID = p.VendorID
	o.PaymentType = pt
	o.Status = StatusConfirmed
	o.TotalAmount = p.TotalAmount
	o.Address = p.Address
	return &o, false, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *Repo) getByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Order, error) {
	return r.scanOrder(r.DB.QueryRow(ctx, `
		SELECT id, gateway_order_id, buyer_id, vendor_id, payment_type, status, total_amount, address, created_at, updated_at
		FROM orders WHERE gateway_order_id=$1`, gatewayOrderID))
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return r.scanOrder(r.DB.QueryRow(ctx, `
		SELECT id, gateway_order_id, buyer_id, vendor_id, payment_type, status, total_amount, address, created_at, updated_at
		FROM orders WHERE id=$1`, orderID))
}

func (r *Repo) scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var addr []byte
	err := row.Scan(&o.ID, &o.GatewayOrderID, &o.BuyerID, &o.VendorID, &o.PaymentType,
		&o.Status, &o.TotalAmount, &addr, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(addr, &o.Address); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) GetOrderStatus(ctx context.Context, orderID string) (Status, error) {
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return Status(s), nil
}
