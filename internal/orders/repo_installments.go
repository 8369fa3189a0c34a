package orders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type InstallmentRepo struct{ DB *pgxpool.Pool }

// Scheduled reports whether the full schedule for an order already exists
// (idempotency short-circuit for replayed events).
func (r *InstallmentRepo) Scheduled(ctx context.Context, orderID string, count int) (bool, error) {
	var n int
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM installments WHERE order_id = $1`, orderID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n >= count, nil
}

// ScheduleAll materialises the repayment schedule: one row per installment,
// due every cycleDays starting from `from`. Idempotent per (order_id, seq).
func (r *InstallmentRepo) ScheduleAll(ctx context.Context, orderID string, count int, amount float64, cycleDays int, from time.Time) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for seq := 1; seq <= count; seq++ {
		due := from.AddDate(0, 0, seq*cycleDays)
		if _, err := tx.Exec(ctx, `
			INSERT INTO installments(order_id, seq, amount, due_date, status)
			VALUES ($1, $2, $3, $4, 'DUE')
			ON CONFLICT (order_id, seq) DO NOTHING
		`, orderID, seq, amount, due); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListByOrder returns the schedule in sequence order.
func (r *InstallmentRepo) ListByOrder(ctx context.Context, orderID string) ([]Installment, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, seq, amount, due_date, status
		FROM installments WHERE order_id=$1 ORDER BY seq`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Installment
	for rows.Next() {
		var ins Installment
		if err := rows.Scan(&ins.OrderID, &ins.Seq, &ins.Amount, &ins.DueDate, &ins.Status); err != nil {
			return nil, err
		}
		out = append(out, ins)
	}
	return out, rows.Err()
}
