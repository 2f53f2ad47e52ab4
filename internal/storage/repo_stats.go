package storage

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

type statsRepository struct {
	db dbtx
}

// Dashboard summarizes the shop. day selects which appointments count as
// today's and uses the YYYY-MM-DD form stored in appointments.date.
func (r *statsRepository) Dashboard(ctx context.Context, day string) (Dashboard, error) {
	var out Dashboard

	counts := []struct {
		dest  *int64
		query string
		args  []any
	}{
		{&out.Customers, `SELECT COUNT(1) FROM customers`, nil},
		{&out.Orders, `SELECT COUNT(1) FROM orders`, nil},
		{&out.OpenOrders, `SELECT COUNT(1) FROM orders WHERE status NOT IN (?, ?)`, []any{OrderStatusDelivered, OrderStatusCancelled}},
		{&out.AppointmentsToday, `SELECT COUNT(1) FROM appointments WHERE date = ?`, []any{day}},
	}
	for _, c := range counts {
		if err := r.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return Dashboard{}, fmt.Errorf("dashboard: %w", err)
		}
	}

	revenue, err := sumMoney(ctx, r.db, `SELECT amount FROM payments`)
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard: revenue: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT total_amount, paid_amount FROM orders WHERE status <> ?`, OrderStatusCancelled)
	if err != nil {
		return Dashboard{}, fmt.Errorf("dashboard: outstanding: %w", err)
	}
	defer func() { _ = rows.Close() }()

	outstanding := decimal.Zero
	for rows.Next() {
		var total, paid decimal.NullDecimal
		if err := rows.Scan(&total, &paid); err != nil {
			return Dashboard{}, fmt.Errorf("dashboard: outstanding: %w", err)
		}
		if remaining := total.Decimal.Sub(paid.Decimal); remaining.IsPositive() {
			outstanding = outstanding.Add(remaining)
		}
	}
	if err := rows.Err(); err != nil {
		return Dashboard{}, fmt.Errorf("dashboard: outstanding: iterate: %w", err)
	}

	out.Revenue = revenue
	out.Outstanding = outstanding
	return out, nil
}

// sumMoney adds a single money column row by row. SQL SUM over REAL
// accumulates binary float error; each row on its own decodes exactly.
func sumMoney(ctx context.Context, db dbtx, query string, args ...any) (decimal.Decimal, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, err
	}
	defer func() { _ = rows.Close() }()

	sum := decimal.Zero
	for rows.Next() {
		var amount decimal.NullDecimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(amount.Decimal)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("iterate: %w", err)
	}
	return sum, nil
}
