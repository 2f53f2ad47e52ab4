package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"
)

const orderColumns = `o.id, o.customer_id, o.order_type, o.status, o.order_date, o.delivery_date,
	o.total_amount, o.paid_amount, o.notes, o.created_at, o.updated_at`

type orderRepository struct {
	db dbtx
}

func (r *orderRepository) Create(ctx context.Context, order *Order) error {
	if order == nil {
		return fmt.Errorf("create order: order is nil")
	}
	if order.CustomerID == 0 {
		return fmt.Errorf("create order: customer id is required")
	}
	if strings.TrimSpace(order.OrderType) == "" {
		return fmt.Errorf("create order: order type is required")
	}

	now := nowLocal()
	if strings.TrimSpace(order.Status) == "" {
		order.Status = OrderStatusInProgress
	}
	if order.OrderDate.IsZero() {
		order.OrderDate = now
	}
	order.CreatedAt = now
	order.UpdatedAt = now

	id, err := insertRow(ctx, r.db, `
		INSERT INTO orders(customer_id, order_type, status, order_date, delivery_date,
			total_amount, paid_amount, notes, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, order.CustomerID, order.OrderType, order.Status, FormatTime(order.OrderDate), nullableTime(order.DeliveryDate),
		order.TotalAmount.InexactFloat64(), order.PaidAmount.InexactFloat64(), nullString(order.Notes),
		FormatTime(order.CreatedAt), FormatTime(order.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	order.ID = id
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id int64) (*Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = ?`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

// List returns orders joined with their customer's name, newest first.
func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]OrderSummary, error) {
	query := builder.Select(orderColumns, "c.name").
		From("orders o").
		Join("customers c ON o.customer_id = c.id").
		OrderBy("o.order_date DESC", "o.id DESC")
	if filter.CustomerID != 0 {
		query = query.Where(sq.Eq{"o.customer_id": filter.CustomerID})
	}
	if filter.Status != "" {
		query = query.Where(sq.Eq{"o.status": filter.Status})
	}

	rows, err := queryBuilt(ctx, r.db, query)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []OrderSummary{}
	for rows.Next() {
		var name string
		order, err := scanOrder(rows, &name)
		if err != nil {
			return nil, fmt.Errorf("list orders: %w", err)
		}
		out = append(out, OrderSummary{Order: *order, CustomerName: name})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders: iterate: %w", err)
	}
	return out, nil
}

func (r *orderRepository) ListByCustomer(ctx context.Context, customerID int64) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders o
		WHERE o.customer_id = ?
		ORDER BY o.order_date DESC, o.id DESC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list orders by customer: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("list orders by customer: %w", err)
		}
		out = append(out, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list orders by customer: iterate: %w", err)
	}
	return out, nil
}

func (r *orderRepository) Update(ctx context.Context, order *Order) error {
	if order == nil {
		return fmt.Errorf("update order: order is nil")
	}
	if order.ID == 0 {
		return fmt.Errorf("update order: id is required")
	}
	order.UpdatedAt = nowLocal()

	err := execAffecting(ctx, r.db, `
		UPDATE orders
		SET customer_id = ?, order_type = ?, status = ?, order_date = ?, delivery_date = ?,
			total_amount = ?, paid_amount = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`, order.CustomerID, order.OrderType, order.Status, FormatTime(order.OrderDate), nullableTime(order.DeliveryDate),
		order.TotalAmount.InexactFloat64(), order.PaidAmount.InexactFloat64(), nullString(order.Notes),
		FormatTime(order.UpdatedAt), order.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

// SetPaidAmount touches only paid_amount and updated_at.
func (r *orderRepository) SetPaidAmount(ctx context.Context, id int64, paid decimal.Decimal) error {
	err := execAffecting(ctx, r.db, `UPDATE orders SET paid_amount = ?, updated_at = ? WHERE id = ?`,
		paid.InexactFloat64(), Now(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("set order paid amount: %w", err)
	}
	return nil
}

// Delete removes only the order row; it fails while payments reference it.
func (r *orderRepository) Delete(ctx context.Context, id int64) error {
	if err := execAffecting(ctx, r.db, `DELETE FROM orders WHERE id = ?`, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

// DeleteWithPayments removes the order's payments and then the order in one
// transaction. It returns the number of payments removed.
func (r *orderRepository) DeleteWithPayments(ctx context.Context, id int64) (int64, error) {
	var removed int64
	err := withTx(ctx, r.db, func(tx dbtx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE order_id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete order payments: %w", classifyError(err))
		}
		if removed, err = result.RowsAffected(); err != nil {
			return fmt.Errorf("delete order payments: rows affected: %w", err)
		}
		return execAffecting(ctx, tx, `DELETE FROM orders WHERE id = ?`, id)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("delete order with payments: %w", err)
	}
	return removed, nil
}

func scanOrder(scanner rowScanner, extra ...any) (*Order, error) {
	var (
		order        Order
		status       sql.NullString
		orderDate    sql.NullString
		deliveryDate sql.NullString
		total        decimal.NullDecimal
		paid         decimal.NullDecimal
		notes        sql.NullString
		createdAt    sql.NullString
		updatedAt    sql.NullString
	)
	dest := []any{
		&order.ID, &order.CustomerID, &order.OrderType, &status, &orderDate, &deliveryDate,
		&total, &paid, &notes, &createdAt, &updatedAt,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	order.Status = status.String
	order.Notes = notes.String
	order.TotalAmount = total.Decimal
	order.PaidAmount = paid.Decimal

	var err error
	if order.OrderDate, err = decodeStamp("orders.order_date", orderDate); err != nil {
		return nil, err
	}
	if order.DeliveryDate, err = decodeNullableTime("orders.delivery_date", deliveryDate); err != nil {
		return nil, err
	}
	if order.CreatedAt, err = decodeStamp("orders.created_at", createdAt); err != nil {
		return nil, err
	}
	if order.UpdatedAt, err = decodeStamp("orders.updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &order, nil
}
