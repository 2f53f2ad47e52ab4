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

const paymentColumns = `p.id, p.order_id, p.amount, p.payment_date, p.payment_method, p.notes, p.created_at, p.updated_at`

type paymentRepository struct {
	db dbtx
}

func (r *paymentRepository) Create(ctx context.Context, payment *Payment) error {
	if payment == nil {
		return fmt.Errorf("create payment: payment is nil")
	}
	if payment.OrderID == 0 {
		return fmt.Errorf("create payment: order id is required")
	}

	now := nowLocal()
	if strings.TrimSpace(payment.PaymentMethod) == "" {
		payment.PaymentMethod = PaymentMethodCash
	}
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = now
	}
	payment.CreatedAt = now
	payment.UpdatedAt = now

	id, err := insertRow(ctx, r.db, `
		INSERT INTO payments(order_id, amount, payment_date, payment_method, notes, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
	`, payment.OrderID, payment.Amount.InexactFloat64(), FormatTime(payment.PaymentDate), payment.PaymentMethod,
		nullString(payment.Notes), FormatTime(payment.CreatedAt), FormatTime(payment.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	payment.ID = id
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id int64) (*Payment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments p WHERE p.id = ?`, id)
	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return payment, nil
}

func (r *paymentRepository) List(ctx context.Context, filter PaymentFilter) ([]PaymentSummary, error) {
	query := builder.Select(paymentColumns, "c.name").
		From("payments p").
		Join("orders o ON p.order_id = o.id").
		Join("customers c ON o.customer_id = c.id").
		OrderBy("p.payment_date DESC", "p.id DESC")
	if filter.OrderID != 0 {
		query = query.Where(sq.Eq{"p.order_id": filter.OrderID})
	}

	rows, err := queryBuilt(ctx, r.db, query)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []PaymentSummary{}
	for rows.Next() {
		var name string
		payment, err := scanPayment(rows, &name)
		if err != nil {
			return nil, fmt.Errorf("list payments: %w", err)
		}
		out = append(out, PaymentSummary{Payment: *payment, CustomerName: name})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list payments: iterate: %w", err)
	}
	return out, nil
}

func (r *paymentRepository) ListByOrder(ctx context.Context, orderID int64) ([]Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments p
		WHERE p.order_id = ?
		ORDER BY p.payment_date DESC, p.id DESC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payments by order: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []Payment{}
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("list payments by order: %w", err)
		}
		out = append(out, *payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list payments by order: iterate: %w", err)
	}
	return out, nil
}

func (r *paymentRepository) SumByOrder(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	sum, err := sumMoney(ctx, r.db, `SELECT amount FROM payments WHERE order_id = ?`, orderID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum payments by order: %w", err)
	}
	return sum, nil
}

func (r *paymentRepository) Update(ctx context.Context, payment *Payment) error {
	if payment == nil {
		return fmt.Errorf("update payment: payment is nil")
	}
	if payment.ID == 0 {
		return fmt.Errorf("update payment: id is required")
	}
	payment.UpdatedAt = nowLocal()

	err := execAffecting(ctx, r.db, `
		UPDATE payments
		SET order_id = ?, amount = ?, payment_date = ?, payment_method = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`, payment.OrderID, payment.Amount.InexactFloat64(), FormatTime(payment.PaymentDate), payment.PaymentMethod,
		nullString(payment.Notes), FormatTime(payment.UpdatedAt), payment.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) Delete(ctx context.Context, id int64) error {
	if err := execAffecting(ctx, r.db, `DELETE FROM payments WHERE id = ?`, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete payment: %w", err)
	}
	return nil
}

func scanPayment(scanner rowScanner, extra ...any) (*Payment, error) {
	var (
		payment     Payment
		amount      decimal.NullDecimal
		paymentDate sql.NullString
		method      sql.NullString
		notes       sql.NullString
		createdAt   sql.NullString
		updatedAt   sql.NullString
	)
	dest := []any{&payment.ID, &payment.OrderID, &amount, &paymentDate, &method, &notes, &createdAt, &updatedAt}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if !amount.Valid {
		return nil, fmt.Errorf("%w: payments.amount is null", ErrDecode)
	}
	payment.Amount = amount.Decimal
	payment.PaymentMethod = method.String
	payment.Notes = notes.String

	var err error
	if payment.PaymentDate, err = decodeStamp("payments.payment_date", paymentDate); err != nil {
		return nil, err
	}
	if payment.CreatedAt, err = decodeStamp("payments.created_at", createdAt); err != nil {
		return nil, err
	}
	if payment.UpdatedAt, err = decodeStamp("payments.updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &payment, nil
}
