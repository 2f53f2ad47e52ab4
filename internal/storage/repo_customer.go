package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

const customerColumns = `id, name, phone, address, email, created_at, updated_at`

type customerRepository struct {
	db dbtx
}

func (r *customerRepository) Create(ctx context.Context, customer *Customer) error {
	if customer == nil {
		return fmt.Errorf("create customer: customer is nil")
	}
	if strings.TrimSpace(customer.Name) == "" {
		return fmt.Errorf("create customer: name is required")
	}

	now := nowLocal()
	customer.CreatedAt = now
	customer.UpdatedAt = now

	id, err := insertRow(ctx, r.db, `
		INSERT INTO customers(name, phone, address, email, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?)
	`, customer.Name, nullString(customer.Phone), nullString(customer.Address), nullString(customer.Email),
		FormatTime(customer.CreatedAt), FormatTime(customer.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create customer: %w", err)
	}
	customer.ID = id
	return nil
}

func (r *customerRepository) Get(ctx context.Context, id int64) (*Customer, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	customer, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return customer, nil
}

func (r *customerRepository) List(ctx context.Context) ([]Customer, error) {
	return r.list(ctx, builder.Select(customerColumns).From("customers").OrderBy("name ASC", "id ASC"))
}

// Search matches term as a case-insensitive substring of name, phone or address.
func (r *customerRepository) Search(ctx context.Context, term string) ([]Customer, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
	query := builder.Select(customerColumns).
		From("customers").
		Where(sq.Or{
			sq.Like{"lower(name)": pattern},
			sq.Like{"lower(phone)": pattern},
			sq.Like{"lower(address)": pattern},
		}).
		OrderBy("name ASC", "id ASC")
	return r.list(ctx, query)
}

func (r *customerRepository) list(ctx context.Context, query sq.SelectBuilder) ([]Customer, error) {
	rows, err := queryBuilt(ctx, r.db, query)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	customers := []Customer{}
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("list customers: %w", err)
		}
		customers = append(customers, *customer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list customers: iterate: %w", err)
	}
	return customers, nil
}

func (r *customerRepository) Update(ctx context.Context, customer *Customer) error {
	if customer == nil {
		return fmt.Errorf("update customer: customer is nil")
	}
	if customer.ID == 0 {
		return fmt.Errorf("update customer: id is required")
	}
	customer.UpdatedAt = nowLocal()

	err := execAffecting(ctx, r.db, `
		UPDATE customers
		SET name = ?, phone = ?, address = ?, email = ?, updated_at = ?
		WHERE id = ?
	`, customer.Name, nullString(customer.Phone), nullString(customer.Address), nullString(customer.Email),
		FormatTime(customer.UpdatedAt), customer.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update customer: %w", err)
	}
	return nil
}

func (r *customerRepository) Delete(ctx context.Context, id int64) error {
	if err := execAffecting(ctx, r.db, `DELETE FROM customers WHERE id = ?`, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete customer: %w", err)
	}
	return nil
}

func (r *customerRepository) CountOrders(ctx context.Context, id int64) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM orders WHERE customer_id = ?`, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("count customer orders: %w", err)
	}
	return count, nil
}

func scanCustomer(scanner rowScanner) (*Customer, error) {
	var (
		customer  Customer
		phone     sql.NullString
		address   sql.NullString
		email     sql.NullString
		createdAt sql.NullString
		updatedAt sql.NullString
	)
	if err := scanner.Scan(&customer.ID, &customer.Name, &phone, &address, &email, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	customer.Phone = phone.String
	customer.Address = address.String
	customer.Email = email.String

	var err error
	if customer.CreatedAt, err = decodeStamp("customers.created_at", createdAt); err != nil {
		return nil, err
	}
	if customer.UpdatedAt, err = decodeStamp("customers.updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &customer, nil
}
