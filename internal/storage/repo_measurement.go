package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

const measurementColumns = `m.id, m.customer_id, m.order_id, m.height, m.shoulder_width, m.sleeve_length,
	m.chest_width, m.waist_width, m.neck_size, m.arm_circumference, m.thigh_circumference,
	m.notes, m.created_at, m.updated_at`

type measurementRepository struct {
	db dbtx
}

func (r *measurementRepository) Create(ctx context.Context, m *Measurement) error {
	if m == nil {
		return fmt.Errorf("create measurement: measurement is nil")
	}
	if m.CustomerID == 0 {
		return fmt.Errorf("create measurement: customer id is required")
	}

	now := nowLocal()
	m.CreatedAt = now
	m.UpdatedAt = now

	id, err := insertRow(ctx, r.db, `
		INSERT INTO measurements(customer_id, order_id, height, shoulder_width, sleeve_length,
			chest_width, waist_width, neck_size, arm_circumference, thigh_circumference,
			notes, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.CustomerID, nullInt(m.OrderID), nullFloat(m.Height), nullFloat(m.ShoulderWidth), nullFloat(m.SleeveLength),
		nullFloat(m.ChestWidth), nullFloat(m.WaistWidth), nullFloat(m.NeckSize), nullFloat(m.ArmCircumference),
		nullFloat(m.ThighCircumference), nullString(m.Notes), FormatTime(m.CreatedAt), FormatTime(m.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create measurement: %w", err)
	}
	m.ID = id
	return nil
}

func (r *measurementRepository) Get(ctx context.Context, id int64) (*Measurement, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+measurementColumns+` FROM measurements m WHERE m.id = ?`, id)
	m, err := scanMeasurement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get measurement: %w", err)
	}
	return m, nil
}

func (r *measurementRepository) List(ctx context.Context, filter MeasurementFilter) ([]MeasurementSummary, error) {
	query := builder.Select(measurementColumns, "c.name").
		From("measurements m").
		Join("customers c ON m.customer_id = c.id").
		OrderBy("m.created_at DESC", "m.id DESC")
	if filter.CustomerID != 0 {
		query = query.Where(sq.Eq{"m.customer_id": filter.CustomerID})
	}
	if filter.OrderID != 0 {
		query = query.Where(sq.Eq{"m.order_id": filter.OrderID})
	}

	rows, err := queryBuilt(ctx, r.db, query)
	if err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []MeasurementSummary{}
	for rows.Next() {
		var name string
		m, err := scanMeasurement(rows, &name)
		if err != nil {
			return nil, fmt.Errorf("list measurements: %w", err)
		}
		out = append(out, MeasurementSummary{Measurement: *m, CustomerName: name})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list measurements: iterate: %w", err)
	}
	return out, nil
}

func (r *measurementRepository) ListByCustomer(ctx context.Context, customerID int64) ([]Measurement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+measurementColumns+`
		FROM measurements m
		WHERE m.customer_id = ?
		ORDER BY m.created_at DESC, m.id DESC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list measurements by customer: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []Measurement{}
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, fmt.Errorf("list measurements by customer: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list measurements by customer: iterate: %w", err)
	}
	return out, nil
}

func (r *measurementRepository) Update(ctx context.Context, m *Measurement) error {
	if m == nil {
		return fmt.Errorf("update measurement: measurement is nil")
	}
	if m.ID == 0 {
		return fmt.Errorf("update measurement: id is required")
	}
	m.UpdatedAt = nowLocal()

	err := execAffecting(ctx, r.db, `
		UPDATE measurements
		SET customer_id = ?, order_id = ?, height = ?, shoulder_width = ?, sleeve_length = ?,
			chest_width = ?, waist_width = ?, neck_size = ?, arm_circumference = ?,
			thigh_circumference = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`, m.CustomerID, nullInt(m.OrderID), nullFloat(m.Height), nullFloat(m.ShoulderWidth), nullFloat(m.SleeveLength),
		nullFloat(m.ChestWidth), nullFloat(m.WaistWidth), nullFloat(m.NeckSize), nullFloat(m.ArmCircumference),
		nullFloat(m.ThighCircumference), nullString(m.Notes), FormatTime(m.UpdatedAt), m.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update measurement: %w", err)
	}
	return nil
}

func (r *measurementRepository) Delete(ctx context.Context, id int64) error {
	if err := execAffecting(ctx, r.db, `DELETE FROM measurements WHERE id = ?`, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete measurement: %w", err)
	}
	return nil
}

func scanMeasurement(scanner rowScanner, extra ...any) (*Measurement, error) {
	var (
		m                               Measurement
		orderID                         sql.NullInt64
		height, shoulder, sleeve, chest sql.NullFloat64
		waist, neck, arm, thigh         sql.NullFloat64
		notes                           sql.NullString
		createdAt, updatedAt            sql.NullString
	)
	dest := []any{
		&m.ID, &m.CustomerID, &orderID, &height, &shoulder, &sleeve,
		&chest, &waist, &neck, &arm, &thigh, &notes, &createdAt, &updatedAt,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	m.OrderID = intPtr(orderID)
	m.Height = floatPtr(height)
	m.ShoulderWidth = floatPtr(shoulder)
	m.SleeveLength = floatPtr(sleeve)
	m.ChestWidth = floatPtr(chest)
	m.WaistWidth = floatPtr(waist)
	m.NeckSize = floatPtr(neck)
	m.ArmCircumference = floatPtr(arm)
	m.ThighCircumference = floatPtr(thigh)
	m.Notes = notes.String

	var err error
	if m.CreatedAt, err = decodeStamp("measurements.created_at", createdAt); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = decodeStamp("measurements.updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}
