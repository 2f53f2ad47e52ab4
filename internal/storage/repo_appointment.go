package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

const appointmentColumns = `a.id, a.customer_id, a.date, a.time, a.purpose, a.status, a.notes, a.created_at, a.updated_at`

type appointmentRepository struct {
	db dbtx
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *Appointment) error {
	if appointment == nil {
		return fmt.Errorf("create appointment: appointment is nil")
	}
	if appointment.CustomerID == 0 {
		return fmt.Errorf("create appointment: customer id is required")
	}
	if strings.TrimSpace(appointment.Date) == "" || strings.TrimSpace(appointment.Time) == "" {
		return fmt.Errorf("create appointment: date and time are required")
	}
	if strings.TrimSpace(appointment.Purpose) == "" {
		return fmt.Errorf("create appointment: purpose is required")
	}

	now := nowLocal()
	if strings.TrimSpace(appointment.Status) == "" {
		appointment.Status = AppointmentStatusScheduled
	}
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	id, err := insertRow(ctx, r.db, `
		INSERT INTO appointments(customer_id, date, time, purpose, status, notes, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, appointment.CustomerID, appointment.Date, appointment.Time, appointment.Purpose, appointment.Status,
		nullString(appointment.Notes), FormatTime(appointment.CreatedAt), FormatTime(appointment.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}
	appointment.ID = id
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id int64) (*Appointment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments a WHERE a.id = ?`, id)
	appointment, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appointment, nil
}

// List returns appointments in calendar order with the customer's name.
func (r *appointmentRepository) List(ctx context.Context, filter AppointmentFilter) ([]AppointmentSummary, error) {
	query := builder.Select(appointmentColumns, "c.name").
		From("appointments a").
		Join("customers c ON a.customer_id = c.id").
		OrderBy("a.date ASC", "a.time ASC", "a.id ASC")
	if filter.CustomerID != 0 {
		query = query.Where(sq.Eq{"a.customer_id": filter.CustomerID})
	}
	if filter.Date != "" {
		query = query.Where(sq.Eq{"a.date": filter.Date})
	}
	if filter.Status != "" {
		query = query.Where(sq.Eq{"a.status": filter.Status})
	}

	rows, err := queryBuilt(ctx, r.db, query)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []AppointmentSummary{}
	for rows.Next() {
		var name string
		appointment, err := scanAppointment(rows, &name)
		if err != nil {
			return nil, fmt.Errorf("list appointments: %w", err)
		}
		out = append(out, AppointmentSummary{Appointment: *appointment, CustomerName: name})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list appointments: iterate: %w", err)
	}
	return out, nil
}

func (r *appointmentRepository) ListByCustomer(ctx context.Context, customerID int64) ([]Appointment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		WHERE a.customer_id = ?
		ORDER BY a.date ASC, a.time ASC, a.id ASC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by customer: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []Appointment{}
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("list appointments by customer: %w", err)
		}
		out = append(out, *appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list appointments by customer: iterate: %w", err)
	}
	return out, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *Appointment) error {
	if appointment == nil {
		return fmt.Errorf("update appointment: appointment is nil")
	}
	if appointment.ID == 0 {
		return fmt.Errorf("update appointment: id is required")
	}
	appointment.UpdatedAt = nowLocal()

	err := execAffecting(ctx, r.db, `
		UPDATE appointments
		SET customer_id = ?, date = ?, time = ?, purpose = ?, status = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`, appointment.CustomerID, appointment.Date, appointment.Time, appointment.Purpose, appointment.Status,
		nullString(appointment.Notes), FormatTime(appointment.UpdatedAt), appointment.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Delete(ctx context.Context, id int64) error {
	if err := execAffecting(ctx, r.db, `DELETE FROM appointments WHERE id = ?`, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete appointment: %w", err)
	}
	return nil
}

func scanAppointment(scanner rowScanner, extra ...any) (*Appointment, error) {
	var (
		appointment Appointment
		status      sql.NullString
		notes       sql.NullString
		createdAt   sql.NullString
		updatedAt   sql.NullString
	)
	dest := []any{
		&appointment.ID, &appointment.CustomerID, &appointment.Date, &appointment.Time, &appointment.Purpose,
		&status, &notes, &createdAt, &updatedAt,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	appointment.Status = status.String
	appointment.Notes = notes.String

	var err error
	if appointment.CreatedAt, err = decodeStamp("appointments.created_at", createdAt); err != nil {
		return nil, err
	}
	if appointment.UpdatedAt, err = decodeStamp("appointments.updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &appointment, nil
}
