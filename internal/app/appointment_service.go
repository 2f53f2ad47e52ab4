package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tailorcrm/tailorcrm/internal/activity"
	"github.com/tailorcrm/tailorcrm/internal/storage"
)

const (
	AppointmentDateLayout = "2006-01-02"
	AppointmentTimeLayout = "15:04"
)

type AppointmentService struct {
	base
	appointments storage.AppointmentRepository
}

func NewAppointmentService(appointments storage.AppointmentRepository, opts ...Option) *AppointmentService {
	return &AppointmentService{base: newBase(opts...), appointments: appointments}
}

func (s *AppointmentService) Add(ctx context.Context, appointment storage.Appointment) (*storage.Appointment, error) {
	normalizeAppointment(&appointment)
	if appointment.Status == "" {
		appointment.Status = s.defaults.AppointmentStatus
	}
	if err := s.check(appointment); err != nil {
		return nil, s.fail(ctx, activity.EntityAppointment, "add", 0, err)
	}
	if err := s.appointments.Create(ctx, &appointment); err != nil {
		return nil, s.fail(ctx, activity.EntityAppointment, "add", 0, mapReferenceError(err, "customer", appointment.CustomerID, "add appointment"))
	}
	s.record(ctx, activity.EntityAppointment, activity.VerbCreate, appointment.ID, map[string]any{
		"customer_id": appointment.CustomerID,
		"date":        appointment.Date,
		"time":        appointment.Time,
	})
	return &appointment, nil
}

func (s *AppointmentService) GetAll(ctx context.Context, filter storage.AppointmentFilter) ([]storage.AppointmentSummary, error) {
	out, err := s.appointments.List(ctx, filter)
	if err != nil {
		return nil, s.fail(ctx, activity.EntityAppointment, "list", 0, fmt.Errorf("list appointments: %w", err))
	}
	return out, nil
}

// Today lists every appointment on now's calendar day, whatever its status.
func (s *AppointmentService) Today(ctx context.Context, now time.Time) ([]storage.AppointmentSummary, error) {
	return s.GetAll(ctx, storage.AppointmentFilter{Date: now.Format(AppointmentDateLayout)})
}

func (s *AppointmentService) Get(ctx context.Context, id int64) (*storage.Appointment, error) {
	if err := requireID(activity.EntityAppointment, id); err != nil {
		return nil, s.fail(ctx, activity.EntityAppointment, "get", id, err)
	}
	appointment, err := s.appointments.Get(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, activity.EntityAppointment, "get", id, fmt.Errorf("get appointment: %w", err))
	}
	return appointment, nil
}

func (s *AppointmentService) GetByCustomer(ctx context.Context, customerID int64) ([]storage.Appointment, error) {
	if err := requireID(activity.EntityCustomer, customerID); err != nil {
		return nil, s.fail(ctx, activity.EntityAppointment, "list by customer", customerID, err)
	}
	out, err := s.appointments.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, s.fail(ctx, activity.EntityAppointment, "list by customer", customerID, fmt.Errorf("list customer appointments: %w", err))
	}
	return out, nil
}

func (s *AppointmentService) Update(ctx context.Context, appointment storage.Appointment) (*storage.Appointment, error) {
	normalizeAppointment(&appointment)
	if err := requireID(activity.EntityAppointment, appointment.ID); err != nil {
		return nil, s.fail(ctx, activity.EntityAppointment, "update", appointment.ID, err)
	}
	if err := s.check(appointment); err != nil {
		return nil, s.fail(ctx, activity.EntityAppointment, "update", appointment.ID, err)
	}
	existing, err := s.appointments.Get(ctx, appointment.ID)
	if err != nil {
		return nil, s.fail(ctx, activity.EntityAppointment, "update", appointment.ID, fmt.Errorf("update appointment: load existing: %w", err))
	}
	if appointment.Status == "" {
		appointment.Status = existing.Status
	}
	appointment.CreatedAt = existing.CreatedAt

	if err := s.appointments.Update(ctx, &appointment); err != nil {
		return nil, s.fail(ctx, activity.EntityAppointment, "update", appointment.ID, mapReferenceError(err, "customer", appointment.CustomerID, "update appointment"))
	}
	s.record(ctx, activity.EntityAppointment, activity.VerbUpdate, appointment.ID, map[string]any{"status": appointment.Status})
	return &appointment, nil
}

func (s *AppointmentService) Delete(ctx context.Context, id int64) error {
	if err := requireID(activity.EntityAppointment, id); err != nil {
		return s.fail(ctx, activity.EntityAppointment, "delete", id, err)
	}
	if err := s.appointments.Delete(ctx, id); err != nil {
		return s.fail(ctx, activity.EntityAppointment, "delete", id, fmt.Errorf("delete appointment: %w", err))
	}
	s.record(ctx, activity.EntityAppointment, activity.VerbDelete, id, nil)
	return nil
}

func normalizeAppointment(appointment *storage.Appointment) {
	appointment.Date = strings.TrimSpace(appointment.Date)
	appointment.Time = strings.TrimSpace(appointment.Time)
	appointment.Purpose = strings.TrimSpace(appointment.Purpose)
	appointment.Status = strings.TrimSpace(appointment.Status)
	appointment.Notes = strings.TrimSpace(appointment.Notes)
}
