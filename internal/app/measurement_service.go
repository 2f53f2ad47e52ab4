package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/tailorcrm/tailorcrm/internal/activity"
	"github.com/tailorcrm/tailorcrm/internal/storage"
)

type MeasurementService struct {
	base
	measurements storage.MeasurementRepository
}

func NewMeasurementService(measurements storage.MeasurementRepository, opts ...Option) *MeasurementService {
	return &MeasurementService{base: newBase(opts...), measurements: measurements}
}

func (s *MeasurementService) Add(ctx context.Context, m storage.Measurement) (*storage.Measurement, error) {
	m.Notes = strings.TrimSpace(m.Notes)
	if err := s.check(m); err != nil {
		return nil, s.fail(ctx, activity.EntityMeasurement, "add", 0, err)
	}
	if err := s.measurements.Create(ctx, &m); err != nil {
		return nil, s.fail(ctx, activity.EntityMeasurement, "add", 0, mapReferenceError(err, "customer or order", m.CustomerID, "add measurement"))
	}
	s.record(ctx, activity.EntityMeasurement, activity.VerbCreate, m.ID, map[string]any{"customer_id": m.CustomerID})
	return &m, nil
}

func (s *MeasurementService) GetAll(ctx context.Context, filter storage.MeasurementFilter) ([]storage.MeasurementSummary, error) {
	out, err := s.measurements.List(ctx, filter)
	if err != nil {
		return nil, s.fail(ctx, activity.EntityMeasurement, "list", 0, fmt.Errorf("list measurements: %w", err))
	}
	return out, nil
}

func (s *MeasurementService) Get(ctx context.Context, id int64) (*storage.Measurement, error) {
	if err := requireID(activity.EntityMeasurement, id); err != nil {
		return nil, s.fail(ctx, activity.EntityMeasurement, "get", id, err)
	}
	m, err := s.measurements.Get(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, activity.EntityMeasurement, "get", id, fmt.Errorf("get measurement: %w", err))
	}
	return m, nil
}

func (s *MeasurementService) GetByCustomer(ctx context.Context, customerID int64) ([]storage.Measurement, error) {
	if err := requireID(activity.EntityCustomer, customerID); err != nil {
		return nil, s.fail(ctx, activity.EntityMeasurement, "list by customer", customerID, err)
	}
	out, err := s.measurements.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, s.fail(ctx, activity.EntityMeasurement, "list by customer", customerID, fmt.Errorf("list customer measurements: %w", err))
	}
	return out, nil
}

func (s *MeasurementService) Update(ctx context.Context, m storage.Measurement) (*storage.Measurement, error) {
	m.Notes = strings.TrimSpace(m.Notes)
	if err := requireID(activity.EntityMeasurement, m.ID); err != nil {
		return nil, s.fail(ctx, activity.EntityMeasurement, "update", m.ID, err)
	}
	if err := s.check(m); err != nil {
		return nil, s.fail(ctx, activity.EntityMeasurement, "update", m.ID, err)
	}
	existing, err := s.measurements.Get(ctx, m.ID)
	if err != nil {
		return nil, s.fail(ctx, activity.EntityMeasurement, "update", m.ID, fmt.Errorf("update measurement: load existing: %w", err))
	}
	m.CreatedAt = existing.CreatedAt

	if err := s.measurements.Update(ctx, &m); err != nil {
		return nil, s.fail(ctx, activity.EntityMeasurement, "update", m.ID, mapReferenceError(err, "customer or order", m.CustomerID, "update measurement"))
	}
	s.record(ctx, activity.EntityMeasurement, activity.VerbUpdate, m.ID, nil)
	return &m, nil
}

func (s *MeasurementService) Delete(ctx context.Context, id int64) error {
	if err := requireID(activity.EntityMeasurement, id); err != nil {
		return s.fail(ctx, activity.EntityMeasurement, "delete", id, err)
	}
	if err := s.measurements.Delete(ctx, id); err != nil {
		return s.fail(ctx, activity.EntityMeasurement, "delete", id, fmt.Errorf("delete measurement: %w", err))
	}
	s.record(ctx, activity.EntityMeasurement, activity.VerbDelete, id, nil)
	return nil
}
