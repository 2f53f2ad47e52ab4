package app

import (
	"context"
	"fmt"
	"time"

	"github.com/tailorcrm/tailorcrm/internal/storage"
)

type DashboardService struct {
	base
	stats        storage.StatsRepository
	appointments storage.AppointmentRepository
}

func NewDashboardService(stats storage.StatsRepository, appointments storage.AppointmentRepository, opts ...Option) *DashboardService {
	return &DashboardService{base: newBase(opts...), stats: stats, appointments: appointments}
}

type DashboardSummary struct {
	Day          string                       `json:"day"`
	Totals       storage.Dashboard            `json:"totals"`
	Appointments []storage.AppointmentSummary `json:"appointments"`
}

// Summary aggregates shop totals and the schedule for now's calendar day.
func (s *DashboardService) Summary(ctx context.Context, now time.Time) (*DashboardSummary, error) {
	day := now.Format(AppointmentDateLayout)
	totals, err := s.stats.Dashboard(ctx, day)
	if err != nil {
		return nil, s.fail(ctx, "dashboard", "summary", 0, fmt.Errorf("dashboard summary: %w", err))
	}
	appointments, err := s.appointments.List(ctx, storage.AppointmentFilter{Date: day})
	if err != nil {
		return nil, s.fail(ctx, "dashboard", "summary", 0, fmt.Errorf("dashboard appointments: %w", err))
	}
	return &DashboardSummary{Day: day, Totals: totals, Appointments: appointments}, nil
}
