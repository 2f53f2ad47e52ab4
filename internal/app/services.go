package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tailorcrm/tailorcrm/internal/activity"
	"github.com/tailorcrm/tailorcrm/internal/storage"
)

// Services bundles one service per entity over a single store.
type Services struct {
	Customers    *CustomerService
	Orders       *OrderService
	Measurements *MeasurementService
	Appointments *AppointmentService
	Payments     *PaymentService
	Dashboard    *DashboardService
}

type Option func(*base)

func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func WithRecorder(recorder Recorder) Option {
	return func(b *base) {
		b.recorder = recorder
	}
}

// Defaults fill blank status and method fields on create.
type Defaults struct {
	OrderStatus       string
	AppointmentStatus string
	PaymentMethod     string
}

func WithDefaults(d Defaults) Option {
	return func(b *base) {
		if d.OrderStatus != "" {
			b.defaults.OrderStatus = d.OrderStatus
		}
		if d.AppointmentStatus != "" {
			b.defaults.AppointmentStatus = d.AppointmentStatus
		}
		if d.PaymentMethod != "" {
			b.defaults.PaymentMethod = d.PaymentMethod
		}
	}
}

func NewServices(store *storage.Store, opts ...Option) *Services {
	b := newBase(opts...)
	return &Services{
		Customers:    &CustomerService{base: b, customers: store.Customers},
		Orders:       &OrderService{base: b, orders: store.Orders, payments: store.Payments},
		Measurements: &MeasurementService{base: b, measurements: store.Measurements},
		Appointments: &AppointmentService{base: b, appointments: store.Appointments},
		Payments:     &PaymentService{base: b, tx: store, payments: store.Payments, orders: store.Orders},
		Dashboard:    &DashboardService{base: b, stats: store.Stats, appointments: store.Appointments},
	}
}

// base carries what every service shares: the boundary logger, the activity
// recorder and the struct validator.
type base struct {
	logger   *slog.Logger
	recorder Recorder
	validate *validator.Validate
	defaults Defaults
}

func newBase(opts ...Option) base {
	b := base{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		defaults: Defaults{
			OrderStatus:       storage.OrderStatusInProgress,
			AppointmentStatus: storage.AppointmentStatusScheduled,
			PaymentMethod:     storage.PaymentMethodCash,
		},
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b base) check(record any) error {
	if err := b.validate.Struct(record); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, describeFieldError(fe))
			}
			return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	field := toSnake(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gt":
		return field + " must be greater than " + fe.Param()
	case "datetime":
		return field + " must match " + fe.Param()
	default:
		return field + " failed " + fe.Tag()
	}
}

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func requireID(entity string, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s id must be positive", ErrValidation, entity)
	}
	return nil
}

// fail logs err at the service boundary and returns it unchanged.
func (b base) fail(ctx context.Context, entity, op string, id int64, err error) error {
	level := slog.LevelError
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrCustomerHasOrders) || errors.Is(err, ErrDuplicatePhone) {
		level = slog.LevelWarn
	}
	b.logger.Log(ctx, level, entity+" "+op+" failed",
		slog.String("entity", entity),
		slog.String("op", op),
		slog.Int64("id", id),
		slog.String("error", err.Error()),
	)
	return err
}

// record journals a mutation. A journal failure is logged, never returned.
func (b base) record(ctx context.Context, entity, verb string, id int64, details any) {
	if b.recorder == nil {
		return
	}
	err := b.recorder.Record(ctx, activity.Event{
		Action:     activity.Action(entity, verb),
		EntityType: entity,
		EntityID:   id,
		Details:    details,
	})
	if err != nil {
		b.logger.WarnContext(ctx, "activity record failed",
			slog.String("action", activity.Action(entity, verb)),
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
	}
}
