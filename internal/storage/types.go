package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound     = errors.New("storage: not found")
	ErrSchemaTooNew = errors.New("storage: schema version newer than code")
	ErrConstraint   = errors.New("storage: constraint violation")
	ErrDecode       = errors.New("storage: decode row")
)

const (
	OrderStatusInProgress = "in progress"
	OrderStatusReady      = "ready"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"

	AppointmentStatusScheduled = "scheduled"
	AppointmentStatusCompleted = "completed"
	AppointmentStatusCancelled = "cancelled"

	PaymentMethodCash     = "cash"
	PaymentMethodCard     = "card"
	PaymentMethodTransfer = "transfer"
)

// Row is a generic result row keyed by column name.
type Row map[string]any

type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name" validate:"required"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Order struct {
	ID           int64           `json:"id"`
	CustomerID   int64           `json:"customer_id" validate:"required,gt=0"`
	OrderType    string          `json:"order_type" validate:"required"`
	Status       string          `json:"status"`
	OrderDate    time.Time       `json:"order_date"`
	DeliveryDate *time.Time      `json:"delivery_date,omitempty"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	PaidAmount   decimal.Decimal `json:"paid_amount"`
	Notes        string          `json:"notes,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Remaining is the outstanding balance. It is never persisted.
func (o Order) Remaining() decimal.Decimal {
	return o.TotalAmount.Sub(o.PaidAmount)
}

type OrderSummary struct {
	Order
	CustomerName string `json:"customer_name"`
}

type OrderFilter struct {
	CustomerID int64
	Status     string
}

type Measurement struct {
	ID                 int64     `json:"id"`
	CustomerID         int64     `json:"customer_id" validate:"required,gt=0"`
	OrderID            *int64    `json:"order_id,omitempty"`
	Height             *float64  `json:"height,omitempty"`
	ShoulderWidth      *float64  `json:"shoulder_width,omitempty"`
	SleeveLength       *float64  `json:"sleeve_length,omitempty"`
	ChestWidth         *float64  `json:"chest_width,omitempty"`
	WaistWidth         *float64  `json:"waist_width,omitempty"`
	NeckSize           *float64  `json:"neck_size,omitempty"`
	ArmCircumference   *float64  `json:"arm_circumference,omitempty"`
	ThighCircumference *float64  `json:"thigh_circumference,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type MeasurementSummary struct {
	Measurement
	CustomerName string `json:"customer_name"`
}

type MeasurementFilter struct {
	CustomerID int64
	OrderID    int64
}

type Appointment struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id" validate:"required,gt=0"`
	Date       string    `json:"date" validate:"required,datetime=2006-01-02"`
	Time       string    `json:"time" validate:"required,datetime=15:04"`
	Purpose    string    `json:"purpose" validate:"required"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type AppointmentSummary struct {
	Appointment
	CustomerName string `json:"customer_name"`
}

type AppointmentFilter struct {
	CustomerID int64
	Date       string
	Status     string
}

type Payment struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id" validate:"required,gt=0"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   time.Time       `json:"payment_date"`
	PaymentMethod string          `json:"payment_method"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type PaymentSummary struct {
	Payment
	CustomerName string `json:"customer_name"`
}

type PaymentFilter struct {
	OrderID int64
}

type ActivityEvent struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   int64     `json:"entity_id"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}

type ActivityFilter struct {
	Action     string
	EntityType string
	EntityID   int64
	Limit      int
}

type Dashboard struct {
	Customers         int64           `json:"customers"`
	Orders            int64           `json:"orders"`
	OpenOrders        int64           `json:"open_orders"`
	Revenue           decimal.Decimal `json:"revenue"`
	Outstanding       decimal.Decimal `json:"outstanding"`
	AppointmentsToday int64           `json:"appointments_today"`
}

type CustomerRepository interface {
	Create(ctx context.Context, customer *Customer) error
	Get(ctx context.Context, id int64) (*Customer, error)
	List(ctx context.Context) ([]Customer, error)
	Search(ctx context.Context, term string) ([]Customer, error)
	Update(ctx context.Context, customer *Customer) error
	Delete(ctx context.Context, id int64) error
	CountOrders(ctx context.Context, id int64) (int64, error)
}

type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	Get(ctx context.Context, id int64) (*Order, error)
	List(ctx context.Context, filter OrderFilter) ([]OrderSummary, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]Order, error)
	Update(ctx context.Context, order *Order) error
	SetPaidAmount(ctx context.Context, id int64, paid decimal.Decimal) error
	Delete(ctx context.Context, id int64) error
	DeleteWithPayments(ctx context.Context, id int64) (int64, error)
}

type MeasurementRepository interface {
	Create(ctx context.Context, measurement *Measurement) error
	Get(ctx context.Context, id int64) (*Measurement, error)
	List(ctx context.Context, filter MeasurementFilter) ([]MeasurementSummary, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]Measurement, error)
	Update(ctx context.Context, measurement *Measurement) error
	Delete(ctx context.Context, id int64) error
}

type AppointmentRepository interface {
	Create(ctx context.Context, appointment *Appointment) error
	Get(ctx context.Context, id int64) (*Appointment, error)
	List(ctx context.Context, filter AppointmentFilter) ([]AppointmentSummary, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]Appointment, error)
	Update(ctx context.Context, appointment *Appointment) error
	Delete(ctx context.Context, id int64) error
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	Get(ctx context.Context, id int64) (*Payment, error)
	List(ctx context.Context, filter PaymentFilter) ([]PaymentSummary, error)
	ListByOrder(ctx context.Context, orderID int64) ([]Payment, error)
	SumByOrder(ctx context.Context, orderID int64) (decimal.Decimal, error)
	Update(ctx context.Context, payment *Payment) error
	Delete(ctx context.Context, id int64) error
}

type ActivityRepository interface {
	Append(ctx context.Context, event *ActivityEvent) error
	List(ctx context.Context, filter ActivityFilter) ([]ActivityEvent, error)
}

type StatsRepository interface {
	Dashboard(ctx context.Context, day string) (Dashboard, error)
}
