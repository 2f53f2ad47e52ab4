package app

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/tailorcrm/tailorcrm/internal/activity"
)

var (
	ErrValidation        = errors.New("app: validation failed")
	ErrCustomerHasOrders = errors.New("app: customer has orders")
	ErrDuplicatePhone    = errors.New("app: duplicate phone")
)

// Recorder journals successful mutations. *activity.Service satisfies it.
type Recorder interface {
	Record(ctx context.Context, event activity.Event) error
}

type Balance struct {
	OrderID   int64           `json:"order_id"`
	Total     decimal.Decimal `json:"total"`
	Paid      decimal.Decimal `json:"paid"`
	Remaining decimal.Decimal `json:"remaining"`
	Payments  decimal.Decimal `json:"payments"`
}

type PaymentOptions struct {
	// SyncPaid rewrites the order's paid amount to the sum of its payments.
	SyncPaid bool
}

type OrderDeleteResult struct {
	OrderID         int64 `json:"order_id"`
	PaymentsRemoved int64 `json:"payments_removed"`
}
