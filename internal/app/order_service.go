package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tailorcrm/tailorcrm/internal/activity"
	"github.com/tailorcrm/tailorcrm/internal/storage"
)

type OrderService struct {
	base
	orders   storage.OrderRepository
	payments storage.PaymentRepository
}

func NewOrderService(orders storage.OrderRepository, payments storage.PaymentRepository, opts ...Option) *OrderService {
	return &OrderService{base: newBase(opts...), orders: orders, payments: payments}
}

func (s *OrderService) Add(ctx context.Context, order storage.Order) (*storage.Order, error) {
	normalizeOrder(&order)
	if order.Status == "" {
		order.Status = s.defaults.OrderStatus
	}
	if err := s.validateOrder(order); err != nil {
		return nil, s.fail(ctx, activity.EntityOrder, "add", 0, err)
	}

	if err := s.orders.Create(ctx, &order); err != nil {
		return nil, s.fail(ctx, activity.EntityOrder, "add", 0, mapReferenceError(err, "customer", order.CustomerID, "add order"))
	}
	s.record(ctx, activity.EntityOrder, activity.VerbCreate, order.ID, map[string]any{
		"customer_id": order.CustomerID,
		"order_type":  order.OrderType,
		"total":       order.TotalAmount.String(),
	})
	return &order, nil
}

// GetAll lists orders newest first with the owning customer's name.
func (s *OrderService) GetAll(ctx context.Context, filter storage.OrderFilter) ([]storage.OrderSummary, error) {
	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, s.fail(ctx, activity.EntityOrder, "list", 0, fmt.Errorf("list orders: %w", err))
	}
	return orders, nil
}

func (s *OrderService) Get(ctx context.Context, id int64) (*storage.Order, error) {
	if err := requireID(activity.EntityOrder, id); err != nil {
		return nil, s.fail(ctx, activity.EntityOrder, "get", id, err)
	}
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, activity.EntityOrder, "get", id, fmt.Errorf("get order: %w", err))
	}
	return order, nil
}

func (s *OrderService) GetByCustomer(ctx context.Context, customerID int64) ([]storage.Order, error) {
	if err := requireID(activity.EntityCustomer, customerID); err != nil {
		return nil, s.fail(ctx, activity.EntityOrder, "list by customer", customerID, err)
	}
	orders, err := s.orders.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, s.fail(ctx, activity.EntityOrder, "list by customer", customerID, fmt.Errorf("list customer orders: %w", err))
	}
	return orders, nil
}

func (s *OrderService) Update(ctx context.Context, order storage.Order) (*storage.Order, error) {
	normalizeOrder(&order)
	if err := requireID(activity.EntityOrder, order.ID); err != nil {
		return nil, s.fail(ctx, activity.EntityOrder, "update", order.ID, err)
	}
	if err := s.validateOrder(order); err != nil {
		return nil, s.fail(ctx, activity.EntityOrder, "update", order.ID, err)
	}

	existing, err := s.orders.Get(ctx, order.ID)
	if err != nil {
		return nil, s.fail(ctx, activity.EntityOrder, "update", order.ID, fmt.Errorf("update order: load existing: %w", err))
	}
	if order.OrderDate.IsZero() {
		order.OrderDate = existing.OrderDate
	}
	if order.Status == "" {
		order.Status = existing.Status
	}
	order.CreatedAt = existing.CreatedAt

	if err := s.orders.Update(ctx, &order); err != nil {
		return nil, s.fail(ctx, activity.EntityOrder, "update", order.ID, mapReferenceError(err, "customer", order.CustomerID, "update order"))
	}
	s.record(ctx, activity.EntityOrder, activity.VerbUpdate, order.ID, map[string]any{"status": order.Status})
	return &order, nil
}

// UpdatePaidAmount changes only the paid amount and the update stamp.
func (s *OrderService) UpdatePaidAmount(ctx context.Context, id int64, paid decimal.Decimal) error {
	if err := requireID(activity.EntityOrder, id); err != nil {
		return s.fail(ctx, activity.EntityOrder, "update paid amount", id, err)
	}
	if paid.IsNegative() {
		return s.fail(ctx, activity.EntityOrder, "update paid amount", id,
			fmt.Errorf("%w: paid amount must not be negative", ErrValidation))
	}
	if err := s.orders.SetPaidAmount(ctx, id, paid); err != nil {
		return s.fail(ctx, activity.EntityOrder, "update paid amount", id, fmt.Errorf("update paid amount: %w", err))
	}
	s.record(ctx, activity.EntityOrder, activity.VerbPaid, id, map[string]any{"paid": paid.String()})
	return nil
}

// Delete removes the order's payments and then the order in one transaction.
func (s *OrderService) Delete(ctx context.Context, id int64) (OrderDeleteResult, error) {
	if err := requireID(activity.EntityOrder, id); err != nil {
		return OrderDeleteResult{}, s.fail(ctx, activity.EntityOrder, "delete", id, err)
	}
	removed, err := s.orders.DeleteWithPayments(ctx, id)
	if err != nil {
		return OrderDeleteResult{}, s.fail(ctx, activity.EntityOrder, "delete", id, fmt.Errorf("delete order: %w", err))
	}
	s.record(ctx, activity.EntityOrder, activity.VerbDelete, id, map[string]any{"payments_removed": removed})
	return OrderDeleteResult{OrderID: id, PaymentsRemoved: removed}, nil
}

// Balance reports the stored paid amount next to the sum of recorded
// payments; the two drift when payments are added without syncing.
func (s *OrderService) Balance(ctx context.Context, id int64) (Balance, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	sum, err := s.payments.SumByOrder(ctx, id)
	if err != nil {
		return Balance{}, s.fail(ctx, activity.EntityOrder, "balance", id, fmt.Errorf("order balance: %w", err))
	}
	return Balance{
		OrderID:   order.ID,
		Total:     order.TotalAmount,
		Paid:      order.PaidAmount,
		Remaining: order.Remaining(),
		Payments:  sum,
	}, nil
}

func (s *OrderService) validateOrder(order storage.Order) error {
	if err := s.check(order); err != nil {
		return err
	}
	if order.TotalAmount.IsNegative() || order.PaidAmount.IsNegative() {
		return fmt.Errorf("%w: amounts must not be negative", ErrValidation)
	}
	return nil
}

func normalizeOrder(order *storage.Order) {
	order.OrderType = strings.TrimSpace(order.OrderType)
	order.Status = strings.TrimSpace(order.Status)
	order.Notes = strings.TrimSpace(order.Notes)
}

// mapReferenceError turns a foreign-key failure on a parent reference into
// ErrValidation naming the missing parent.
func mapReferenceError(err error, parent string, parentID int64, op string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if storage.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: %s %d does not exist", ErrValidation, parent, parentID)
	}
	return fmt.Errorf("%s: %w", op, err)
}
