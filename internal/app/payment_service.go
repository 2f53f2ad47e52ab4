package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/tailorcrm/tailorcrm/internal/activity"
	"github.com/tailorcrm/tailorcrm/internal/storage"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(repos storage.Repos) error) error
}

type PaymentService struct {
	base
	tx       txRunner
	payments storage.PaymentRepository
	orders   storage.OrderRepository
}

func NewPaymentService(tx txRunner, payments storage.PaymentRepository, orders storage.OrderRepository, opts ...Option) *PaymentService {
	return &PaymentService{base: newBase(opts...), tx: tx, payments: payments, orders: orders}
}

func (s *PaymentService) Add(ctx context.Context, payment storage.Payment, opts PaymentOptions) (*storage.Payment, error) {
	normalizePayment(&payment)
	if payment.PaymentMethod == "" {
		payment.PaymentMethod = s.defaults.PaymentMethod
	}
	if err := s.validatePayment(payment); err != nil {
		return nil, s.fail(ctx, activity.EntityPayment, "add", 0, err)
	}

	err := s.mutate(ctx, opts, payment.OrderID, func(payments storage.PaymentRepository) error {
		return payments.Create(ctx, &payment)
	})
	if err != nil {
		return nil, s.fail(ctx, activity.EntityPayment, "add", 0, mapReferenceError(err, "order", payment.OrderID, "add payment"))
	}
	s.record(ctx, activity.EntityPayment, activity.VerbCreate, payment.ID, map[string]any{
		"order_id": payment.OrderID,
		"amount":   payment.Amount.String(),
		"method":   payment.PaymentMethod,
	})
	return &payment, nil
}

func (s *PaymentService) GetAll(ctx context.Context, filter storage.PaymentFilter) ([]storage.PaymentSummary, error) {
	out, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, s.fail(ctx, activity.EntityPayment, "list", 0, fmt.Errorf("list payments: %w", err))
	}
	return out, nil
}

func (s *PaymentService) Get(ctx context.Context, id int64) (*storage.Payment, error) {
	if err := requireID(activity.EntityPayment, id); err != nil {
		return nil, s.fail(ctx, activity.EntityPayment, "get", id, err)
	}
	payment, err := s.payments.Get(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, activity.EntityPayment, "get", id, fmt.Errorf("get payment: %w", err))
	}
	return payment, nil
}

func (s *PaymentService) GetByOrder(ctx context.Context, orderID int64) ([]storage.Payment, error) {
	if err := requireID(activity.EntityOrder, orderID); err != nil {
		return nil, s.fail(ctx, activity.EntityPayment, "list by order", orderID, err)
	}
	out, err := s.payments.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, s.fail(ctx, activity.EntityPayment, "list by order", orderID, fmt.Errorf("list order payments: %w", err))
	}
	return out, nil
}

func (s *PaymentService) Update(ctx context.Context, payment storage.Payment, opts PaymentOptions) (*storage.Payment, error) {
	normalizePayment(&payment)
	if err := requireID(activity.EntityPayment, payment.ID); err != nil {
		return nil, s.fail(ctx, activity.EntityPayment, "update", payment.ID, err)
	}
	if err := s.validatePayment(payment); err != nil {
		return nil, s.fail(ctx, activity.EntityPayment, "update", payment.ID, err)
	}
	existing, err := s.payments.Get(ctx, payment.ID)
	if err != nil {
		return nil, s.fail(ctx, activity.EntityPayment, "update", payment.ID, fmt.Errorf("update payment: load existing: %w", err))
	}
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = existing.PaymentDate
	}
	if payment.PaymentMethod == "" {
		payment.PaymentMethod = existing.PaymentMethod
	}
	payment.CreatedAt = existing.CreatedAt

	err = s.mutate(ctx, opts, payment.OrderID, func(payments storage.PaymentRepository) error {
		return payments.Update(ctx, &payment)
	}, existing.OrderID)
	if err != nil {
		return nil, s.fail(ctx, activity.EntityPayment, "update", payment.ID, mapReferenceError(err, "order", payment.OrderID, "update payment"))
	}
	s.record(ctx, activity.EntityPayment, activity.VerbUpdate, payment.ID, map[string]any{"amount": payment.Amount.String()})
	return &payment, nil
}

func (s *PaymentService) Delete(ctx context.Context, id int64, opts PaymentOptions) error {
	if err := requireID(activity.EntityPayment, id); err != nil {
		return s.fail(ctx, activity.EntityPayment, "delete", id, err)
	}
	existing, err := s.payments.Get(ctx, id)
	if err != nil {
		return s.fail(ctx, activity.EntityPayment, "delete", id, fmt.Errorf("delete payment: %w", err))
	}
	err = s.mutate(ctx, opts, existing.OrderID, func(payments storage.PaymentRepository) error {
		return payments.Delete(ctx, id)
	})
	if err != nil {
		return s.fail(ctx, activity.EntityPayment, "delete", id, fmt.Errorf("delete payment: %w", err))
	}
	s.record(ctx, activity.EntityPayment, activity.VerbDelete, id, map[string]any{"order_id": existing.OrderID})
	return nil
}

// mutate runs change directly, or with SyncPaid inside one transaction that
// also rewrites paid_amount of every touched order to its payment sum.
func (s *PaymentService) mutate(ctx context.Context, opts PaymentOptions, orderID int64, change func(storage.PaymentRepository) error, alsoSync ...int64) error {
	if !opts.SyncPaid || s.tx == nil {
		return change(s.payments)
	}
	return s.tx.WithTx(ctx, func(repos storage.Repos) error {
		if err := change(repos.Payments); err != nil {
			return err
		}
		seen := map[int64]bool{}
		for _, id := range append([]int64{orderID}, alsoSync...) {
			if seen[id] {
				continue
			}
			seen[id] = true
			sum, err := repos.Payments.SumByOrder(ctx, id)
			if err != nil {
				return err
			}
			if err := repos.Orders.SetPaidAmount(ctx, id, sum); err != nil {
				return fmt.Errorf("sync paid amount for order %d: %w", id, err)
			}
		}
		return nil
	})
}

func (s *PaymentService) validatePayment(payment storage.Payment) error {
	if err := s.check(payment); err != nil {
		return err
	}
	if !payment.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	return nil
}

func normalizePayment(payment *storage.Payment) {
	payment.PaymentMethod = strings.TrimSpace(payment.PaymentMethod)
	payment.Notes = strings.TrimSpace(payment.Notes)
}
