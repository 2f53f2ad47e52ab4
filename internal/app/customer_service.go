package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/tailorcrm/tailorcrm/internal/activity"
	"github.com/tailorcrm/tailorcrm/internal/storage"
)

type CustomerService struct {
	base
	customers storage.CustomerRepository
}

func NewCustomerService(customers storage.CustomerRepository, opts ...Option) *CustomerService {
	return &CustomerService{base: newBase(opts...), customers: customers}
}

func (s *CustomerService) Add(ctx context.Context, customer storage.Customer) (*storage.Customer, error) {
	normalizeCustomer(&customer)
	if err := s.check(customer); err != nil {
		return nil, s.fail(ctx, activity.EntityCustomer, "add", 0, err)
	}

	if err := s.customers.Create(ctx, &customer); err != nil {
		return nil, s.fail(ctx, activity.EntityCustomer, "add", 0, s.mapWriteError(err, customer.Phone, "add customer"))
	}
	s.record(ctx, activity.EntityCustomer, activity.VerbCreate, customer.ID, map[string]any{"name": customer.Name})
	return &customer, nil
}

func (s *CustomerService) GetAll(ctx context.Context) ([]storage.Customer, error) {
	customers, err := s.customers.List(ctx)
	if err != nil {
		return nil, s.fail(ctx, activity.EntityCustomer, "list", 0, fmt.Errorf("list customers: %w", err))
	}
	return customers, nil
}

func (s *CustomerService) Get(ctx context.Context, id int64) (*storage.Customer, error) {
	if err := requireID(activity.EntityCustomer, id); err != nil {
		return nil, s.fail(ctx, activity.EntityCustomer, "get", id, err)
	}
	customer, err := s.customers.Get(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, activity.EntityCustomer, "get", id, fmt.Errorf("get customer: %w", err))
	}
	return customer, nil
}

// Search matches term against name, phone and address. A blank term lists
// every customer.
func (s *CustomerService) Search(ctx context.Context, term string) ([]storage.Customer, error) {
	if strings.TrimSpace(term) == "" {
		return s.GetAll(ctx)
	}
	customers, err := s.customers.Search(ctx, term)
	if err != nil {
		return nil, s.fail(ctx, activity.EntityCustomer, "search", 0, fmt.Errorf("search customers: %w", err))
	}
	return customers, nil
}

func (s *CustomerService) Update(ctx context.Context, customer storage.Customer) (*storage.Customer, error) {
	normalizeCustomer(&customer)
	if err := requireID(activity.EntityCustomer, customer.ID); err != nil {
		return nil, s.fail(ctx, activity.EntityCustomer, "update", customer.ID, err)
	}
	if err := s.check(customer); err != nil {
		return nil, s.fail(ctx, activity.EntityCustomer, "update", customer.ID, err)
	}

	existing, err := s.customers.Get(ctx, customer.ID)
	if err != nil {
		return nil, s.fail(ctx, activity.EntityCustomer, "update", customer.ID, fmt.Errorf("update customer: load existing: %w", err))
	}
	customer.CreatedAt = existing.CreatedAt

	if err := s.customers.Update(ctx, &customer); err != nil {
		return nil, s.fail(ctx, activity.EntityCustomer, "update", customer.ID, s.mapWriteError(err, customer.Phone, "update customer"))
	}
	s.record(ctx, activity.EntityCustomer, activity.VerbUpdate, customer.ID, map[string]any{"name": customer.Name})
	return &customer, nil
}

// Delete refuses while any order references the customer. Measurements and
// appointments go with the customer.
func (s *CustomerService) Delete(ctx context.Context, id int64) error {
	if err := requireID(activity.EntityCustomer, id); err != nil {
		return s.fail(ctx, activity.EntityCustomer, "delete", id, err)
	}

	orders, err := s.customers.CountOrders(ctx, id)
	if err != nil {
		return s.fail(ctx, activity.EntityCustomer, "delete", id, fmt.Errorf("delete customer: %w", err))
	}
	if orders > 0 {
		return s.fail(ctx, activity.EntityCustomer, "delete", id,
			fmt.Errorf("%w: customer %d has %d order(s)", ErrCustomerHasOrders, id, orders))
	}

	if err := s.customers.Delete(ctx, id); err != nil {
		if storage.IsForeignKeyViolation(err) {
			err = fmt.Errorf("%w: customer %d: %v", ErrCustomerHasOrders, id, err)
		}
		return s.fail(ctx, activity.EntityCustomer, "delete", id, fmt.Errorf("delete customer: %w", err))
	}
	s.record(ctx, activity.EntityCustomer, activity.VerbDelete, id, nil)
	return nil
}

func (s *CustomerService) mapWriteError(err error, phone, op string) error {
	if storage.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicatePhone, phone)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func normalizeCustomer(customer *storage.Customer) {
	customer.Name = strings.TrimSpace(customer.Name)
	customer.Phone = strings.TrimSpace(customer.Phone)
	customer.Address = strings.TrimSpace(customer.Address)
	customer.Email = strings.TrimSpace(customer.Email)
}
