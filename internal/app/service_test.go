package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/tailorcrm/tailorcrm/internal/activity"
	"github.com/tailorcrm/tailorcrm/internal/storage"
)

type fakeRecorder struct {
	mu     sync.Mutex
	events []activity.Event
	err    error
}

func (r *fakeRecorder) Record(_ context.Context, event activity.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *fakeRecorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.Action)
	}
	return out
}

func TestCustomerAddThenGetAllReturnsOneRecord(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAppTestServices(t)
	ctx := context.Background()

	added, err := svc.Customers.Add(ctx, storage.Customer{Name: "Ahmed", Phone: "0501234567"})
	require.NoError(t, err)
	require.Equal(t, int64(1), added.ID)

	customers, err := svc.Customers.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	require.Equal(t, "Ahmed", customers[0].Name)
	require.Equal(t, "0501234567", customers[0].Phone)
	require.NotZero(t, customers[0].ID)
	require.False(t, customers[0].CreatedAt.IsZero())
	require.False(t, customers[0].UpdatedAt.IsZero())
}

func TestCustomerAddValidatesRequiredName(t *testing.T) {
	t.Parallel()

	svc, _, logs := newAppTestServices(t)
	_, err := svc.Customers.Add(context.Background(), storage.Customer{Name: "   ", Phone: "0500000000"})
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "name is required")
	require.Contains(t, logs.String(), "customer add failed")
}

func TestCustomerAddRejectsDuplicatePhone(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAppTestServices(t)
	ctx := context.Background()

	_, err := svc.Customers.Add(ctx, storage.Customer{Name: "Ahmed", Phone: "0501234567"})
	require.NoError(t, err)
	_, err = svc.Customers.Add(ctx, storage.Customer{Name: "Other", Phone: "0501234567"})
	require.ErrorIs(t, err, ErrDuplicatePhone)
}

func TestCustomerSearchByPhoneSubstringReturnsAllAndOnlyMatches(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAppTestServices(t)
	ctx := context.Background()

	for _, c := range []storage.Customer{
		{Name: "Ahmed", Phone: "0501234567"},
		{Name: "Bilal", Phone: "0551234000"},
		{Name: "Celine", Phone: "0569990000"},
	} {
		_, err := svc.Customers.Add(ctx, c)
		require.NoError(t, err)
	}

	found, err := svc.Customers.Search(ctx, "1234")
	require.NoError(t, err)
	require.Len(t, found, 2)
	for _, c := range found {
		require.Contains(t, c.Phone, "1234")
	}

	all, err := svc.Customers.Search(ctx, "  ")
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestCustomerDeleteWithOrdersIsRefusedAndRecordKept(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAppTestServices(t)
	ctx := context.Background()

	customer, _ := seedOrder(t, svc, 500)

	err := svc.Customers.Delete(ctx, customer.ID)
	require.ErrorIs(t, err, ErrCustomerHasOrders)

	kept, err := svc.Customers.Get(ctx, customer.ID)
	require.NoError(t, err)
	require.Equal(t, customer.Name, kept.Name)
}

func TestCustomerDeleteWithoutOrdersRecordsActivity(t *testing.T) {
	t.Parallel()

	svc, recorder, _ := newAppTestServices(t)
	ctx := context.Background()

	customer, err := svc.Customers.Add(ctx, storage.Customer{Name: "Dina"})
	require.NoError(t, err)
	require.NoError(t, svc.Customers.Delete(ctx, customer.ID))

	_, err = svc.Customers.Get(ctx, customer.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.Equal(t, []string{"customer.create", "customer.delete"}, recorder.actions())
}

func TestCustomerUpdateKeepsCreatedAt(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAppTestServices(t)
	ctx := context.Background()

	added, err := svc.Customers.Add(ctx, storage.Customer{Name: "Eman"})
	require.NoError(t, err)

	updated, err := svc.Customers.Update(ctx, storage.Customer{ID: added.ID, Name: "Eman K", Address: "Old Town"})
	require.NoError(t, err)
	require.True(t, added.CreatedAt.Equal(updated.CreatedAt))

	loaded, err := svc.Customers.Get(ctx, added.ID)
	require.NoError(t, err)
	require.Equal(t, "Eman K", loaded.Name)
	require.Equal(t, "Old Town", loaded.Address)

	_, err = svc.Customers.Update(ctx, storage.Customer{ID: 999, Name: "ghost"})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNotFoundAndFailureAreDistinguishable(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAppTestServices(t)
	ctx := context.Background()

	_, err := svc.Orders.Get(ctx, 42)
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = svc.Orders.Get(ctx, 0)
	require.ErrorIs(t, err, ErrValidation)
	require.False(t, errors.Is(err, storage.ErrNotFound))
}

func TestOrderAddDefaultsAndRejectsUnknownCustomer(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAppTestServices(t)
	ctx := context.Background()

	_, order := seedOrder(t, svc, 500)
	require.Equal(t, storage.OrderStatusInProgress, order.Status)
	require.False(t, order.OrderDate.IsZero())

	_, err := svc.Orders.Add(ctx, storage.Order{CustomerID: 99, OrderType: "suit"})
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "customer 99 does not exist")

	_, err = svc.Orders.Add(ctx, storage.Order{CustomerID: 1})
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "order_type is required")

	_, err = svc.Orders.Add(ctx, storage.Order{CustomerID: 1, OrderType: "suit", TotalAmount: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, ErrValidation)
}

func TestOrderUpdateKeepsStatusWhenBlank(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAppTestServices(t)
	ctx := context.Background()

	_, order := seedOrder(t, svc, 500)
	order.Status = storage.OrderStatusReady
	_, err := svc.Orders.Update(ctx, *order)
	require.NoError(t, err)

	order.Status = "  "
	order.Notes = "hem shortened"
	updated, err := svc.Orders.Update(ctx, *order)
	require.NoError(t, err)
	require.Equal(t, storage.OrderStatusReady, updated.Status)

	loaded, err := svc.Orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, storage.OrderStatusReady, loaded.Status)
	require.Equal(t, "hem shortened", loaded.Notes)
}

func TestOrderAcceptsDeliveryBeforeOrderDate(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAppTestServices(t)
	ctx := context.Background()

	customer, err := svc.Customers.Add(ctx, storage.Customer{Name: "Iman"})
	require.NoError(t, err)
	delivery := time.Date(2026, 2, 20, 0, 0, 0, 0, time.Local)
	order, err := svc.Orders.Add(ctx, storage.Order{
		CustomerID:   customer.ID,
		OrderType:    "dress",
		OrderDate:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local),
		DeliveryDate: &delivery,
	})
	require.NoError(t, err)
	require.NotNil(t, order.DeliveryDate)
}

func TestOrderDeleteRemovesItsPaymentsOnly(t *testing.T) {
	t.Parallel()

	svc, recorder, _ := newAppTestServices(t)
	ctx := context.Background()

	customer, order := seedOrder(t, svc, 500)
	other, err := svc.Orders.Add(ctx, storage.Order{CustomerID: customer.ID, OrderType: "shirt", TotalAmount: decimal.NewFromInt(60)})
	require.NoError(t, err)

	for _, amount := range []int64{100, 200} {
		_, err := svc.Payments.Add(ctx, storage.Payment{OrderID: order.ID, Amount: decimal.NewFromInt(amount)}, PaymentOptions{})
		require.NoError(t, err)
	}
	_, err = svc.Payments.Add(ctx, storage.Payment{OrderID: other.ID, Amount: decimal.NewFromInt(60)}, PaymentOptions{})
	require.NoError(t, err)

	result, err := svc.Orders.Delete(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), result.PaymentsRemoved)

	_, err = svc.Orders.Get(ctx, order.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
	payments, err := svc.Payments.GetAll(ctx, storage.PaymentFilter{})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, other.ID, payments[0].OrderID)
	require.Contains(t, recorder.actions(), "order.delete")
}

func TestUpdatePaidAmountChangesOnlyPaidAmount(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAppTestServices(t)
	ctx := context.Background()

	_, order := seedOrder(t, svc, 500)
	before, err := svc.Orders.Get(ctx, order.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Orders.UpdatePaidAmount(ctx, order.ID, decimal.NewFromInt(150)))

	after, err := svc.Orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, "150", after.PaidAmount.String())
	require.Equal(t, before.TotalAmount.String(), after.TotalAmount.String())
	require.Equal(t, before.OrderType, after.OrderType)
	require.Equal(t, before.Status, after.Status)
	require.True(t, before.OrderDate.Equal(after.OrderDate))
	require.True(t, before.CreatedAt.Equal(after.CreatedAt))

	require.ErrorIs(t, svc.Orders.UpdatePaidAmount(ctx, order.ID, decimal.NewFromInt(-5)), ErrValidation)
}

func TestExampleScenarioBalanceAfterPayment(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAppTestServices(t)
	ctx := context.Background()

	customer, err := svc.Customers.Add(ctx, storage.Customer{Name: "Ahmed", Phone: "0501234567"})
	require.NoError(t, err)
	require.Equal(t, int64(1), customer.ID)

	order, err := svc.Orders.Add(ctx, storage.Order{CustomerID: customer.ID, OrderType: "suit", TotalAmount: decimal.NewFromInt(500)})
	require.NoError(t, err)
	require.Equal(t, int64(1), order.ID)

	_, err = svc.Payments.Add(ctx, storage.Payment{OrderID: order.ID, Amount: decimal.NewFromInt(200)}, PaymentOptions{})
	require.NoError(t, err)

	unsynced, err := svc.Orders.Balance(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, "0", unsynced.Paid.String())
	require.Equal(t, "200", unsynced.Payments.String())

	require.NoError(t, svc.Orders.UpdatePaidAmount(ctx, order.ID, unsynced.Payments))
	balance, err := svc.Orders.Balance(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, "500", balance.Total.String())
	require.Equal(t, "200", balance.Paid.String())
	require.Equal(t, "300", balance.Remaining.String())
}

func TestPaymentSyncPaidKeepsOrderInStep(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAppTestServices(t)
	ctx := context.Background()

	_, order := seedOrder(t, svc, 500)
	first, err := svc.Payments.Add(ctx, storage.Payment{OrderID: order.ID, Amount: decimal.NewFromInt(200)}, PaymentOptions{SyncPaid: true})
	require.NoError(t, err)
	require.Equal(t, storage.PaymentMethodCash, first.PaymentMethod)
	_, err = svc.Payments.Add(ctx, storage.Payment{OrderID: order.ID, Amount: decimal.NewFromInt(50), PaymentMethod: storage.PaymentMethodCard}, PaymentOptions{SyncPaid: true})
	require.NoError(t, err)

	balance, err := svc.Orders.Balance(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, "250", balance.Paid.String())
	require.Equal(t, "250", balance.Remaining.String())

	first.Amount = decimal.NewFromInt(100)
	_, err = svc.Payments.Update(ctx, *first, PaymentOptions{SyncPaid: true})
	require.NoError(t, err)
	balance, err = svc.Orders.Balance(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, "150", balance.Paid.String())

	require.NoError(t, svc.Payments.Delete(ctx, first.ID, PaymentOptions{SyncPaid: true}))
	balance, err = svc.Orders.Balance(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, "50", balance.Paid.String())
}

func TestFractionalPaymentsSettleOrderExactly(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAppTestServices(t)
	ctx := context.Background()

	customer, err := svc.Customers.Add(ctx, storage.Customer{Name: "Huda"})
	require.NoError(t, err)
	order, err := svc.Orders.Add(ctx, storage.Order{CustomerID: customer.ID, OrderType: "alteration", TotalAmount: decimal.RequireFromString("0.8")})
	require.NoError(t, err)

	for _, amount := range []string{"0.7", "0.1"} {
		_, err := svc.Payments.Add(ctx, storage.Payment{OrderID: order.ID, Amount: decimal.RequireFromString(amount)}, PaymentOptions{SyncPaid: true})
		require.NoError(t, err)
	}

	balance, err := svc.Orders.Balance(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, "0.8", balance.Paid.String())
	require.Equal(t, "0.8", balance.Payments.String())
	require.True(t, balance.Remaining.IsZero(), "remaining = %s", balance.Remaining)

	summary, err := svc.Dashboard.Summary(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, "0.8", summary.Totals.Revenue.String())
	require.True(t, summary.Totals.Outstanding.IsZero(), "outstanding = %s", summary.Totals.Outstanding)
}

func TestPaymentSyncPaidRollsBackOnUnknownOrder(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAppTestServices(t)
	ctx := context.Background()

	_, err := svc.Payments.Add(ctx, storage.Payment{OrderID: 77, Amount: decimal.NewFromInt(10)}, PaymentOptions{SyncPaid: true})
	require.ErrorIs(t, err, ErrValidation)

	payments, err := svc.Payments.GetAll(ctx, storage.PaymentFilter{})
	require.NoError(t, err)
	require.Empty(t, payments)
}

func TestPaymentAddRejectsNonPositiveAmount(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAppTestServices(t)
	ctx := context.Background()

	_, order := seedOrder(t, svc, 500)
	_, err := svc.Payments.Add(ctx, storage.Payment{OrderID: order.ID}, PaymentOptions{})
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.Payments.Add(ctx, storage.Payment{OrderID: order.ID, Amount: decimal.NewFromInt(-3)}, PaymentOptions{})
	require.ErrorIs(t, err, ErrValidation)
}

func TestMeasurementLifecycle(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAppTestServices(t)
	ctx := context.Background()

	customer, order := seedOrder(t, svc, 500)
	chest := 101.5
	m, err := svc.Measurements.Add(ctx, storage.Measurement{CustomerID: customer.ID, OrderID: &order.ID, ChestWidth: &chest})
	require.NoError(t, err)

	byCustomer, err := svc.Measurements.GetByCustomer(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, byCustomer, 1)

	waist := 88.0
	m.WaistWidth = &waist
	_, err = svc.Measurements.Update(ctx, *m)
	require.NoError(t, err)

	loaded, err := svc.Measurements.Get(ctx, m.ID)
	require.NoError(t, err)
	require.InDelta(t, 88.0, *loaded.WaistWidth, 0.0001)
	require.InDelta(t, 101.5, *loaded.ChestWidth, 0.0001)

	require.NoError(t, svc.Measurements.Delete(ctx, m.ID))
	require.ErrorIs(t, svc.Measurements.Delete(ctx, m.ID), storage.ErrNotFound)

	_, err = svc.Measurements.Add(ctx, storage.Measurement{})
	require.ErrorIs(t, err, ErrValidation)
}

func TestAppointmentValidationAndToday(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAppTestServices(t)
	ctx := context.Background()

	customer, err := svc.Customers.Add(ctx, storage.Customer{Name: "Farah"})
	require.NoError(t, err)

	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local)
	_, err = svc.Appointments.Add(ctx, storage.Appointment{CustomerID: customer.ID, Date: "2026-03-02", Time: "15:30", Purpose: "fitting"})
	require.NoError(t, err)
	_, err = svc.Appointments.Add(ctx, storage.Appointment{CustomerID: customer.ID, Date: "2026-03-05", Time: "10:00", Purpose: "pickup"})
	require.NoError(t, err)

	_, err = svc.Appointments.Add(ctx, storage.Appointment{CustomerID: customer.ID, Date: "02/03/2026", Time: "10:00", Purpose: "x"})
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "date must match")
	_, err = svc.Appointments.Add(ctx, storage.Appointment{CustomerID: customer.ID, Date: "2026-03-02", Time: "25:00", Purpose: "x"})
	require.ErrorIs(t, err, ErrValidation)

	today, err := svc.Appointments.Today(ctx, now)
	require.NoError(t, err)
	require.Len(t, today, 1)
	require.Equal(t, "fitting", today[0].Purpose)
	require.Equal(t, "Farah", today[0].CustomerName)

	appointment := today[0].Appointment
	appointment.Status = storage.AppointmentStatusCompleted
	_, err = svc.Appointments.Update(ctx, appointment)
	require.NoError(t, err)

	today, err = svc.Appointments.Today(ctx, now)
	require.NoError(t, err)
	require.Len(t, today, 1)
	require.Equal(t, storage.AppointmentStatusCompleted, today[0].Status)

	summary, err := svc.Dashboard.Summary(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), summary.Totals.AppointmentsToday)
	require.Len(t, summary.Appointments, 1)
}

func TestDashboardSummary(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAppTestServices(t)
	ctx := context.Background()

	customer, order := seedOrder(t, svc, 500)
	_, err := svc.Payments.Add(ctx, storage.Payment{OrderID: order.ID, Amount: decimal.NewFromInt(120)}, PaymentOptions{SyncPaid: true})
	require.NoError(t, err)
	_, err = svc.Appointments.Add(ctx, storage.Appointment{CustomerID: customer.ID, Date: "2026-03-02", Time: "11:00", Purpose: "fitting"})
	require.NoError(t, err)

	summary, err := svc.Dashboard.Summary(ctx, time.Date(2026, 3, 2, 8, 0, 0, 0, time.Local))
	require.NoError(t, err)
	require.Equal(t, "2026-03-02", summary.Day)
	require.Equal(t, int64(1), summary.Totals.Customers)
	require.Equal(t, int64(1), summary.Totals.Orders)
	require.Equal(t, "120", summary.Totals.Revenue.String())
	require.Equal(t, "380", summary.Totals.Outstanding.String())
	require.Equal(t, int64(1), summary.Totals.AppointmentsToday)
	require.Len(t, summary.Appointments, 1)
}

func TestActivityFailureDoesNotFailMutation(t *testing.T) {
	t.Parallel()

	store := newAppTestStore(t)
	var logs bytes.Buffer
	recorder := &fakeRecorder{err: errors.New("journal offline")}
	svc := NewServices(store,
		WithRecorder(recorder),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)

	customer, err := svc.Customers.Add(context.Background(), storage.Customer{Name: "Ghada"})
	require.NoError(t, err)
	require.NotZero(t, customer.ID)
	require.Contains(t, logs.String(), "activity record failed")
}

func TestActivityServiceWiresAsRecorder(t *testing.T) {
	t.Parallel()

	store := newAppTestStore(t)
	journal, err := activity.NewService(store.Activity)
	require.NoError(t, err)
	svc := NewServices(store, WithRecorder(journal))

	ctx := context.Background()
	customer, err := svc.Customers.Add(ctx, storage.Customer{Name: "Hiba", Phone: "0509998877"})
	require.NoError(t, err)

	events, err := journal.List(ctx, activity.Filter{EntityType: activity.EntityCustomer})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, customer.ID, events[0].EntityID)
	require.Equal(t, `{"name":"Hiba"}`, events[0].DetailsJSON)
}

func seedOrder(t *testing.T, svc *Services, total int64) (*storage.Customer, *storage.Order) {
	t.Helper()
	ctx := context.Background()
	customer, err := svc.Customers.Add(ctx, storage.Customer{Name: "Ahmed", Phone: "0501234567"})
	require.NoError(t, err)
	order, err := svc.Orders.Add(ctx, storage.Order{CustomerID: customer.ID, OrderType: "suit", TotalAmount: decimal.NewFromInt(total)})
	require.NoError(t, err)
	return customer, order
}

func newAppTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "crm.db"), storage.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

func newAppTestServices(t *testing.T) (*Services, *fakeRecorder, *bytes.Buffer) {
	t.Helper()
	store := newAppTestStore(t)
	recorder := &fakeRecorder{}
	logs := &bytes.Buffer{}
	svc := NewServices(store,
		WithRecorder(recorder),
		WithLogger(slog.New(slog.NewTextHandler(logs, nil))),
	)
	return svc, recorder, logs
}
