package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestRunMigrationsAppliesAllSequentially(t *testing.T) {
	t.Parallel()

	db := openRawTestDB(t)
	defer closeNoErr(t, db)

	err := RunMigrations(context.Background(), db, DefaultMigrations())
	require.NoError(t, err)

	require.Equal(t, CurrentSchemaVersion(), mustSchemaVersion(t, db))

	expected := []string{
		"crm_meta",
		"schema_migrations",
		"customers",
		"orders",
		"measurements",
		"appointments",
		"payments",
		"activity_log",
	}
	for _, table := range expected {
		require.Truef(t, tableExists(t, db, table), "expected table %s to exist", table)
	}
}

func TestRunMigrationsIsAtomic(t *testing.T) {
	t.Parallel()

	db := openRawTestDB(t)
	defer closeNoErr(t, db)

	migrations := []Migration{
		{
			Version:     1,
			Description: "create a",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`CREATE TABLE test_a (id INTEGER PRIMARY KEY)`)
				return err
			},
		},
		{
			Version:     2,
			Description: "create b then fail",
			Up: func(tx *sql.Tx) error {
				if _, err := tx.Exec(`CREATE TABLE test_b (id INTEGER PRIMARY KEY)`); err != nil {
					return err
				}
				return errors.New("boom")
			},
		},
	}

	err := RunMigrations(context.Background(), db, migrations)
	require.Error(t, err)
	require.Equal(t, 1, mustSchemaVersion(t, db))
	require.True(t, tableExists(t, db, "test_a"))
	require.False(t, tableExists(t, db, "test_b"))
}

func TestInitializeIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	customer := &Customer{Name: "Ahmed", Phone: "0501234567"}
	require.NoError(t, store.Customers.Create(ctx, customer))
	before := countTables(t, store.DB())

	require.NoError(t, store.Initialize(ctx))
	require.NoError(t, store.Initialize(ctx))

	require.Equal(t, before, countTables(t, store.DB()))
	customers, err := store.Customers.List(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	require.Equal(t, customer.ID, customers[0].ID)
}

func TestOpenRefusesNewerSchemaVersion(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "crm.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	require.NoError(t, RunMigrations(context.Background(), db, DefaultMigrations()))
	_, err = db.Exec(`UPDATE crm_meta SET value = ? WHERE key = 'schema_version'`, CurrentSchemaVersion()+1)
	require.NoError(t, err)
	closeNoErr(t, db)

	store, err := Open(path, Options{})
	if store != nil {
		t.Cleanup(func() { _ = store.Close() })
	}
	require.ErrorIs(t, err, ErrSchemaTooNew)
}

func TestCustomerCreateAndListReturnsStampedRecord(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	customer := &Customer{Name: "Ahmed", Phone: "0501234567"}
	require.NoError(t, store.Customers.Create(ctx, customer))
	require.NotZero(t, customer.ID)

	customers, err := store.Customers.List(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 1)
	got := customers[0]
	require.Equal(t, customer.ID, got.ID)
	require.Equal(t, "Ahmed", got.Name)
	require.Equal(t, "0501234567", got.Phone)
	require.False(t, got.CreatedAt.IsZero())
	require.False(t, got.UpdatedAt.IsZero())
}

func TestCustomerCRUD(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	customer := &Customer{Name: "Sara", Phone: "0551112222", Address: "Market St 4", Email: "sara@example.com"}
	require.NoError(t, store.Customers.Create(ctx, customer))

	loaded, err := store.Customers.Get(ctx, customer.ID)
	require.NoError(t, err)
	require.Equal(t, "Market St 4", loaded.Address)

	loaded.Address = "Harbor Rd 9"
	loaded.Email = ""
	require.NoError(t, store.Customers.Update(ctx, loaded))

	reloaded, err := store.Customers.Get(ctx, customer.ID)
	require.NoError(t, err)
	require.Equal(t, "Harbor Rd 9", reloaded.Address)
	require.Empty(t, reloaded.Email)

	require.NoError(t, store.Customers.Delete(ctx, customer.ID))
	_, err = store.Customers.Get(ctx, customer.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, store.Customers.Delete(ctx, customer.ID), ErrNotFound)
	require.ErrorIs(t, store.Customers.Update(ctx, reloaded), ErrNotFound)
}

func TestCustomerSearchMatchesPhoneSubstring(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for _, c := range []*Customer{
		{Name: "Ahmed", Phone: "0501234567"},
		{Name: "Omar", Phone: "0559991234"},
		{Name: "Layla", Phone: "0567770000", Address: "1234 Palm Ave"},
		{Name: "Yusuf", Phone: "0578880000"},
	} {
		require.NoError(t, store.Customers.Create(ctx, c))
	}

	found, err := store.Customers.Search(ctx, "1234")
	require.NoError(t, err)
	names := make([]string, 0, len(found))
	for _, c := range found {
		names = append(names, c.Name)
	}
	require.Equal(t, []string{"Ahmed", "Layla", "Omar"}, names)

	found, err = store.Customers.Search(ctx, "LAYLA")
	require.NoError(t, err)
	require.Len(t, found, 1)

	found, err = store.Customers.Search(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestCustomerPhoneUniqueButOptional(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Customers.Create(ctx, &Customer{Name: "A"}))
	require.NoError(t, store.Customers.Create(ctx, &Customer{Name: "B"}))
	require.NoError(t, store.Customers.Create(ctx, &Customer{Name: "C", Phone: "0500000001"}))

	err := store.Customers.Create(ctx, &Customer{Name: "D", Phone: "0500000001"})
	require.ErrorIs(t, err, ErrConstraint)
	require.True(t, IsUniqueViolation(err))
}

func TestCustomerDeleteWithOrdersViolatesForeignKey(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	customer, _ := seedCustomerOrder(t, store, "500")

	err := store.Customers.Delete(ctx, customer.ID)
	require.ErrorIs(t, err, ErrConstraint)
	require.True(t, IsForeignKeyViolation(err))

	_, err = store.Customers.Get(ctx, customer.ID)
	require.NoError(t, err)
}

func TestCustomerDeleteCascadesMeasurementsAndAppointments(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	customer := &Customer{Name: "Hana"}
	require.NoError(t, store.Customers.Create(ctx, customer))
	height := 170.5
	require.NoError(t, store.Measurements.Create(ctx, &Measurement{CustomerID: customer.ID, Height: &height}))
	require.NoError(t, store.Appointments.Create(ctx, &Appointment{
		CustomerID: customer.ID, Date: "2026-03-01", Time: "10:00", Purpose: "fitting",
	}))

	require.NoError(t, store.Customers.Delete(ctx, customer.ID))

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	require.Zero(t, counts["measurements"])
	require.Zero(t, counts["appointments"])
}

func TestOrderCreateDefaultsAndList(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	customer, order := seedCustomerOrder(t, store, "500")
	require.Equal(t, OrderStatusInProgress, order.Status)
	require.False(t, order.OrderDate.IsZero())

	delivery := time.Date(2026, 5, 1, 0, 0, 0, 0, time.Local)
	second := &Order{CustomerID: customer.ID, OrderType: "dress", TotalAmount: decimal.RequireFromString("120.50"), DeliveryDate: &delivery}
	require.NoError(t, store.Orders.Create(ctx, second))

	summaries, err := store.Orders.List(ctx, OrderFilter{})
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	require.Equal(t, second.ID, summaries[0].ID)
	require.Equal(t, "Ahmed", summaries[0].CustomerName)
	require.NotNil(t, summaries[0].DeliveryDate)
	require.True(t, delivery.Equal(*summaries[0].DeliveryDate))
	require.Equal(t, "120.5", summaries[0].TotalAmount.String())
	require.Nil(t, summaries[1].DeliveryDate)

	filtered, err := store.Orders.List(ctx, OrderFilter{Status: OrderStatusReady})
	require.NoError(t, err)
	require.Empty(t, filtered)

	byCustomer, err := store.Orders.ListByCustomer(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, byCustomer, 2)
}

func TestOrderCreateRejectsUnknownCustomer(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	err := store.Orders.Create(context.Background(), &Order{CustomerID: 42, OrderType: "suit"})
	require.ErrorIs(t, err, ErrConstraint)
	require.True(t, IsForeignKeyViolation(err))
}

func TestSetPaidAmountChangesOnlyPaidAmount(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, order := seedCustomerOrder(t, store, "500")
	before, err := store.Orders.Get(ctx, order.ID)
	require.NoError(t, err)

	require.NoError(t, store.Orders.SetPaidAmount(ctx, order.ID, decimal.NewFromInt(200)))

	after, err := store.Orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, "200", after.PaidAmount.String())
	require.Equal(t, before.TotalAmount.String(), after.TotalAmount.String())
	require.Equal(t, before.CustomerID, after.CustomerID)
	require.Equal(t, before.OrderType, after.OrderType)
	require.Equal(t, before.Status, after.Status)
	require.Equal(t, before.Notes, after.Notes)
	require.True(t, before.OrderDate.Equal(after.OrderDate))
	require.True(t, before.CreatedAt.Equal(after.CreatedAt))
	require.False(t, after.UpdatedAt.Before(before.UpdatedAt))
	require.Equal(t, "300", after.Remaining().String())

	require.ErrorIs(t, store.Orders.SetPaidAmount(ctx, order.ID+100, decimal.Zero), ErrNotFound)
}

func TestDeleteWithPaymentsRemovesOrderAndPayments(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	customer, order := seedCustomerOrder(t, store, "500")
	other := &Order{CustomerID: customer.ID, OrderType: "shirt", TotalAmount: decimal.NewFromInt(80)}
	require.NoError(t, store.Orders.Create(ctx, other))

	for _, amount := range []int64{100, 150} {
		require.NoError(t, store.Payments.Create(ctx, &Payment{OrderID: order.ID, Amount: decimal.NewFromInt(amount)}))
	}
	require.NoError(t, store.Payments.Create(ctx, &Payment{OrderID: other.ID, Amount: decimal.NewFromInt(80)}))

	require.ErrorIs(t, store.Orders.Delete(ctx, order.ID), ErrConstraint)

	removed, err := store.Orders.DeleteWithPayments(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)

	_, err = store.Orders.Get(ctx, order.ID)
	require.ErrorIs(t, err, ErrNotFound)
	remaining, err := store.Payments.List(ctx, PaymentFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, other.ID, remaining[0].OrderID)

	_, err = store.Orders.DeleteWithPayments(ctx, order.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteWithPaymentsRollsBackWhenOrderMissing(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, order := seedCustomerOrder(t, store, "500")
	require.NoError(t, store.Payments.Create(ctx, &Payment{OrderID: order.ID, Amount: decimal.NewFromInt(10)}))

	// Orphan the payment so the order delete finds no row after payments go.
	conn, err := store.DB().Conn(ctx)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	_, err = conn.ExecContext(ctx, `PRAGMA foreign_keys = OFF`)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `UPDATE payments SET order_id = 999`)
	require.NoError(t, err)

	_, err = (&orderRepository{db: conn}).DeleteWithPayments(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)

	var count int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(1) FROM payments WHERE order_id = 999`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestMeasurementCRUDWithNullableFields(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	customer, order := seedCustomerOrder(t, store, "500")
	chest := 98.0
	m := &Measurement{CustomerID: customer.ID, OrderID: &order.ID, ChestWidth: &chest, Notes: "loose fit"}
	require.NoError(t, store.Measurements.Create(ctx, m))

	loaded, err := store.Measurements.Get(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.OrderID)
	require.Equal(t, order.ID, *loaded.OrderID)
	require.NotNil(t, loaded.ChestWidth)
	require.InDelta(t, 98.0, *loaded.ChestWidth, 0.0001)
	require.Nil(t, loaded.Height)
	require.Nil(t, loaded.ThighCircumference)

	neck := 40.5
	loaded.NeckSize = &neck
	loaded.OrderID = nil
	require.NoError(t, store.Measurements.Update(ctx, loaded))

	summaries, err := store.Measurements.List(ctx, MeasurementFilter{CustomerID: customer.ID})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, "Ahmed", summaries[0].CustomerName)
	require.Nil(t, summaries[0].OrderID)
	require.InDelta(t, 40.5, *summaries[0].NeckSize, 0.0001)

	require.NoError(t, store.Measurements.Delete(ctx, m.ID))
	_, err = store.Measurements.Get(ctx, m.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAppointmentListFiltersByDate(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	customer := &Customer{Name: "Nour"}
	require.NoError(t, store.Customers.Create(ctx, customer))
	for _, a := range []*Appointment{
		{CustomerID: customer.ID, Date: "2026-03-02", Time: "14:00", Purpose: "pickup"},
		{CustomerID: customer.ID, Date: "2026-03-02", Time: "09:30", Purpose: "fitting"},
		{CustomerID: customer.ID, Date: "2026-03-03", Time: "11:00", Purpose: "measure", Status: AppointmentStatusCompleted},
	} {
		require.NoError(t, store.Appointments.Create(ctx, a))
	}

	day, err := store.Appointments.List(ctx, AppointmentFilter{Date: "2026-03-02"})
	require.NoError(t, err)
	require.Len(t, day, 2)
	require.Equal(t, "09:30", day[0].Time)
	require.Equal(t, AppointmentStatusScheduled, day[0].Status)
	require.Equal(t, "Nour", day[0].CustomerName)

	done, err := store.Appointments.List(ctx, AppointmentFilter{Status: AppointmentStatusCompleted})
	require.NoError(t, err)
	require.Len(t, done, 1)

	err = store.Appointments.Create(ctx, &Appointment{CustomerID: customer.ID, Date: "2026-03-04"})
	require.Error(t, err)
}

func TestPaymentSumByOrder(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, order := seedCustomerOrder(t, store, "500")
	sum, err := store.Payments.SumByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.True(t, sum.IsZero())

	p := &Payment{OrderID: order.ID, Amount: decimal.RequireFromString("120.25")}
	require.NoError(t, store.Payments.Create(ctx, p))
	require.Equal(t, PaymentMethodCash, p.PaymentMethod)
	require.NoError(t, store.Payments.Create(ctx, &Payment{OrderID: order.ID, Amount: decimal.RequireFromString("79.75"), PaymentMethod: PaymentMethodCard}))

	sum, err = store.Payments.SumByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, "200", sum.String())

	byOrder, err := store.Payments.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, byOrder, 2)
}

func TestMoneyTotalsAddRowsExactly(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, order := seedCustomerOrder(t, store, "0.8")
	for _, amount := range []string{"0.7", "0.1"} {
		require.NoError(t, store.Payments.Create(ctx, &Payment{OrderID: order.ID, Amount: decimal.RequireFromString(amount)}))
	}

	sum, err := store.Payments.SumByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, "0.8", sum.String())
	require.NoError(t, store.Orders.SetPaidAmount(ctx, order.ID, sum))

	dash, err := store.Stats.Dashboard(ctx, "2026-03-02")
	require.NoError(t, err)
	require.Equal(t, "0.8", dash.Revenue.String())
	require.True(t, dash.Outstanding.IsZero(), "outstanding = %s", dash.Outstanding)
}

func TestExampleScenarioCustomerOrderPayment(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	customer := &Customer{Name: "Ahmed", Phone: "0501234567"}
	require.NoError(t, store.Customers.Create(ctx, customer))
	require.Equal(t, int64(1), customer.ID)

	order := &Order{CustomerID: customer.ID, OrderType: "suit", TotalAmount: decimal.NewFromInt(500)}
	require.NoError(t, store.Orders.Create(ctx, order))
	require.Equal(t, int64(1), order.ID)

	require.NoError(t, store.Payments.Create(ctx, &Payment{OrderID: order.ID, Amount: decimal.NewFromInt(200)}))

	paid, err := store.Payments.SumByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.NoError(t, store.Orders.SetPaidAmount(ctx, order.ID, paid))

	loaded, err := store.Orders.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, "200", loaded.PaidAmount.String())
	require.Equal(t, "300", loaded.Remaining().String())
}

func TestActivityAppendAndListNewestFirst(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	first := &ActivityEvent{Action: "customer.create", EntityID: 1}
	require.NoError(t, store.Activity.Append(ctx, first))
	require.NotEmpty(t, first.ID)
	require.Equal(t, "customer", first.EntityType)
	require.Equal(t, "{}", first.Details)

	require.NoError(t, store.Activity.Append(ctx, &ActivityEvent{Action: "order.create", EntityID: 1, Details: `{"total":"500"}`}))
	require.NoError(t, store.Activity.Append(ctx, &ActivityEvent{Action: "customer.update", EntityID: 1}))

	all, err := store.Activity.List(ctx, ActivityFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "customer.update", all[0].Action)

	customerOnly, err := store.Activity.List(ctx, ActivityFilter{EntityType: "customer"})
	require.NoError(t, err)
	require.Len(t, customerOnly, 2)

	limited, err := store.Activity.List(ctx, ActivityFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)

	require.Error(t, store.Activity.Append(ctx, &ActivityEvent{}))
}

func TestDashboardAggregates(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	customer, order := seedCustomerOrder(t, store, "500")
	require.NoError(t, store.Payments.Create(ctx, &Payment{OrderID: order.ID, Amount: decimal.NewFromInt(200)}))
	require.NoError(t, store.Orders.SetPaidAmount(ctx, order.ID, decimal.NewFromInt(200)))

	delivered := &Order{CustomerID: customer.ID, OrderType: "shirt", Status: OrderStatusDelivered, TotalAmount: decimal.NewFromInt(50), PaidAmount: decimal.NewFromInt(50)}
	require.NoError(t, store.Orders.Create(ctx, delivered))
	require.NoError(t, store.Appointments.Create(ctx, &Appointment{CustomerID: customer.ID, Date: "2026-03-02", Time: "10:00", Purpose: "fitting"}))
	require.NoError(t, store.Appointments.Create(ctx, &Appointment{CustomerID: customer.ID, Date: "2026-03-03", Time: "10:00", Purpose: "pickup"}))
	require.NoError(t, store.Appointments.Create(ctx, &Appointment{CustomerID: customer.ID, Date: "2026-03-02", Time: "16:00", Purpose: "hem", Status: AppointmentStatusCancelled}))

	dash, err := store.Stats.Dashboard(ctx, "2026-03-02")
	require.NoError(t, err)
	require.Equal(t, int64(1), dash.Customers)
	require.Equal(t, int64(2), dash.Orders)
	require.Equal(t, int64(1), dash.OpenOrders)
	require.Equal(t, "200", dash.Revenue.String())
	require.Equal(t, "300", dash.Outstanding.String())
	require.Equal(t, int64(2), dash.AppointmentsToday)
}

func TestQueryAndInsertReturnRowsAndIDs(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.Insert(ctx, `INSERT INTO customers(name, phone, created_at, updated_at) VALUES(?, ?, ?, ?)`,
		"Ahmed", "0501234567", Now(), Now())
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	rows, err := store.Query(ctx, `SELECT id, name, phone, email FROM customers WHERE id = ?`, id)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(1), rows[0]["id"])
	require.Equal(t, "Ahmed", rows[0]["name"])
	require.Nil(t, rows[0]["email"])

	rows, err = store.Query(ctx, `SELECT id FROM customers WHERE id = ?`, 99)
	require.NoError(t, err)
	require.Empty(t, rows)

	_, err = store.Query(ctx, `SELECT * FROM missing_table`)
	require.Error(t, err)

	_, err = store.Insert(ctx, `INSERT INTO orders(customer_id, order_type) VALUES(?, ?)`, 77, "suit")
	require.ErrorIs(t, err, ErrConstraint)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(repos Repos) error {
		if err := repos.Customers.Create(ctx, &Customer{Name: "Ghost"}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")

	customers, err := store.Customers.List(ctx)
	require.NoError(t, err)
	require.Empty(t, customers)

	require.NoError(t, store.WithTx(ctx, func(repos Repos) error {
		return repos.Customers.Create(ctx, &Customer{Name: "Kept"})
	}))
	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts["customers"])
}

func TestTimestampsUseSortableLayout(t *testing.T) {
	t.Parallel()

	stamp := Now()
	parsed, err := time.ParseInLocation(TimestampLayout, stamp, time.Local)
	require.NoError(t, err)
	require.Equal(t, stamp, FormatTime(parsed))

	day, err := ParseTime("2026-03-02")
	require.NoError(t, err)
	require.Equal(t, 2, day.Day())

	_, err = ParseTime("02/03/2026")
	require.Error(t, err)
}

func TestCorruptTimestampSurfacesDecodeError(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	customer := &Customer{Name: "Broken"}
	require.NoError(t, store.Customers.Create(ctx, customer))
	_, err := store.DB().Exec(`UPDATE customers SET created_at = 'yesterday' WHERE id = ?`, customer.ID)
	require.NoError(t, err)

	_, err = store.Customers.Get(ctx, customer.ID)
	require.ErrorIs(t, err, ErrDecode)
}

func TestConcurrentReadsWhileWriteWithWAL(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	customer := &Customer{Name: "race-customer", Phone: "0500000000"}
	require.NoError(t, store.Customers.Create(ctx, customer))

	const readers = 8
	errCh := make(chan error, readers+1)
	var wg sync.WaitGroup

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := store.Customers.List(ctx); err != nil {
					errCh <- err
					return
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 25; i++ {
			customer.Address = fmt.Sprintf("Street %d", i)
			if err := store.Customers.Update(ctx, customer); err != nil {
				errCh <- err
				return
			}
		}
	}()

	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}
}

func TestDBFilePermissions0600OnUnix(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("permissions assertion is unix-specific")
	}

	path := filepath.Join(t.TempDir(), "crm.db")
	store, err := Open(path, Options{})
	require.NoError(t, err)
	defer closeStoreNoErr(t, store)

	require.NoError(t, store.Customers.Create(context.Background(), &Customer{Name: "perm"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestBackupCopiesDataAndRespectsOverwrite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)
	seedCustomerOrder(t, store, "500")

	dest := filepath.Join(t.TempDir(), "backups", "crm-copy.db")
	require.NoError(t, store.Backup(ctx, dest, false))
	require.ErrorIs(t, store.Backup(ctx, dest, false), os.ErrExist)
	require.NoError(t, store.Backup(ctx, dest, true))

	copied, err := Open(dest, Options{})
	require.NoError(t, err)
	defer closeStoreNoErr(t, copied)

	counts, err := copied.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts["customers"])
	require.Equal(t, int64(1), counts["orders"])
}

func TestVerifyReportsForeignKeyViolations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "crm.db"), Options{MaxOpenConns: 1})
	require.NoError(t, err)
	defer closeStoreNoErr(t, store)

	require.NoError(t, store.Verify(ctx))

	conn, err := store.DB().Conn(ctx)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `PRAGMA foreign_keys=OFF`)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `INSERT INTO orders(customer_id, order_type) VALUES(999, 'suit')`)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, `PRAGMA foreign_keys=ON`)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	err = store.Verify(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "violate foreign keys")
}

func seedCustomerOrder(t *testing.T, store *Store, total string) (*Customer, *Order) {
	t.Helper()
	ctx := context.Background()
	customer := &Customer{Name: "Ahmed", Phone: "0501234567"}
	require.NoError(t, store.Customers.Create(ctx, customer))
	order := &Order{CustomerID: customer.ID, OrderType: "suit", TotalAmount: decimal.RequireFromString(total)}
	require.NoError(t, store.Orders.Create(ctx, order))
	return customer, order
}

func openRawTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "crm.db"))
	require.NoError(t, err)
	return db
}

func mustSchemaVersion(t *testing.T, db *sql.DB) int {
	t.Helper()
	var version int
	err := db.QueryRow(`SELECT value FROM crm_meta WHERE key = 'schema_version'`).Scan(&version)
	require.NoError(t, err)
	return version
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	var count int
	err := db.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
	require.NoError(t, err)
	return count == 1
}

func countTables(t *testing.T, db *sql.DB) int {
	t.Helper()
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type='table'`).Scan(&count))
	return count
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "crm.db"), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { closeStoreNoErr(t, store) })
	return store
}

func closeStoreNoErr(t *testing.T, store *Store) {
	t.Helper()
	require.NoError(t, store.Close())
}

func closeNoErr(t *testing.T, db *sql.DB) {
	t.Helper()
	require.NoError(t, db.Close())
}
