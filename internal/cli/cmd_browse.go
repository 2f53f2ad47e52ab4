package cli

import (
	"context"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/tailorcrm/tailorcrm/internal/app"
	"github.com/tailorcrm/tailorcrm/internal/storage"
	"github.com/tailorcrm/tailorcrm/internal/tui"
)

var runTUIFn = tui.Run

func newBrowseCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse the dashboard and entity lists in the terminal",
		Args:  noArgs("browse"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), deps, func(_ context.Context, env *runtimeEnv) error {
				return runTUIFn(tui.Options{
					Client: browseClient{services: env.services, currency: env.cfg.Shop.Currency, now: deps.now},
					IsTTY: func() bool {
						fd := os.Stdout.Fd()
						return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
					},
				})
			})
		},
	}
}

// browseClient adapts the app services to the browser's read model.
type browseClient struct {
	services *app.Services
	currency string
	now      func() time.Time
}

func (c browseClient) Dashboard(ctx context.Context) (tui.Dashboard, error) {
	summary, err := c.services.Dashboard.Summary(ctx, c.now())
	if err != nil {
		return tui.Dashboard{}, err
	}
	t := summary.Totals
	return tui.Dashboard{
		Day:               summary.Day,
		Currency:          c.currency,
		Customers:         t.Customers,
		Orders:            t.Orders,
		OpenOrders:        t.OpenOrders,
		Revenue:           formatMoney(t.Revenue),
		Outstanding:       formatMoney(t.Outstanding),
		AppointmentsToday: t.AppointmentsToday,
		Today:             toTUIAppointments(summary.Appointments),
	}, nil
}

func (c browseClient) ListCustomers(ctx context.Context) ([]tui.Customer, error) {
	customers, err := c.services.Customers.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]tui.Customer, 0, len(customers))
	for _, cu := range customers {
		out = append(out, tui.Customer{ID: cu.ID, Name: cu.Name, Phone: cu.Phone, Email: cu.Email, Address: cu.Address})
	}
	return out, nil
}

func (c browseClient) ListOrders(ctx context.Context) ([]tui.Order, error) {
	orders, err := c.services.Orders.GetAll(ctx, storage.OrderFilter{})
	if err != nil {
		return nil, err
	}
	out := make([]tui.Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, tui.Order{
			ID:           o.ID,
			CustomerID:   o.CustomerID,
			CustomerName: o.CustomerName,
			Type:         o.OrderType,
			Status:       o.Status,
			Total:        formatMoney(o.TotalAmount),
			Remaining:    formatMoney(o.Remaining()),
		})
	}
	return out, nil
}

func (c browseClient) ListAppointments(ctx context.Context) ([]tui.Appointment, error) {
	appointments, err := c.services.Appointments.GetAll(ctx, storage.AppointmentFilter{})
	if err != nil {
		return nil, err
	}
	return toTUIAppointments(appointments), nil
}

func (c browseClient) ListPayments(ctx context.Context) ([]tui.Payment, error) {
	payments, err := c.services.Payments.GetAll(ctx, storage.PaymentFilter{})
	if err != nil {
		return nil, err
	}
	out := make([]tui.Payment, 0, len(payments))
	for _, p := range payments {
		out = append(out, tui.Payment{
			ID:           p.ID,
			OrderID:      p.OrderID,
			CustomerName: p.CustomerName,
			Date:         formatDate(p.PaymentDate),
			Amount:       formatMoney(p.Amount),
			Method:       p.PaymentMethod,
		})
	}
	return out, nil
}

func toTUIAppointments(appointments []storage.AppointmentSummary) []tui.Appointment {
	out := make([]tui.Appointment, 0, len(appointments))
	for _, a := range appointments {
		out = append(out, tui.Appointment{
			ID:           a.ID,
			CustomerName: a.CustomerName,
			Date:         a.Date,
			Time:         a.Time,
			Purpose:      a.Purpose,
			Status:       a.Status,
		})
	}
	return out
}
