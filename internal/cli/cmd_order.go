package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/tailorcrm/tailorcrm/internal/storage"
)

func newOrderCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "order",
		Aliases: []string{"orders"},
		Short:   "Order management",
		Example: "  tailorcrm order add --customer 1 --type suit --total 500\n" +
			"  tailorcrm order balance 1",
	}
	cmd.AddCommand(
		newOrderAddCommand(deps),
		newOrderListCommand(deps),
		newOrderShowCommand(deps),
		newOrderEditCommand(deps),
		newOrderPaidCommand(deps),
		newOrderBalanceCommand(deps),
		newOrderRemoveCommand(deps),
	)
	return cmd
}

type orderFlags struct {
	customerID int64
	orderType  string
	status     string
	date       string
	delivery   string
	total      string
	paid       string
	notes      string
}

func (f *orderFlags) register(cmd *cobra.Command, withCustomer bool) {
	if withCustomer {
		cmd.Flags().Int64Var(&f.customerID, "customer", 0, "Customer id")
	}
	cmd.Flags().StringVar(&f.orderType, "type", "", "Garment or job type")
	cmd.Flags().StringVar(&f.status, "status", "", "Order status")
	cmd.Flags().StringVar(&f.date, "date", "", "Order date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&f.delivery, "delivery", "", "Delivery date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.total, "total", "0", "Total amount")
	cmd.Flags().StringVar(&f.paid, "paid", "0", "Paid amount")
	cmd.Flags().StringVar(&f.notes, "notes", "", "Notes")
}

// apply copies every flag the user set onto order.
func (f *orderFlags) apply(cmd *cobra.Command, order *storage.Order) error {
	flags := cmd.Flags()
	if flags.Changed("customer") {
		order.CustomerID = f.customerID
	}
	if flags.Changed("type") {
		order.OrderType = f.orderType
	}
	if flags.Changed("status") {
		order.Status = f.status
	}
	if flags.Changed("notes") {
		order.Notes = f.notes
	}
	if flags.Changed("date") {
		day, err := parseDate("date", f.date)
		if err != nil {
			return err
		}
		order.OrderDate = day
	}
	if flags.Changed("delivery") {
		if f.delivery == "" {
			order.DeliveryDate = nil
		} else {
			day, err := parseDate("delivery", f.delivery)
			if err != nil {
				return err
			}
			order.DeliveryDate = &day
		}
	}
	if flags.Changed("total") {
		total, err := parseAmount("total", f.total)
		if err != nil {
			return err
		}
		order.TotalAmount = total
	}
	if flags.Changed("paid") {
		paid, err := parseAmount("paid", f.paid)
		if err != nil {
			return err
		}
		order.PaidAmount = paid
	}
	return nil
}

func newOrderAddCommand(deps commandDeps) *cobra.Command {
	var f orderFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an order",
		Args:  noArgs("order add"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.customerID <= 0 {
				return usageErrorf("order add requires --customer")
			}
			order := storage.Order{OrderDate: deps.now()}
			if err := f.apply(cmd, &order); err != nil {
				return err
			}
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				created, err := env.services.Orders.Add(ctx, order)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, created)
				}
				return printDone(deps, "order added: %d", created.ID)
			})
		},
	}
	f.register(cmd, true)
	return cmd
}

func newOrderListCommand(deps commandDeps) *cobra.Command {
	var filter storage.OrderFilter

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List orders newest first",
		Args:  noArgs("order ls"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				orders, err := env.services.Orders.GetAll(ctx, filter)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, orders)
				}
				rows := make([][]string, 0, len(orders))
				for _, o := range orders {
					rows = append(rows, []string{
						itoa(o.ID), o.CustomerName, o.OrderType, o.Status,
						formatDate(o.OrderDate), formatMoney(o.TotalAmount), formatMoney(o.Remaining()),
					})
				}
				return printTable(deps, []string{"ID", "Customer", "Type", "Status", "Date", "Total", "Remaining"}, rows)
			})
		},
	}
	cmd.Flags().Int64Var(&filter.CustomerID, "customer", 0, "Filter by customer id")
	cmd.Flags().StringVar(&filter.Status, "status", "", "Filter by status")
	return cmd
}

func newOrderShowCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an order with its payments",
		Args:  exactlyOneID("order show"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := mustID(args[0])
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				order, err := env.services.Orders.Get(ctx, id)
				if err != nil {
					return err
				}
				payments, err := env.services.Payments.GetByOrder(ctx, id)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{"order": order, "payments": payments})
				}
				delivery := ""
				if order.DeliveryDate != nil {
					delivery = formatDate(*order.DeliveryDate)
				}
				if err := printRecord(deps, order, [][2]string{
					{"ID", itoa(order.ID)},
					{"Customer", itoa(order.CustomerID)},
					{"Type", order.OrderType},
					{"Status", order.Status},
					{"Order date", formatDate(order.OrderDate)},
					{"Delivery", delivery},
					{"Total", formatMoney(order.TotalAmount)},
					{"Paid", formatMoney(order.PaidAmount)},
					{"Remaining", formatMoney(order.Remaining())},
					{"Notes", order.Notes},
				}); err != nil {
					return err
				}
				if len(payments) == 0 {
					return nil
				}
				return printTable(deps, []string{"Payment", "Date", "Amount", "Method"}, paymentRows(payments))
			})
		},
	}
}

func newOrderEditCommand(deps commandDeps) *cobra.Command {
	var f orderFlags

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit an order",
		Args:  exactlyOneID("order edit"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := mustID(args[0])
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				order, err := env.services.Orders.Get(ctx, id)
				if err != nil {
					return err
				}
				if err := f.apply(cmd, order); err != nil {
					return err
				}
				updated, err := env.services.Orders.Update(ctx, *order)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, updated)
				}
				return printDone(deps, "order updated: %d", updated.ID)
			})
		},
	}
	f.register(cmd, true)
	return cmd
}

func newOrderPaidCommand(deps commandDeps) *cobra.Command {
	var amount string

	cmd := &cobra.Command{
		Use:   "paid <id>",
		Short: "Set the amount paid on an order",
		Args:  exactlyOneID("order paid"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := mustID(args[0])
			if !cmd.Flags().Changed("amount") {
				return usageErrorf("order paid requires --amount")
			}
			paid, err := parseAmount("amount", amount)
			if err != nil {
				return err
			}
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				if err := env.services.Orders.UpdatePaidAmount(ctx, id, paid); err != nil {
					return err
				}
				return printBalance(ctx, deps, env, id)
			})
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "New paid amount (required)")
	return cmd
}

func newOrderBalanceCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <id>",
		Short: "Show total, paid and remaining for an order",
		Args:  exactlyOneID("order balance"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := mustID(args[0])
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				return printBalance(ctx, deps, env, id)
			})
		},
	}
}

func printBalance(ctx context.Context, deps commandDeps, env *runtimeEnv, id int64) error {
	balance, err := env.services.Orders.Balance(ctx, id)
	if err != nil {
		return err
	}
	return printRecord(deps, balance, [][2]string{
		{"Order", itoa(balance.OrderID)},
		{"Total", formatMoney(balance.Total)},
		{"Paid", formatMoney(balance.Paid)},
		{"Remaining", formatMoney(balance.Remaining)},
		{"Payments", formatMoney(balance.Payments)},
		{"Currency", env.cfg.Shop.Currency},
	})
}

func newOrderRemoveCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove an order and its payments",
		Args:  exactlyOneID("order rm"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := mustID(args[0])
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				result, err := env.services.Orders.Delete(ctx, id)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, result)
				}
				return printDone(deps, "order removed: %d (payments removed: %d)", result.OrderID, result.PaymentsRemoved)
			})
		},
	}
}

func orderRows(orders []storage.Order) [][]string {
	rows := make([][]string, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, []string{
			itoa(o.ID), o.OrderType, o.Status,
			formatMoney(o.TotalAmount), formatMoney(o.PaidAmount), formatMoney(o.Remaining()),
		})
	}
	return rows
}
