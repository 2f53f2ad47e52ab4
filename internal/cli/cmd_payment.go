package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/tailorcrm/tailorcrm/internal/app"
	"github.com/tailorcrm/tailorcrm/internal/storage"
)

func newPaymentCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "payment",
		Aliases: []string{"payments"},
		Short:   "Payment management",
		Example: "  tailorcrm payment add --order 1 --amount 200 --sync\n" +
			"  tailorcrm payment ls --order 1",
	}
	cmd.AddCommand(
		newPaymentAddCommand(deps),
		newPaymentListCommand(deps),
		newPaymentShowCommand(deps),
		newPaymentEditCommand(deps),
		newPaymentRemoveCommand(deps),
	)
	return cmd
}

type paymentFlags struct {
	orderID int64
	amount  string
	method  string
	date    string
	notes   string
	sync    bool
}

func (f *paymentFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.orderID, "order", 0, "Order id")
	cmd.Flags().StringVar(&f.amount, "amount", "", "Amount paid")
	cmd.Flags().StringVar(&f.method, "method", "", "Payment method (cash, card, transfer)")
	cmd.Flags().StringVar(&f.date, "date", "", "Payment date (YYYY-MM-DD, default now)")
	cmd.Flags().StringVar(&f.notes, "notes", "", "Notes")
	cmd.Flags().BoolVar(&f.sync, "sync", false, "Set the order's paid amount to the sum of its payments")
}

func (f *paymentFlags) apply(cmd *cobra.Command, payment *storage.Payment) error {
	flags := cmd.Flags()
	if flags.Changed("order") {
		payment.OrderID = f.orderID
	}
	if flags.Changed("amount") {
		amount, err := parseAmount("amount", f.amount)
		if err != nil {
			return err
		}
		payment.Amount = amount
	}
	if flags.Changed("method") {
		payment.PaymentMethod = f.method
	}
	if flags.Changed("date") {
		day, err := parseDate("date", f.date)
		if err != nil {
			return err
		}
		payment.PaymentDate = day
	}
	if flags.Changed("notes") {
		payment.Notes = f.notes
	}
	return nil
}

func newPaymentAddCommand(deps commandDeps) *cobra.Command {
	var f paymentFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a payment against an order",
		Args:  noArgs("payment add"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.orderID <= 0 {
				return usageErrorf("payment add requires --order")
			}
			if !cmd.Flags().Changed("amount") {
				return usageErrorf("payment add requires --amount")
			}
			var payment storage.Payment
			if err := f.apply(cmd, &payment); err != nil {
				return err
			}
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				created, err := env.services.Payments.Add(ctx, payment, app.PaymentOptions{SyncPaid: f.sync})
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, created)
				}
				return printDone(deps, "payment added: %d", created.ID)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newPaymentListCommand(deps commandDeps) *cobra.Command {
	var filter storage.PaymentFilter

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List payments newest first",
		Args:  noArgs("payment ls"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				payments, err := env.services.Payments.GetAll(ctx, filter)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, payments)
				}
				rows := make([][]string, 0, len(payments))
				for _, p := range payments {
					rows = append(rows, []string{
						itoa(p.ID), itoa(p.OrderID), p.CustomerName,
						formatDate(p.PaymentDate), formatMoney(p.Amount), p.PaymentMethod,
					})
				}
				return printTable(deps, []string{"ID", "Order", "Customer", "Date", "Amount", "Method"}, rows)
			})
		},
	}
	cmd.Flags().Int64Var(&filter.OrderID, "order", 0, "Filter by order id")
	return cmd
}

func newPaymentShowCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a payment",
		Args:  exactlyOneID("payment show"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := mustID(args[0])
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				payment, err := env.services.Payments.Get(ctx, id)
				if err != nil {
					return err
				}
				return printRecord(deps, payment, [][2]string{
					{"ID", itoa(payment.ID)},
					{"Order", itoa(payment.OrderID)},
					{"Amount", formatMoney(payment.Amount)},
					{"Date", formatStamp(payment.PaymentDate)},
					{"Method", payment.PaymentMethod},
					{"Notes", payment.Notes},
				})
			})
		},
	}
}

func newPaymentEditCommand(deps commandDeps) *cobra.Command {
	var f paymentFlags

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a payment",
		Args:  exactlyOneID("payment edit"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := mustID(args[0])
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				payment, err := env.services.Payments.Get(ctx, id)
				if err != nil {
					return err
				}
				if err := f.apply(cmd, payment); err != nil {
					return err
				}
				updated, err := env.services.Payments.Update(ctx, *payment, app.PaymentOptions{SyncPaid: f.sync})
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, updated)
				}
				return printDone(deps, "payment updated: %d", updated.ID)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newPaymentRemoveCommand(deps commandDeps) *cobra.Command {
	var sync bool

	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a payment",
		Args:  exactlyOneID("payment rm"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := mustID(args[0])
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				if err := env.services.Payments.Delete(ctx, id, app.PaymentOptions{SyncPaid: sync}); err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{"deleted": id})
				}
				return printDone(deps, "payment removed: %d", id)
			})
		},
	}
	cmd.Flags().BoolVar(&sync, "sync", false, "Set the order's paid amount to the sum of its remaining payments")
	return cmd
}

func paymentRows(payments []storage.Payment) [][]string {
	rows := make([][]string, 0, len(payments))
	for _, p := range payments {
		rows = append(rows, []string{itoa(p.ID), formatDate(p.PaymentDate), formatMoney(p.Amount), p.PaymentMethod})
	}
	return rows
}
