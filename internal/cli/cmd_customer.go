package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/tailorcrm/tailorcrm/internal/storage"
)

func newCustomerCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "customer",
		Aliases: []string{"customers"},
		Short:   "Customer management",
		Example: "  tailorcrm customer add --name \"Layla Hassan\" --phone 0551234567\n" +
			"  tailorcrm customer ls --search 055",
	}
	cmd.AddCommand(
		newCustomerAddCommand(deps),
		newCustomerListCommand(deps),
		newCustomerShowCommand(deps),
		newCustomerEditCommand(deps),
		newCustomerRemoveCommand(deps),
	)
	return cmd
}

func newCustomerAddCommand(deps commandDeps) *cobra.Command {
	var customer storage.Customer

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a customer",
		Args:  noArgs("customer add"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				created, err := env.services.Customers.Add(ctx, customer)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, created)
				}
				return printDone(deps, "customer added: %d", created.ID)
			})
		},
	}
	cmd.Flags().StringVar(&customer.Name, "name", "", "Customer name (required)")
	cmd.Flags().StringVar(&customer.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&customer.Address, "address", "", "Postal address")
	cmd.Flags().StringVar(&customer.Email, "email", "", "Email address")
	return cmd
}

func newCustomerListCommand(deps commandDeps) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List customers",
		Args:  noArgs("customer ls"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				customers, err := env.services.Customers.Search(ctx, search)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, customers)
				}
				rows := make([][]string, 0, len(customers))
				for _, c := range customers {
					rows = append(rows, []string{itoa(c.ID), c.Name, c.Phone, c.Email, formatDate(c.CreatedAt)})
				}
				return printTable(deps, []string{"ID", "Name", "Phone", "Email", "Since"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "Filter by name or phone substring")
	return cmd
}

func newCustomerShowCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a customer with their orders",
		Args:  exactlyOneID("customer show"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := mustID(args[0])
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				customer, err := env.services.Customers.Get(ctx, id)
				if err != nil {
					return err
				}
				orders, err := env.services.Orders.GetByCustomer(ctx, id)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{"customer": customer, "orders": orders})
				}
				if err := printRecord(deps, customer, [][2]string{
					{"ID", itoa(customer.ID)},
					{"Name", customer.Name},
					{"Phone", customer.Phone},
					{"Address", customer.Address},
					{"Email", customer.Email},
					{"Created", formatStamp(customer.CreatedAt)},
					{"Updated", formatStamp(customer.UpdatedAt)},
				}); err != nil {
					return err
				}
				if len(orders) == 0 {
					return nil
				}
				return printTable(deps, []string{"Order", "Type", "Status", "Total", "Paid", "Remaining"}, orderRows(orders))
			})
		},
	}
}

func newCustomerEditCommand(deps commandDeps) *cobra.Command {
	var name, phone, address, email string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a customer",
		Args:  exactlyOneID("customer edit"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := mustID(args[0])
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				customer, err := env.services.Customers.Get(ctx, id)
				if err != nil {
					return err
				}
				flags := cmd.Flags()
				if flags.Changed("name") {
					customer.Name = name
				}
				if flags.Changed("phone") {
					customer.Phone = phone
				}
				if flags.Changed("address") {
					customer.Address = address
				}
				if flags.Changed("email") {
					customer.Email = email
				}
				updated, err := env.services.Customers.Update(ctx, *customer)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, updated)
				}
				return printDone(deps, "customer updated: %d", updated.ID)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Updated name")
	cmd.Flags().StringVar(&phone, "phone", "", "Updated phone (empty clears)")
	cmd.Flags().StringVar(&address, "address", "", "Updated address")
	cmd.Flags().StringVar(&email, "email", "", "Updated email")
	return cmd
}

func newCustomerRemoveCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a customer without orders",
		Args:  exactlyOneID("customer rm"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := mustID(args[0])
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				if err := env.services.Customers.Delete(ctx, id); err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{"deleted": id})
				}
				return printDone(deps, "customer removed: %d", id)
			})
		},
	}
}
