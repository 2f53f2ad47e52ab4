package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/tailorcrm/tailorcrm/internal/storage"
)

func newDashboardCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Shop totals and today's appointments",
		Args:  noArgs("dashboard"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				summary, err := env.services.Dashboard.Summary(ctx, deps.now())
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, summary)
				}
				currency := env.cfg.Shop.Currency
				t := summary.Totals
				if err := printTable(deps, []string{"Metric", "Value"}, [][]string{
					{"Customers", itoa(t.Customers)},
					{"Orders", itoa(t.Orders)},
					{"Open orders", itoa(t.OpenOrders)},
					{"Revenue", formatMoney(t.Revenue) + " " + currency},
					{"Outstanding", formatMoney(t.Outstanding) + " " + currency},
					{"Appointments " + summary.Day, itoa(t.AppointmentsToday)},
				}); err != nil {
					return err
				}
				if len(summary.Appointments) == 0 {
					return nil
				}
				return printTable(deps, []string{"ID", "Customer", "Date", "Time", "Purpose", "Status"}, appointmentRows(summary.Appointments))
			})
		},
	}
}

func newStatusCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show database location, schema version and row counts",
		Args:  noArgs("status"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				version, err := env.store.SchemaVersion(ctx)
				if err != nil {
					return err
				}
				counts, err := env.store.Counts(ctx)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{
						"db_path":        env.store.Path(),
						"config_path":    env.report.ConfigPath,
						"schema_version": version,
						"counts":         counts,
					})
				}
				rows := [][]string{
					{"database", env.store.Path()},
					{"config", env.report.ConfigPath},
					{"schema version", itoa(int64(version))},
				}
				for _, table := range storage.Tables {
					rows = append(rows, []string{table, itoa(counts[table])})
				}
				return printTable(deps, []string{"Item", "Value"}, rows)
			})
		},
	}
}
