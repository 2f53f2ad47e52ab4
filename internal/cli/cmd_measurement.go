package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/tailorcrm/tailorcrm/internal/storage"
)

// measurementFields maps flag names onto the nullable body measurements.
var measurementFields = []struct {
	flag  string
	usage string
	field func(*storage.Measurement) **float64
}{
	{"height", "Height", func(m *storage.Measurement) **float64 { return &m.Height }},
	{"shoulder", "Shoulder width", func(m *storage.Measurement) **float64 { return &m.ShoulderWidth }},
	{"sleeve", "Sleeve length", func(m *storage.Measurement) **float64 { return &m.SleeveLength }},
	{"chest", "Chest width", func(m *storage.Measurement) **float64 { return &m.ChestWidth }},
	{"waist", "Waist width", func(m *storage.Measurement) **float64 { return &m.WaistWidth }},
	{"neck", "Neck size", func(m *storage.Measurement) **float64 { return &m.NeckSize }},
	{"arm", "Arm circumference", func(m *storage.Measurement) **float64 { return &m.ArmCircumference }},
	{"thigh", "Thigh circumference", func(m *storage.Measurement) **float64 { return &m.ThighCircumference }},
}

func newMeasurementCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "measurement",
		Aliases: []string{"measurements"},
		Short:   "Body measurement management",
		Example: "  tailorcrm measurement add --customer 1 --height 180 --chest 52.5\n" +
			"  tailorcrm measurement ls --customer 1",
	}
	cmd.AddCommand(
		newMeasurementAddCommand(deps),
		newMeasurementListCommand(deps),
		newMeasurementShowCommand(deps),
		newMeasurementEditCommand(deps),
		newMeasurementRemoveCommand(deps),
	)
	return cmd
}

type measurementFlags struct {
	customerID int64
	orderID    int64
	notes      string
	values     map[string]*float64
}

func (f *measurementFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.customerID, "customer", 0, "Customer id")
	cmd.Flags().Int64Var(&f.orderID, "order", 0, "Order id (0 detaches)")
	cmd.Flags().StringVar(&f.notes, "notes", "", "Notes")
	f.values = make(map[string]*float64, len(measurementFields))
	for _, mf := range measurementFields {
		f.values[mf.flag] = cmd.Flags().Float64(mf.flag, 0, mf.usage)
	}
}

func (f *measurementFlags) apply(cmd *cobra.Command, m *storage.Measurement) {
	flags := cmd.Flags()
	if flags.Changed("customer") {
		m.CustomerID = f.customerID
	}
	if flags.Changed("order") {
		if f.orderID > 0 {
			id := f.orderID
			m.OrderID = &id
		} else {
			m.OrderID = nil
		}
	}
	if flags.Changed("notes") {
		m.Notes = f.notes
	}
	for _, mf := range measurementFields {
		if flags.Changed(mf.flag) {
			v := *f.values[mf.flag]
			*mf.field(m) = &v
		}
	}
}

func newMeasurementAddCommand(deps commandDeps) *cobra.Command {
	var f measurementFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record body measurements for a customer",
		Args:  noArgs("measurement add"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.customerID <= 0 {
				return usageErrorf("measurement add requires --customer")
			}
			var m storage.Measurement
			f.apply(cmd, &m)
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				created, err := env.services.Measurements.Add(ctx, m)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, created)
				}
				return printDone(deps, "measurement added: %d", created.ID)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newMeasurementListCommand(deps commandDeps) *cobra.Command {
	var filter storage.MeasurementFilter

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List measurements newest first",
		Args:  noArgs("measurement ls"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				measurements, err := env.services.Measurements.GetAll(ctx, filter)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, measurements)
				}
				header := []string{"ID", "Customer", "Order"}
				for _, mf := range measurementFields {
					header = append(header, mf.usage)
				}
				rows := make([][]string, 0, len(measurements))
				for _, m := range measurements {
					row := []string{itoa(m.ID), m.CustomerName, formatOptionalID(m.OrderID)}
					for _, mf := range measurementFields {
						row = append(row, formatFloat(*mf.field(&m.Measurement)))
					}
					rows = append(rows, row)
				}
				return printTable(deps, header, rows)
			})
		},
	}
	cmd.Flags().Int64Var(&filter.CustomerID, "customer", 0, "Filter by customer id")
	cmd.Flags().Int64Var(&filter.OrderID, "order", 0, "Filter by order id")
	return cmd
}

func newMeasurementShowCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a measurement record",
		Args:  exactlyOneID("measurement show"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := mustID(args[0])
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				m, err := env.services.Measurements.Get(ctx, id)
				if err != nil {
					return err
				}
				fields := [][2]string{
					{"ID", itoa(m.ID)},
					{"Customer", itoa(m.CustomerID)},
					{"Order", formatOptionalID(m.OrderID)},
				}
				for _, mf := range measurementFields {
					fields = append(fields, [2]string{mf.usage, formatFloat(*mf.field(m))})
				}
				fields = append(fields, [2]string{"Notes", m.Notes}, [2]string{"Updated", formatStamp(m.UpdatedAt)})
				return printRecord(deps, m, fields)
			})
		},
	}
}

func newMeasurementEditCommand(deps commandDeps) *cobra.Command {
	var f measurementFlags

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a measurement record",
		Args:  exactlyOneID("measurement edit"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := mustID(args[0])
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				m, err := env.services.Measurements.Get(ctx, id)
				if err != nil {
					return err
				}
				f.apply(cmd, m)
				updated, err := env.services.Measurements.Update(ctx, *m)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, updated)
				}
				return printDone(deps, "measurement updated: %d", updated.ID)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newMeasurementRemoveCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a measurement record",
		Args:  exactlyOneID("measurement rm"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := mustID(args[0])
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				if err := env.services.Measurements.Delete(ctx, id); err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{"deleted": id})
				}
				return printDone(deps, "measurement removed: %d", id)
			})
		},
	}
}
