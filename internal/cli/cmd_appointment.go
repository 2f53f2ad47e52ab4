package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/tailorcrm/tailorcrm/internal/storage"
)

func newAppointmentCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "appointment",
		Aliases: []string{"appointments", "appt"},
		Short:   "Appointment management",
		Example: "  tailorcrm appointment add --customer 1 --date 2026-10-20 --time 14:30 --purpose fitting\n" +
			"  tailorcrm appointment ls --today",
	}
	cmd.AddCommand(
		newAppointmentAddCommand(deps),
		newAppointmentListCommand(deps),
		newAppointmentShowCommand(deps),
		newAppointmentEditCommand(deps),
		newAppointmentRemoveCommand(deps),
	)
	return cmd
}

type appointmentFlags struct {
	customerID int64
	date       string
	time       string
	purpose    string
	status     string
	notes      string
}

func (f *appointmentFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.customerID, "customer", 0, "Customer id")
	cmd.Flags().StringVar(&f.date, "date", "", "Date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.time, "time", "", "Time (HH:MM)")
	cmd.Flags().StringVar(&f.purpose, "purpose", "", "Purpose, such as fitting or pickup")
	cmd.Flags().StringVar(&f.status, "status", "", "Status (scheduled, completed, cancelled)")
	cmd.Flags().StringVar(&f.notes, "notes", "", "Notes")
}

func (f *appointmentFlags) apply(cmd *cobra.Command, a *storage.Appointment) {
	flags := cmd.Flags()
	if flags.Changed("customer") {
		a.CustomerID = f.customerID
	}
	if flags.Changed("date") {
		a.Date = f.date
	}
	if flags.Changed("time") {
		a.Time = f.time
	}
	if flags.Changed("purpose") {
		a.Purpose = f.purpose
	}
	if flags.Changed("status") {
		a.Status = f.status
	}
	if flags.Changed("notes") {
		a.Notes = f.notes
	}
}

func newAppointmentAddCommand(deps commandDeps) *cobra.Command {
	var f appointmentFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Book an appointment",
		Args:  noArgs("appointment add"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.customerID <= 0 {
				return usageErrorf("appointment add requires --customer")
			}
			var appointment storage.Appointment
			f.apply(cmd, &appointment)
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				created, err := env.services.Appointments.Add(ctx, appointment)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, created)
				}
				return printDone(deps, "appointment added: %d", created.ID)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newAppointmentListCommand(deps commandDeps) *cobra.Command {
	var (
		filter storage.AppointmentFilter
		today  bool
	)

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List appointments in calendar order",
		Args:  noArgs("appointment ls"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				var (
					appointments []storage.AppointmentSummary
					err          error
				)
				if today {
					appointments, err = env.services.Appointments.Today(ctx, deps.now())
				} else {
					appointments, err = env.services.Appointments.GetAll(ctx, filter)
				}
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, appointments)
				}
				return printTable(deps, []string{"ID", "Customer", "Date", "Time", "Purpose", "Status"}, appointmentRows(appointments))
			})
		},
	}
	cmd.Flags().Int64Var(&filter.CustomerID, "customer", 0, "Filter by customer id")
	cmd.Flags().StringVar(&filter.Date, "date", "", "Filter by date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filter.Status, "status", "", "Filter by status")
	cmd.Flags().BoolVar(&today, "today", false, "Only today's appointments, any status")
	return cmd
}

func newAppointmentShowCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an appointment",
		Args:  exactlyOneID("appointment show"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := mustID(args[0])
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				a, err := env.services.Appointments.Get(ctx, id)
				if err != nil {
					return err
				}
				return printRecord(deps, a, [][2]string{
					{"ID", itoa(a.ID)},
					{"Customer", itoa(a.CustomerID)},
					{"Date", a.Date},
					{"Time", a.Time},
					{"Purpose", a.Purpose},
					{"Status", a.Status},
					{"Notes", a.Notes},
				})
			})
		},
	}
}

func newAppointmentEditCommand(deps commandDeps) *cobra.Command {
	var f appointmentFlags

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit or reschedule an appointment",
		Args:  exactlyOneID("appointment edit"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := mustID(args[0])
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				a, err := env.services.Appointments.Get(ctx, id)
				if err != nil {
					return err
				}
				f.apply(cmd, a)
				updated, err := env.services.Appointments.Update(ctx, *a)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, updated)
				}
				return printDone(deps, "appointment updated: %d", updated.ID)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newAppointmentRemoveCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove an appointment",
		Args:  exactlyOneID("appointment rm"),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := mustID(args[0])
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				if err := env.services.Appointments.Delete(ctx, id); err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{"deleted": id})
				}
				return printDone(deps, "appointment removed: %d", id)
			})
		},
	}
}

func appointmentRows(appointments []storage.AppointmentSummary) [][]string {
	rows := make([][]string, 0, len(appointments))
	for _, a := range appointments {
		rows = append(rows, []string{itoa(a.ID), a.CustomerName, a.Date, a.Time, a.Purpose, a.Status})
	}
	return rows
}
