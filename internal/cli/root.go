package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type GlobalOptions struct {
	ConfigPath string
	DBPath     string
	LogLevel   string
	JSON       bool
	Quiet      bool
	Yes        bool
	Timeout    time.Duration
}

type commandDeps struct {
	out     io.Writer
	errOut  io.Writer
	globals *GlobalOptions
	build   BuildInfo
	now     func() time.Time
}

func NewRootCommand(out io.Writer, build BuildInfo) *cobra.Command {
	return newRootCommand(out, os.Stderr, build, time.Now)
}

func newRootCommand(out, errOut io.Writer, build BuildInfo, now func() time.Time) *cobra.Command {
	globals := &GlobalOptions{}
	deps := commandDeps{out: out, errOut: errOut, globals: globals, build: build, now: now}

	cmd := &cobra.Command{
		Use:           "tailorcrm",
		Short:         "Customers, orders, measurements, appointments and payments for a tailoring shop",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageErrorf("%v", err)
	})

	flags := cmd.PersistentFlags()
	flags.StringVar(&globals.ConfigPath, "config", "", "Config file path")
	flags.StringVar(&globals.DBPath, "db", "", "Database file path")
	flags.StringVar(&globals.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&globals.JSON, "json", false, "Print JSON output")
	flags.BoolVar(&globals.Quiet, "quiet", false, "Suppress non-error output")
	flags.BoolVar(&globals.Yes, "yes", false, "Assume yes for confirmations")
	flags.DurationVar(&globals.Timeout, "timeout", 30*time.Second, "Command timeout")

	cmd.AddCommand(
		newInitCommand(deps),
		newStatusCommand(deps),
		newDoctorCommand(deps),
		newDashboardCommand(deps),
		newCustomerCommand(deps),
		newOrderCommand(deps),
		newMeasurementCommand(deps),
		newAppointmentCommand(deps),
		newPaymentCommand(deps),
		newActivityCommand(deps),
		newBackupCommand(deps),
		newRestoreCommand(deps),
		newBrowseCommand(deps),
		newVersionCommand(deps),
	)
	cmd.InitDefaultCompletionCmd()
	return cmd
}

// exactlyOneID validates a single positional id argument.
func exactlyOneID(use string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != 1 {
			return usageErrorf("%s requires exactly one id", use)
		}
		if _, err := parseID(args[0]); err != nil {
			return err
		}
		return nil
	}
}

func noArgs(use string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != 0 {
			return usageErrorf("%s does not accept positional arguments", use)
		}
		return nil
	}
}

func printDone(deps commandDeps, format string, args ...any) error {
	if deps.globals.Quiet {
		return nil
	}
	_, err := fmt.Fprintf(deps.out, format+"\n", args...)
	return err
}
