package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"github.com/tailorcrm/tailorcrm/internal/activity"
	"github.com/tailorcrm/tailorcrm/internal/app"
	"github.com/tailorcrm/tailorcrm/internal/config"
	crmlog "github.com/tailorcrm/tailorcrm/internal/log"
	"github.com/tailorcrm/tailorcrm/internal/storage"
)

const dateLayout = "2006-01-02"

var loadConfigFn = config.Load

// runtimeEnv is everything a command needs after config is resolved and the
// store is open.
type runtimeEnv struct {
	cfg      config.Config
	report   config.LoadReport
	store    *storage.Store
	services *app.Services
	journal  *activity.Service
	logger   *slog.Logger
}

func loadCommandConfig(globals *GlobalOptions) (config.Config, config.LoadReport, error) {
	opts := config.LoadOptions{}
	if globals != nil {
		opts.ConfigPath = strings.TrimSpace(globals.ConfigPath)
		if dbPath := strings.TrimSpace(globals.DBPath); dbPath != "" {
			opts.Flags.DBPath = &dbPath
		}
		if level := strings.TrimSpace(globals.LogLevel); level != "" {
			opts.Flags.LogLevel = &level
		}
	}
	cfg, report, err := loadConfigFn(opts)
	if err != nil {
		return config.Config{}, report, fmt.Errorf("load config: %w", err)
	}
	return cfg, report, nil
}

func commandTimeout(globals *GlobalOptions) time.Duration {
	if globals != nil && globals.Timeout > 0 {
		return globals.Timeout
	}
	return 30 * time.Second
}

func newCommandLogger(cfg config.Config, deps commandDeps) (*slog.Logger, io.Closer, error) {
	logger, closer, err := crmlog.New(crmlog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		File:      cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
		Stderr:    deps.errOut,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("configure logging: %w", err)
	}
	return logger, closer, nil
}

func withRuntime(cmdCtx context.Context, deps commandDeps, fn func(context.Context, *runtimeEnv) error) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	ctx, cancel := context.WithTimeout(cmdCtx, commandTimeout(deps.globals))
	defer cancel()

	cfg, report, err := loadCommandConfig(deps.globals)
	if err != nil {
		return mapCommandError(err)
	}

	logger, closer, err := newCommandLogger(cfg, deps)
	if err != nil {
		return mapCommandError(err)
	}
	defer func() { _ = closer.Close() }()

	store, err := storage.Open(cfg.Store.Path, storage.Options{
		BusyTimeout:  cfg.Store.BusyTimeout,
		MaxOpenConns: cfg.Store.MaxOpenConns,
	})
	if err != nil {
		logger.Error("open store failed", "path", cfg.Store.Path, "error", err)
		return mapCommandError(fmt.Errorf("open store: %w", err))
	}
	defer func() { _ = store.Close() }()

	journal, err := activity.NewService(store.Activity)
	if err != nil {
		return mapCommandError(err)
	}

	env := &runtimeEnv{
		cfg:     cfg,
		report:  report,
		store:   store,
		journal: journal,
		logger:  logger,
		services: app.NewServices(store,
			app.WithLogger(logger),
			app.WithRecorder(journal),
			app.WithDefaults(app.Defaults{
				OrderStatus:       cfg.Shop.DefaultOrderStatus,
				AppointmentStatus: cfg.Shop.DefaultAppointmentStatus,
				PaymentMethod:     cfg.Shop.DefaultPaymentMethod,
			}),
		),
	}
	return mapCommandError(fn(ctx, env))
}

func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// printTable renders rows unless --quiet is set. --json is handled by callers
// since the JSON shape is the typed record, not the table cells.
func printTable(deps commandDeps, header []string, rows [][]string) error {
	if deps.globals.Quiet {
		return nil
	}
	table := tablewriter.NewWriter(deps.out)
	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	table.Header(cells...)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// printRecord prints one record as JSON or as a two-column table.
func printRecord(deps commandDeps, value any, fields [][2]string) error {
	if deps.globals.JSON {
		return printJSON(deps.out, value)
	}
	rows := make([][]string, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, []string{f[0], f[1]})
	}
	return printTable(deps, []string{"Field", "Value"}, rows)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, usageErrorf("invalid id %q", raw)
	}
	return id, nil
}

func mustID(raw string) int64 {
	id, _ := parseID(raw)
	return id
}

func parseAmount(flag, raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, usageErrorf("--%s must be a number: %q", flag, raw)
	}
	return amount, nil
}

func parseDate(flag, raw string) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(raw), time.Local)
	if err != nil {
		return time.Time{}, usageErrorf("--%s must match YYYY-MM-DD: %q", flag, raw)
	}
	return day, nil
}

func formatMoney(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return storage.FormatTime(t)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatOptionalID(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
