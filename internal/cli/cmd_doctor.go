package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tailorcrm/tailorcrm/internal/debug"
	"github.com/tailorcrm/tailorcrm/internal/storage"
)

func newDoctorCommand(deps commandDeps) *cobra.Command {
	var bundlePath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the database and configuration",
		Example: "  tailorcrm doctor\n" +
			"  tailorcrm doctor --bundle ./tailorcrm-debug.json",
		Args: noArgs("doctor"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				bundle := debug.NewBundle(deps.now())
				bundle.Version = map[string]any{
					"version":    deps.build.Version,
					"commit":     deps.build.Commit,
					"build_time": deps.build.BuildTime,
				}

				bundle.AddCheck("config", nil, configSource(env))

				version, err := env.store.SchemaVersion(ctx)
				if err == nil && version != storage.CurrentSchemaVersion() {
					err = fmt.Errorf("schema v%d, expected v%d", version, storage.CurrentSchemaVersion())
				}
				bundle.AddCheck("schema", err, fmt.Sprintf("v%d", version))
				bundle.AddCheck("integrity", env.store.Verify(ctx), "ok")

				counts, err := env.store.Counts(ctx)
				bundle.AddCheck("counts", err, "ok")
				bundle.Counts = counts
				bundle.Store = map[string]any{
					"path":           env.store.Path(),
					"schema_version": version,
					"busy_timeout":   env.cfg.Store.BusyTimeout.String(),
					"max_open_conns": env.cfg.Store.MaxOpenConns,
				}

				if bundlePath != "" {
					if err := debug.WriteBundle(bundlePath, bundle); err != nil {
						return err
					}
					env.logger.Info("debug bundle written", "output", bundlePath)
				}

				if deps.globals.JSON {
					if err := printJSON(deps.out, bundle); err != nil {
						return err
					}
				} else {
					rows := make([][]string, 0, len(bundle.Checks))
					for _, check := range bundle.Checks {
						status := "ok"
						if !check.OK {
							status = "FAIL"
						}
						rows = append(rows, []string{check.Name, status, check.Message})
					}
					if err := printTable(deps, []string{"Check", "Status", "Detail"}, rows); err != nil {
						return err
					}
				}

				if failed := bundle.Failed(); len(failed) > 0 {
					names := make([]string, 0, len(failed))
					for _, check := range failed {
						names = append(names, check.Name)
					}
					return &ExitError{Code: ExitCodeGeneric, Err: fmt.Errorf("doctor: failed checks: %s", strings.Join(names, ", "))}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&bundlePath, "bundle", "", "Also write the report as a JSON debug bundle")
	return cmd
}

func configSource(env *runtimeEnv) string {
	parts := []string{"file " + env.report.ConfigPath}
	if env.report.DotEnvPath != "" {
		parts = append(parts, fmt.Sprintf("dotenv %s (%d keys)", env.report.DotEnvPath, len(env.report.DotEnvKeys)))
	}
	return strings.Join(parts, ", ")
}
