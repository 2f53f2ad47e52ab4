package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const defaultInitConfig = `[store]
path = ""
busy_timeout = "5s"
max_open_conns = 4

[shop]
currency = "SAR"
default_order_status = "in progress"
default_appointment_status = "scheduled"
default_payment_method = "cash"

[logging]
level = "info"
format = "text"
file = ""
max_size_mb = 10
max_files = 5
`

func newInitCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and a default config file",
		Example: "  tailorcrm init\n" +
			"  tailorcrm --db ./shop.db --config ./tailorcrm.toml --yes init",
		Args: noArgs("init"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				configPath := env.report.ConfigPath
				wrote, err := writeDefaultConfig(configPath, deps.globals.Yes)
				if err != nil {
					return err
				}
				version, err := env.store.SchemaVersion(ctx)
				if err != nil {
					return err
				}
				env.logger.Info("initialized store", "db_path", env.store.Path(), "schema_version", version)

				if deps.globals.JSON {
					return printJSON(deps.out, map[string]any{
						"initialized":    true,
						"db_path":        env.store.Path(),
						"config_path":    configPath,
						"config_written": wrote,
						"schema_version": version,
					})
				}
				if deps.globals.Quiet {
					return nil
				}
				if _, err := fmt.Fprintf(deps.out, "initialized database: %s (schema v%d)\n", env.store.Path(), version); err != nil {
					return err
				}
				if !wrote {
					_, err = fmt.Fprintf(deps.out, "kept existing config: %s (use --yes to overwrite)\n", configPath)
					return err
				}
				_, err = fmt.Fprintf(deps.out, "wrote config: %s\n", configPath)
				return err
			})
		},
	}
}

// writeDefaultConfig reports whether it wrote the file. An existing file is
// kept unless overwrite is set.
func writeDefaultConfig(path string, overwrite bool) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, usageErrorf("init: config path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, fmt.Errorf("init: create config directory: %w", err)
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("init: stat config path: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(defaultInitConfig), 0o600); err != nil {
		return false, fmt.Errorf("init: write config: %w", err)
	}
	return true, nil
}
