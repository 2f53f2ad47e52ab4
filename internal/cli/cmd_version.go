package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tailorcrm/tailorcrm/internal/storage"
)

func newVersionCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build and schema version information",
		Example: "  tailorcrm version\n" +
			"  tailorcrm --json version",
		Args: noArgs("version"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps.globals.JSON {
				return mapCommandError(printJSON(deps.out, versionReport{
					BuildInfo:     deps.build,
					SchemaVersion: storage.CurrentSchemaVersion(),
				}))
			}
			_, err := fmt.Fprintf(deps.out, "version=%s commit=%s build_time=%s schema=v%d\n",
				deps.build.Version, deps.build.Commit, deps.build.BuildTime, storage.CurrentSchemaVersion())
			return mapCommandError(err)
		},
	}
}

type versionReport struct {
	BuildInfo
	SchemaVersion int `json:"schema_version"`
}
