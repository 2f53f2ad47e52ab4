package cli

import (
	"context"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tailorcrm/tailorcrm/internal/activity"
)

func newActivityCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Activity journal of changes",
		Example: "  tailorcrm activity ls --entity order --limit 20\n" +
			"  tailorcrm --json activity ls --action payment.create",
	}
	cmd.AddCommand(newActivityListCommand(deps))
	return cmd
}

func newActivityListCommand(deps commandDeps) *cobra.Command {
	var filter activity.Filter

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List recorded changes newest first",
		Args:  noArgs("activity ls"),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.EntityType = strings.TrimSpace(filter.EntityType)
			if filter.EntityType != "" && !slices.Contains(activity.AllEntities, filter.EntityType) {
				return usageErrorf("--entity must be one of %s", strings.Join(activity.AllEntities, ", "))
			}
			if filter.Limit < 0 {
				return usageErrorf("--limit must not be negative")
			}
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, env *runtimeEnv) error {
				events, err := env.journal.List(ctx, filter)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, events)
				}
				rows := make([][]string, 0, len(events))
				for _, e := range events {
					rows = append(rows, []string{formatStamp(e.Timestamp), e.Action, itoa(e.EntityID), e.DetailsJSON})
				}
				return printTable(deps, []string{"When", "Action", "ID", "Details"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&filter.EntityType, "entity", "", "Filter by entity type")
	cmd.Flags().Int64Var(&filter.EntityID, "id", 0, "Filter by entity id")
	cmd.Flags().StringVar(&filter.Action, "action", "", "Filter by action, e.g. order.delete")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "Maximum events to show")
	return cmd
}
