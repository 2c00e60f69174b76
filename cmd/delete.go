// File: cmd/delete.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/observability"
)

// newDeleteCmd creates the `delete` command: remove a conversation
// through the more -> delete -> confirm menu sequence.
func newDeleteCmd() *cobra.Command {
	var outputPath, format string
	var title string

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a conversation",
		Long: `Delete walks the three-step removal sequence: open the conversation's
overflow menu, pick the delete entry, confirm the dialog. The menu steps
click in-page so a transient menu cannot close between resolution and
activation. With --title the run first selects that conversation in the
sidebar and afterwards verifies its entry is gone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			components, err := initializeSession(ctx, cfg, logger)
			if err != nil {
				components.Shutdown()
				return err
			}
			defer components.Shutdown()

			rep, runErr := components.Engine.DeleteConversation(ctx, title)
			if err := finishRun(ctx, components, cfg, logger, rep, runErr, outputPath, format); err != nil {
				logger.Error("Delete failed", zap.Error(err))
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nDeleted %s. Run ID: %s\n", rep.Target, rep.RunID)
			return nil
		},
	}

	deleteCmd.Flags().StringVarP(&title, "title", "t", "", "Title of the conversation to delete. Defaults to the current one.")
	addReportFlags(deleteCmd, &outputPath, &format)
	addOverrideFlags(deleteCmd)
	return deleteCmd
}
