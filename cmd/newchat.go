// File: cmd/newchat.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/observability"
)

// newNewChatCmd creates the `newchat` command: start a fresh
// conversation.
func newNewChatCmd() *cobra.Command {
	var outputPath, format string

	newChatCmd := &cobra.Command{
		Use:   "newchat",
		Short: "Start a fresh conversation",
		Long: `Newchat clicks the new-conversation control. Verification runs first:
when a fresh empty input is already present there is nothing to click and
the run succeeds immediately.`,
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

			rep, runErr := components.Engine.NewChat(ctx)
			if err := finishRun(ctx, components, cfg, logger, rep, runErr, outputPath, format); err != nil {
				logger.Error("New chat failed", zap.Error(err))
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nNew conversation ready. Run ID: %s\n", rep.RunID)
			return nil
		},
	}

	addReportFlags(newChatCmd, &outputPath, &format)
	addOverrideFlags(newChatCmd)
	return newChatCmd
}
