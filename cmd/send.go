// File: cmd/send.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/observability"
)

// newSendCmd creates the `send` command: type a message into the chat
// input and submit it.
func newSendCmd() *cobra.Command {
	var outputPath, format string

	sendCmd := &cobra.Command{
		Use:   "send <message>...",
		Short: "Send a message through the chat input",
		Long: `Send resolves the chat input through the strategy chain, types the
message with native value setting (synthetic input/change events included),
and submits it by clicking the send button or pressing Enter. The run is
verified by re-probing the input: a cleared, placeholder-bearing input
means the page accepted the message.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			text := strings.Join(args, " ")

			components, err := initializeSession(ctx, cfg, logger)
			if err != nil {
				components.Shutdown()
				return err
			}
			defer components.Shutdown()

			rep, runErr := components.Engine.SendMessage(ctx, text)
			if err := finishRun(ctx, components, cfg, logger, rep, runErr, outputPath, format); err != nil {
				logger.Error("Send failed", zap.Error(err))
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nMessage sent. Run ID: %s\n", rep.RunID)
			return nil
		},
	}

	addReportFlags(sendCmd, &outputPath, &format)
	addOverrideFlags(sendCmd)
	return sendCmd
}
