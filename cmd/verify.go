// File: cmd/verify.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/observability"
)

// newVerifyCmd creates the `verify` command: a read-only readiness probe
// for the chat page.
func newVerifyCmd() *cobra.Command {
	var outputPath, format string

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the chat page is ready for input",
		Long: `Verify probes the page without mutating it: the chat input must
resolve, be empty, and carry its placeholder. Useful as a smoke check
before scripting longer flows, and as a CI gate with --format junit.`,
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

			rep, runErr := components.Engine.VerifyReady(ctx)
			if err := finishRun(ctx, components, cfg, logger, rep, runErr, outputPath, format); err != nil {
				logger.Error("Verification failed", zap.Error(err))
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nPage ready. Run ID: %s\n", rep.RunID)
			return nil
		},
	}

	addReportFlags(verifyCmd, &outputPath, &format)
	addOverrideFlags(verifyCmd)
	return verifyCmd
}
