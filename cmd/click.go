// File: cmd/click.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/observability"
)

// newClickCmd creates the `click` command: resolve an arbitrary control
// by its accessible name and activate it.
func newClickCmd() *cobra.Command {
	var outputPath, format string
	var substring bool

	clickCmd := &cobra.Command{
		Use:   "click <label>...",
		Short: "Click a control identified by its accessible name",
		Long: `Click runs the resolution chain for the given label(s) and activates
the best candidate. Several labels act as alternatives, which is how
multilingual pages are handled: the first label the page exposes wins.`,
		Args: cobra.MinimumNArgs(1),
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

			rep, runErr := components.Engine.Click(ctx, args, substring)
			if err := finishRun(ctx, components, cfg, logger, rep, runErr, outputPath, format); err != nil {
				logger.Error("Click failed", zap.Error(err))
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nClicked %q via %s. Run ID: %s\n", rep.Target, rep.Strategy, rep.RunID)
			return nil
		},
	}

	clickCmd.Flags().BoolVar(&substring, "substring", false, "Match labels as substrings instead of exact names.")
	addReportFlags(clickCmd, &outputPath, &format)
	addOverrideFlags(clickCmd)
	return clickCmd
}
