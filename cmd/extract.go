// File: cmd/extract.go
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/extract"
	"github.com/xkilldash9x/pagepilot/internal/observability"
)

// newExtractCmd creates the `extract` command: pull the assistant's
// latest reply out of the live page with Gemini.
func newExtractCmd() *cobra.Command {
	var fromScreenshot bool
	var outputPath string

	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract the assistant's latest reply from the page",
		Long: `Extract captures the live page and asks Gemini for the assistant's
newest reply as plain text. The DOM snapshot is used by default;
--screenshot sends a rendered image instead, which copes with pages
that draw replies into canvases or heavily shadow-rooted trees.
Requires GEMINI_API_KEY.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			extractor, err := extract.NewExtractor(ctx, cfg.Extract, logger)
			if err != nil {
				return err
			}
			if !extractor.Enabled() {
				return extract.ErrDisabled
			}

			components, err := initializeSession(ctx, cfg, logger)
			if err != nil {
				components.Shutdown()
				return err
			}
			defer components.Shutdown()

			var reply string
			if fromScreenshot {
				png, err := components.Client.CaptureScreenshot(ctx)
				if err != nil {
					return fmt.Errorf("failed to capture screenshot: %w", err)
				}
				reply, err = extractor.LatestReplyFromScreenshot(ctx, png)
				if err != nil {
					return err
				}
			} else {
				root, err := components.Client.GetDocument(ctx, -1)
				if err != nil {
					return fmt.Errorf("failed to read page document: %w", err)
				}
				markup, err := components.Client.GetOuterHTML(ctx, root.NodeID)
				if err != nil {
					return fmt.Errorf("failed to read page markup: %w", err)
				}
				reply, err = extractor.LatestReply(ctx, markup)
				if err != nil {
					return err
				}
			}

			if reply == "" {
				logger.Warn("No assistant reply visible on the page.")
			}
			if outputPath != "" {
				if err := os.WriteFile(outputPath, []byte(reply), 0o644); err != nil {
					return fmt.Errorf("failed to write reply: %w", err)
				}
				logger.Info("Reply written.", zap.String("path", outputPath), zap.Int("len", len(reply)))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}

	extractCmd.Flags().BoolVar(&fromScreenshot, "screenshot", false, "Extract from a rendered screenshot instead of the DOM snapshot.")
	extractCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the reply to a file instead of stdout.")
	addOverrideFlags(extractCmd)
	return extractCmd
}
