// File: cmd/targets.go
package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pagepilot/internal/cdp"
	"github.com/xkilldash9x/pagepilot/internal/observability"
)

// newTargetsCmd creates the `targets` command: enumerate the endpoint's
// debuggable targets without attaching to any of them.
func newTargetsCmd() *cobra.Command {
	var all bool
	var open string

	targetsCmd := &cobra.Command{
		Use:   "targets",
		Short: "List the browser's debuggable targets",
		Long: `Targets queries the endpoint's HTTP discovery API and prints every
debuggable page. Pages without a websocket debugger URL already have a
client attached and cannot be driven. --all includes non-page targets
(service workers, extensions, devtools itself).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			dir := cdp.NewDirectory(cfg.Browser.Endpoint, logger)

			if open != "" {
				target, err := dir.CreateTarget(ctx, open)
				if err != nil {
					return fmt.Errorf("failed to open page: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Opened %s (%s)\n", target.URL, target.ID)
			}

			targets, err := dir.List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list targets at %s: %w", dir.Base(), err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tDEBUGGABLE\tTITLE\tURL")
			shown := 0
			for _, t := range targets {
				if !all && t.Type != "page" {
					continue
				}
				debuggable := "yes"
				if t.WebSocketDebuggerURL == "" {
					debuggable = "no"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Type, debuggable, truncateCell(t.Title, 40), truncateCell(t.URL, 60))
				shown++
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if shown == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No debuggable pages. Open one with --open <url>.")
			}
			return nil
		},
	}

	targetsCmd.Flags().BoolVarP(&all, "all", "a", false, "Include non-page targets.")
	targetsCmd.Flags().String("endpoint", "", "Browser debugging endpoint (overrides config/env).")
	targetsCmd.Flags().StringVar(&open, "open", "", "Open a new page at the given URL before listing.")
	return targetsCmd
}

// truncateCell keeps table rows on one line without splitting runes.
func truncateCell(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
