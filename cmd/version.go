// File: cmd/version.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pagepilot/internal/cdp"
)

// Version is the application version.
// This value is intended to be set at build time using ldflags.
// Example: go build -ldflags "-X github.com/xkilldash9x/pagepilot/cmd.Version=1.0.0"
var Version = "0.9"

// newVersionCmd creates the `version` command. Beyond the CLI's own
// version it can interrogate the configured browser endpoint, which
// doubles as a quick connectivity check.
func newVersionCmd() *cobra.Command {
	var withBrowser bool

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the pagepilot version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "pagepilot version %s\n", Version)
			if !withBrowser {
				return nil
			}

			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			dir := cdp.NewDirectory(cfg.Browser.Endpoint, nil)
			info, err := dir.Version(ctx)
			if err != nil {
				return fmt.Errorf("browser endpoint %s unreachable: %w", cfg.Browser.Endpoint, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "browser: %s\n", info.Browser)
			fmt.Fprintf(cmd.OutOrStdout(), "protocol: %s\n", info.ProtocolVersion)
			return nil
		},
	}

	versionCmd.Flags().BoolVar(&withBrowser, "browser", false, "Also query the browser endpoint's /json/version.")
	return versionCmd
}
