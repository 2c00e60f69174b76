// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/config"
	"github.com/xkilldash9x/pagepilot/internal/observability"
)

// osExit is swapped out in tests so Execute can be exercised without
// killing the test process.
var osExit = os.Exit

// ctxKey scopes context values owned by this package.
type ctxKey int

// configKey carries the validated *config.Config from the root command's
// PersistentPreRunE to the subcommand RunE functions.
const configKey ctxKey = iota

// getConfigFromContext retrieves the configuration stored by the root
// command. Subcommands call this instead of reaching for package state.
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration missing from command context")
	}
	return cfg, nil
}

// newRootCmd builds the root command and attaches every subcommand.
// Each invocation returns a pristine tree, which keeps tests isolated.
func newRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "pagepilot",
		Short: "Pagepilot drives a chat web app over the Chrome DevTools Protocol.",
		Long: `Pagepilot attaches to a running (or freshly launched) Chrome instance,
finds the chat page among its debuggable targets, and drives the UI through
a cascading resolution chain: accessibility queries first, DOM scripting and
per-frame isolated worlds as fallbacks. Every action is verified against the
page state and retried under attempt and deadline bounds.`,
		// Version is set at build time. See cmd/version.go.
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v, cfgFile); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "pagepilot"})
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "pagepilot"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Info("Starting pagepilot", zap.String("version", Version))

			// Store the validated config in the command's context for subcommands.
			ctx := context.WithValue(cmd.Context(), configKey, cfg)
			cmd.SetContext(ctx)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml or ~/.pagepilot/config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newTargetsCmd())
	rootCmd.AddCommand(newSendCmd())
	rootCmd.AddCommand(newClickCmd())
	rootCmd.AddCommand(newNewChatCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command under a signal-aware context and exits
// non-zero on failure. An interrupt cancels the run context so in-flight
// attempts stop at the next protocol call.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			// Graceful shutdown initiated by the user.
			observability.Sync()
			osExit(0)
			return
		}
		// Use the logger if available, otherwise fall back to stderr.
		if logger := observability.GetLogger(); logger != nil && logger != zap.NewNop() {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		osExit(1)
	}
}

// initializeConfig layers the config file, environment, and any bound
// subcommand flags onto the viper instance. The cmd argument is the
// invoked subcommand, so its flags are visible here.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".pagepilot"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PAGEPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars.
	}

	return bindOverrideFlags(cmd, v)
}

// bindOverrideFlags maps well-known subcommand flags onto their config
// keys. Binding is the idiomatic way to make command-line flags override
// values from the config file and environment: viper only consults an
// unchanged flag when no other source has set the key.
func bindOverrideFlags(cmd *cobra.Command, v *viper.Viper) error {
	overrides := map[string]string{
		"endpoint": "browser.endpoint",
		"launch":   "browser.launch",
		"page":     "chat.base_url",
		"attempts": "engine.attempts",
		"deadline": "engine.deadline",
	}
	for flagName, key := range overrides {
		if f := cmd.Flags().Lookup(flagName); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}
