// File: cmd/session.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/api/schemas"
	"github.com/xkilldash9x/pagepilot/internal/artifact"
	"github.com/xkilldash9x/pagepilot/internal/browser"
	"github.com/xkilldash9x/pagepilot/internal/cdp"
	"github.com/xkilldash9x/pagepilot/internal/config"
	"github.com/xkilldash9x/pagepilot/internal/engine"
	"github.com/xkilldash9x/pagepilot/internal/journal"
	"github.com/xkilldash9x/pagepilot/internal/observability"
	"github.com/xkilldash9x/pagepilot/internal/report"
	"github.com/xkilldash9x/pagepilot/internal/resolve"
)

// sessionComponents holds everything a flow command needs: one attached
// page connection, the engine bound to it, and the optional journal and
// artifact sinks.
type sessionComponents struct {
	Launcher *browser.Launcher
	Dir      *cdp.Directory
	Target   *cdp.TargetInfo
	Client   *cdp.Client
	Engine   *engine.Engine
	Journal  *journal.Journal
	Capturer *artifact.Capturer
}

// Shutdown gracefully releases the session in reverse wiring order.
func (sc *sessionComponents) Shutdown() {
	if sc.Client != nil {
		if err := sc.Client.Close(); err != nil {
			observability.GetLogger().Warn("Error closing page connection", zap.Error(err))
		}
	}
	if sc.Launcher != nil {
		if err := sc.Launcher.Stop(); err != nil {
			observability.GetLogger().Warn("Error stopping browser", zap.Error(err))
		}
	}
	if sc.Journal != nil {
		sc.Journal.Close()
	}
}

// initializeSession handles dependency injection for the flow commands:
// endpoint (launched or configured), target discovery, page attachment,
// and engine construction.
func initializeSession(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*sessionComponents, error) {
	components := &sessionComponents{}

	// 1. Browser endpoint: launch our own or use the configured one.
	endpoint := cfg.Browser.Endpoint
	if cfg.Browser.Launch {
		launcher := browser.NewLauncher(cfg.Browser, logger)
		launched, err := launcher.Start(ctx)
		if err != nil {
			return components, fmt.Errorf("failed to launch browser: %w", err)
		}
		components.Launcher = launcher
		endpoint = launched
	}

	// 2. Target discovery. A missing page is only fatal when we have no
	// URL to open one with.
	dir := cdp.NewDirectory(endpoint, logger)
	components.Dir = dir

	pred := cdp.MatchAny()
	if cfg.Chat.BaseURL != "" {
		pred = cdp.MatchURLContains(cfg.Chat.BaseURL)
	}
	target, err := dir.FindTarget(ctx, pred)
	if errors.Is(err, cdp.ErrNoTarget) {
		createURL := cfg.Chat.NewTargetURL
		if createURL == "" {
			createURL = cfg.Chat.BaseURL
		}
		if createURL == "" {
			return components, fmt.Errorf("no debuggable page at %s and no chat URL configured to open one", endpoint)
		}
		logger.Info("No matching page; opening one.", zap.String("url", createURL))
		target, err = dir.CreateTarget(ctx, createURL)
	}
	if err != nil {
		return components, fmt.Errorf("failed to find page target: %w", err)
	}
	components.Target = target

	// 3. Attach the multiplexed protocol client to the page.
	client, err := cdp.Attach(ctx, target.WebSocketDebuggerURL, cdp.Options{
		Logger:      logger,
		CallTimeout: cfg.Engine.CallTimeout,
	})
	if err != nil {
		return components, fmt.Errorf("failed to attach to page: %w", err)
	}
	components.Client = client

	if err := client.EnableDomains(ctx); err != nil {
		return components, fmt.Errorf("failed to enable protocol domains: %w", err)
	}

	// 4. Resolution engine.
	lex, err := resolve.NewLexicon(cfg.Lexicon)
	if err != nil {
		return components, fmt.Errorf("failed to build lexicon: %w", err)
	}
	components.Engine = engine.New(client, cfg.Engine, lex, logger)

	// 5. Optional run journal.
	if cfg.Journal.DSN != "" {
		j, err := journal.Open(ctx, cfg.Journal.DSN, logger)
		if err != nil {
			return components, fmt.Errorf("failed to open run journal: %w", err)
		}
		components.Journal = j
	}

	// 6. Artifact capturer rides the same page connection.
	components.Capturer = artifact.NewCapturer(client, cfg.Artifacts.Dir, logger)

	logger.Info("Session ready.",
		zap.String("endpoint", endpoint),
		zap.String("target_id", target.ID),
		zap.String("page_url", target.URL))
	return components, nil
}

// finishRun is the shared tail of every flow command: stamp the page
// URL, persist to the journal, capture artifacts per policy, and write
// the report. The run error is returned unchanged so the command exits
// non-zero on failure without losing the recorded evidence.
func finishRun(ctx context.Context, sc *sessionComponents, cfg *config.Config, logger *zap.Logger, rep *schemas.RunReport, runErr error, outputPath, format string) error {
	if rep == nil {
		return runErr
	}
	if sc.Target != nil {
		rep.PageURL = sc.Target.URL
	}

	if sc.Journal != nil {
		if err := sc.Journal.SaveReport(ctx, rep); err != nil {
			logger.Warn("Journal write failed.", zap.Error(err))
		}
	}

	capture := (!rep.Success && cfg.Artifacts.CaptureOnFailure) ||
		(rep.Success && cfg.Artifacts.CaptureOnSuccess)
	if capture && sc.Capturer != nil {
		if _, err := sc.Capturer.Capture(ctx, rep.RunID); err != nil {
			logger.Warn("Artifact capture failed.", zap.Error(err))
		}
	}

	if outputPath != "" {
		if err := emitReport(rep, outputPath, format); err != nil {
			logger.Error("Report write failed.", zap.Error(err))
			if runErr == nil {
				return err
			}
		}
	}
	return runErr
}

// emitReport writes a single run report in the requested format.
func emitReport(rep *schemas.RunReport, outputPath, format string) error {
	reporter, err := report.New(format, outputPath)
	if err != nil {
		return err
	}
	if err := reporter.Write(rep); err != nil {
		reporter.Close()
		return err
	}
	return reporter.Close()
}

// addOverrideFlags attaches the config-override flags shared by every
// flow command. Their values reach the config through viper binding in
// the root command's PersistentPreRunE, not by being read directly.
func addOverrideFlags(cmd *cobra.Command) {
	cmd.Flags().String("endpoint", "", "Browser debugging endpoint (overrides config/env).")
	cmd.Flags().Bool("launch", false, "Launch a browser instead of attaching to a running one (overrides config/env).")
	cmd.Flags().String("page", "", "Substring matched against open tab URLs to pick the page (overrides config/env).")
	cmd.Flags().Int("attempts", 0, "Maximum resolution attempts per run (overrides config/env).")
	cmd.Flags().Duration("deadline", 0, "Overall run deadline (overrides config/env).")
}

// addReportFlags attaches the run-report output flags.
func addReportFlags(cmd *cobra.Command, outputPath, format *string) {
	cmd.Flags().StringVarP(outputPath, "output", "o", "", "Output path for the run report ('stdout' writes to standard output). If unset, no report is written.")
	cmd.Flags().StringVarP(format, "format", "f", "json", "Report format ('json' or 'junit').")
}
