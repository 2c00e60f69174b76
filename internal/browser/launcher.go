// File: internal/browser/launcher.go

// Package browser starts and stops a local Chrome with remote debugging
// enabled. When the configuration points at an already-running endpoint
// this package is not involved at all.
package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sync"
	"syscall"
	"time"

	"github.com/hpcloud/tail"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagepilot/internal/config"
)

// devtoolsLineRegex matches the line Chrome prints on stderr once the
// debugging endpoint is up.
var devtoolsLineRegex = regexp.MustCompile(`DevTools listening on (ws://\S+)`)

// binaryCandidates are tried in order when no binary path is configured.
var binaryCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
}

// Launcher owns one Chrome process and the log file its stderr goes to.
type Launcher struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	exited  chan struct{}
	waitErr error
	logFile *os.File
	tmpDir  string
	wsURL   string
}

// NewLauncher builds a launcher from the browser configuration.
func NewLauncher(cfg config.BrowserConfig, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{cfg: cfg, logger: logger.Named("launcher")}
}

// Start launches Chrome, follows its stderr log until the DevTools
// endpoint line appears, and returns the HTTP base URL for discovery.
// The wait is bounded by the configured launch timeout.
func (l *Launcher) Start(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cmd != nil {
		return "", fmt.Errorf("browser: already started")
	}

	binary, err := findBinary(l.cfg.BinaryPath)
	if err != nil {
		return "", err
	}

	userDataDir := l.cfg.UserDataDir
	if userDataDir == "" {
		tmp, err := os.MkdirTemp("", "pagepilot-chrome-")
		if err != nil {
			return "", fmt.Errorf("browser: create user data dir: %w", err)
		}
		l.tmpDir = tmp
		userDataDir = tmp
	}

	logPath := filepath.Join(userDataDir, "chrome.log")
	logFile, err := os.Create(logPath)
	if err != nil {
		l.cleanupLocked()
		return "", fmt.Errorf("browser: create log file: %w", err)
	}
	l.logFile = logFile

	args := buildArgs(l.cfg, userDataDir)
	cmd := exec.Command(binary, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	l.logger.Info("Launching browser.",
		zap.String("binary", binary),
		zap.Int("port", l.cfg.RemotePort),
		zap.Bool("headless", l.cfg.Headless))
	if err := cmd.Start(); err != nil {
		l.cleanupLocked()
		return "", fmt.Errorf("browser: start %s: %w", binary, err)
	}
	l.cmd = cmd
	l.exited = make(chan struct{})
	go func() {
		l.waitErr = cmd.Wait()
		close(l.exited)
	}()

	timeout := l.cfg.LaunchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	wsURL, err := l.waitForDevTools(waitCtx, logPath, l.exited)
	if err != nil {
		l.stopLocked()
		return "", err
	}
	l.wsURL = wsURL
	endpoint := fmt.Sprintf("http://127.0.0.1:%d", l.cfg.RemotePort)
	l.logger.Info("Browser ready.", zap.String("endpoint", endpoint), zap.String("ws_url", wsURL))
	return endpoint, nil
}

// waitForDevTools follows the log file until the DevTools line shows up,
// the context expires, or the process exits.
func (l *Launcher) waitForDevTools(ctx context.Context, logPath string, exited <-chan struct{}) (string, error) {
	t, err := tail.TailFile(logPath, tail.Config{
		Follow:    true,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return "", fmt.Errorf("browser: tail log file: %w", err)
	}
	defer func() {
		t.Stop()
		t.Cleanup()
	}()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("browser: devtools endpoint did not appear: %w", ctx.Err())
		case <-exited:
			if l.waitErr != nil {
				return "", fmt.Errorf("browser: process exited before the devtools endpoint appeared: %w", l.waitErr)
			}
			return "", fmt.Errorf("browser: process exited before the devtools endpoint appeared")
		case line, ok := <-t.Lines:
			if !ok {
				return "", fmt.Errorf("browser: log tailer closed before the devtools endpoint appeared")
			}
			if line.Err != nil {
				l.logger.Warn("Error reading browser log.", zap.Error(line.Err))
				continue
			}
			if m := devtoolsLineRegex.FindStringSubmatch(line.Text); m != nil {
				return m[1], nil
			}
		}
	}
}

// WebSocketURL returns the browser-level debugger URL from the DevTools
// line, empty before Start succeeds.
func (l *Launcher) WebSocketURL() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.wsURL
}

// Stop terminates the browser and removes the temporary profile. Safe to
// call more than once and before Start.
func (l *Launcher) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
	return nil
}

func (l *Launcher) stopLocked() {
	if l.cmd != nil && l.cmd.Process != nil {
		_ = l.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-l.exited:
		case <-time.After(3 * time.Second):
			_ = l.cmd.Process.Kill()
			<-l.exited
		}
		l.logger.Debug("Browser stopped.", zap.Error(l.waitErr))
	}
	l.cmd = nil
	l.cleanupLocked()
}

func (l *Launcher) cleanupLocked() {
	if l.logFile != nil {
		_ = l.logFile.Close()
		l.logFile = nil
	}
	if l.tmpDir != "" {
		_ = os.RemoveAll(l.tmpDir)
		l.tmpDir = ""
	}
}

func buildArgs(cfg config.BrowserConfig, userDataDir string) []string {
	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", cfg.RemotePort),
		"--user-data-dir=" + userDataDir,
		"--no-first-run",
		"--no-default-browser-check",
		"--disable-background-networking",
		"--disable-sync",
	}
	if cfg.Headless {
		args = append(args, "--headless=new", "--disable-gpu")
	}
	return append(args, cfg.Args...)
}

func findBinary(configured string) (string, error) {
	if configured != "" {
		path, err := exec.LookPath(configured)
		if err != nil {
			return "", fmt.Errorf("browser: binary %q: %w", configured, err)
		}
		return path, nil
	}
	for _, candidate := range binaryCandidates {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("browser: no chrome binary found; set browser.binary_path")
}
