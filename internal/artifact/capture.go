// File: internal/artifact/capture.go

// Package artifact captures post-run evidence from the page: a
// screenshot, a brotli-compressed DOM snapshot, and a report of the
// interactive elements found in that snapshot.
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andybalholm/brotli"
	cdproto "github.com/chromedp/cdproto/cdp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pagepilot/internal/cdp"
)

// pageClient is the protocol slice the capturer needs. *cdp.Client
// satisfies it; tests substitute a recorder.
type pageClient interface {
	CaptureScreenshot(ctx context.Context) ([]byte, error)
	GetDocument(ctx context.Context, depth int64) (*cdp.Node, error)
	GetOuterHTML(ctx context.Context, nodeID cdproto.NodeID) (string, error)
}

// Capture lists what was written for one run.
type Capture struct {
	ScreenshotPath string `json:"screenshot_path,omitempty"`
	SnapshotPath   string `json:"snapshot_path,omitempty"`
	ReportPath     string `json:"report_path,omitempty"`
	Candidates     int    `json:"candidates"`
}

// Capturer writes run artifacts into one directory.
type Capturer struct {
	client pageClient
	dir    string
	logger *zap.Logger
}

// NewCapturer binds a capturer to one page connection and a target
// directory.
func NewCapturer(client *cdp.Client, dir string, logger *zap.Logger) *Capturer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Capturer{client: client, dir: dir, logger: logger.Named("artifact")}
}

// Capture grabs the screenshot and the DOM snapshot concurrently over
// the shared connection, then derives the candidate report from the
// snapshot. Each artifact is best-effort: a failed screenshot does not
// lose the snapshot. The error is non-nil only when nothing could be
// captured.
func (c *Capturer) Capture(ctx context.Context, runID string) (*Capture, error) {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create dir: %w", err)
	}

	var (
		shot   []byte
		markup string
	)
	// Both calls ride the same multiplexer; no group context so that
	// one failure does not cancel the other capture.
	var g errgroup.Group
	g.Go(func() error {
		data, err := c.client.CaptureScreenshot(ctx)
		if err != nil {
			return fmt.Errorf("screenshot: %w", err)
		}
		shot = data
		return nil
	})
	g.Go(func() error {
		root, err := c.client.GetDocument(ctx, -1)
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		html, err := c.client.GetOuterHTML(ctx, root.NodeID)
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		markup = html
		return nil
	})
	captureErr := g.Wait()

	if shot == nil && markup == "" {
		return nil, fmt.Errorf("artifact: %w", captureErr)
	}
	if captureErr != nil {
		c.logger.Warn("Partial artifact capture.", zap.Error(captureErr))
	}

	out := &Capture{}
	if shot != nil {
		path := filepath.Join(c.dir, runID+".png")
		if err := os.WriteFile(path, shot, 0o644); err != nil {
			c.logger.Warn("Screenshot write failed.", zap.Error(err))
		} else {
			out.ScreenshotPath = path
		}
	}
	if markup != "" {
		if path, err := c.writeSnapshot(runID, markup); err != nil {
			c.logger.Warn("Snapshot write failed.", zap.Error(err))
		} else {
			out.SnapshotPath = path
		}
		if path, n, err := c.writeReport(runID, markup); err != nil {
			c.logger.Warn("Candidate report failed.", zap.Error(err))
		} else {
			out.ReportPath = path
			out.Candidates = n
		}
	}

	c.logger.Info("Artifacts captured.",
		zap.String("run_id", runID),
		zap.String("screenshot", out.ScreenshotPath),
		zap.String("snapshot", out.SnapshotPath),
		zap.Int("candidates", out.Candidates))
	return out, nil
}

// writeSnapshot stores the page markup brotli-compressed. Full DOM
// snapshots of chat pages run to megabytes of mostly repeated markup,
// so the compression pays for itself.
func (c *Capturer) writeSnapshot(runID, markup string) (string, error) {
	path := filepath.Join(c.dir, runID+".html.br")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	w := brotli.NewWriterLevel(f, brotli.DefaultCompression)
	if _, err := w.Write([]byte(markup)); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		_ = f.Close()
		return "", err
	}
	return path, f.Close()
}

func (c *Capturer) writeReport(runID, markup string) (string, int, error) {
	candidates, err := ExtractCandidates(markup)
	if err != nil {
		return "", 0, err
	}
	data, err := jsonx.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return "", 0, err
	}
	path := filepath.Join(c.dir, runID+".candidates.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", 0, err
	}
	return path, len(candidates), nil
}
