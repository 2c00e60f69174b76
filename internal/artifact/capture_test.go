// File: internal/artifact/capture_test.go
package artifact

import (
	"context"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	cdproto "github.com/chromedp/cdproto/cdp"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagepilot/internal/cdp"
)

const fixtureMarkup = `<!DOCTYPE html>
<html><body>
  <button> 发送 <span>now</span> </button>
  <textarea placeholder="给 DeepSeek 发消息"></textarea>
  <div role="button" aria-label="New chat">+</div>
  <a href="/settings">Settings</a>
  <div class="decoration">plain text</div>
</body></html>`

type fakePage struct {
	shot    []byte
	shotErr error
	markup  string
	docErr  error
	htmlErr error

	docDepths []int64
	htmlIDs   []cdproto.NodeID
}

func (f *fakePage) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	return f.shot, f.shotErr
}

func (f *fakePage) GetDocument(ctx context.Context, depth int64) (*cdp.Node, error) {
	f.docDepths = append(f.docDepths, depth)
	if f.docErr != nil {
		return nil, f.docErr
	}
	return &cdp.Node{NodeID: 7, BackendNodeID: 1, NodeName: "#document"}, nil
}

func (f *fakePage) GetOuterHTML(ctx context.Context, nodeID cdproto.NodeID) (string, error) {
	f.htmlIDs = append(f.htmlIDs, nodeID)
	if f.htmlErr != nil {
		return "", f.htmlErr
	}
	return f.markup, nil
}

func newTestCapturer(t *testing.T, f *fakePage) *Capturer {
	t.Helper()
	return &Capturer{client: f, dir: t.TempDir(), logger: zaptest.NewLogger(t)}
}

func TestCapture(t *testing.T) {
	ctx := context.Background()
	pngBytes := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}

	t.Run("should write screenshot, snapshot and report", func(t *testing.T) {
		f := &fakePage{shot: pngBytes, markup: fixtureMarkup}
		c := newTestCapturer(t, f)

		out, err := c.Capture(ctx, "run-123")
		require.NoError(t, err)

		written, err := os.ReadFile(out.ScreenshotPath)
		require.NoError(t, err)
		assert.Equal(t, pngBytes, written)
		assert.True(t, strings.HasSuffix(out.ScreenshotPath, "run-123.png"))

		compressed, err := os.Open(out.SnapshotPath)
		require.NoError(t, err)
		defer compressed.Close()
		markup, err := io.ReadAll(brotli.NewReader(compressed))
		require.NoError(t, err)
		assert.Equal(t, fixtureMarkup, string(markup))
		assert.True(t, strings.HasSuffix(out.SnapshotPath, "run-123.html.br"))

		reportData, err := os.ReadFile(out.ReportPath)
		require.NoError(t, err)
		var candidates []Candidate
		require.NoError(t, jsonx.Unmarshal(reportData, &candidates))
		assert.Len(t, candidates, out.Candidates)
		assert.NotEmpty(t, candidates)

		assert.Equal(t, []int64{-1}, f.docDepths, "snapshots walk the whole tree")
		assert.Equal(t, []cdproto.NodeID{7}, f.htmlIDs, "markup comes from the document root")
	})

	t.Run("should keep the snapshot when the screenshot fails", func(t *testing.T) {
		f := &fakePage{shotErr: errors.New("screenshot refused"), markup: fixtureMarkup}
		c := newTestCapturer(t, f)

		out, err := c.Capture(ctx, "run-124")
		require.NoError(t, err)
		assert.Empty(t, out.ScreenshotPath)
		assert.NotEmpty(t, out.SnapshotPath)
		assert.NotEmpty(t, out.ReportPath)
	})

	t.Run("should keep the screenshot when the snapshot fails", func(t *testing.T) {
		f := &fakePage{shot: pngBytes, docErr: errors.New("DOM agent gone")}
		c := newTestCapturer(t, f)

		out, err := c.Capture(ctx, "run-125")
		require.NoError(t, err)
		assert.NotEmpty(t, out.ScreenshotPath)
		assert.Empty(t, out.SnapshotPath)
		assert.Zero(t, out.Candidates)
	})

	t.Run("should fail when nothing can be captured", func(t *testing.T) {
		f := &fakePage{shotErr: errors.New("gone"), docErr: errors.New("gone")}
		c := newTestCapturer(t, f)

		_, err := c.Capture(ctx, "run-126")
		require.Error(t, err)
	})
}

func TestExtractCandidates(t *testing.T) {
	candidates, err := ExtractCandidates(fixtureMarkup)
	require.NoError(t, err)

	// XPath union order is an implementation detail; compare as a set.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Tag < candidates[j].Tag })
	want := []Candidate{
		{Tag: "a", Text: "Settings"},
		{Tag: "button", Text: "发送 now"},
		{Tag: "div", Text: "+", AriaLabel: "New chat", Role: "button"},
		{Tag: "textarea", Placeholder: "给 DeepSeek 发消息"},
	}
	if diff := cmp.Diff(want, candidates); diff != "" {
		t.Errorf("Candidate mismatch. Diff:\n%s", diff)
	}
}

func TestCollapse(t *testing.T) {
	assert.Equal(t, "a b c", collapse("  a \n b\t c ", 80))
	assert.Equal(t, "", collapse("   ", 80))

	long := collapse(strings.Repeat("发", 100), 80)
	assert.Equal(t, 83, len([]rune(long)))
	assert.True(t, strings.HasSuffix(long, "..."))
}