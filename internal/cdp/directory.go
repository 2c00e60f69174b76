// File: internal/cdp/directory.go
package cdp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TargetInfo mirrors one entry of the /json/list discovery response.
// Immutable once obtained; it goes stale if the tab navigates or closes.
type TargetInfo struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	DevtoolsFrontendURL  string `json:"devtoolsFrontendUrl,omitempty"`
}

// VersionInfo mirrors /json/version.
type VersionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	V8Version            string `json:"V8-Version"`
	WebKitVersion        string `json:"WebKit-Version"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// TargetPredicate filters discovery entries. It only ever sees page-type
// entries that expose a debugger websocket.
type TargetPredicate func(TargetInfo) bool

// MatchURLContains matches targets whose URL contains substr.
func MatchURLContains(substr string) TargetPredicate {
	return func(t TargetInfo) bool { return strings.Contains(t.URL, substr) }
}

// MatchAny accepts every debuggable page.
func MatchAny() TargetPredicate {
	return func(TargetInfo) bool { return true }
}

// Directory enumerates and creates debuggable pages through the
// endpoint's HTTP discovery API.
type Directory struct {
	base   string
	client *http.Client
	logger *zap.Logger
}

// NewDirectory wires a Directory for a debugging endpoint base address
// such as "http://127.0.0.1:9222".
func NewDirectory(endpoint string, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimRight(endpoint, "/")
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Directory{
		base:   base,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.Named("discovery"),
	}
}

// Base returns the endpoint base address the directory talks to.
func (d *Directory) Base() string { return d.base }

// List fetches all open targets.
func (d *Directory) List(ctx context.Context) ([]TargetInfo, error) {
	var targets []TargetInfo
	if err := d.getJSON(ctx, d.base+"/json/list", &targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// FindTarget returns the first debuggable page satisfying pred, or
// ErrNoTarget when no open page does. Callers holding ErrNoTarget
// typically fall through to CreateTarget.
func (d *Directory) FindTarget(ctx context.Context, pred TargetPredicate) (*TargetInfo, error) {
	targets, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range targets {
		if t.Type != "page" || t.WebSocketDebuggerURL == "" {
			continue
		}
		if pred == nil || pred(t) {
			found := t
			d.logger.Debug("Matched debug target.",
				zap.String("id", found.ID), zap.String("url", found.URL))
			return &found, nil
		}
	}
	return nil, ErrNoTarget
}

// CreateTarget opens a new page at pageURL and returns its descriptor.
// Chrome 111 and later require PUT for /json/new; on 405 the legacy GET
// form is retried for older builds.
func (d *Directory) CreateTarget(ctx context.Context, pageURL string) (*TargetInfo, error) {
	endpoint := d.base + "/json/new?" + url.QueryEscape(pageURL)

	info := &TargetInfo{}
	status, err := d.doJSON(ctx, http.MethodPut, endpoint, info)
	if err == nil {
		return info, nil
	}
	if status == http.StatusMethodNotAllowed {
		d.logger.Debug("PUT /json/new not supported; retrying with GET.")
		if _, err := d.doJSON(ctx, http.MethodGet, endpoint, info); err != nil {
			return nil, err
		}
		return info, nil
	}
	return nil, err
}

// CloseTarget asks the endpoint to close a tab. The endpoint replies
// with plain text, so only the status code matters.
func (d *Directory) CloseTarget(ctx context.Context, id string) error {
	endpoint := d.base + "/json/close/" + id
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &DiscoveryError{URL: endpoint, Err: err}
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return &DiscoveryError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &DiscoveryError{URL: endpoint, Status: resp.StatusCode}
	}
	return nil
}

// Version reports what the endpoint is running.
func (d *Directory) Version(ctx context.Context) (*VersionInfo, error) {
	info := &VersionInfo{}
	if err := d.getJSON(ctx, d.base+"/json/version", info); err != nil {
		return nil, err
	}
	return info, nil
}

func (d *Directory) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	_, err := d.doJSON(ctx, http.MethodGet, endpoint, out)
	return err
}

func (d *Directory) doJSON(ctx context.Context, method, endpoint string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return 0, &DiscoveryError{URL: endpoint, Err: err}
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, &DiscoveryError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, &DiscoveryError{URL: endpoint, Status: resp.StatusCode}
	}
	if err := jsonx.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, &DiscoveryError{URL: endpoint, Err: fmt.Errorf("decode body: %w", err)}
	}
	return resp.StatusCode, nil
}
