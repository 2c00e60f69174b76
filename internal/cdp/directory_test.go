// File: internal/cdp/directory_test.go
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// startDiscoveryServer fakes the endpoint's /json HTTP surface.
func startDiscoveryServer(t *testing.T, targets []TargetInfo, allowPut bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/json/list", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(targets)
	})
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(VersionInfo{
			Browser:         "Chrome/126.0.0.0",
			ProtocolVersion: "1.3",
		})
	})
	mux.HandleFunc("/json/new", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && !allowPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Method != http.MethodPut && r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		json.NewEncoder(w).Encode(TargetInfo{
			ID:                   "fresh-target",
			Type:                 "page",
			URL:                  r.URL.RawQuery,
			WebSocketDebuggerURL: "ws://127.0.0.1:9222/devtools/page/fresh-target",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDirectoryFindTarget(t *testing.T) {
	targets := []TargetInfo{
		{ID: "sw1", Type: "service_worker", URL: "https://chat.example.com/sw.js", WebSocketDebuggerURL: "ws://x/sw1"},
		{ID: "p1", Type: "page", URL: "https://news.example.com/", WebSocketDebuggerURL: "ws://x/p1"},
		{ID: "p2", Type: "page", URL: "https://chat.example.com/session/42", WebSocketDebuggerURL: "ws://x/p2"},
		{ID: "p3", Type: "page", URL: "https://chat.example.com/settings"}, // no debugger socket
	}

	t.Run("should find the first debuggable page matching the predicate", func(t *testing.T) {
		srv := startDiscoveryServer(t, targets, true)
		d := NewDirectory(srv.URL, zaptest.NewLogger(t))

		found, err := d.FindTarget(context.Background(), MatchURLContains("chat.example.com"))
		require.NoError(t, err)
		// The service worker and the socketless page must be skipped.
		assert.Equal(t, "p2", found.ID)
	})

	t.Run("should return ErrNoTarget when nothing matches", func(t *testing.T) {
		srv := startDiscoveryServer(t, targets, true)
		d := NewDirectory(srv.URL, zaptest.NewLogger(t))

		_, err := d.FindTarget(context.Background(), MatchURLContains("mail.example.com"))
		require.ErrorIs(t, err, ErrNoTarget)
	})

	t.Run("should match any page with MatchAny", func(t *testing.T) {
		srv := startDiscoveryServer(t, targets, true)
		d := NewDirectory(srv.URL, zaptest.NewLogger(t))

		found, err := d.FindTarget(context.Background(), MatchAny())
		require.NoError(t, err)
		assert.Equal(t, "p1", found.ID)
	})
}

func TestDirectoryCreateTarget(t *testing.T) {
	t.Run("should create a fresh target when discovery has no match", func(t *testing.T) {
		srv := startDiscoveryServer(t, nil, true)
		d := NewDirectory(srv.URL, zaptest.NewLogger(t))

		// The miss drives the caller to the create path.
		_, err := d.FindTarget(context.Background(), MatchURLContains("chat.example.com"))
		require.ErrorIs(t, err, ErrNoTarget)

		created, err := d.CreateTarget(context.Background(), "https://chat.example.com/")
		require.NoError(t, err)
		assert.Equal(t, "fresh-target", created.ID)
		assert.NotEmpty(t, created.WebSocketDebuggerURL)
	})

	t.Run("should fall back to GET when PUT is rejected", func(t *testing.T) {
		srv := startDiscoveryServer(t, nil, false)
		d := NewDirectory(srv.URL, zaptest.NewLogger(t))

		created, err := d.CreateTarget(context.Background(), "https://chat.example.com/")
		require.NoError(t, err)
		assert.Equal(t, "fresh-target", created.ID)
	})
}

func TestDirectoryErrors(t *testing.T) {
	t.Run("should surface a malformed listing as DiscoveryError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("this is not json"))
		}))
		t.Cleanup(srv.Close)
		d := NewDirectory(srv.URL, zaptest.NewLogger(t))

		_, err := d.List(context.Background())
		var de *DiscoveryError
		require.True(t, errors.As(err, &de))
	})

	t.Run("should surface a non-200 status as DiscoveryError", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		t.Cleanup(srv.Close)
		d := NewDirectory(srv.URL, zaptest.NewLogger(t))

		_, err := d.List(context.Background())
		var de *DiscoveryError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, http.StatusInternalServerError, de.Status)
	})

	t.Run("should surface an unreachable endpoint as DiscoveryError", func(t *testing.T) {
		d := NewDirectory("http://127.0.0.1:1", zaptest.NewLogger(t))
		_, err := d.List(context.Background())
		var de *DiscoveryError
		require.True(t, errors.As(err, &de))
	})
}

func TestDirectoryVersion(t *testing.T) {
	t.Run("should decode the version endpoint", func(t *testing.T) {
		srv := startDiscoveryServer(t, nil, true)
		d := NewDirectory(srv.URL, zaptest.NewLogger(t))

		v, err := d.Version(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Chrome/126.0.0.0", v.Browser)
		assert.Equal(t, "1.3", v.ProtocolVersion)
	})

	t.Run("should default bare host addresses to http", func(t *testing.T) {
		d := NewDirectory("127.0.0.1:9222", zaptest.NewLogger(t))
		assert.Equal(t, "http://127.0.0.1:9222", d.Base())
	})
}
