// File: internal/extract/extract.go

// Package extract pulls the assistant's latest reply out of a captured
// page with Gemini. Entirely optional: without an API key the extractor
// constructs fine and every call reports ErrDisabled.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/xkilldash9x/pagepilot/internal/config"
)

// ErrDisabled marks extraction attempts without a configured API key.
var ErrDisabled = errors.New("extract: disabled; set GEMINI_API_KEY")

// maxSnapshotRunes bounds how much markup goes into the prompt. The
// latest reply sits at the bottom of a chat DOM, so the tail is kept.
const maxSnapshotRunes = 60000

const replyPrompt = `The following is content captured from a chat application's page.
Return only the assistant's latest reply as plain text, without commentary or formatting.
If no assistant reply is visible, return an empty string.`

// Extractor asks Gemini to read the page for us.
type Extractor struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewExtractor builds an extractor from configuration. An empty API key
// yields a disabled extractor, not an error.
func NewExtractor(ctx context.Context, cfg config.ExtractConfig, logger *zap.Logger) (*Extractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{model: cfg.Model, logger: logger.Named("extract")}
	if cfg.APIKey == "" {
		e.logger.Debug("Extraction disabled; no API key configured.")
		return e, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("extract: create client: %w", err)
	}
	e.client = client
	return e, nil
}

// Enabled reports whether calls will reach the model.
func (e *Extractor) Enabled() bool {
	return e != nil && e.client != nil
}

// LatestReply extracts the newest assistant reply from snapshot markup
// or text.
func (e *Extractor) LatestReply(ctx context.Context, snapshot string) (string, error) {
	if !e.Enabled() {
		return "", ErrDisabled
	}
	parts := []*genai.Part{
		genai.NewPartFromText(replyPrompt),
		genai.NewPartFromText(tail(snapshot, maxSnapshotRunes)),
	}
	return e.generate(ctx, parts)
}

// LatestReplyFromScreenshot extracts the newest assistant reply from a
// PNG screenshot.
func (e *Extractor) LatestReplyFromScreenshot(ctx context.Context, png []byte) (string, error) {
	if !e.Enabled() {
		return "", ErrDisabled
	}
	parts := []*genai.Part{
		genai.NewPartFromText(replyPrompt),
		genai.NewPartFromBytes(png, "image/png"),
	}
	return e.generate(ctx, parts)
}

func (e *Extractor) generate(ctx context.Context, parts []*genai.Part) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		return "", fmt.Errorf("extract: generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	e.logger.Debug("Extraction complete.", zap.Int("reply_len", len(text)))
	return text, nil
}

// tail keeps the last max runes of s.
func tail(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[len(runes)-max:])
}
