// Package mms implements align.Provider against an MMS-style forced
// alignment inference service over HTTP. The service accepts a multipart
// upload of the audio plus the text to align and returns per-span
// character offsets and timestamps as JSON.
package mms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrWong99/lyralign/pkg/provider/align"
	"github.com/MrWong99/lyralign/pkg/types"
)

const defaultTimeout = 5 * time.Minute

// Compile-time assertion that Provider satisfies align.Provider.
var _ align.Provider = (*Provider)(nil)

// Provider talks to a forced-alignment service at a fixed base URL.
type Provider struct {
	baseURL string
	client  *http.Client
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithHTTPClient replaces the default HTTP client (5 minute timeout).
// Useful in tests and when the service sits behind a proxy.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// New creates a Provider for the alignment service at baseURL
// (e.g. "http://localhost:8301").
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, errors.New("mms: baseURL must not be empty")
	}
	p := &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// alignResponse is the service's JSON response body.
type alignResponse struct {
	Spans []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"spans"`
	Error string `json:"error,omitempty"`
}

// Align uploads the audio and text and returns the service's fine spans,
// tagged types.SourceAligner.
func (p *Provider) Align(ctx context.Context, audioPath, text, language string) ([]types.Phrase, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("mms: text must not be empty")
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("mms: open %q: %w", audioPath, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("text", text); err != nil {
		return nil, fmt.Errorf("mms: build request: %w", err)
	}
	if language != "" {
		if err := mw.WriteField("language", language); err != nil {
			return nil, fmt.Errorf("mms: build request: %w", err)
		}
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("mms: build request: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, fmt.Errorf("mms: read audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("mms: build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/align", &body)
	if err != nil {
		return nil, fmt.Errorf("mms: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mms: call alignment service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("mms: alignment service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var ar alignResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("mms: decode response: %w", err)
	}
	if ar.Error != "" {
		return nil, fmt.Errorf("mms: alignment failed: %s", ar.Error)
	}

	spans := make([]types.Phrase, 0, len(ar.Spans))
	for _, s := range ar.Spans {
		if strings.TrimSpace(s.Text) == "" || s.End <= s.Start {
			continue
		}
		spans = append(spans, types.Phrase{
			Text:   s.Text,
			Start:  s.Start,
			End:    s.End,
			Source: types.SourceAligner,
		})
	}
	if len(spans) == 0 {
		return nil, errors.New("mms: alignment service returned no spans")
	}
	return spans, nil
}
