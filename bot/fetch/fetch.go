// Package fetch downloads files from user-supplied URLs with a hard size cap.
package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"log/slog"

	"github.com/pasindu8/telegrambot/bot/files"
	"github.com/pasindu8/telegrambot/core/logger"
)

const fallbackName = "download"

// TooLargeError reports a download that exceeded the transfer cap. SizeBytes
// is the upstream Content-Length when known, otherwise the cap itself.
type TooLargeError struct {
	SizeBytes int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("fetch: download exceeds %d bytes (got %d)", int64(files.MaxTransferBytes), e.SizeBytes)
}

// Result holds a completed download.
type Result struct {
	Data     []byte
	Name     string
	MimeType string
	Size     int64
}

// Fetcher downloads URLs into memory, enforcing the transfer cap while streaming.
type Fetcher struct {
	httpClient *http.Client
	maxBytes   int64
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(f *Fetcher) {
		f.httpClient = httpClient
	}
}

// NewFetcher builds a Fetcher with the standard transfer cap.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		maxBytes:   files.MaxTransferBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ValidURL reports whether s looks like a fetchable http(s) URL.
func ValidURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Fetch downloads rawURL into memory. Downloads larger than the cap fail with
// TooLargeError; the body is never read past cap+1 bytes.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !ValidURL(rawURL) {
		return nil, fmt.Errorf("fetch: unsupported url %q", logger.SanitizeLimit(rawURL, 80))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: create request: %w", err)
	}

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch: unexpected status %d from %s", resp.StatusCode, logger.SanitizeLimit(rawURL, 80))
	}
	if resp.ContentLength > f.maxBytes {
		return nil, &TooLargeError{SizeBytes: resp.ContentLength}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, &TooLargeError{SizeBytes: f.maxBytes}
	}

	res := &Result{
		Data:     data,
		Name:     downloadName(resp, rawURL),
		MimeType: resp.Header.Get("Content-Type"),
		Size:     int64(len(data)),
	}

	logger.Info(ctx, "files", "fetch.done",
		slog.String("status", "ok"),
		slog.String("url", logger.SanitizeLimit(rawURL, 80)),
		slog.Int64("size_bytes", res.Size),
		slog.Duration("duration", logger.Took(start)),
	)
	return res, nil
}

// downloadName derives a filename from Content-Disposition, then the URL path.
func downloadName(resp *http.Response, rawURL string) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := strings.TrimSpace(params["filename"]); name != "" {
				return path.Base(name)
			}
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			return base
		}
	}
	return fallbackName
}
