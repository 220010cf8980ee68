package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchSmallFile(t *testing.T) {
	payload := []byte("hello world")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	f := NewFetcher()
	res, err := f.Fetch(context.Background(), srv.URL+"/docs/readme.txt")
	require.NoError(t, err)
	require.Equal(t, payload, res.Data)
	require.Equal(t, int64(len(payload)), res.Size)
	require.Equal(t, "readme.txt", res.Name)
	require.Equal(t, "text/plain", res.MimeType)
}

func TestFetchNameFromContentDisposition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="report.pdf"`)
		_, _ = w.Write([]byte("pdf"))
	}))
	defer srv.Close()

	res, err := NewFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "report.pdf", res.Name)
}

func TestFetchFallbackName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	res, err := NewFetcher().Fetch(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	require.Equal(t, fallbackName, res.Name)
}

func TestFetchRejectsOversizedByLength(t *testing.T) {
	f := NewFetcher()
	f.maxBytes = 16

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "32")
		_, _ = w.Write(bytes.Repeat([]byte("a"), 32))
	}))
	defer srv.Close()

	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var tooLarge *TooLargeError
	require.True(t, errors.As(err, &tooLarge))
	require.Equal(t, int64(32), tooLarge.SizeBytes)
}

func TestFetchRejectsOversizedStream(t *testing.T) {
	f := NewFetcher()
	f.maxBytes = 16

	// Chunked response: no Content-Length, the stream itself trips the cap.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 8; i++ {
			fmt.Fprint(w, "aaaa")
			flusher.Flush()
		}
	}))
	defer srv.Close()

	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var tooLarge *TooLargeError
	require.True(t, errors.As(err, &tooLarge))
}

func TestFetchExactCapAllowed(t *testing.T) {
	f := NewFetcher()
	f.maxBytes = 16

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), 16))
	}))
	defer srv.Close()

	res, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, int64(16), res.Size)
}

func TestFetchRejectsBadScheme(t *testing.T) {
	f := NewFetcher()
	for _, raw := range []string{"", "ftp://host/file", "file:///etc/passwd", "not a url"} {
		_, err := f.Fetch(context.Background(), raw)
		require.Error(t, err, raw)
	}
}

func TestFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}

func TestValidURL(t *testing.T) {
	require.True(t, ValidURL("https://example.com/a.txt"))
	require.True(t, ValidURL("  http://example.com"))
	require.False(t, ValidURL("ftp://example.com"))
	require.False(t, ValidURL("example.com"))
}
