package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompleteReturnsFirstChoice(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"the answer"}},{"message":{"role":"assistant","content":"ignored"}}]}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model"})
	require.NotNil(t, client)

	out, err := client.Complete(context.Background(), "what is up")
	require.NoError(t, err)
	require.Equal(t, "the answer", out)

	require.Equal(t, "test-model", gotReq.Model)
	require.Len(t, gotReq.Messages, 1)
	require.Equal(t, "user", gotReq.Messages[0].Role)
	require.Equal(t, "what is up", gotReq.Messages[0].Content)
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	_, err := client.Complete(context.Background(), "hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no choices")
}

func TestCompleteStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	_, err := client.Complete(context.Background(), "hi")
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusTooManyRequests, statusErr.HTTPStatusCode())
}

func TestCompleteMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	_, err := client.Complete(context.Background(), "hi")
	require.Error(t, err)
}

func TestNewClientDisabled(t *testing.T) {
	require.Nil(t, NewClient(Config{}))
	require.Nil(t, NewClient(Config{APIKey: "   "}))
	require.NotNil(t, NewClient(Config{APIKey: "k"}))
}

func TestChatURLSuffix(t *testing.T) {
	c := NewClient(Config{APIKey: "k", BaseURL: "https://example.com/v1"})
	require.Equal(t, "https://example.com/v1/chat/completions", c.chatURL())

	c = NewClient(Config{APIKey: "k", BaseURL: "https://example.com"})
	require.Equal(t, "https://example.com/v1/chat/completions", c.chatURL())
}
