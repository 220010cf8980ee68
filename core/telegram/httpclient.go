package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/pasindu8/telegrambot/core/telegram/netutil"
)

const (
	dialTimeout       = 5 * time.Second
	tlsHandshakeLimit = 5 * time.Second
	idleConnTimeout   = 30 * time.Second
	clientTimeout     = 120 * time.Second
	keepAliveInterval = 30 * time.Second
	transportRetries  = 3
	transportBackoff  = 2 * time.Second
)

// BuildHTTPClient returns the client used for Bot API calls. The overall
// timeout is generous because media uploads of tens of megabytes ride over
// this client.
func BuildHTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: dialTimeout, KeepAlive: keepAliveInterval}
	return &http.Client{
		Timeout: clientTimeout,
		Transport: &retryTransport{
			base: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           dialer.DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       idleConnTimeout,
				TLSHandshakeTimeout:   tlsHandshakeLimit,
				ExpectContinueTimeout: 1 * time.Second,
			},
			maxRetries: transportRetries,
			backoff:    transportBackoff,
		},
	}
}

// retryTransport retries transient transport errors with linear backoff.
// Requests without a replayable body are attempted once.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	attempts := t.maxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptReq, err := t.prepare(req, attempt)
		if err != nil {
			return nil, err
		}
		if attemptReq == nil {
			return nil, lastErr
		}

		resp, err := base.RoundTrip(attemptReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !netutil.ShouldRetry(err) || attempt == attempts {
			break
		}

		delay := t.backoff * time.Duration(attempt)
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// prepare returns the request for the given attempt. A nil request without
// an error means the body cannot be replayed and retrying must stop.
func (t *retryTransport) prepare(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 1 {
		return req, nil
	}
	clone := req.Clone(req.Context())
	switch {
	case req.GetBody != nil:
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	case req.Body != nil:
		return nil, nil
	}
	return clone, nil
}
