package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/rl1809/invsnap/internal/port"
)

const userAgent = "invsnap/1.0"

type Options struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Logger       *log.Logger
}

// HTTPTransport performs requests with net/http. Redirects are handed back to
// the caller untouched, and transport-level failures are retried with a linear
// backoff before they are reported.
type HTTPTransport struct {
	client       *http.Client
	maxRetries   int
	retryBackoff time.Duration
	logger       *log.Logger
}

func NewHTTPTransport(opts Options) *HTTPTransport {
	to := opts.Timeout
	if to <= 0 {
		to = 30 * time.Second
	}
	backoff := opts.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &HTTPTransport{
		client: &http.Client{
			Timeout: to,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		maxRetries:   opts.MaxRetries,
		retryBackoff: backoff,
		logger:       logger,
	}
}

func (t *HTTPTransport) Do(ctx context.Context, r *port.Request) (*port.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			t.logger.Printf("WARNING: %s %s%s failed (%v), retry %d/%d", r.Method, r.Host, r.Path, lastErr, attempt, t.maxRetries)
			select {
			case <-time.After(time.Duration(attempt) * t.retryBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := t.do(ctx, r)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%s %s%s: %w", r.Method, r.Host, r.Path, lastErr)
}

func (t *HTTPTransport) do(ctx context.Context, r *port.Request) (*port.Response, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, URL(r), body)
	if err != nil {
		return nil, err
	}
	for k, v := range r.Header {
		req.Header[k] = append([]string(nil), v...)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &port.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: b}, nil
}

// URL renders the absolute URL a request targets.
func URL(r *port.Request) string {
	scheme := r.Scheme
	if scheme == "" {
		scheme = "https"
	}
	path := r.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return scheme + "://" + r.Host + path
}
