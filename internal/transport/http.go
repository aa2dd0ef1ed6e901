// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025 Datadog, Inc.

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/DataDog/dd-calltree-go/internal/log"
	"github.com/DataDog/dd-calltree-go/internal/version"
)

const (
	headerContentType     = "Content-Type"
	headerContentEncoding = "Content-Encoding"
	headerAuthorization   = "Authorization"
	headerUserAgent       = "User-Agent"
	contentTypeJSON       = "application/json"

	defaultHTTPTimeout    = 10 * time.Second
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 500 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
)

var httpPaths = map[Kind]string{
	KindMonitoring: "/private/metrics/store/",
	KindEvent:      "/private/events/store/",
	KindMetrics:    "/private/metrics/system/",
	KindDatapoint:  "/private/datapoints/store/",
}

// StatusError is returned when the collector answers with a non 2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code %d", e.Code)
	}
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Body)
}

// retryable reports whether the request may succeed if sent again.
func (e *StatusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// HTTP posts JSON payloads to a collector. It is safe for concurrent use.
type HTTP struct {
	client         *http.Client
	baseURL        string
	apiKey         string
	compression    compression
	maxAttempts    int
	initialBackoff time.Duration

	mu         sync.Mutex // guards compressor
	compressor compressor
}

// HTTPOption configures an HTTP transport.
type HTTPOption func(*HTTP) error

// WithClient sets the HTTP client used to reach the collector. A nil client
// keeps the default one.
func WithClient(c *http.Client) HTTPOption {
	return func(h *HTTP) error {
		if c != nil {
			h.client = c
		}
		return nil
	}
}

// WithAPIKey sets the key sent in the Authorization header.
func WithAPIKey(key string) HTTPOption {
	return func(h *HTTP) error {
		h.apiKey = key
		return nil
	}
}

// WithCompression sets the body compression, e.g. "gzip", "gzip-1",
// "zstd-2" or "none". Defaults to gzip-6.
func WithCompression(s string) HTTPOption {
	return func(h *HTTP) error {
		c, err := parseCompression(s)
		if err != nil {
			return err
		}
		h.compression = c
		return nil
	}
}

// WithRetry sets how many times a payload is attempted and the first delay
// between attempts.
func WithRetry(attempts int, initialBackoff time.Duration) HTTPOption {
	return func(h *HTTP) error {
		if attempts < 1 {
			return fmt.Errorf("retry attempts must be at least 1, got %d", attempts)
		}
		h.maxAttempts = attempts
		h.initialBackoff = initialBackoff
		return nil
	}
}

// NewHTTP returns a transport posting to baseURL.
func NewHTTP(baseURL string, opts ...HTTPOption) (*HTTP, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("collector URL is required")
	}
	h := &HTTP{
		client:         &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		compression:    gzip6Compression,
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	c, err := newCompressor(h.compression)
	if err != nil {
		return nil, fmt.Errorf("creating %s compressor: %w", h.compression, err)
	}
	h.compressor = c
	return h, nil
}

// Produce posts payload to the endpoint of kind. Network errors, 429 and 5xx
// answers are retried with exponential backoff.
func (h *HTTP) Produce(ctx context.Context, payload any, kind Kind) error {
	path, ok := httpPaths[kind]
	if !ok {
		return unsupported(kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", kind, err)
	}
	h.mu.Lock()
	body, err := compress(h.compressor, raw)
	h.mu.Unlock()
	if err != nil {
		return fmt.Errorf("compressing %s payload: %w", kind, err)
	}
	url := h.baseURL + path

	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(h.initialBackoff),
		backoff.WithMaxInterval(defaultMaxBackoff),
		backoff.WithMaxElapsedTime(0),
	)
	attempt := 0
	op := func() error {
		attempt++
		err := h.post(ctx, url, body)
		if err == nil {
			return nil
		}
		var se *StatusError
		if errors.As(err, &se) && !se.retryable() {
			return backoff.Permanent(err)
		}
		log.Debug("Attempt %d to send %s payload to %s failed: %v", attempt, kind, url, err)
		return err
	}
	retries := backoff.WithMaxRetries(b, uint64(h.maxAttempts-1))
	if err := backoff.Retry(op, backoff.WithContext(retries, ctx)); err != nil {
		return fmt.Errorf("sending %s payload after %d attempt(s): %w", kind, attempt, err)
	}
	return nil
}

func (h *HTTP) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set(headerContentType, contentTypeJSON)
	req.Header.Set(headerUserAgent, "dd-calltree-go/"+version.Tag)
	if enc := h.compression.contentEncoding(); enc != "" {
		req.Header.Set(headerContentEncoding, enc)
	}
	if h.apiKey != "" {
		req.Header.Set(headerAuthorization, "JWT "+h.apiKey)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
}

// Close releases idle connections.
func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
