// Package trackr provides a client for the cyber.trackr.live compliance API:
// STIG/SRG documents, SCAP content, RMF controls and CCIs. All requests are
// unauthenticated JSON GETs.
package trackr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/cyber-trackr/cyber-trackr/pkg/buildinfo"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://cyber.trackr.live/api"

// Client is a caching cyber.trackr.live API client. It holds no pacing
// state of its own; callers that issue many requests sequence them through
// the schedule package.
type Client struct {
	baseURL    string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
	logger     logrus.FieldLogger

	// Responses are cached by path. nil when the TTL is zero.
	cache *cache.Cache
	ttl   time.Duration

	retryAttempts uint
	retryDelay    time.Duration
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (useful for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithTimeout sets the per-request connect+read timeout (default: 30 seconds).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCacheTTL sets the response cache TTL (default: 60 seconds). Zero
// disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

// WithRetry retries server errors and timeouts. attempts counts the first
// request, so 1 disables retries. The delay doubles after each attempt.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		c.retryAttempts = attempts
		c.retryDelay = delay
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger sets the logger used for retry and decode diagnostics.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a cyber.trackr.live API client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:       DefaultBaseURL,
		userAgent:     buildinfo.UserAgent(),
		timeout:       30 * time.Second,
		httpClient:    &http.Client{},
		logger:        logrus.StandardLogger(),
		ttl:           60 * time.Second,
		retryAttempts: 1,
		retryDelay:    500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	if c.ttl > 0 {
		c.cache = cache.New(c.ttl, 2*c.ttl)
	}
	if c.retryAttempts == 0 {
		c.retryAttempts = 1
	}
	return c
}

// errorBody is the problem document returned with 4xx/5xx responses.
type errorBody struct {
	Status  int    `json:"status"`
	Title   string `json:"title"`
	Detail  string `json:"detail"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (b errorBody) text() string {
	for _, s := range []string{b.Detail, b.Error, b.Message, b.Title} {
		if s != "" {
			return s
		}
	}
	return ""
}

// get performs a cached GET request and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	if c.cache != nil {
		if data, ok := c.cache.Get(path); ok {
			return c.decode(path, data.([]byte), out)
		}
	}

	var body []byte
	err := retry.Do(
		func() error {
			var err error
			body, err = c.do(ctx, path)
			return err
		},
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(isTransient),
		retry.OnRetry(func(n uint, err error) {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"path":    path,
				"attempt": n + 1,
			}).Debug("Request attempt failed")
		}),
	)
	if err != nil {
		return err
	}

	if err := c.decode(path, body, out); err != nil {
		return err
	}
	if c.cache != nil {
		c.cache.SetDefault(path, body)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(path, fmt.Errorf("read response: %w", err))
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, &APIError{Path: path, StatusCode: resp.StatusCode, kind: ErrNotFound}
	case resp.StatusCode >= 500:
		return nil, &APIError{Path: path, StatusCode: resp.StatusCode, Detail: parseErrorBody(body), kind: ErrServer}
	default:
		return nil, &APIError{Path: path, StatusCode: resp.StatusCode, Detail: parseErrorBody(body), kind: ErrAPI}
	}
}

// decode unmarshals body into out. The service occasionally emits raw
// control characters inside strings; those are blanked and decoding is
// retried once.
func (c *Client) decode(path string, body []byte, out any) error {
	err := json.Unmarshal(body, out)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	cleaned := stripControlChars(body)
	if bytes.Equal(cleaned, body) {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if err := json.Unmarshal(cleaned, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	c.logger.WithField("path", path).Debug("Decoded response after removing control characters")
	return nil
}

// ClearCache removes all cached responses.
func (c *Client) ClearCache() {
	if c.cache != nil {
		c.cache.Flush()
	}
}

func stripControlChars(b []byte) []byte {
	out := make([]byte, len(b))
	for i, ch := range b {
		if ch < 0x20 {
			ch = ' '
		}
		out[i] = ch
	}
	return out
}

func parseErrorBody(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	return eb.text()
}

func transportError(path string, err error) error {
	kind := ErrAPI
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = ErrTimeout
	}
	return &APIError{Path: path, kind: kind, cause: err}
}

func isTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Transient()
}
