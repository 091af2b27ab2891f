package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/rs/zerolog"
)

// Config holds the settings of an outbound HTTP client.
type Config struct {
	Timeout        time.Duration
	DialTimeout    time.Duration
	UserAgent      string
	MaxContentSize int64 // 0 means no limit
	Retry          RetryConfig
}

// DefaultConfig returns conservative defaults for small JSON fetches.
func DefaultConfig() Config {
	return Config{
		Timeout:        10 * time.Second,
		DialTimeout:    5 * time.Second,
		UserAgent:      "hostpulse",
		MaxContentSize: 1 << 20,
		Retry:          DefaultRetryConfig(),
	}
}

// Client wraps net/http.Client with retries and size limits.
type Client struct {
	client *http.Client
	config Config
	retry  *RetryHandler
	logger zerolog.Logger
}

// NewClient creates a client. A nil transport uses a dedicated
// http.Transport built from cfg.
func NewClient(cfg Config, transport http.RoundTripper, logger zerolog.Logger) *Client {
	if transport == nil {
		transport = &http.Transport{
			DialContext:         (&net.Dialer{Timeout: cfg.DialTimeout}).DialContext,
			TLSHandshakeTimeout: cfg.DialTimeout,
			MaxIdleConns:        4,
			IdleConnTimeout:     30 * time.Second,
		}
	}
	logger = logger.With().Str("component", "HTTPClient").Logger()
	return &Client{
		client: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		config: cfg,
		retry:  NewRetryHandler(cfg.Retry, logger),
		logger: logger,
	}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Get fetches url, retrying on network errors and retryable status codes.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.retry.DoWithRetry(ctx, url, func() (*Response, error) {
		return c.do(ctx, http.MethodGet, url)
	})
}

func (c *Client) do(ctx context.Context, method, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, errors.WrapError(err, "failed to create HTTP request")
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, NewNetworkError(url, "HTTP request failed", err)
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if c.config.MaxContentSize > 0 {
		reader = io.LimitReader(resp.Body, c.config.MaxContentSize+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, NewNetworkError(url, "failed to read response body", err)
	}
	if c.config.MaxContentSize > 0 && int64(len(body)) > c.config.MaxContentSize {
		return nil, errors.NewValidationError("content_length", len(body), "response exceeds maximum content size")
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// GetJSON fetches url and decodes a 200 response into out.
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		body := resp.Body
		if len(body) > 512 {
			body = body[:512]
		}
		c.logger.Warn().Str("url", url).Int("status_code", resp.StatusCode).Msg("Received non-OK HTTP status")
		return NewHTTPError(resp.StatusCode, string(body), url)
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return errors.WrapErrorf(err, "failed to decode JSON from %s", url)
	}
	return nil
}
