package httpclient

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/aleister1102/hostpulse/internal/common/errors"
	"github.com/rs/zerolog"
)

// RetryConfig controls exponential backoff between attempts.
type RetryConfig struct {
	MaxRetries       int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	RetryStatusCodes []int
}

// DefaultRetryConfig retries twice on throttling and gateway errors.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		RetryStatusCodes: []int{
			http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// RetryHandler runs a request function with retries.
type RetryHandler struct {
	maxRetries       int
	baseDelay        time.Duration
	maxDelay         time.Duration
	retryStatusCodes map[int]bool
	logger           zerolog.Logger
}

// NewRetryHandler creates a retry handler from cfg.
func NewRetryHandler(cfg RetryConfig, logger zerolog.Logger) *RetryHandler {
	codes := make(map[int]bool, len(cfg.RetryStatusCodes))
	for _, code := range cfg.RetryStatusCodes {
		codes[code] = true
	}
	return &RetryHandler{
		maxRetries:       cfg.MaxRetries,
		baseDelay:        cfg.BaseDelay,
		maxDelay:         cfg.MaxDelay,
		retryStatusCodes: codes,
		logger:           logger.With().Str("component", "RetryHandler").Logger(),
	}
}

// CalculateDelay returns baseDelay * 2^attempt capped at maxDelay.
func (rh *RetryHandler) CalculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return rh.baseDelay
	}
	delay := rh.baseDelay * time.Duration(math.Pow(2, float64(attempt)))
	if rh.maxDelay > 0 && delay > rh.maxDelay {
		delay = rh.maxDelay
	}
	return delay
}

func (rh *RetryHandler) wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(rh.CalculateDelay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DoWithRetry calls fn until it succeeds with a non-retryable status or the
// attempts run out. The last response is returned even when its status was
// retryable.
func (rh *RetryHandler) DoWithRetry(ctx context.Context, url string, fn func() (*Response, error)) (*Response, error) {
	var (
		lastResp *Response
		lastErr  error
	)

	for attempt := 0; attempt <= rh.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := fn()
		lastResp, lastErr = resp, err

		retryable := err != nil || rh.retryStatusCodes[resp.StatusCode]
		if !retryable || attempt == rh.maxRetries {
			break
		}

		event := rh.logger.Debug().Str("url", url).Int("attempt", attempt+1).Int("max_retries", rh.maxRetries)
		if err != nil {
			event.Err(err).Msg("Request failed, retrying")
		} else {
			event.Int("status_code", resp.StatusCode).Msg("Retryable status, backing off")
		}
		if err := rh.wait(ctx, attempt); err != nil {
			return nil, err
		}
	}

	if lastErr != nil {
		return nil, errors.WrapError(lastErr, "all retry attempts failed")
	}
	return lastResp, nil
}
