package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for page requests and retries.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagefetch_requests_total",
		Help: "Total page requests by HTTP status or failure kind",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pagefetch_request_duration_seconds",
		Help:    "Page request duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagefetch_retries_total",
		Help: "Total number of retry attempts",
	})

	retryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pagefetch_retry_backoff_seconds",
		Help:    "Backoff duration before each retry",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagefetch_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted",
	})
)

// pageResponse is one successfully fetched and decoded page: the body's
// top-level fields plus the response headers carrying any continuation
// tokens.
type pageResponse struct {
	fields map[string]json.RawMessage
	header http.Header
}

// fetchPage performs one logical request with linearly increasing
// backoff. Transport errors and non-2xx statuses are retried up to
// cfg.RetryCount times; a body that fails to decode is fatal
// immediately.
func fetchPage(ctx context.Context, logger zerolog.Logger, cfg Config, rawURL string) (*pageResponse, error) {
	var lastErr error

	for attempt := 0; ; {
		page, err := doAttempt(ctx, cfg, rawURL)
		if err == nil {
			if attempt > 0 {
				logger.Info().
					Str("url", rawURL).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return page, nil
		}
		if errors.Is(err, ErrBadBody) {
			// A parsing defect is not a transient condition.
			return nil, err
		}

		lastErr = err
		attempt++
		if attempt > cfg.RetryCount {
			retryExhaustedTotal.Inc()
			logger.Warn().
				Str("url", rawURL).
				Int("attempts", attempt).
				Err(lastErr).
				Msg("Retry attempts exhausted")
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt, lastErr)
		}

		// Linear backoff: 1x, 2x, 3x... the base delay.
		delay := cfg.RetryDelay * time.Duration(attempt)
		retriesTotal.Inc()
		retryBackoffSeconds.Observe(delay.Seconds())

		logger.Debug().
			Str("url", rawURL).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Err(lastErr).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			logger.Warn().
				Str("url", rawURL).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(delay):
		}
	}
}

// doAttempt issues a single HTTP request and decodes the response body.
func doAttempt(ctx context.Context, cfg Config, rawURL string) (*pageResponse, error) {
	req, err := http.NewRequestWithContext(ctx, cfg.Method, rawURL, nil)
	if err != nil {
		return nil, err
	}

	for name, values := range cfg.Header {
		req.Header[name] = append([]string(nil), values...)
	}
	// Omit strips cookies from the request; all other caller headers
	// are sent as-is.
	if cfg.Credentials != CredentialsInclude {
		req.Header.Del("Cookie")
	}

	start := time.Now()
	resp, err := cfg.httpClient.Do(req)
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues("transport_error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        rawURL,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		requestsTotal.WithLabelValues("transport_error").Inc()
		return nil, err
	}
	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		if !json.Valid(body) {
			return nil, fmt.Errorf("%w: %v", ErrBadBody, err)
		}
		// Valid JSON that is not an object: no records, no continuation.
		fields = nil
	}

	return &pageResponse{fields: fields, header: resp.Header}, nil
}
