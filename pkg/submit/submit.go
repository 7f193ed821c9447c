// Package submit posts contact-form submissions. Unlike the paging
// fetcher, the retry schedule here is fixed: a constant number of
// attempts with a constant delay between them.
package submit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/mweber-dev/pagefetch/pkg/fetch"
)

var submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pagefetch_submissions_total",
	Help: "Total form submissions by outcome",
}, []string{"outcome"})

const (
	maxAttempts = 3

	captchaField    = "captcha"
	requestIDHeader = "X-Request-ID"
)

// retryStep is the constant delay between attempts. Variable so tests
// can shorten it.
var retryStep = 2 * time.Second

// Options holds optional settings for a submission.
type Options struct {
	// HTTPClient is the transport used for the POST
	// (default http.DefaultClient).
	HTTPClient *http.Client

	// CaptchaToken, when set, is attached as the captcha form field.
	// Acquiring the token is the caller's concern.
	CaptchaToken string
}

// Submit posts the form fields to rawURL, retrying up to a fixed number
// of attempts with a constant delay between them. Each submission is
// tagged with a generated request ID so the attempts of one logical
// submission can be correlated server-side.
func Submit(ctx context.Context, rawURL string, fields url.Values, opts *Options) error {
	client := http.DefaultClient
	if opts != nil && opts.HTTPClient != nil {
		client = opts.HTTPClient
	}

	form := url.Values{}
	for name, values := range fields {
		form[name] = append([]string(nil), values...)
	}
	if opts != nil && opts.CaptchaToken != "" {
		form.Set(captchaField, opts.CaptchaToken)
	}

	requestID := uuid.NewString()
	logger := log.With().
		Str("component", "submit").
		Str("request_id", requestID).
		Logger()

	body := form.Encode()
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		req.Header.Set(requestIDHeader, requestID)

		resp, err := client.Do(req)
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
				if attempt > 1 {
					logger.Info().Int("attempt", attempt).Msg("Submission succeeded after retry")
				}
				submissionsTotal.WithLabelValues("success").Inc()
				return nil
			}
			lastErr = &fetch.StatusError{
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
				URL:        rawURL,
			}
		} else {
			lastErr = err
		}

		if attempt == maxAttempts {
			break
		}

		logger.Debug().
			Int("attempt", attempt).
			Dur("backoff", retryStep).
			Err(lastErr).
			Msg("Retrying submission after backoff")

		select {
		case <-ctx.Done():
			submissionsTotal.WithLabelValues("cancelled").Inc()
			return fmt.Errorf("%w: %v", fetch.ErrContextCancelled, ctx.Err())
		case <-time.After(retryStep):
		}
	}

	submissionsTotal.WithLabelValues("error").Inc()
	logger.Warn().Int("attempts", maxAttempts).Err(lastErr).Msg("Submission failed")
	return fmt.Errorf("%w after %d attempts: %w", fetch.ErrRetryExhausted, maxAttempts, lastErr)
}
