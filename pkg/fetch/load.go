// Package fetch implements a paginated fetch client for REST/OData-style
// table APIs. It retries failed page requests with linearly increasing
// backoff and follows both pagination conventions such APIs use: a next
// link in the response body, or continuation token headers mapped back
// onto the initial URL's query string.
package fetch

import (
	"context"
	"encoding/json"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

var loadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pagefetch_loads_total",
	Help: "Total load operations by outcome",
}, []string{"outcome"})

// Load fetches every page of the table at rawURL and returns the
// accumulated records. Pages are fetched strictly sequentially because
// each request's target depends on the previous response.
//
// The lifecycle callbacks in opts are a thin adapter over the returned
// values: OnSuccess receives the records, OnError receives the error
// (which is returned regardless), and OnFinally runs exactly once on
// every exit path. When no OnError is supplied the error is logged
// before being returned.
func Load(ctx context.Context, rawURL string, opts *Options) ([]json.RawMessage, error) {
	cfg := resolveConfig(opts)
	logger := log.With().Str("component", "pagefetch").Logger()

	if opts != nil && opts.OnFinally != nil {
		defer opts.OnFinally()
	}

	records, err := fetchAll(ctx, logger, cfg, rawURL)
	if err != nil {
		loadsTotal.WithLabelValues("error").Inc()
		if opts != nil && opts.OnError != nil {
			opts.OnError(err)
		} else {
			logger.Error().Str("url", rawURL).Err(err).Msg("Load failed")
		}
		return nil, err
	}

	loadsTotal.WithLabelValues("success").Inc()
	if opts != nil && opts.OnSuccess != nil {
		opts.OnSuccess(records)
	}
	return records, nil
}
