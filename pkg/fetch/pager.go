package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var pagesPerLoad = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "pagefetch_pages_per_load",
	Help:    "Number of pages fetched per load",
	Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
})

// Body keys and response headers that signal the next page.
const (
	legacyNextLinkKey = "odata.nextLink"
	prefixNextLinkKey = "@odata.nextLink"

	partitionKeyHeader = "x-ms-continuation-NextPartitionKey"
	rowKeyHeader       = "x-ms-continuation-NextRowKey"

	partitionKeyParam = "NextPartitionKey"
	rowKeyParam       = "NextRowKey"
)

type continuationKind int

const (
	continueNone continuationKind = iota
	continueNextLink
	continueToken
)

// continuation is the paging signal extracted from one page response.
// Exactly one mode holds per page; a next link in the body beats any
// token headers on the same response.
type continuation struct {
	kind         continuationKind
	nextLink     string
	partitionKey string
	rowKey       string
}

// nextContinuation inspects a page response and decides how to reach
// the page after it.
func nextContinuation(page *pageResponse) continuation {
	for _, key := range []string{legacyNextLinkKey, prefixNextLinkKey} {
		raw, ok := page.fields[key]
		if !ok {
			continue
		}
		var link string
		if err := json.Unmarshal(raw, &link); err == nil && link != "" {
			return continuation{kind: continueNextLink, nextLink: link}
		}
	}

	pk := page.header.Get(partitionKeyHeader)
	rk := page.header.Get(rowKeyHeader)
	if pk != "" || rk != "" {
		return continuation{kind: continueToken, partitionKey: pk, rowKey: rk}
	}

	return continuation{kind: continueNone}
}

// nextURL computes the request URL for the page after the current one,
// or nil when pagination is done. Next links resolve against the page
// they came from; token mode restarts from the initial URL with the
// token query parameters replaced. An absent token removes its
// parameter rather than leaving a stale value.
func nextURL(initial, current *url.URL, c continuation) (*url.URL, error) {
	switch c.kind {
	case continueNextLink:
		ref, err := url.Parse(c.nextLink)
		if err != nil {
			return nil, fmt.Errorf("next link %q: %w", c.nextLink, err)
		}
		return current.ResolveReference(ref), nil

	case continueToken:
		u := *initial
		q := u.Query()
		if c.partitionKey != "" {
			q.Set(partitionKeyParam, c.partitionKey)
		} else {
			q.Del(partitionKeyParam)
		}
		if c.rowKey != "" {
			q.Set(rowKeyParam, c.rowKey)
		} else {
			q.Del(rowKeyParam)
		}
		u.RawQuery = q.Encode()
		return &u, nil
	}

	return nil, nil
}

// pageRecords returns the elements of the body's value array in server
// order. An absent or non-array value contributes zero records without
// erroring.
func pageRecords(page *pageResponse) []json.RawMessage {
	raw, ok := page.fields["value"]
	if !ok {
		return nil
	}
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil
	}
	return records
}

// fetchAll walks every page starting at rawURL, strictly sequentially,
// and accumulates the records of each page in server-returned order.
// A page failure propagates immediately; records gathered so far are
// discarded.
func fetchAll(ctx context.Context, logger zerolog.Logger, cfg Config, rawURL string) ([]json.RawMessage, error) {
	initial, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	var records []json.RawMessage
	target := initial
	pages := 0

	for target != nil {
		page, err := fetchPage(ctx, logger, cfg, target.String())
		if err != nil {
			return nil, err
		}
		pages++
		records = append(records, pageRecords(page)...)

		next, err := nextURL(initial, target, nextContinuation(page))
		if err != nil {
			return nil, err
		}
		if next != nil {
			logger.Debug().
				Str("next", next.String()).
				Int("records", len(records)).
				Msg("Continuing to next page")
		}
		target = next
	}

	pagesPerLoad.Observe(float64(pages))
	logger.Debug().
		Int("pages", pages).
		Int("records", len(records)).
		Msg("Pagination complete")

	return records, nil
}
