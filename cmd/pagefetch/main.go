// Command pagefetch loads every page of an OData-style table and writes
// the accumulated records as a JSON array to stdout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mweber-dev/pagefetch/pkg/fetch"
	"github.com/mweber-dev/pagefetch/pkg/logging"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "pagefetch:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("pagefetch", flag.ContinueOnError)
	retryCount := fs.Int("retry-count", fetch.DefaultRetryCount, "retries after the initial attempt")
	retryDelay := fs.Duration("retry-delay", fetch.DefaultRetryDelay, "base backoff delay; attempt N waits N times this")
	timeout := fs.Duration("timeout", 0, "overall deadline for the load (0 = none)")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	pretty := fs.Bool("pretty", false, "human-readable log output")
	metricsAddr := fs.String("metrics-addr", "", "expose Prometheus metrics on this address (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	url := fs.Arg(0)
	if url == "" {
		return errors.New("usage: pagefetch [flags] <url>")
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(*logLevel),
		Pretty: *pretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger("cli")

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	records, err := fetch.Load(ctx, url, &fetch.Options{
		RetryCount: retryCount,
		RetryDelay: retryDelay,
	})
	if err != nil {
		return err
	}

	logger.Info().Str("url", url).Int("records", len(records)).Msg("Load complete")

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
