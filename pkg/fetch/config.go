package fetch

import (
	"encoding/json"
	"net/http"
	"time"
)

// CredentialsPolicy controls whether ambient credentials (cookies) are
// attached to outgoing requests.
type CredentialsPolicy string

const (
	// CredentialsOmit strips ambient credentials from every request.
	CredentialsOmit CredentialsPolicy = "omit"

	// CredentialsInclude sends whatever credentials the HTTP client and
	// caller headers carry.
	CredentialsInclude CredentialsPolicy = "include"
)

// Defaults applied when the caller does not override them.
const (
	DefaultRetryCount = 3
	DefaultRetryDelay = 1 * time.Second
)

// Options holds caller overrides for a single Load call. All fields are
// optional; the zero value yields the default configuration.
type Options struct {
	// RetryCount is the number of retries after the initial attempt.
	// Nil or negative falls back to DefaultRetryCount.
	RetryCount *int

	// RetryDelay is the base backoff delay. The wait before attempt N is
	// RetryDelay * N. Nil or negative falls back to DefaultRetryDelay.
	RetryDelay *time.Duration

	// Method is the HTTP method for every page request (default GET).
	Method string

	// Header is merged over the default header set; caller values win on
	// key collision.
	Header http.Header

	// Credentials defaults to CredentialsOmit.
	Credentials CredentialsPolicy

	// HTTPClient is the transport used for all page requests
	// (default http.DefaultClient).
	HTTPClient *http.Client

	// OnSuccess is invoked with the accumulated records when every page
	// has been fetched.
	OnSuccess func(records []json.RawMessage)

	// OnError is invoked with the terminal error. When absent the error
	// is logged instead. The error is returned to the caller either way.
	OnError func(err error)

	// OnFinally runs exactly once after the load finishes, on both the
	// success and the failure path.
	OnFinally func()
}

// Config is the fully resolved configuration for one Load call. It is
// built once per call and never mutated afterwards.
type Config struct {
	RetryCount  int
	RetryDelay  time.Duration
	Method      string
	Header      http.Header
	Credentials CredentialsPolicy

	httpClient *http.Client
}

// resolveConfig merges caller options over the defaults. It cannot fail:
// invalid retry values are replaced, not rejected.
func resolveConfig(opts *Options) Config {
	cfg := Config{
		RetryCount:  DefaultRetryCount,
		RetryDelay:  DefaultRetryDelay,
		Method:      http.MethodGet,
		Header:      http.Header{},
		Credentials: CredentialsOmit,
		httpClient:  http.DefaultClient,
	}
	cfg.Header.Set("Accept", "application/json")

	if opts == nil {
		return cfg
	}

	if opts.RetryCount != nil && *opts.RetryCount >= 0 {
		cfg.RetryCount = *opts.RetryCount
	}
	if opts.RetryDelay != nil && *opts.RetryDelay >= 0 {
		cfg.RetryDelay = *opts.RetryDelay
	}
	if opts.Method != "" {
		cfg.Method = opts.Method
	}
	if opts.Credentials != "" {
		cfg.Credentials = opts.Credentials
	}
	if opts.HTTPClient != nil {
		cfg.httpClient = opts.HTTPClient
	}

	// Shallow merge: the caller's values replace the default set per key.
	for name, values := range opts.Header {
		cfg.Header[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}

	return cfg
}
