// Package retryableclient builds the HTTP clients used for uploads.
package retryableclient

import (
	"maps"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/wandb/chunkup/internal/observability"
	"github.com/wandb/chunkup/internal/version"
)

// headerTransport stamps every request with the user agent and any extra
// static headers, such as an x-ms-version pin.
type headerTransport struct {
	headers map[string]string
	wrapped http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", version.UserAgent())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.wrapped.RoundTrip(req)
}

// NewRetryClient returns a retryablehttp client configured by opts.
//
// Unlike retryablehttp's default, the client does not retry unless
// WithRetryClientRetryMax is given: chunk uploads are retried by the
// upload engine, which must see every failed attempt.
func NewRetryClient(opts ...RetryClientOption) *retryablehttp.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 0
	retryClient.Logger = nil

	for _, opt := range opts {
		opt(retryClient)
	}
	return retryClient
}

type RetryClientOption func(rc *retryablehttp.Client)

// WithRetryClientLogger logs retried requests at the debug level.
//
// retryablehttp's own logger stays off because it logs full URLs, and
// upload URLs may carry credentials in their query. Only the host is
// logged here.
func WithRetryClientLogger(logger *observability.CoreLogger) RetryClientOption {
	return func(rc *retryablehttp.Client) {
		rc.Logger = nil
		rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
			if attempt == 0 {
				return
			}
			logger.Debug(
				"retryableclient: retrying request",
				"method", req.Method,
				"host", req.URL.Host,
				"attempt", attempt,
			)
		}
	}
}

func WithRetryClientRetryMax(retryMax int) RetryClientOption {
	return func(rc *retryablehttp.Client) {
		rc.RetryMax = retryMax
	}
}

// WithRetryClientHeaders adds static headers to every request.
//
// Later maps override earlier ones.
func WithRetryClientHeaders(headers ...map[string]string) RetryClientOption {
	combined := make(map[string]string)
	for _, h := range headers {
		maps.Copy(combined, h)
	}

	return func(rc *retryablehttp.Client) {
		wrapped := rc.HTTPClient.Transport
		if wrapped == nil {
			wrapped = http.DefaultTransport
		}
		rc.HTTPClient.Transport = &headerTransport{
			headers: combined,
			wrapped: wrapped,
		}
	}
}

func WithRetryClientHttpTimeout(timeout time.Duration) RetryClientOption {
	return func(rc *retryablehttp.Client) {
		rc.HTTPClient.Timeout = timeout
	}
}

func WithRetryClientRetryPolicy(retryPolicy retryablehttp.CheckRetry) RetryClientOption {
	return func(rc *retryablehttp.Client) {
		rc.CheckRetry = retryPolicy
	}
}
