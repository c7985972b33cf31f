package filetransfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ErrUnsupportedTarget is returned for targets no client can upload to.
var ErrUnsupportedTarget = errors.New("filetransfer: unsupported target")

// StatusError is an unexpected HTTP response.
type StatusError struct {
	// Op is the request that failed, like "append".
	Op string

	StatusCode int
	Status     string

	// Body is the start of the response body.
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("filetransfer: %s: %s", e.Op, e.Status)
	}
	return fmt.Sprintf("filetransfer: %s: %s: %s", e.Op, e.Status, e.Body)
}

// errNoResponse replaces failures whose text may contain the request URL.
var errNoResponse = errors.New("no response")

// RequestError is a request that got no usable response.
//
// URL has no query, so a signature in the request URL never appears in
// the error text.
type RequestError struct {
	Method string
	URL    string
	Err    error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("filetransfer: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// NewRequestError wraps a failed request to u.
//
// Only the underlying cause of err is kept: *url.Error and retryablehttp
// both format the full URL into their messages.
func NewRequestError(method string, u *url.URL, err error) *RequestError {
	cause := errNoResponse
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.Canceled):
		cause = context.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		cause = context.DeadlineExceeded
	case errors.As(err, &urlErr):
		cause = urlErr.Err
	}
	return &RequestError{Method: method, URL: sessionKey(u), Err: cause}
}

// maxErrorBody is how much of an error response body is kept.
const maxErrorBody = 512

// checkStatus consumes the response, returning a *StatusError if its
// status is not the expected one.
func checkStatus(op string, resp *http.Response, expected int) error {
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == expected {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}
