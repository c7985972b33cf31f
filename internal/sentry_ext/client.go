// Package sentry_ext reports errors to Sentry.
package sentry_ext

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

type Params struct {
	// DSN is the Data Source Name for the sentry client.
	//
	// An empty DSN disables reporting.
	DSN string

	// AttachStacktrace attaches a stacktrace to messages.
	AttachStacktrace bool

	// Release is the version of the application.
	Release string

	// Commit is the git commit hash.
	Commit string

	// Environment is "development" or "production".
	Environment string

	// LRUSize is the number of distinct recent events remembered for
	// de-duplication.
	LRUSize int
}

type Client struct {
	mu     sync.Mutex
	recent *dedupCache
}

// New initializes the sentry client.
//
// Returns nil if the de-duplication cache cannot be created.
func New(params Params) *Client {
	if err := sentry.Init(
		sentry.ClientOptions{
			Dsn:              params.DSN,
			AttachStacktrace: params.AttachStacktrace,
			Release:          params.Release,
			Dist:             params.Commit,
			Environment:      params.Environment,
		}); err != nil {
		slog.Error("sentry_ext: New: failed to initialize sentry", "error", err)
	}

	recent, err := newDedupCache(params.LRUSize)
	if err != nil {
		slog.Error("sentry_ext: New: failed to create cache", "error", err)
		return nil
	}

	return &Client{recent: recent}
}

// capture sends an event through a hub scoped to the tags, unless it
// repeats a recent one.
func (s *Client) capture(
	msg string,
	tags map[string]string,
	send func(hub *sentry.Hub),
) {
	s.mu.Lock()
	ok, suppressed := s.recent.admit(msg)
	s.mu.Unlock()
	if !ok {
		return
	}

	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		if suppressed > 0 {
			scope.SetTag("suppressed_repeats", strconv.Itoa(suppressed))
		}
	})
	send(hub)
}

// CaptureException sends an error to sentry as an error level event
// enriched with the given tags.
func (s *Client) CaptureException(err error, tags map[string]string) {
	s.capture(err.Error(), tags, func(hub *sentry.Hub) {
		hub.CaptureException(err)
	})
}

// CaptureMessage sends a message to sentry as an info level event
// enriched with the given tags.
func (s *Client) CaptureMessage(msg string, tags map[string]string) {
	s.capture(msg, tags, func(hub *sentry.Hub) {
		hub.CaptureMessage(msg)
	})
}

// Reraise captures a recovered panic value and panics again with it.
func (s *Client) Reraise(err any, tags map[string]string) {
	if err == nil {
		return
	}

	e, ok := err.(error)
	if !ok {
		e = fmt.Errorf("%v", err)
	}
	s.CaptureException(e, tags)
	s.Flush(2 * time.Second)
	panic(err)
}

// Flush waits for buffered events to be sent.
func (s *Client) Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
