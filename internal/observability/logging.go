// Package observability provides the logger shared by chunkup's packages.
package observability

import (
	"io"
	"log/slog"
	"maps"
)

// Tags are key-value pairs attached to reported errors.
type Tags map[string]string

// NewTags creates Tags from slog.Attr values and key-value pairs, as
// accepted by slog.Logger methods. It ignores incomplete pairs and other
// types.
func NewTags(args ...any) Tags {
	tags := Tags{}
	for len(args) > 0 {
		switch x := args[0].(type) {
		case slog.Attr:
			tags[x.Key] = x.Value.String()
			args = args[1:]
		case string:
			if len(args) < 2 {
				return tags
			}
			tags[x] = slog.AnyValue(args[1]).String()
			args = args[2:]
		default:
			args = args[1:]
		}
	}
	return tags
}

// ErrorReporter sends errors to an error tracking service.
//
// It is implemented by *sentry_ext.Client.
type ErrorReporter interface {
	CaptureException(err error, tags map[string]string)
	CaptureMessage(msg string, tags map[string]string)
	Reraise(err any, tags map[string]string)
}

type CoreLoggerParams struct {
	// Sentry receives captured errors. Errors are only logged if nil.
	Sentry ErrorReporter

	// Tags are added to every message and reported error.
	Tags Tags
}

// CoreLogger is a slog.Logger that can also report errors.
//
// Arguments passed to With become tags of reported errors, so that an
// error captured while uploading a file is reported with the file's name.
type CoreLogger struct {
	*slog.Logger
	tags     Tags
	reporter ErrorReporter
}

func NewCoreLogger(logger *slog.Logger, params *CoreLoggerParams) *CoreLogger {
	if params == nil {
		params = &CoreLoggerParams{}
	}

	cl := &CoreLogger{
		Logger:   logger,
		tags:     Tags{},
		reporter: params.Sentry,
	}
	if len(params.Tags) > 0 {
		return cl.With(tagArgs(params.Tags)...)
	}
	return cl
}

func tagArgs(tags Tags) []any {
	args := make([]any, 0, len(tags))
	for key, value := range tags {
		args = append(args, slog.String(key, value))
	}
	return args
}

// With returns a derived logger that includes the given attributes in
// each message and reported error.
func (cl *CoreLogger) With(args ...any) *CoreLogger {
	tags := maps.Clone(cl.tags)
	maps.Copy(tags, NewTags(args...))

	return &CoreLogger{
		Logger:   cl.Logger.With(args...),
		tags:     tags,
		reporter: cl.reporter,
	}
}

// Tags returns the tags added by With and CoreLoggerParams.
func (cl *CoreLogger) Tags() Tags {
	return maps.Clone(cl.tags)
}

// reportTags merges args into the logger's tags.
func (cl *CoreLogger) reportTags(args ...any) Tags {
	tags := NewTags(args...)
	maps.Copy(tags, cl.tags)
	return tags
}

// CaptureError logs an error and reports it.
func (cl *CoreLogger) CaptureError(err error, args ...any) {
	cl.Error(err.Error(), args...)

	if cl.reporter != nil {
		cl.reporter.CaptureException(err, cl.reportTags(args...))
	}
}

// CaptureWarn logs a warning and reports it.
func (cl *CoreLogger) CaptureWarn(msg string, args ...any) {
	cl.Warn(msg, args...)

	if cl.reporter != nil {
		cl.reporter.CaptureMessage(msg, cl.reportTags(args...))
	}
}

// Reraise reports panics and re-panics.
//
// Must be called directly in a defer statement.
func (cl *CoreLogger) Reraise(args ...any) {
	if err := recover(); err != nil {
		cl.Error("panic", "panic", err)
		if cl.reporter != nil {
			cl.reporter.Reraise(err, cl.reportTags(args...))
		}
		panic(err)
	}
}

// NewNoOpLogger returns a logger that discards all messages.
func NewNoOpLogger() *CoreLogger {
	return NewCoreLogger(slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
}
