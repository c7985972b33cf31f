package observability_test

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wandb/chunkup/internal/observability"
	"github.com/wandb/chunkup/internal/observabilitytest"
)

func TestNewTags(t *testing.T) {
	testCases := []struct {
		name   string
		input  []any
		expect observability.Tags
	}{
		{
			name:   "Tags from slog.Attr",
			input:  []any{slog.Attr{Key: "key1", Value: slog.Int64Value(123)}},
			expect: observability.Tags{"key1": "123"},
		},
		{
			name:   "Tags from string and int",
			input:  []any{"key2", 456},
			expect: observability.Tags{"key2": "456"},
		},
		{
			name:   "Tags from slog.Attr and dangling string",
			input:  []any{slog.Attr{Key: "key6", Value: slog.Int64Value(123)}, "key7"},
			expect: observability.Tags{"key6": "123"},
		},
		{
			name:   "Tags from empty input",
			input:  []any{},
			expect: observability.Tags{},
		},
		{
			name: "Tags ignore unsupported types",
			input: []any{
				map[string]string{"key9": "value9"},
				"key10",
				10,
			},
			expect: observability.Tags{"key10": "10"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, observability.NewTags(tc.input...))
		})
	}
}

func TestNewNoOpLogger(t *testing.T) {
	logger := observability.NewNoOpLogger()

	assert.NotNil(t, logger.Logger)
	assert.Equal(t, observability.Tags{}, logger.Tags())
}

// fakeReporter records reported errors.
type fakeReporter struct {
	errors   []error
	messages []string
	tags     []map[string]string
}

func (r *fakeReporter) CaptureException(err error, tags map[string]string) {
	r.errors = append(r.errors, err)
	r.tags = append(r.tags, tags)
}

func (r *fakeReporter) CaptureMessage(msg string, tags map[string]string) {
	r.messages = append(r.messages, msg)
	r.tags = append(r.tags, tags)
}

func (r *fakeReporter) Reraise(err any, tags map[string]string) {}

func TestCaptureError_LogsAtErrorLevel(t *testing.T) {
	logger, logs := observabilitytest.NewRecordingTestLogger(t)

	logger.With("file", "a.bin").CaptureError(errors.New("upload failed"), "offset", 3)

	records := observabilitytest.ExtractLogs(t, logs)
	assert.Equal(t, []map[string]string{{
		"level":  "ERROR",
		"msg":    "upload failed",
		"file":   "a.bin",
		"offset": "3",
	}}, records)
}

func TestCaptureError_ReportsWithTags(t *testing.T) {
	reporter := &fakeReporter{}
	logger := observability.NewCoreLogger(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		&observability.CoreLoggerParams{
			Sentry: reporter,
			Tags:   observability.Tags{"run_id": "r1"},
		},
	)
	testErr := errors.New("upload failed")

	logger.With("file", "a.bin").CaptureError(testErr, "offset", 3)
	logger.CaptureWarn("slow", "file", "b.bin")

	assert.Equal(t, []error{testErr}, reporter.errors)
	assert.Equal(t, []string{"slow"}, reporter.messages)
	assert.Equal(t,
		[]map[string]string{
			{"run_id": "r1", "file": "a.bin", "offset": "3"},
			{"run_id": "r1", "file": "b.bin"},
		},
		reporter.tags)
}

func TestWith_DoesNotModifyParent(t *testing.T) {
	logger := observability.NewCoreLogger(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		&observability.CoreLoggerParams{Tags: observability.Tags{"run_id": "1"}},
	)

	child := logger.With("file", "a.bin")

	assert.Equal(t, observability.Tags{"run_id": "1"}, logger.Tags())
	assert.Equal(t,
		observability.Tags{"run_id": "1", "file": "a.bin"},
		child.Tags())
}

func TestReraise(t *testing.T) {
	logger, logs := observabilitytest.NewRecordingTestLogger(t)
	testErr := errors.New("test error")

	defer func() {
		assert.Equal(t, testErr, recover())
		assert.Contains(t, logs.String(), "test error")
	}()

	defer logger.Reraise()
	panic(testErr)
}
