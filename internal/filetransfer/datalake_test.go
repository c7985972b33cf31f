package filetransfer_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wandb/chunkup/internal/filetransfer"
	"github.com/wandb/chunkup/internal/observabilitytest"
	"github.com/wandb/chunkup/internal/retryableclient"
)

// fakeDataLake is an in-memory Data Lake Storage path endpoint.
type fakeDataLake struct {
	mu sync.Mutex

	data        []byte
	flushed     bool
	contentType string
	versions    []string
	signatures  []string

	// appendStatus, if set, is the status of append requests.
	appendStatus int
}

func (f *fakeDataLake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.versions = append(f.versions, r.Header.Get("x-ms-version"))
	f.signatures = append(f.signatures, r.URL.Query().Get("sig"))
	query := r.URL.Query()

	switch {
	case r.Method == http.MethodPut && query.Get("resource") == "file":
		f.data = nil
		f.flushed = false
		w.WriteHeader(http.StatusCreated)

	case r.Method == http.MethodPatch && query.Get("action") == "append":
		if f.appendStatus != 0 {
			w.WriteHeader(f.appendStatus)
			_, _ = w.Write([]byte("PositionMismatch"))
			return
		}
		position, _ := strconv.Atoi(query.Get("position"))
		body, _ := io.ReadAll(r.Body)
		if position != len(f.data) {
			w.WriteHeader(http.StatusConflict)
			return
		}
		f.data = append(f.data, body...)
		w.WriteHeader(http.StatusAccepted)

	case r.Method == http.MethodPatch && query.Get("action") == "flush":
		position, _ := strconv.Atoi(query.Get("position"))
		if position != len(f.data) || query.Get("close") != "true" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.flushed = true
		f.contentType = r.Header.Get("x-ms-content-type")
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newDataLakeClient(
	t *testing.T,
	handler http.Handler,
) *filetransfer.DataLakeClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	target, err := url.Parse(server.URL + "/fs/dir/file.bin?sig=secret")
	require.NoError(t, err)

	logger := observabilitytest.NewTestLogger(t)
	return filetransfer.NewDataLakeClient(
		retryableclient.NewRetryClient(
			retryableclient.WithRetryClientLogger(logger),
			retryableclient.WithRetryClientHeaders(map[string]string{
				"x-ms-version": filetransfer.DataLakeVersion,
			}),
		),
		logger,
		target,
	)
}

func TestDataLakeClient_Upload(t *testing.T) {
	server := &fakeDataLake{}
	client := newDataLakeClient(t, server)
	ctx := context.Background()
	var reportsMu sync.Mutex
	var reports []int64

	require.NoError(t, client.Create(ctx))
	require.NoError(t, client.Transfer(
		ctx, strings.NewReader("hello "), 0, 6,
		func(loaded int64) {
			reportsMu.Lock()
			defer reportsMu.Unlock()
			reports = append(reports, loaded)
		},
	))
	require.NoError(t, client.Transfer(
		ctx, strings.NewReader("world"), 6, 5,
		func(int64) {},
	))
	require.NoError(t, client.Finalize(ctx, 11, "text/plain"))

	server.mu.Lock()
	defer server.mu.Unlock()
	assert.Equal(t, "hello world", string(server.data))
	assert.True(t, server.flushed)
	assert.Equal(t, "text/plain", server.contentType)
	reportsMu.Lock()
	defer reportsMu.Unlock()
	require.NotEmpty(t, reports)
	assert.EqualValues(t, 6, reports[len(reports)-1])
	for i := range server.versions {
		assert.Equal(t, filetransfer.DataLakeVersion, server.versions[i])
		assert.Equal(t, "secret", server.signatures[i])
	}
}

func TestDataLakeClient_AppendFailure(t *testing.T) {
	server := &fakeDataLake{appendStatus: http.StatusConflict}
	client := newDataLakeClient(t, server)
	ctx := context.Background()
	require.NoError(t, client.Create(ctx))

	err := client.Transfer(ctx, strings.NewReader("abc"), 0, 3, func(int64) {})

	var statusErr *filetransfer.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "append", statusErr.Op)
	assert.Equal(t, http.StatusConflict, statusErr.StatusCode)
	assert.Equal(t, "PositionMismatch", statusErr.Body)
}

func TestDataLakeClient_FlushFailure(t *testing.T) {
	server := &fakeDataLake{}
	client := newDataLakeClient(t, server)
	ctx := context.Background()
	require.NoError(t, client.Create(ctx))

	// The flush position doesn't match the appended data.
	err := client.Finalize(ctx, 10, "")

	assert.ErrorContains(t, err, "flush: 400 Bad Request")
}

func TestDataLakeClient_CancelledContext(t *testing.T) {
	client := newDataLakeClient(t, &fakeDataLake{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.Create(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDataLakeClient_ConnectionErrorOmitsSignature(t *testing.T) {
	server := httptest.NewServer(&fakeDataLake{})
	server.Close()
	target, err := url.Parse(server.URL + "/fs/file.bin?sig=SECRET")
	require.NoError(t, err)
	client := filetransfer.NewDataLakeClient(
		retryableclient.NewRetryClient(
			retryableclient.WithRetryClientLogger(observabilitytest.NewTestLogger(t)),
			retryableclient.WithRetryClientRetryMax(0),
		),
		observabilitytest.NewTestLogger(t),
		target,
	)

	err = client.Create(context.Background())

	var requestErr *filetransfer.RequestError
	require.ErrorAs(t, err, &requestErr)
	assert.Equal(t, http.MethodPut, requestErr.Method)
	assert.Equal(t, server.URL+"/fs/file.bin", requestErr.URL)
	assert.NotContains(t, err.Error(), "sig=")
	assert.NotContains(t, err.Error(), "SECRET")
}
