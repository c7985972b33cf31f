package uploadmetrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wandb/chunkup/internal/chunkupload"
	"github.com/wandb/chunkup/internal/chunkuploadtest"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder, err := NewRecorder(reg)
	require.NoError(t, err)
	now := time.Unix(100, 0)
	recorder.now = func() time.Time { return now }
	hooks := recorder.Hooks()
	ctx := context.Background()
	fileA := chunkupload.FileItem{File: chunkuploadtest.NewFakeFile("a", []byte("1234"))}
	fileB := chunkupload.FileItem{File: chunkuploadtest.NewFakeFile("b", []byte("56"))}

	require.NoError(t, hooks.OnStart(ctx))
	require.NoError(t, hooks.OnItemStart(ctx, fileA))
	fileA.UploadedBytes = 3
	hooks.OnItemProgress(fileA)
	fileA.UploadedBytes = 4
	hooks.OnItemProgress(fileA)
	hooks.OnProgress(4.0 / 6 * 100)
	now = now.Add(2 * time.Second)
	require.NoError(t, hooks.OnItemComplete(ctx, fileA))
	require.NoError(t, hooks.OnItemStart(ctx, fileB))
	fileB.UploadedBytes = 1
	hooks.OnItemProgress(fileB)
	hooks.OnItemError(fileB, errors.New("failed"))

	assert.EqualValues(t, 1, testutil.ToFloat64(recorder.runs))
	assert.EqualValues(t, 5, testutil.ToFloat64(recorder.uploadedBytes))
	assert.InDelta(t, 66.67, testutil.ToFloat64(recorder.progress), 0.01)
	assert.EqualValues(t, 1, testutil.ToFloat64(recorder.files.WithLabelValues("completed")))
	assert.EqualValues(t, 1, testutil.ToFloat64(recorder.files.WithLabelValues("failed")))
	assert.Equal(t, 1, testutil.CollectAndCount(recorder.fileUploadTimes))
}

func TestNewRecorder_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRecorder(reg)
	require.NoError(t, err)

	_, err = NewRecorder(reg)

	assert.Error(t, err)
}
