// Package chunkupload uploads a queue of files in fixed-size chunks.
//
// Files are uploaded one after another and each file's chunks are sent in
// order. A failed chunk is retried immediately up to a fixed number of
// attempts; a file whose chunk exhausts its attempts is reported through
// Hooks.OnItemError and the run moves on to the next file.
package chunkupload

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/wandb/chunkup/internal/observability"
)

const (
	// DefaultChunkSize is the chunk size used when none is configured.
	DefaultChunkSize int64 = 100 * 1024 * 1024

	// DefaultChunkUploadRetries is the number of attempts per chunk used
	// when none is configured.
	DefaultChunkUploadRetries = 5
)

type UploaderParams struct {
	// Resolver maps each file to its upload target. Required.
	Resolver TargetResolver

	// Clients builds transfer clients for resolved targets. Required.
	Clients ClientFactory

	// ChunkSize is the maximum number of bytes per chunk.
	//
	// Non-positive values select DefaultChunkSize.
	ChunkSize int64

	// ChunkUploadRetries is the total number of attempts per chunk.
	//
	// Non-positive values select DefaultChunkUploadRetries.
	ChunkUploadRetries int

	Hooks Hooks

	// Logger is optional.
	Logger *observability.CoreLogger
}

// Uploader uploads queued files to remote storage.
//
// Its methods are safe to call concurrently. In particular, Cancel and the
// queue and progress accessors may be called while Upload runs.
type Uploader struct {
	logger    *observability.CoreLogger
	resolver  TargetResolver
	clients   ClientFactory
	chunkSize int64
	retries   int
	hooks     Hooks

	// mu protects the fields below.
	mu sync.Mutex

	// items is the queue in insertion order.
	items []*FileItem

	// size is the total size of queued files.
	size int64

	// runSize is the value of size when the current or last run started.
	runSize int64

	// uploadedBytes is the number of bytes of the run confirmed so far.
	uploadedBytes int64

	// isUploading is the aggregate uploading flag.
	isUploading bool

	// running is true until Upload returns, even after Cancel.
	running bool

	// current is the file being transferred, if any.
	current *FileItem

	// runCtx is cancelled to stop the current run.
	runCtx    context.Context
	cancelRun context.CancelFunc
}

func New(params UploaderParams) (*Uploader, error) {
	switch {
	case params.Resolver == nil:
		return nil, errors.New("chunkupload: Resolver is required")
	case params.Clients == nil:
		return nil, errors.New("chunkupload: Clients is required")
	}

	chunkSize := params.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	retries := params.ChunkUploadRetries
	if retries <= 0 {
		retries = DefaultChunkUploadRetries
	}

	logger := params.Logger
	if logger == nil {
		logger = observability.NewNoOpLogger()
	}

	runCtx, cancelRun := context.WithCancel(context.Background())

	return &Uploader{
		logger:    logger,
		resolver:  params.Resolver,
		clients:   params.Clients,
		chunkSize: chunkSize,
		retries:   retries,
		hooks:     params.Hooks.withDefaults(),
		runCtx:    runCtx,
		cancelRun: cancelRun,
	}, nil
}

// ChunkSize returns the configured chunk size.
func (u *Uploader) ChunkSize() int64 { return u.chunkSize }

// ChunkUploadRetries returns the configured number of attempts per chunk.
func (u *Uploader) ChunkUploadRetries() int { return u.retries }

// IsUploading reports whether a run is in progress and not cancelled.
func (u *Uploader) IsUploading() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.isUploading
}

// Size returns the total size of the queued files.
func (u *Uploader) Size() int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.size
}

// UploadedBytes returns the number of bytes of the current or last run
// confirmed by the transport, including files completed by earlier runs.
func (u *Uploader) UploadedBytes() int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.uploadedBytes
}

// Progress returns UploadedBytes as a percentage of the queue size at the
// start of the run.
func (u *Uploader) Progress() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.progressLocked()
}

func (u *Uploader) progressLocked() float64 {
	if u.runSize == 0 {
		return 0
	}
	return float64(u.uploadedBytes) / float64(u.runSize) * 100
}

// Cancel stops the current run, if any.
//
// The file being transferred is abandoned: its in-flight request is
// interrupted and neither OnItemComplete nor OnItemError is called for it,
// even when the transfer stops between two chunks. The queue is left as
// is, so a later Upload restarts unfinished files from their first byte.
func (u *Uploader) Cancel() {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.cancelRun()
	u.isUploading = false
	if u.current != nil {
		u.current.IsUploading = false
	}
	for _, item := range u.items {
		item.IsUploading = false
	}
}

// Upload uploads every queued file that is not already fully uploaded.
//
// Per-file failures are reported through Hooks.OnItemError and do not
// make Upload fail. Upload returns a *HookError if a hook fails,
// ErrUploadInProgress if another Upload is running, and ctx's error if ctx
// is cancelled. Cancel makes Upload return nil.
func (u *Uploader) Upload(ctx context.Context) error {
	runCtx, items, err := u.startRun(ctx)
	if err != nil {
		return err
	}
	defer u.endRun()

	u.logger.Info(
		"chunkupload: starting upload",
		"files", len(items),
		"bytes", u.Size(),
	)

	if err := u.hooks.OnStart(runCtx); err != nil {
		return &HookError{Hook: "OnStart", Err: err}
	}

	for _, item := range items {
		if runCtx.Err() != nil {
			return u.cancelled(ctx)
		}

		if u.snapshot(item).completed {
			continue
		}

		if err := u.uploadFile(runCtx, item); err != nil {
			return err
		}
	}

	if runCtx.Err() != nil {
		return u.cancelled(ctx)
	}

	u.mu.Lock()
	u.isUploading = false
	u.mu.Unlock()

	u.logger.Info("chunkupload: finished upload")
	if err := u.hooks.OnComplete(runCtx); err != nil {
		return &HookError{Hook: "OnComplete", Err: err}
	}

	return nil
}

// startRun prepares the state for a new run.
//
// It returns the run's context and the files to upload.
func (u *Uploader) startRun(
	ctx context.Context,
) (context.Context, []*FileItem, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.running {
		return nil, nil, ErrUploadInProgress
	}

	u.runCtx, u.cancelRun = context.WithCancel(ctx)
	u.running = true
	u.isUploading = true

	items := slices.Clone(u.items)
	u.runSize = u.size
	u.uploadedBytes = 0
	for _, item := range items {
		if item.completed {
			u.uploadedBytes += item.File.Size()
		}
	}

	return u.runCtx, items, nil
}

// endRun clears the run's state after Upload returns.
func (u *Uploader) endRun() {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.running = false
	u.isUploading = false
	if u.current != nil {
		u.current.IsUploading = false
		u.current = nil
	}

	// Releases the context's resources.
	u.cancelRun()
}

// cancelled returns Upload's result for a stopped run.
func (u *Uploader) cancelled(parent context.Context) error {
	u.logger.Info("chunkupload: upload cancelled")

	if err := parent.Err(); err != nil {
		return err
	}
	return nil
}
