package chunkupload

import (
	"context"
	"errors"
	"io"

	"github.com/avast/retry-go"
)

// uploadFile transfers one file and calls its hooks.
//
// It returns an error only if a hook fails; transfer failures are reported
// through OnItemError.
func (u *Uploader) uploadFile(ctx context.Context, item *FileItem) error {
	u.mu.Lock()
	item.UploadedBytes = 0
	item.Progress = 0
	item.IsUploading = true
	item.completed = false
	u.current = item
	u.mu.Unlock()

	name := item.File.Name()
	logger := u.logger.With("file", name)

	if err := u.hooks.OnItemStart(ctx, u.snapshot(item)); err != nil {
		u.finishFile(item, false)
		return &HookError{Hook: "OnItemStart", Err: err}
	}

	err := u.transferFile(ctx, item)
	u.finishFile(item, err == nil)

	switch {
	case errors.Is(err, errCancelled):
		logger.Info("chunkupload: file upload cancelled")
		return nil

	case err != nil:
		logger.Warn("chunkupload: file upload failed", "error", err)
		u.hooks.OnItemError(u.snapshot(item), err)
		return nil
	}

	logger.Debug("chunkupload: file uploaded")
	if err := u.hooks.OnItemComplete(ctx, u.snapshot(item)); err != nil {
		return &HookError{Hook: "OnItemComplete", Err: err}
	}

	return nil
}

// finishFile clears the file's uploading flag and records whether it was
// finalized.
func (u *Uploader) finishFile(item *FileItem, completed bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	item.IsUploading = false
	item.completed = completed
	if u.current == item {
		u.current = nil
	}
}

// transferFile creates the remote object, sends the file's chunks and
// finalizes the object.
//
// It returns errCancelled if ctx is cancelled before the file is finalized.
func (u *Uploader) transferFile(ctx context.Context, item *FileItem) error {
	if ctx.Err() != nil {
		return errCancelled
	}

	file := item.File
	size := file.Size()

	client, op, err := u.newClient(ctx, item)
	if err != nil {
		return transferErr(ctx, &TransferError{Op: op, Name: file.Name(), Err: err})
	}

	if err := client.Create(ctx); err != nil {
		return transferErr(ctx, &TransferError{Op: "create", Name: file.Name(), Err: err})
	}

	for offset := int64(0); offset < size; {
		if ctx.Err() != nil {
			return errCancelled
		}

		length := min(u.chunkSize, size-offset)
		client, err = u.transferChunk(ctx, item, offset, length)
		if err != nil {
			return err
		}

		offset += length
	}

	if ctx.Err() != nil {
		return errCancelled
	}

	err = client.Finalize(ctx, size, file.ContentType())
	if err != nil {
		return transferErr(ctx, &TransferError{Op: "finalize", Name: file.Name(), Err: err})
	}

	return nil
}

// transferChunk sends one chunk, retrying failed attempts immediately.
//
// Every attempt uses a newly resolved target and client. On success, it
// returns the client used by the successful attempt.
func (u *Uploader) transferChunk(
	ctx context.Context,
	item *FileItem,
	offset, length int64,
) (TransferClient, error) {
	var client TransferClient

	err := retry.Do(
		func() error {
			c, _, err := u.newClient(ctx, item)
			if err != nil {
				return err
			}

			err = c.Transfer(
				ctx,
				io.NewSectionReader(item.File, offset, length),
				offset,
				length,
				func(loaded int64) {
					u.reportProgress(item, offset+min(loaded, length))
				},
			)
			if err != nil {
				return err
			}

			// Some transports don't report the last bytes of a chunk.
			u.reportProgress(item, offset+length)

			client = c
			return nil
		},
		retry.Attempts(uint(u.retries)),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(func(error) bool { return ctx.Err() == nil }),
		retry.OnRetry(func(n uint, err error) {
			u.logger.Debug(
				"chunkupload: chunk attempt failed",
				"file", item.File.Name(),
				"offset", offset,
				"attempt", n+1,
				"error", err,
			)
		}),
	)

	if err != nil {
		return nil, transferErr(ctx, &TransferError{
			Op:     "transfer",
			Name:   item.File.Name(),
			Offset: offset,
			Err:    err,
		})
	}

	return client, nil
}

// newClient resolves the item's target and builds a client for it.
//
// On failure, it also returns the name of the failed step.
func (u *Uploader) newClient(
	ctx context.Context,
	item *FileItem,
) (TransferClient, string, error) {
	snapshot := u.snapshot(item)

	target, err := u.resolver.ResolveTarget(ctx, snapshot)
	if err != nil {
		return nil, "resolve", err
	}

	client, err := u.clients.NewClient(ctx, target, snapshot)
	if err != nil {
		return nil, "client", err
	}

	return client, "", nil
}

// transferErr returns errCancelled if ctx is done and err otherwise.
//
// Transports fail in arbitrary ways when their context is cancelled, so
// any failure after cancellation is treated as the cancellation itself.
func transferErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errCancelled
	}
	return err
}

// reportProgress records that the file's bytes up to position were sent.
//
// Positions at or below the file's current progress are ignored, so that
// a retried chunk does not count its bytes twice.
func (u *Uploader) reportProgress(item *FileItem, position int64) {
	u.mu.Lock()

	delta := position - item.UploadedBytes
	if delta <= 0 {
		u.mu.Unlock()
		return
	}

	item.UploadedBytes += delta
	if size := item.File.Size(); size > 0 {
		item.Progress = float64(item.UploadedBytes) / float64(size) * 100
	}
	u.uploadedBytes += delta

	snapshot := *item
	percent := u.progressLocked()
	u.mu.Unlock()

	u.hooks.OnItemProgress(snapshot)
	u.hooks.OnProgress(percent)
}
