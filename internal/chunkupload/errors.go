package chunkupload

import (
	"errors"
	"fmt"
)

// ErrUploadInProgress is returned by Upload if another Upload call on the
// same Uploader has not returned yet.
var ErrUploadInProgress = errors.New("chunkupload: upload already in progress")

// errCancelled marks a file transfer stopped by cancellation.
var errCancelled = errors.New("chunkupload: cancelled")

// TransferError is the reason a file failed to upload.
type TransferError struct {
	// Op is the failed step: "resolve", "create", "transfer" or "finalize".
	Op string

	// Name is the file's name.
	Name string

	// Offset is the start of the failed chunk for "transfer" errors.
	Offset int64

	// Err is the last error returned by the transport.
	Err error
}

func (e *TransferError) Error() string {
	if e.Op == "transfer" {
		return fmt.Sprintf(
			"chunkupload: %s %q at offset %d: %v",
			e.Op, e.Name, e.Offset, e.Err)
	}
	return fmt.Sprintf("chunkupload: %s %q: %v", e.Op, e.Name, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// HookError is returned by Upload when a hook fails.
type HookError struct {
	// Hook is the name of the failed hook, like "OnItemStart".
	Hook string

	Err error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("chunkupload: %s hook: %v", e.Hook, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }
