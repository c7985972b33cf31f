package chunkupload

import (
	"context"
	"io"
)

// File is a local file that can be uploaded.
//
// Files are identified by Name: a queue holds at most one file per name.
type File interface {
	io.ReaderAt

	// Name is the file's name, unique within a queue.
	Name() string

	// Size is the total number of bytes to upload.
	Size() int64

	// ContentType is the MIME type recorded on the remote object.
	ContentType() string
}

// FileItem is the upload state of one queued file.
//
// Values returned by the Uploader are snapshots; modifying them does not
// affect the queue.
type FileItem struct {
	File File

	// UploadedBytes is the number of bytes of File confirmed by the
	// transport in the current or last upload of the file.
	UploadedBytes int64

	// Progress is UploadedBytes as a percentage of the file's size.
	//
	// It is 0 for empty files.
	Progress float64

	// IsUploading is true while the file is being transferred.
	IsUploading bool

	// Payload is an optional caller value carried with the item.
	Payload any

	// completed is set once the file is finalized and cleared when it
	// starts uploading again.
	completed bool
}

// Completed reports whether the file's last upload was finalized.
//
// Completed files are skipped by later runs. A file whose chunks were all
// sent but whose finalization failed has Progress 100 but is not
// completed.
func (item FileItem) Completed() bool {
	return item.completed
}

// TransferClient uploads a single remote object in chunks.
//
// All methods must return promptly once ctx is cancelled.
type TransferClient interface {
	// Create creates or truncates the remote object.
	Create(ctx context.Context) error

	// Transfer appends length bytes read from chunk at the given offset
	// of the remote object.
	//
	// onProgress is called with the cumulative number of bytes of the
	// chunk sent so far. It may be called from any goroutine but not
	// concurrently.
	Transfer(
		ctx context.Context,
		chunk io.ReadSeeker,
		offset, length int64,
		onProgress func(loaded int64),
	) error

	// Finalize commits size bytes as the final content of the object.
	Finalize(ctx context.Context, size int64, contentType string) error
}

// ClientFactory builds a TransferClient for a resolved target.
type ClientFactory interface {
	NewClient(ctx context.Context, target string, item FileItem) (TransferClient, error)
}

// TargetResolver returns the destination of a file's upload.
//
// It is consulted before every chunk attempt, so it may return short-lived
// signed URLs.
type TargetResolver interface {
	ResolveTarget(ctx context.Context, item FileItem) (string, error)
}

// TargetResolverFunc adapts a function to a TargetResolver.
type TargetResolverFunc func(ctx context.Context, item FileItem) (string, error)

func (f TargetResolverFunc) ResolveTarget(
	ctx context.Context,
	item FileItem,
) (string, error) {
	return f(ctx, item)
}
