package filetransfer

import "io"

// ProgressReader is a chunk body that reports how much of it was read.
//
// The reported position follows seeks, so a transport that rewinds the
// body to resend a request reports its progress going back to zero.
type ProgressReader struct {
	chunk      io.ReadSeeker
	size       int64
	pos        int64
	onProgress func(loaded int64)
}

// NewProgressReader wraps a chunk of the given size.
//
// onProgress may be nil.
func NewProgressReader(
	chunk io.ReadSeeker,
	size int64,
	onProgress func(loaded int64),
) *ProgressReader {
	return &ProgressReader{chunk: chunk, size: size, onProgress: onProgress}
}

// Read implements io.Reader.
func (r *ProgressReader) Read(p []byte) (int, error) {
	n, err := r.chunk.Read(p)
	if n > 0 {
		r.moveTo(r.pos + int64(n))
	}
	return n, err
}

// Seek implements io.Seeker.
func (r *ProgressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := r.chunk.Seek(offset, whence)
	if err != nil {
		return pos, err
	}
	r.moveTo(pos)
	return pos, nil
}

// Len is the size of the chunk, used by HTTP clients for Content-Length.
func (r *ProgressReader) Len() int {
	return int(r.size)
}

func (r *ProgressReader) moveTo(pos int64) {
	r.pos = pos
	if r.onProgress != nil {
		r.onProgress(min(pos, r.size))
	}
}
