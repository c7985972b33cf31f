package chunkuploadtest

import (
	"bytes"
	"context"
	"io"
	"slices"
	"sync"

	"github.com/wandb/chunkup/internal/chunkupload"
)

// FakeFile is an in-memory chunkupload.File.
//
// Its Size is that of the embedded bytes.Reader.
type FakeFile struct {
	*bytes.Reader
	name        string
	contentType string
}

func NewFakeFile(name string, data []byte) *FakeFile {
	return &FakeFile{
		Reader:      bytes.NewReader(data),
		name:        name,
		contentType: "application/octet-stream",
	}
}

func (f *FakeFile) Name() string        { return f.name }
func (f *FakeFile) ContentType() string { return f.contentType }

// FakeTransferClient stores uploaded chunks in memory.
//
// Transfer reads its chunk one byte at a time and reports progress after
// every byte.
type FakeTransferClient struct {
	mu sync.Mutex

	data        []byte
	finalized   bool
	contentType string
	offsets     []int64
	creates     int
}

// Create truncates the object.
func (c *FakeTransferClient) Create(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.creates++
	c.data = nil
	c.finalized = false
	return nil
}

// Transfer writes the chunk at offset.
func (c *FakeTransferClient) Transfer(
	ctx context.Context,
	chunk io.ReadSeeker,
	offset, length int64,
	onProgress func(loaded int64),
) error {
	buf := make([]byte, length)
	for i := range length {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := io.ReadFull(chunk, buf[i:i+1]); err != nil {
			return err
		}
		onProgress(i + 1)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.offsets = append(c.offsets, offset)
	if end := offset + length; int64(len(c.data)) < end {
		c.data = append(c.data, make([]byte, end-int64(len(c.data)))...)
	}
	copy(c.data[offset:], buf)
	return nil
}

// Finalize marks the object as complete.
func (c *FakeTransferClient) Finalize(
	ctx context.Context,
	size int64,
	contentType string,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = c.data[:min(int64(len(c.data)), size)]
	c.finalized = true
	c.contentType = contentType
	return nil
}

// Data returns the object's contents.
func (c *FakeTransferClient) Data() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.data)
}

// Finalized reports whether Finalize was called after the last Create.
func (c *FakeTransferClient) Finalized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finalized
}

// ContentType returns the content type passed to Finalize.
func (c *FakeTransferClient) ContentType() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contentType
}

// Offsets returns the offsets of all successful Transfer calls.
func (c *FakeTransferClient) Offsets() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.offsets)
}

// Creates returns the number of Create calls.
func (c *FakeTransferClient) Creates() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creates
}

// FakeClientFactory returns one client per target.
//
// By default, clients are FakeTransferClients. Set NewClientFunc to return
// other clients.
type FakeClientFactory struct {
	mu sync.Mutex

	clients map[string]chunkupload.TransferClient
	targets []string

	// NewClientFunc, if set, creates the client for each new target.
	NewClientFunc func(target string) chunkupload.TransferClient
}

func NewFakeClientFactory() *FakeClientFactory {
	return &FakeClientFactory{
		clients: make(map[string]chunkupload.TransferClient),
	}
}

func (f *FakeClientFactory) NewClient(
	ctx context.Context,
	target string,
	item chunkupload.FileItem,
) (chunkupload.TransferClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.targets = append(f.targets, target)

	client, ok := f.clients[target]
	if !ok {
		if f.NewClientFunc != nil {
			client = f.NewClientFunc(target)
		} else {
			client = &FakeTransferClient{}
		}
		f.clients[target] = client
	}

	return client, nil
}

// Client returns the client created for the target, if any.
func (f *FakeClientFactory) Client(target string) chunkupload.TransferClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clients[target]
}

// FakeClient returns the FakeTransferClient created for the target.
func (f *FakeClientFactory) FakeClient(target string) *FakeTransferClient {
	client, _ := f.Client(target).(*FakeTransferClient)
	return client
}

// Targets returns the target of every NewClient call in order.
func (f *FakeClientFactory) Targets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.targets)
}

// NameTarget is a resolver that uploads each file to "mem://<name>".
var NameTarget = chunkupload.TargetResolverFunc(
	func(ctx context.Context, item chunkupload.FileItem) (string, error) {
		return "mem://" + item.File.Name(), nil
	})
