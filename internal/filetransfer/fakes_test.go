package filetransfer_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 records multipart upload calls.
type fakeS3 struct {
	mu sync.Mutex

	nextID       int
	contentTypes []string
	parts        map[int32][]byte
	partCalls    []int32
	completed    []types.CompletedPart
	aborted      []string
	putObjects   []string
	uploadErr    error
}

func (f *fakeS3) CreateMultipartUpload(
	ctx context.Context,
	params *s3.CreateMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	f.contentTypes = append(f.contentTypes, aws.ToString(params.ContentType))
	f.parts = make(map[int32][]byte)
	return &s3.CreateMultipartUploadOutput{
		UploadId: aws.String(fmt.Sprintf("upload-%d", f.nextID)),
	}, nil
}

func (f *fakeS3) UploadPart(
	ctx context.Context,
	params *s3.UploadPartInput,
	optFns ...func(*s3.Options),
) (*s3.UploadPartOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	partNumber := aws.ToInt32(params.PartNumber)
	f.partCalls = append(f.partCalls, partNumber)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.parts[partNumber] = data
	return &s3.UploadPartOutput{
		ETag: aws.String(fmt.Sprintf("etag-%d-%s", partNumber, data)),
	}, nil
}

func (f *fakeS3) CompleteMultipartUpload(
	ctx context.Context,
	params *s3.CompleteMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.completed = params.MultipartUpload.Parts
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (f *fakeS3) AbortMultipartUpload(
	ctx context.Context,
	params *s3.AbortMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.aborted = append(f.aborted, aws.ToString(params.UploadId))
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) PutObject(
	ctx context.Context,
	params *s3.PutObjectInput,
	optFns ...func(*s3.Options),
) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.putObjects = append(f.putObjects, aws.ToString(params.Key))
	return &s3.PutObjectOutput{}, nil
}

// fakeGCS is an in-memory bucket store.
type fakeGCS struct {
	mu sync.Mutex

	objects      map[string][]byte
	contentTypes map[string]string
	composeCalls [][]string
}

func newFakeGCS() *fakeGCS {
	return &fakeGCS{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

func (f *fakeGCS) Write(
	ctx context.Context,
	bucket, object, contentType string,
	body io.Reader,
) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+object] = data
	f.contentTypes[bucket+"/"+object] = contentType
	return nil
}

func (f *fakeGCS) Compose(
	ctx context.Context,
	bucket, dst string,
	srcs []string,
	contentType string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(srcs) > 32 {
		return fmt.Errorf("too many sources: %d", len(srcs))
	}
	f.composeCalls = append(f.composeCalls, slices.Clone(srcs))

	var data []byte
	for _, src := range srcs {
		data = append(data, f.objects[bucket+"/"+src]...)
	}
	f.objects[bucket+"/"+dst] = data
	f.contentTypes[bucket+"/"+dst] = contentType
	return nil
}

func (f *fakeGCS) Delete(ctx context.Context, bucket, object string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, bucket+"/"+object)
	return nil
}

func (f *fakeGCS) List(
	ctx context.Context,
	bucket, prefix string,
) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var names []string
	for key := range f.objects {
		name, ok := strings.CutPrefix(key, bucket+"/")
		if ok && strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func (f *fakeGCS) object(bucket, object string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[bucket+"/"+object]
	return data, ok
}

// fakeBlockBlob is an in-memory block blob.
type fakeBlockBlob struct {
	mu sync.Mutex

	uploads     int
	staged      map[string][]byte
	committed   []byte
	committedAt []string
	contentType string
}

func (f *fakeBlockBlob) Upload(
	ctx context.Context,
	body io.ReadSeekCloser,
	options *blockblob.UploadOptions,
) (blockblob.UploadResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.uploads++
	f.staged = make(map[string][]byte)
	f.committed = nil
	return blockblob.UploadResponse{}, nil
}

func (f *fakeBlockBlob) StageBlock(
	ctx context.Context,
	base64BlockID string,
	body io.ReadSeekCloser,
	options *blockblob.StageBlockOptions,
) (blockblob.StageBlockResponse, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return blockblob.StageBlockResponse{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.staged[base64BlockID] = data
	return blockblob.StageBlockResponse{}, nil
}

func (f *fakeBlockBlob) CommitBlockList(
	ctx context.Context,
	base64BlockIDs []string,
	options *blockblob.CommitBlockListOptions,
) (blockblob.CommitBlockListResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var buf bytes.Buffer
	for _, id := range base64BlockIDs {
		data, ok := f.staged[id]
		if !ok {
			return blockblob.CommitBlockListResponse{},
				fmt.Errorf("unknown block %s", id)
		}
		buf.Write(data)
	}

	f.committed = buf.Bytes()
	f.committedAt = base64BlockIDs
	if options != nil && options.HTTPHeaders != nil {
		f.contentType = *options.HTTPHeaders.BlobContentType
	}
	return blockblob.CommitBlockListResponse{}, nil
}
