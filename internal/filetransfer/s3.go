package filetransfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wandb/chunkup/internal/observability"
)

const s3Scheme = "s3"

// S3API is the subset of the S3 client used for multipart uploads.
type S3API interface {
	CreateMultipartUpload(
		ctx context.Context,
		params *s3.CreateMultipartUploadInput,
		optFns ...func(*s3.Options),
	) (*s3.CreateMultipartUploadOutput, error)

	UploadPart(
		ctx context.Context,
		params *s3.UploadPartInput,
		optFns ...func(*s3.Options),
	) (*s3.UploadPartOutput, error)

	CompleteMultipartUpload(
		ctx context.Context,
		params *s3.CompleteMultipartUploadInput,
		optFns ...func(*s3.Options),
	) (*s3.CompleteMultipartUploadOutput, error)

	AbortMultipartUpload(
		ctx context.Context,
		params *s3.AbortMultipartUploadInput,
		optFns ...func(*s3.Options),
	) (*s3.AbortMultipartUploadOutput, error)

	PutObject(
		ctx context.Context,
		params *s3.PutObjectInput,
		optFns ...func(*s3.Options),
	) (*s3.PutObjectOutput, error)
}

// S3Client uploads a file to S3 as a multipart upload, one part per chunk.
//
// S3 rejects parts smaller than 5 MiB other than the last one, so the
// chunk size must be at least that.
type S3Client struct {
	api    S3API
	logger *observability.CoreLogger

	bucket      string
	key         string
	contentType string

	session *uploadSession
}

// parseCloudReference splits a "scheme://bucket/key" reference.
func parseCloudReference(reference, expectedScheme string) (string, string, error) {
	u, err := url.Parse(reference)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != expectedScheme {
		return "", "", fmt.Errorf("filetransfer: %q is not a %s reference", reference, expectedScheme)
	}

	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("filetransfer: %q has no bucket or key", reference)
	}

	return bucket, key, nil
}

// Create starts a multipart upload, aborting any earlier one for the same
// object.
func (c *S3Client) Create(ctx context.Context) error {
	c.abort(ctx)

	c.logger.Debug("s3: creating multipart upload", "bucket", c.bucket, "key", c.key)
	out, err := c.api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(c.key),
		ContentType: optionalString(c.contentType),
	})
	if err != nil {
		return fmt.Errorf("filetransfer: s3: create multipart upload: %w", err)
	}

	c.session.reset(aws.ToString(out.UploadId))
	return nil
}

// Transfer uploads the chunk as the next part.
func (c *S3Client) Transfer(
	ctx context.Context,
	chunk io.ReadSeeker,
	offset, length int64,
	onProgress func(loaded int64),
) error {
	uploadID := c.session.getUploadID()
	if uploadID == "" {
		return fmt.Errorf("filetransfer: s3: no multipart upload for %s", c.key)
	}

	partNumber := c.session.partNumber(offset)
	out, err := c.api.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(c.key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(partNumber),
		ContentLength: aws.Int64(length),
		Body:          NewProgressReader(chunk, length, onProgress),
	})
	if err != nil {
		return fmt.Errorf("filetransfer: s3: upload part %d: %w", partNumber, err)
	}

	c.session.setPart(offset, aws.ToString(out.ETag))
	return nil
}

// Finalize completes the multipart upload.
//
// S3 cannot complete an upload without parts, so empty files are written
// with a single PutObject instead.
func (c *S3Client) Finalize(
	ctx context.Context,
	size int64,
	contentType string,
) error {
	etags := c.session.sortedParts()

	if size == 0 || len(etags) == 0 {
		c.abort(ctx)
		_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(c.bucket),
			Key:           aws.String(c.key),
			Body:          bytes.NewReader(nil),
			ContentLength: aws.Int64(0),
			ContentType:   optionalString(contentType),
		})
		if err != nil {
			return fmt.Errorf("filetransfer: s3: put empty object: %w", err)
		}
		c.session.finish()
		return nil
	}

	parts := make([]types.CompletedPart, len(etags))
	for i, etag := range etags {
		parts[i] = types.CompletedPart{
			ETag:       aws.String(etag),
			PartNumber: aws.Int32(int32(i + 1)),
		}
	}

	_, err := c.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(c.bucket),
		Key:             aws.String(c.key),
		UploadId:        aws.String(c.session.getUploadID()),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		return fmt.Errorf("filetransfer: s3: complete multipart upload: %w", err)
	}

	c.session.finish()
	return nil
}

// abort aborts the session's multipart upload, if any.
//
// Failures are only logged.
func (c *S3Client) abort(ctx context.Context) {
	uploadID := c.session.getUploadID()
	if uploadID == "" {
		return
	}

	_, err := c.api.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(c.bucket),
		Key:      aws.String(c.key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		c.logger.Warn(
			"s3: failed to abort multipart upload",
			"key", c.key,
			"error", err,
		)
	}

	c.session.reset("")
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}
