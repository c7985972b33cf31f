package filetransfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/wandb/chunkup/internal/observability"
)

const gcsScheme = "gs"

// maxComposeSources is the most objects GCS can compose in one request.
const maxComposeSources = 32

// GCSClient is the part of *storage.Client used by gcsObjects.
type GCSClient interface {
	Bucket(name string) *storage.BucketHandle
}

// GCSObjects is the set of bucket operations used to upload in chunks.
type GCSObjects interface {
	// Write uploads body as the object's content.
	Write(
		ctx context.Context,
		bucket, object, contentType string,
		body io.Reader,
	) error

	// Compose concatenates srcs into dst.
	Compose(
		ctx context.Context,
		bucket, dst string,
		srcs []string,
		contentType string,
	) error

	// Delete deletes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, bucket, object string) error

	// List returns the names of objects with the prefix in lexical order.
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

// GCSChunkClient uploads each chunk of a file as a separate component
// object and composes the components into the destination when the file
// is finalized.
//
// Component names are derived from the chunk offset, so a retried chunk
// overwrites its earlier attempt and the components sort by offset.
type GCSChunkClient struct {
	objects GCSObjects
	logger  *observability.CoreLogger

	bucket string
	object string
}

// componentPrefix is the common prefix of the object's component names.
func (c *GCSChunkClient) componentPrefix() string {
	return c.object + ".chunk-"
}

func (c *GCSChunkClient) componentName(offset int64) string {
	return fmt.Sprintf("%s%020d", c.componentPrefix(), offset)
}

// Create deletes the components left behind by earlier attempts.
func (c *GCSChunkClient) Create(ctx context.Context) error {
	if err := c.deleteComponents(ctx); err != nil {
		return fmt.Errorf("filetransfer: gcs: cleaning up components: %w", err)
	}
	return nil
}

// Transfer uploads the chunk as a component object.
func (c *GCSChunkClient) Transfer(
	ctx context.Context,
	chunk io.ReadSeeker,
	offset, length int64,
	onProgress func(loaded int64),
) error {
	err := c.objects.Write(
		ctx,
		c.bucket,
		c.componentName(offset),
		"",
		NewProgressReader(chunk, length, onProgress),
	)
	if err != nil {
		return fmt.Errorf("filetransfer: gcs: writing chunk at %d: %w", offset, err)
	}
	return nil
}

// Finalize composes the components into the destination object and
// deletes them.
func (c *GCSChunkClient) Finalize(
	ctx context.Context,
	size int64,
	contentType string,
) error {
	components, err := c.objects.List(ctx, c.bucket, c.componentPrefix())
	if err != nil {
		return fmt.Errorf("filetransfer: gcs: listing components: %w", err)
	}

	if len(components) == 0 {
		// Compose needs at least one source.
		err = c.objects.Write(
			ctx, c.bucket, c.object, contentType, bytes.NewReader(nil))
		if err != nil {
			return fmt.Errorf("filetransfer: gcs: writing empty object: %w", err)
		}
		return nil
	}

	// Each compose call appends the next batch to the partial result.
	composed := false
	for batch := range slices.Chunk(components, maxComposeSources-1) {
		srcs := batch
		if composed {
			srcs = append([]string{c.object}, batch...)
		}

		err := c.objects.Compose(ctx, c.bucket, c.object, srcs, contentType)
		if err != nil {
			return fmt.Errorf("filetransfer: gcs: composing %s: %w", c.object, err)
		}
		composed = true
	}

	if err := c.deleteComponents(ctx); err != nil {
		c.logger.Warn(
			"gcs: failed to delete components",
			"object", c.object,
			"error", err,
		)
	}
	return nil
}

func (c *GCSChunkClient) deleteComponents(ctx context.Context) error {
	components, err := c.objects.List(ctx, c.bucket, c.componentPrefix())
	if err != nil {
		return err
	}

	var errs []error
	for _, name := range components {
		errs = append(errs, c.objects.Delete(ctx, c.bucket, name))
	}
	return errors.Join(errs...)
}

// gcsObjects implements GCSObjects with the GCS client.
type gcsObjects struct {
	client GCSClient
}

func (g *gcsObjects) Write(
	ctx context.Context,
	bucket, object, contentType string,
	body io.Reader,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.client.Bucket(bucket).Object(object).NewWriter(ctx)
	// Components are uploaded in a single request.
	w.ChunkSize = 0
	w.ContentType = contentType

	if _, err := io.Copy(w, body); err != nil {
		// Cancelling the context aborts the write.
		cancel()
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (g *gcsObjects) Compose(
	ctx context.Context,
	bucket, dst string,
	srcs []string,
	contentType string,
) error {
	bkt := g.client.Bucket(bucket)

	handles := make([]*storage.ObjectHandle, len(srcs))
	for i, src := range srcs {
		handles[i] = bkt.Object(src)
	}

	composer := bkt.Object(dst).ComposerFrom(handles...)
	composer.ContentType = contentType
	_, err := composer.Run(ctx)
	return err
}

func (g *gcsObjects) Delete(ctx context.Context, bucket, object string) error {
	err := g.client.Bucket(bucket).Object(object).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

func (g *gcsObjects) List(
	ctx context.Context,
	bucket, prefix string,
) ([]string, error) {
	query := &storage.Query{Prefix: prefix}
	if err := query.SetAttrSelection([]string{"Name"}); err != nil {
		return nil, err
	}

	var names []string
	it := g.client.Bucket(bucket).Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		names = append(names, attrs.Name)
	}

	slices.Sort(names)
	return names, nil
}
