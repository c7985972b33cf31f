package filetransfer

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"

	"github.com/wandb/chunkup/internal/observability"
)

// AzureBlockBlobClient is the subset of the block blob client used to
// upload in chunks.
type AzureBlockBlobClient interface {
	Upload(
		ctx context.Context,
		body io.ReadSeekCloser,
		options *blockblob.UploadOptions,
	) (blockblob.UploadResponse, error)

	StageBlock(
		ctx context.Context,
		base64BlockID string,
		body io.ReadSeekCloser,
		options *blockblob.StageBlockOptions,
	) (blockblob.StageBlockResponse, error)

	CommitBlockList(
		ctx context.Context,
		base64BlockIDs []string,
		options *blockblob.CommitBlockListOptions,
	) (blockblob.CommitBlockListResponse, error)
}

// AzureBlobClient uploads a file to Azure Blob Storage as a block blob,
// one block per chunk.
type AzureBlobClient struct {
	client AzureBlockBlobClient
	logger *observability.CoreLogger

	// name is the blob's URL without its query, for logging.
	name string

	session *uploadSession
}

// azureBlockID returns the ID of the block starting at offset.
//
// IDs of a blob's blocks must all have the same length.
func azureBlockID(offset int64) string {
	return base64.StdEncoding.EncodeToString(
		fmt.Appendf(nil, "%020d", offset))
}

// Create replaces the blob by an empty one, discarding uncommitted blocks.
func (c *AzureBlobClient) Create(ctx context.Context) error {
	c.logger.Debug("azure: creating blob", "blob", c.name)

	_, err := c.client.Upload(ctx, streaming.NopCloser(bytes.NewReader(nil)), nil)
	if err != nil {
		return fmt.Errorf("filetransfer: azure: create blob: %w", err)
	}

	c.session.reset("")
	return nil
}

// Transfer stages the chunk as an uncommitted block.
func (c *AzureBlobClient) Transfer(
	ctx context.Context,
	chunk io.ReadSeeker,
	offset, length int64,
	onProgress func(loaded int64),
) error {
	blockID := azureBlockID(offset)

	_, err := c.client.StageBlock(
		ctx,
		blockID,
		streaming.NopCloser(NewProgressReader(chunk, length, onProgress)),
		nil,
	)
	if err != nil {
		return fmt.Errorf("filetransfer: azure: stage block at %d: %w", offset, err)
	}

	c.session.setPart(offset, blockID)
	return nil
}

// Finalize commits the staged blocks in offset order.
func (c *AzureBlobClient) Finalize(
	ctx context.Context,
	size int64,
	contentType string,
) error {
	options := &blockblob.CommitBlockListOptions{}
	if contentType != "" {
		options.HTTPHeaders = &blob.HTTPHeaders{
			BlobContentType: to.Ptr(contentType),
		}
	}

	_, err := c.client.CommitBlockList(ctx, c.session.sortedParts(), options)
	if err != nil {
		return fmt.Errorf("filetransfer: azure: commit block list: %w", err)
	}

	c.session.finish()
	return nil
}
