package filetransfer

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/wandb/chunkup/internal/observability"
)

// DataLakeVersion is the storage REST API version requested from
// Data Lake Storage endpoints.
const DataLakeVersion = "2021-06-08"

// DataLakeClient uploads a file through the Azure Data Lake Storage Gen2
// path API: the file is created empty, chunks are appended at their
// position and the file is flushed at its final size.
//
// The target URL may carry a SAS token in its query.
type DataLakeClient struct {
	// client is the HTTP client for the file transfer
	client *retryablehttp.Client

	// logger is the logger for the file transfer
	logger *observability.CoreLogger

	target *url.URL
}

func NewDataLakeClient(
	client *retryablehttp.Client,
	logger *observability.CoreLogger,
	target *url.URL,
) *DataLakeClient {
	return &DataLakeClient{
		client: client,
		logger: logger,
		target: target,
	}
}

// Create creates the file, replacing any existing file.
func (c *DataLakeClient) Create(ctx context.Context) error {
	c.logger.Debug("datalake: creating file", "path", c.target.Path)

	resp, err := c.do(ctx, http.MethodPut, map[string]string{
		"resource": "file",
	}, nil, nil)
	if err != nil {
		return err
	}
	return checkStatus("create", resp, http.StatusCreated)
}

// Transfer appends a chunk at offset.
func (c *DataLakeClient) Transfer(
	ctx context.Context,
	chunk io.ReadSeeker,
	offset, length int64,
	onProgress func(loaded int64),
) error {
	var body any
	if length > 0 {
		body = NewProgressReader(chunk, length, onProgress)
	}

	resp, err := c.do(ctx, http.MethodPatch, map[string]string{
		"action":   "append",
		"position": strconv.FormatInt(offset, 10),
	}, body, nil)
	if err != nil {
		return err
	}
	return checkStatus("append", resp, http.StatusAccepted)
}

// Finalize flushes the appended data and closes the file.
func (c *DataLakeClient) Finalize(
	ctx context.Context,
	size int64,
	contentType string,
) error {
	c.logger.Debug("datalake: flushing file", "path", c.target.Path, "size", size)

	headers := map[string]string{}
	if contentType != "" {
		headers["x-ms-content-type"] = contentType
	}

	resp, err := c.do(ctx, http.MethodPatch, map[string]string{
		"action":   "flush",
		"position": strconv.FormatInt(size, 10),
		"close":    "true",
	}, nil, headers)
	if err != nil {
		return err
	}
	return checkStatus("flush", resp, http.StatusOK)
}

// do sends a request to the target with extra query parameters.
func (c *DataLakeClient) do(
	ctx context.Context,
	method string,
	params map[string]string,
	body any,
	headers map[string]string,
) (*http.Response, error) {
	u := *c.target
	query := u.Query()
	for k, v := range params {
		query.Set(k, v)
	}
	u.RawQuery = query.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, NewRequestError(method, &u, err)
	}
	return resp, nil
}
