package filetransfer

import (
	"context"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

// FileTransferRetryPolicy is the retry policy for chunk requests when the
// HTTP client is configured to retry.
func FileTransferRetryPolicy(
	ctx context.Context,
	resp *http.Response,
	err error,
) (bool, error) {
	if err != nil {
		switch {
		// Storage providers sometimes rate limit by timing out connections.
		case strings.Contains(err.Error(), "dial tcp") && strings.Contains(err.Error(), "i/o timeout"):
			return true, err
		// Controlled by the http_timeout setting.
		case strings.Contains(err.Error(), "context deadline exceeded") && ctx.Err() == nil:
			return true, err
		// Abort on any other transport error, such as a failure to read
		// the chunk from disk.
		default:
			return false, err
		}
	}

	// A 409 for an append means the position does not match the file's
	// length, which retrying the same request cannot fix.
	if resp != nil && resp.StatusCode == http.StatusConflict {
		return false, nil
	}

	return retryablehttp.ErrorPropagatedRetryPolicy(ctx, resp, err)
}
