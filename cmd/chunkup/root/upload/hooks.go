package upload

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/wandb/chunkup/internal/chunkupload"
	"github.com/wandb/chunkup/internal/observability"
)

// LogHooks returns hooks that log the progress of an upload.
//
// Progress is logged at most once per interval; file and run boundaries
// are always logged.
func LogHooks(
	logger *observability.CoreLogger,
	interval time.Duration,
) chunkupload.Hooks {
	limiter := rate.NewLimiter(rate.Every(interval), 1)

	return chunkupload.Hooks{
		OnItemStart: func(_ context.Context, item chunkupload.FileItem) error {
			logger.Info(
				"upload: uploading file",
				"name", item.File.Name(),
				"size", item.File.Size(),
				"content_type", item.File.ContentType(),
			)
			return nil
		},

		OnProgress: func(percent float64) {
			if limiter.Allow() {
				logger.Info("upload: progress", "percent", int(percent))
			}
		},

		OnItemComplete: func(_ context.Context, item chunkupload.FileItem) error {
			logger.Info(
				"upload: uploaded file",
				"name", item.File.Name(),
				"size", item.File.Size(),
			)
			return nil
		},

		OnItemError: func(item chunkupload.FileItem, err error) {
			logger.CaptureError(err, "name", item.File.Name())
		},

		OnComplete: func(context.Context) error {
			logger.Info("upload: all files processed")
			return nil
		},
	}
}
