package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/wandb/chunkup/internal/chunkupload"
	"github.com/wandb/chunkup/internal/cliutil"
	"github.com/wandb/chunkup/internal/filetransfer"
	"github.com/wandb/chunkup/internal/localfile"
	"github.com/wandb/chunkup/internal/observability"
	"github.com/wandb/chunkup/internal/retryableclient"
	"github.com/wandb/chunkup/internal/sentry_ext"
	"github.com/wandb/chunkup/internal/settings"
	"github.com/wandb/chunkup/internal/targets"
	"github.com/wandb/chunkup/internal/uploadmetrics"
	"github.com/wandb/chunkup/internal/version"
)

// NewUploadCmd creates the upload command.
func NewUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload files in chunks",
		Long: heredoc.Doc(`
			Upload files and directories in chunks.

			Each file is uploaded to the URL produced by --target, a Go
			template over the file's .Name, .Size and .ContentType, or
			to the URL returned by --sign-endpoint. Supported targets are
			s3://, gs://, Azure Blob Storage and Data Lake Storage URLs.

			A summary of the run is printed to stdout when it ends.
		`),
		Example: heredoc.Doc(`
			$ chunkup upload --target 's3://my-bucket/data/{{.Name}}' ./data
			$ chunkup upload --target 'gs://my-bucket/{{.Name}}' --chunk-size 67108864 model.bin
			$ chunkup upload --sign-endpoint https://uploads.example.com/sign -o yaml a.csv b.csv
		`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile, _ := cmd.Flags().GetString("config")

			v := viper.New()
			if err := settings.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}

			s, err := settings.Load(settings.LoadParams{
				Viper:      v,
				Fs:         afero.NewOsFs(),
				ConfigFile: configFile,
			})
			if err != nil {
				return err
			}

			return runUpload(cmd, s, args)
		},
	}

	settings.AddFlags(cmd.Flags())

	return cmd
}

func runUpload(cmd *cobra.Command, s *settings.Settings, paths []string) error {
	runID := uuid.New().String()

	var sentryClient *sentry_ext.Client
	if s.SentryDSN != "" {
		sentryClient = sentry_ext.New(sentry_ext.Params{
			DSN:              s.SentryDSN,
			AttachStacktrace: true,
			Release:          version.Version,
			Commit:           version.Commit,
			Environment:      version.Environment,
		})
		defer sentryClient.Flush(2 * time.Second)
	}

	logger, err := newLogger(cmd, s, sentryClient, runID)
	if err != nil {
		return err
	}
	defer logger.Reraise()

	files, err := localfile.OpenAll(afero.NewOsFs(), paths)
	if err != nil {
		return err
	}
	defer localfile.CloseAll(files)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	recorder, err := uploadmetrics.NewRecorder(registry)
	if err != nil {
		return err
	}

	report := cliutil.NewReport()

	uploader, err := newUploader(s, logger, chunkupload.MergeHooks(
		LogHooks(logger, s.ProgressInterval),
		recorder.Hooks(),
		report.Hooks(),
	))
	if err != nil {
		return err
	}
	for _, file := range files {
		uploader.AddFile(file)
	}

	logger.Info(
		"upload: starting",
		"files", len(files),
		"bytes", uploader.Size(),
		"chunk_size", uploader.ChunkSize(),
	)

	var interrupted atomic.Bool
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	g, ctx := errgroup.WithContext(cmd.Context())
	done := make(chan struct{})

	g.Go(func() error {
		defer close(done)
		return uploader.Upload(ctx)
	})

	g.Go(func() error {
		select {
		case sig := <-signals:
			logger.Info("upload: received signal, cancelling", "signal", sig)
			interrupted.Store(true)
			uploader.Cancel()
		case <-done:
		}
		return nil
	})

	if s.MetricsAddr != "" {
		serveMetrics(g, done, logger, s.MetricsAddr, registry)
	}

	uploadErr := g.Wait()

	summary := report.Summary(runID, uploader.Queue())
	err = cliutil.HandleOutput(
		cmd.OutOrStdout(),
		cliutil.OutputOptions{Format: s.Output},
		summary,
	)

	switch {
	case uploadErr != nil:
		logger.CaptureError(fmt.Errorf("upload: %v", uploadErr))
		return uploadErr
	case err != nil:
		return err
	case interrupted.Load():
		return errors.New("upload cancelled")
	case summary.Failed > 0:
		return fmt.Errorf("%d of %d files failed to upload", summary.Failed, len(summary.Files))
	}

	logger.Info("upload: finished", "files", summary.Completed)
	return nil
}

// newLogger creates the CLI's logger, writing to stderr.
func newLogger(
	cmd *cobra.Command,
	s *settings.Settings,
	sentryClient *sentry_ext.Client,
	runID string,
) (*observability.CoreLogger, error) {
	level, err := s.SlogLevel()
	if err != nil {
		return nil, err
	}

	handler := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		Level:           log.Level(level),
		ReportTimestamp: true,
	})

	params := &observability.CoreLoggerParams{
		Tags: observability.Tags{"run_id": runID},
	}
	if sentryClient != nil {
		params.Sentry = sentryClient
	}

	return observability.NewCoreLogger(slog.New(handler), params), nil
}

func newUploader(
	s *settings.Settings,
	logger *observability.CoreLogger,
	hooks chunkupload.Hooks,
) (*chunkupload.Uploader, error) {
	httpClient := retryableclient.NewRetryClient(
		retryableclient.WithRetryClientLogger(logger),
		retryableclient.WithRetryClientRetryMax(s.HTTPRetryMax),
		retryableclient.WithRetryClientHttpTimeout(s.HTTPTimeout),
		retryableclient.WithRetryClientRetryPolicy(filetransfer.FileTransferRetryPolicy),
		retryableclient.WithRetryClientHeaders(map[string]string{
			"x-ms-version": filetransfer.DataLakeVersion,
		}),
	)

	var resolver chunkupload.TargetResolver
	var err error
	if s.SignEndpoint != "" {
		resolver, err = targets.NewEndpointResolver(httpClient, s.SignEndpoint)
	} else {
		resolver, err = targets.NewTemplateResolver(s.Target)
	}
	if err != nil {
		return nil, err
	}

	clients, err := filetransfer.NewClientFactory(filetransfer.ClientFactoryParams{
		Logger:     logger,
		HTTPClient: httpClient,
		S3Options: filetransfer.S3Options{
			Region:    s.S3.Region,
			Endpoint:  s.S3.Endpoint,
			PathStyle: s.S3.PathStyle,
		},
		GCSMaxAttempts: s.HTTPRetryMax + 1,
	})
	if err != nil {
		return nil, err
	}

	return chunkupload.New(chunkupload.UploaderParams{
		Resolver:           resolver,
		Clients:            clients,
		ChunkSize:          s.ChunkSize,
		ChunkUploadRetries: s.ChunkUploadRetries,
		Hooks:              hooks,
		Logger:             logger,
	})
}

// serveMetrics serves Prometheus metrics until done is closed.
func serveMetrics(
	g *errgroup.Group,
	done <-chan struct{},
	logger *observability.CoreLogger,
	addr string,
	registry *prometheus.Registry,
) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("upload: serving metrics", "addr", addr)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %v", err)
		}
		return nil
	})

	g.Go(func() error {
		<-done
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	})
}
