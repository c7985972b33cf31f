// Package filetransfer implements chunk transfer clients for blob stores.
package filetransfer

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/googleapis/gax-go/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/wandb/chunkup/internal/chunkupload"
	"github.com/wandb/chunkup/internal/observability"
)

// azureBlobHostSuffix identifies Azure Blob Storage endpoints.
const azureBlobHostSuffix = ".blob.core.windows.net"

// S3Options configures the S3 client built by the factory.
type S3Options struct {
	// Region overrides the region from the AWS configuration.
	Region string

	// Endpoint is a custom endpoint URL, for S3-compatible stores.
	Endpoint string

	// PathStyle selects path-style bucket addressing.
	PathStyle bool
}

type ClientFactoryParams struct {
	Logger *observability.CoreLogger

	// HTTPClient sends Data Lake Storage requests.
	HTTPClient *retryablehttp.Client

	// S3 is the S3 client. If nil, one is created from the AWS
	// configuration on first use.
	S3 S3API

	S3Options S3Options

	// GCS is used for gs:// targets. If nil, the GCS client is created on
	// first use.
	GCS GCSObjects

	// GCSMaxAttempts bounds the GCS client's own retries of each request.
	GCSMaxAttempts int

	// NewAzureClient creates block blob clients. If nil, a SAS URL is used
	// without credentials and other URLs use the default Azure credential.
	NewAzureClient func(blobURL string) (AzureBlockBlobClient, error)

	// SessionCacheSize is the number of objects whose in-progress uploads
	// are remembered.
	SessionCacheSize int
}

// ClientFactory creates transfer clients based on the target URL.
//
//   - s3://bucket/key uploads to S3.
//   - gs://bucket/key uploads to Google Cloud Storage.
//   - https://<account>.blob.core.windows.net/... uploads a block blob.
//   - Other http(s) URLs use the Data Lake Storage path API.
type ClientFactory struct {
	logger     *observability.CoreLogger
	httpClient *retryablehttp.Client
	sessions   *sessionCache

	s3Options      S3Options
	gcsMaxAttempts int
	newAzureClient func(blobURL string) (AzureBlockBlobClient, error)

	// mu guards the lazily created clients below.
	mu              sync.Mutex
	s3              S3API
	gcs             GCSObjects
	azureCredential azcore.TokenCredential
}

func NewClientFactory(params ClientFactoryParams) (*ClientFactory, error) {
	sessions, err := newSessionCache(params.SessionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("filetransfer: %v", err)
	}

	logger := params.Logger
	if logger == nil {
		logger = observability.NewNoOpLogger()
	}

	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = retryablehttp.NewClient()
		httpClient.RetryMax = 0
		httpClient.Logger = nil
	}

	gcsMaxAttempts := params.GCSMaxAttempts
	if gcsMaxAttempts <= 0 {
		gcsMaxAttempts = 1
	}

	factory := &ClientFactory{
		logger:         logger,
		httpClient:     httpClient,
		sessions:       sessions,
		s3Options:      params.S3Options,
		gcsMaxAttempts: gcsMaxAttempts,
		newAzureClient: params.NewAzureClient,
		s3:             params.S3,
		gcs:            params.GCS,
	}
	if factory.newAzureClient == nil {
		factory.newAzureClient = factory.defaultAzureClient
	}

	return factory, nil
}

// NewClient implements chunkupload.ClientFactory.
func (f *ClientFactory) NewClient(
	ctx context.Context,
	target string,
	item chunkupload.FileItem,
) (chunkupload.TransferClient, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("filetransfer: invalid target: %v", err)
	}

	switch {
	case u.Scheme == s3Scheme:
		return f.newS3Client(ctx, target, item)

	case u.Scheme == gcsScheme:
		return f.newGCSClient(ctx, target)

	case isHTTP(u) && strings.HasSuffix(u.Hostname(), azureBlobHostSuffix):
		return f.newAzureBlobClient(u)

	case isHTTP(u):
		return NewDataLakeClient(
			f.httpClient,
			f.logger.With("path", u.Path),
			u,
		), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTarget, sessionKey(u))
	}
}

func isHTTP(u *url.URL) bool {
	return u.Scheme == "https" || u.Scheme == "http"
}

// sessionKey identifies an object regardless of any signature in its URL.
func sessionKey(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.Path
}

func (f *ClientFactory) newS3Client(
	ctx context.Context,
	target string,
	item chunkupload.FileItem,
) (*S3Client, error) {
	bucket, key, err := parseCloudReference(target, s3Scheme)
	if err != nil {
		return nil, err
	}

	api, err := f.s3Client(ctx)
	if err != nil {
		return nil, err
	}

	return &S3Client{
		api:         api,
		logger:      f.logger,
		bucket:      bucket,
		key:         key,
		contentType: item.File.ContentType(),
		session:     f.sessions.get(s3Scheme + "://" + bucket + "/" + key),
	}, nil
}

func (f *ClientFactory) s3Client(ctx context.Context) (S3API, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.s3 != nil {
		return f.s3, nil
	}

	var opts []func(*config.LoadOptions) error
	if f.s3Options.Region != "" {
		opts = append(opts, config.WithRegion(f.s3Options.Region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("filetransfer: loading AWS config: %v", err)
	}

	f.s3 = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = f.s3Options.PathStyle
		if f.s3Options.Endpoint != "" {
			o.BaseEndpoint = aws.String(f.s3Options.Endpoint)
		}
	})
	return f.s3, nil
}

func (f *ClientFactory) newGCSClient(
	ctx context.Context,
	target string,
) (*GCSChunkClient, error) {
	bucket, object, err := parseCloudReference(target, gcsScheme)
	if err != nil {
		return nil, err
	}

	objects, err := f.gcsObjects(ctx)
	if err != nil {
		return nil, err
	}

	return &GCSChunkClient{
		objects: objects,
		logger:  f.logger,
		bucket:  bucket,
		object:  object,
	}, nil
}

func (f *ClientFactory) gcsObjects(ctx context.Context) (GCSObjects, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.gcs != nil {
		return f.gcs, nil
	}

	// The client outlives the chunk attempt that creates it.
	client, err := storage.NewClient(context.WithoutCancel(ctx))
	if err != nil {
		return nil, fmt.Errorf("filetransfer: creating GCS client: %v", err)
	}
	client.SetRetry(
		storage.WithBackoff(gax.Backoff{}),
		storage.WithMaxAttempts(f.gcsMaxAttempts),
	)

	f.gcs = &gcsObjects{client: client}
	return f.gcs, nil
}

func (f *ClientFactory) newAzureBlobClient(u *url.URL) (*AzureBlobClient, error) {
	client, err := f.newAzureClient(u.String())
	if err != nil {
		return nil, fmt.Errorf("filetransfer: creating Azure client: %v", err)
	}

	name := sessionKey(u)
	return &AzureBlobClient{
		client:  client,
		logger:  f.logger,
		name:    name,
		session: f.sessions.get(name),
	}, nil
}

// defaultAzureClient creates a block blob client for the URL.
//
// URLs with a SAS token are used as is. Other URLs are authenticated with
// the default Azure credential, which is created once.
func (f *ClientFactory) defaultAzureClient(
	blobURL string,
) (AzureBlockBlobClient, error) {
	u, err := url.Parse(blobURL)
	if err != nil {
		return nil, err
	}

	if u.Query().Has("sig") {
		return blockblob.NewClientWithNoCredential(blobURL, nil)
	}

	cred, err := f.credential()
	if err != nil {
		return nil, err
	}
	return blockblob.NewClient(blobURL, cred, nil)
}

func (f *ClientFactory) credential() (azcore.TokenCredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.azureCredential != nil {
		return f.azureCredential, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}

	f.azureCredential = cred
	return cred, nil
}
