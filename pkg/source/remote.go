package source

import (
	"context"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/onix/pkg/errors"
)

// S3Fetcher downloads objects with the S3 transfer manager.
type S3Fetcher struct {
	downloader *manager.Downloader
}

// NewS3Fetcher loads the default AWS configuration. endpoint selects an
// S3 compatible service and enables path-style addressing.
func NewS3Fetcher(ctx context.Context, region, endpoint string) (*S3Fetcher, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3FetcherFromClient(client), nil
}

// NewS3FetcherFromClient wraps an existing client.
func NewS3FetcherFromClient(client manager.DownloadAPIClient) *S3Fetcher {
	return &S3Fetcher{downloader: manager.NewDownloader(client, func(d *manager.Downloader) {
		d.Concurrency = 4
	})}
}

// Fetch implements Fetcher.
func (f *S3Fetcher) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	buf := manager.NewWriteAtBuffer(nil)
	_, err := f.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var noBucket *types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "feed object not found").
				WithDetail("bucket", bucket).WithDetail("key", key)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to download feed").
			WithDetail("bucket", bucket).WithDetail("key", key)
	}
	return buf.Bytes(), nil
}

// GCSFetcher reads objects from Google Cloud Storage.
type GCSFetcher struct {
	client *storage.Client
}

// NewGCSFetcher creates a client from application default credentials or
// from credentialsFile when set.
func NewGCSFetcher(ctx context.Context, credentialsFile string) (*GCSFetcher, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create GCS client")
	}
	return &GCSFetcher{client: client}, nil
}

// NewGCSFetcherFromClient wraps an existing client.
func NewGCSFetcherFromClient(client *storage.Client) *GCSFetcher {
	return &GCSFetcher{client: client}
}

// Fetch implements Fetcher.
func (f *GCSFetcher) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	r, err := f.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "feed object not found").
				WithDetail("bucket", bucket).WithDetail("key", key)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open feed object").
			WithDetail("bucket", bucket).WithDetail("key", key)
	}
	defer r.Close()

	data, err := readAll(r, r.Attrs.Size)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read feed object").
			WithDetail("bucket", bucket).WithDetail("key", key)
	}
	return data, nil
}

// Close releases the client.
func (f *GCSFetcher) Close() error {
	return f.client.Close()
}
