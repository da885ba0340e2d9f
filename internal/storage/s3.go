package storage

import (
	"context"
	goerrors "errors"
	"io"
	"math"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/sei-international/nemo/internal/errors"
)

// S3Archive implements Archive on an S3 bucket.
type S3Archive struct {
	client     *s3.Client
	bucket     string
	maxRetries int
}

// S3Config configures the archive bucket connection.
type S3Config struct {
	// Region is the AWS region for the bucket.
	Region string
	// Endpoint is an optional custom endpoint (MinIO, LocalStack).
	Endpoint string
	// UsePathStyle enables path-style addressing, required for MinIO.
	UsePathStyle bool
}

// NewS3Archive builds an archive client from the ambient AWS credentials.
func NewS3Archive(ctx context.Context, bucket string, cfg S3Config) (*S3Archive, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.NewStorageError(errors.CodeOpenFailed, "failed to load AWS config", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(cfg.Endpoint) })
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return &S3Archive{
		client:     s3.NewFromConfig(awsCfg, s3Opts...),
		bucket:     bucket,
		maxRetries: 3,
	}, nil
}

// NewS3ArchiveWithClient wraps a pre-configured client, used by tests.
func NewS3ArchiveWithClient(client *s3.Client, bucket string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket, maxRetries: 3}
}

// Upload puts the local file at objectKey.
func (s *S3Archive) Upload(ctx context.Context, localPath, objectKey string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return errors.NewStorageError(errors.CodeUploadFailed, "failed to open file for upload", err)
	}
	defer file.Close()

	err = s.retry(ctx, func() error {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return err
		}
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectKey),
			Body:   file,
		})
		return err
	})
	if err != nil {
		return errors.NewStorageError(errors.CodeUploadFailed, "failed to upload "+objectKey, err)
	}
	return nil
}

// Download gets the object at objectKey into localPath.
func (s *S3Archive) Download(ctx context.Context, objectKey, localPath string) error {
	var resp *s3.GetObjectOutput
	err := s.retry(ctx, func() error {
		var getErr error
		resp, getErr = s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectKey),
		})
		return getErr
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if goerrors.As(err, &noSuchKey) {
			return errors.NewStorageError(errors.CodeObjectNotFound, "no archived object "+objectKey, err)
		}
		return errors.NewStorageError(errors.CodeDownloadFailed, "failed to download "+objectKey, err)
	}
	defer resp.Body.Close()

	file, err := os.Create(localPath)
	if err != nil {
		return errors.NewStorageError(errors.CodeDownloadFailed, "failed to create destination file", err)
	}
	defer file.Close()
	if _, err := io.Copy(file, resp.Body); err != nil {
		return errors.NewStorageError(errors.CodeDownloadFailed, "failed to write "+localPath, err)
	}
	return nil
}

// Exists heads the object.
func (s *S3Archive) Exists(ctx context.Context, objectKey string) (bool, error) {
	var exists bool
	err := s.retry(ctx, func() error {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectKey),
		})
		if err != nil {
			var notFound *s3types.NotFound
			if goerrors.As(err, &notFound) {
				exists = false
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// Delete removes the object. S3 deletes are idempotent.
func (s *S3Archive) Delete(ctx context.Context, objectKey string) error {
	err := s.retry(ctx, func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectKey),
		})
		return err
	})
	if err != nil {
		return errors.NewStorageError(errors.CodeUploadFailed, "failed to delete "+objectKey, err)
	}
	return nil
}

// List pages through the bucket for keys under prefix.
func (s *S3Archive) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.NewStorageError(errors.CodeDownloadFailed, "failed to list archive", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// retry runs the operation with exponential backoff.
func (s *S3Archive) retry(ctx context.Context, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = operation()
		if lastErr == nil {
			return nil
		}
		if attempt < s.maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
