package store

import (
	"bytes"
	"context"
	stderr "errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/recordstore/recordstore/pkg/errors"
	"github.com/recordstore/recordstore/pkg/retry"
)

// S3Config configures the S3-backed store.
type S3Config struct {
	// Bucket is the S3 bucket holding the collection object
	Bucket string `yaml:"bucket" json:"bucket"`

	// Key is the object key of the collection
	Key string `yaml:"key" json:"key"`

	// Region is the AWS region
	Region string `yaml:"region" json:"region"`

	// Endpoint overrides the S3 endpoint (e.g., for MinIO/LocalStack)
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// ForcePathStyle uses path-style addressing (required by most S3-compatible servers)
	ForcePathStyle bool `yaml:"force_path_style" json:"force_path_style"`

	// Retry controls backoff for transient request failures
	Retry retry.Config `yaml:"retry" json:"retry"`
}

// DefaultS3Config returns an S3 store configuration with defaults applied.
func DefaultS3Config() S3Config {
	return S3Config{
		Key:    "records.json",
		Region: "us-east-1",
		Retry:  retry.DefaultConfig(),
	}
}

// s3API is the slice of the S3 client the store uses, extracted for tests.
type s3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Store persists the collection as a single object in an S3 bucket.
// The object's LastModified timestamp is the modification signal.
// Transient request failures are retried with exponential backoff;
// missing-object responses are not.
type S3Store struct {
	client  s3API
	bucket  string
	key     string
	retryer *retry.Retryer
	logger  *slog.Logger
}

// NewS3Store creates an S3-backed store, loading AWS configuration from
// the default chain.
func NewS3Store(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "s3 store bucket cannot be empty")
	}
	if cfg.Key == "" {
		cfg.Key = "records.json"
	}
	if logger == nil {
		logger = slog.Default()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, "loading AWS config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:  client,
		bucket:  cfg.Bucket,
		key:     cfg.Key,
		retryer: retry.New(cfg.Retry),
		logger:  logger,
	}, nil
}

// ReadAll fetches the collection object in full.
func (s *S3Store) ReadAll(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key),
		})
		if err != nil {
			return s.translateError(err, "read", errors.ErrCodeStoreRead)
		}
		defer out.Body.Close()

		data, err = io.ReadAll(out.Body)
		if err != nil {
			return errors.Wrap(errors.ErrCodeStoreRead, "reading object body", err).
				WithComponent("s3store").WithOperation("read")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// WriteAll replaces the collection object. S3 PUTs are atomic per
// object, so readers see either the old or the new body, never a mix.
func (s *S3Store) WriteAll(ctx context.Context, data []byte) error {
	return s.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(s.key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
			ContentType:   aws.String("application/json"),
		})
		if err != nil {
			return s.translateError(err, "write", errors.ErrCodeStoreWrite)
		}
		return nil
	})
}

// ModTime returns the object's LastModified timestamp.
func (s *S3Store) ModTime(ctx context.Context) (time.Time, error) {
	var modTime time.Time
	err := s.retryer.DoWithContext(ctx, func(ctx context.Context) error {
		out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key),
		})
		if err != nil {
			return s.translateError(err, "stat", errors.ErrCodeStoreStat)
		}
		modTime = aws.ToTime(out.LastModified)
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return modTime, nil
}

// translateError maps AWS SDK errors onto the recordstore taxonomy.
// Missing objects become STORE_NOT_FOUND and are never retried.
func (s *S3Store) translateError(err error, op string, code errors.ErrorCode) error {
	var noSuchKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	if stderr.As(err, &noSuchKey) || stderr.As(err, &notFound) {
		return errors.Wrap(errors.ErrCodeStoreNotFound,
			fmt.Sprintf("object s3://%s/%s does not exist", s.bucket, s.key), err).
			WithComponent("s3store").WithOperation(op)
	}
	return errors.Wrap(code,
		fmt.Sprintf("s3://%s/%s", s.bucket, s.key), err).
		WithComponent("s3store").WithOperation(op)
}
