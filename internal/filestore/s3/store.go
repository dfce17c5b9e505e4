// Package s3 stores file bytes as objects in an S3 bucket or any
// S3-compatible service reachable through a custom endpoint.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/msomdec/snapgram/internal/domain"
	"github.com/msomdec/snapgram/internal/filestore"
)

// API is the subset of the S3 client the store calls.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Options configures the S3 client.
type Options struct {
	Bucket string
	// Endpoint overrides the AWS endpoint, e.g. a MinIO URL. Path-style
	// addressing is used when it is set.
	Endpoint string
	Region   string
}

// Store implements domain.FileStore on an S3 bucket.
type Store struct {
	client API
	bucket string
	logger *slog.Logger
}

var _ domain.FileStore = (*Store)(nil)

// New loads the default AWS configuration chain and builds a Store.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket required", domain.ErrInvalidInput)
	}

	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, opts.Bucket, logger), nil
}

// NewWithClient builds a Store on an existing client.
func NewWithClient(client API, bucket string, logger *slog.Logger) *Store {
	return &Store{client: client, bucket: bucket, logger: logger.With("system", "filestore")}
}

func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	if err := filestore.ValidateKey(key); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	s.logger.Debug("object stored", "bucket", s.bucket, "key", key, "size", len(data))
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := filestore.ValidateKey(key); err != nil {
		return nil, err
	}
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// Delete removes the object. S3 treats deleting a missing key as success.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := filestore.ValidateKey(key); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}
