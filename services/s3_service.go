package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/kendall-kelly/servicehub-api/config"
	"go.uber.org/zap"
)

// presignTTL is how long a job photo URL stays valid.
const presignTTL = time.Hour

// ObjectStore is the blob storage used for job photos.
type ObjectStore interface {
	PutObject(ctx context.Context, key, contentType string, body io.Reader) error
	PresignGet(ctx context.Context, key string) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

// S3Service stores objects in a single S3 bucket
type S3Service struct {
	client *s3.Client
	bucket string
}

var objectStoreInstance ObjectStore

// InitS3Service builds the S3 client from application config and installs it
// as the process object store.
func InitS3Service(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	objectStoreInstance = &S3Service{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.AWSS3Bucket,
	}
	return objectStoreInstance, nil
}

// GetObjectStore returns the process object store
func GetObjectStore() ObjectStore {
	return objectStoreInstance
}

// SetObjectStore sets the process object store (primarily for testing)
func SetObjectStore(store ObjectStore) {
	objectStoreInstance = store
}

func (s *S3Service) PutObject(ctx context.Context, key, contentType string, body io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

// PresignGet returns a time-limited GET URL for a private object
func (s *S3Service) PresignGet(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	req, err := s3.NewPresignClient(s.client).PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = presignTTL
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	zap.L().Debug("presigned job photo url", zap.String("key", key))
	return req.URL, nil
}

func (s *S3Service) DeleteObject(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}
