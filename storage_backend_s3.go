package pitfeat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3BackendConfig configures the S3 storage backend.
type S3BackendConfig struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // For S3-compatible services (MinIO, etc.)
	// AccessKeyID for authentication. Prefer IAM roles or the standard
	// AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY environment variables.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Prefix          string `yaml:"prefix"` // Key prefix for all objects
	UsePathStyle    bool   `yaml:"use_path_style"`

	Retry RetryConfig `yaml:"retry"`
}

// S3Backend implements StorageBackend using S3 or S3-compatible storage.
// Every call is retried on transient errors.
type S3Backend struct {
	client  *s3.Client
	config  S3BackendConfig
	retryer *Retryer
}

// NewS3Backend creates a new S3 storage backend.
func NewS3Backend(ctx context.Context, cfg S3BackendConfig) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Retry.RetryIf == nil {
		cfg.Retry.RetryIf = IsRetryable
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	return &S3Backend{
		client:  s3.NewFromConfig(awsCfg, s3Opts...),
		config:  cfg,
		retryer: NewRetryer(cfg.Retry),
	}, nil
}

func (s *S3Backend) key(k string) string {
	return s.config.Prefix + k
}

func (s *S3Backend) Read(ctx context.Context, key string) ([]byte, error) {
	return retryValue(ctx, s.retryer, func(ctx context.Context) ([]byte, error) {
		resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(s.key(key)),
		})
		if err != nil {
			var nsk *s3types.NoSuchKey
			if errors.As(err, &nsk) {
				return nil, fmt.Errorf("S3 get object %s: %w", key, fs.ErrNotExist)
			}
			return nil, fmt.Errorf("S3 get object failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("S3 read body failed: %w", err)
		}
		return data, nil
	})
}

func (s *S3Backend) Write(ctx context.Context, key string, data []byte) error {
	return s.retryer.Do(ctx, func(ctx context.Context) error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(s.key(key)),
			Body:   bytes.NewReader(data),
		})
		if err != nil {
			return fmt.Errorf("S3 put object failed: %w", err)
		}
		return nil
	}).LastErr
}

func (s *S3Backend) Delete(ctx context.Context, key string) error {
	return s.retryer.Do(ctx, func(ctx context.Context) error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(s.key(key)),
		})
		if err != nil {
			return fmt.Errorf("S3 delete object failed: %w", err)
		}
		return nil
	}).LastErr
}

func (s *S3Backend) List(ctx context.Context, prefix string) ([]string, error) {
	return retryValue(ctx, s.retryer, func(ctx context.Context) ([]string, error) {
		var keys []string
		paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.config.Bucket),
			Prefix: aws.String(s.key(prefix)),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("S3 list objects failed: %w", err)
			}
			for _, obj := range page.Contents {
				keys = append(keys, strings.TrimPrefix(aws.ToString(obj.Key), s.config.Prefix))
			}
		}
		return keys, nil
	})
}

func (s *S3Backend) Exists(ctx context.Context, key string) (bool, error) {
	return retryValue(ctx, s.retryer, func(ctx context.Context) (bool, error) {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(s.key(key)),
		})
		if err == nil {
			return true, nil
		}
		var nf *s3types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return false, nil
		}
		return false, fmt.Errorf("S3 head object failed: %w", err)
	})
}

func (s *S3Backend) Close() error {
	return nil
}
