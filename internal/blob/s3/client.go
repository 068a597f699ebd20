// Package s3blob implements the domain blob interfaces on S3 and
// S3-compatible stores (MinIO, R2, iDrive e2) using AWS SDK v2.
package s3blob

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig holds the configuration for connecting to an object store.
type ClientConfig struct {
	// Endpoint overrides the AWS endpoint for compatible providers. Leave
	// empty for AWS S3.
	Endpoint       string
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	UseSSL         bool // scheme used when Endpoint has none
	ForcePathStyle bool
}

// objectAPI is the part of *s3.Client the reader and writer call.
type objectAPI interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Client holds the SDK client and the bucket every operation targets.
type Client struct {
	api    objectAPI
	bucket string
}

// New builds a client with static credentials.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3blob: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3blob: region is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(normaliseEndpoint(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return &Client{api: client, bucket: cfg.Bucket}, nil
}

// Health checks that the bucket is reachable.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		return fmt.Errorf("s3blob: health check failed for bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Close is a no-op; the SDK's HTTP client needs no teardown.
func (c *Client) Close() error { return nil }

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string { return c.bucket }

func normaliseEndpoint(endpoint string, useSSL bool) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Scheme != "" {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}
