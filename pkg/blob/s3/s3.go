// Package s3 provides an Amazon S3 (or S3-compatible) backed blob.Publisher.
//
// Objects are written with a single PutObject call carrying the content type
// and, by default, a public-read canned ACL so the returned URL is reachable
// by browsers. Set [Config.ACL] to "" for buckets that grant public access
// through a bucket policy instead (ACLs disabled).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/MrWong99/voxpreview/pkg/blob"
)

var (
	_ blob.Publisher = (*Publisher)(nil)
	_ blob.Pinger    = (*Publisher)(nil)
)

// api is the subset of *s3.Client used by Publisher.
type api interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Config configures a Publisher.
type Config struct {
	// Bucket is the destination bucket. Required.
	Bucket string

	// Region is the AWS region of the bucket. Required unless set in the environment.
	Region string

	// Endpoint overrides the S3 endpoint for S3-compatible stores (MinIO, R2, ...).
	Endpoint string

	// UsePathStyle addresses the bucket as <endpoint>/<bucket> instead of a
	// virtual-hosted subdomain. Usually required for MinIO.
	UsePathStyle bool

	// PublicBaseURL is the origin returned URLs are built from. When empty it
	// is derived from Bucket and Region.
	PublicBaseURL string

	// ACL is the canned ACL applied to each object. Defaults to public-read
	// when left at the zero value by [New]; use "none" to omit the header.
	ACL string

	// AccessKeyID and SecretAccessKey, when both set, replace the default
	// credential chain.
	AccessKeyID     string
	SecretAccessKey string
}

// Publisher implements blob.Publisher on top of S3 PutObject.
type Publisher struct {
	client  api
	bucket  string
	baseURL string
	acl     types.ObjectCannedACL
}

// New loads the AWS configuration and returns a ready Publisher.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = awsCfg.Region
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return newWithClient(client, cfg), nil
}

func newWithClient(client api, cfg Config) *Publisher {
	acl := types.ObjectCannedACLPublicRead
	switch cfg.ACL {
	case "":
	case "none":
		acl = ""
	default:
		acl = types.ObjectCannedACL(cfg.ACL)
	}
	return &Publisher{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: publicBaseURL(cfg),
		acl:     acl,
	}
}

// publicBaseURL returns the configured base URL or derives the standard
// virtual-hosted (or path-style) S3 URL.
func publicBaseURL(cfg Config) string {
	switch {
	case cfg.PublicBaseURL != "":
		return cfg.PublicBaseURL
	case cfg.Endpoint != "" && cfg.UsePathStyle:
		return blob.JoinURL(cfg.Endpoint, cfg.Bucket)
	case cfg.Region != "":
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	default:
		return fmt.Sprintf("https://%s.s3.amazonaws.com", cfg.Bucket)
	}
}

// Publish uploads data to <bucket>/<path> and returns its public URL.
func (p *Publisher) Publish(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if err := blob.ValidatePath(path); err != nil {
		return "", err
	}
	in := &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if p.acl != "" {
		in.ACL = p.acl
	}
	if _, err := p.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("%w: s3 put %s/%s: %w", blob.ErrStorage, p.bucket, path, err)
	}
	return blob.JoinURL(p.baseURL, path), nil
}

// Ping checks that the bucket exists and is reachable with the configured credentials.
func (p *Publisher) Ping(ctx context.Context) error {
	if _, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)}); err != nil {
		return fmt.Errorf("%w: s3 head bucket %s: %w", blob.ErrStorage, p.bucket, err)
	}
	return nil
}
