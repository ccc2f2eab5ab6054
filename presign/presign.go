// Package presign generates pre-signed S3 PUT URLs for collection uploads.
//
// It is the counterpart of the collector: an operator with AWS credentials
// runs it to obtain a short-lived URL, which is then handed to the collector
// on the host under investigation. The collector itself never needs
// credentials.
package presign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

const (
	// DefaultExpiry is the lifetime of a URL when none is given.
	DefaultExpiry = time.Hour
	// MaxExpiry is the longest lifetime SigV4 allows for a pre-signed URL.
	MaxExpiry = 7 * 24 * time.Hour
	// DefaultRegion is used when neither options nor the environment set one.
	DefaultRegion = "us-east-1"
)

// ErrInvalidInput is returned for requests missing a bucket or key, or with
// an out of range expiry.
var ErrInvalidInput = errors.New("presign: invalid input")

// API is the subset of the S3 presign client used here.
type API interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Request names the object the URL grants write access to.
type Request struct {
	Bucket string
	Key    string
	// Expires is the URL lifetime; DefaultExpiry when zero
	Expires time.Duration
}

// URL is a generated pre-signed URL.
type URL struct {
	URL       string
	Method    string
	Bucket    string
	Key       string
	ExpiresAt time.Time
}

// Presigner creates pre-signed PUT URLs.
type Presigner struct {
	logger zerolog.Logger
	api    API
	now    func() time.Time
}

type options struct {
	region    string
	endpoint  string
	pathStyle bool
	awsConfig *aws.Config
}

// Option configures New.
type Option func(*options)

// WithRegion sets the bucket's region.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithEndpoint overrides the S3 endpoint, e.g. for S3-compatible stores.
// Without it the regional endpoint https://s3.<region>.amazonaws.com is used.
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
	}
}

// WithPathStyle forces path-style URLs instead of virtual-hosted ones.
func WithPathStyle(pathStyle bool) Option {
	return func(o *options) {
		o.pathStyle = pathStyle
	}
}

// WithAWSConfig uses cfg instead of loading the default credential chain.
func WithAWSConfig(cfg *aws.Config) Option {
	return func(o *options) {
		o.awsConfig = cfg
	}
}

// RegionalEndpoint returns the S3 endpoint URL of region.
func RegionalEndpoint(region string) string {
	return fmt.Sprintf("https://s3.%s.amazonaws.com", region)
}

// New creates a presigner backed by the AWS SDK. Credentials come from the
// default chain (environment, shared config, instance role) unless
// WithAWSConfig is given.
func New(ctx context.Context, logger zerolog.Logger, opts ...Option) (*Presigner, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var cfg aws.Config
	if o.awsConfig != nil {
		cfg = *o.awsConfig
	} else {
		var err error
		cfg, err = config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
	}

	if o.region != "" {
		cfg.Region = o.region
	} else if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}

	endpoint := o.endpoint
	if endpoint == "" {
		// Regional endpoint, so that URLs for new regions work right away.
		endpoint = RegionalEndpoint(cfg.Region)
	}

	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		so.BaseEndpoint = aws.String(endpoint)
		so.UsePathStyle = o.pathStyle
	})

	logger.Debug().
		Str("region", cfg.Region).
		Str("endpoint", endpoint).
		Bool("path_style", o.pathStyle).
		Msg("Created S3 presign client")

	return NewWithClient(logger, s3.NewPresignClient(client)), nil
}

// NewWithClient creates a presigner using api. This is primarily used for
// testing.
func NewWithClient(logger zerolog.Logger, api API) *Presigner {
	return &Presigner{
		logger: logger,
		api:    api,
		now:    time.Now,
	}
}

// PutURL returns a URL that allows a single PUT of req.Key into req.Bucket
// until it expires.
func (p *Presigner) PutURL(ctx context.Context, req Request) (*URL, error) {
	if req.Bucket == "" {
		return nil, fmt.Errorf("%w: bucket is required", ErrInvalidInput)
	}
	if req.Key == "" {
		return nil, fmt.Errorf("%w: key is required", ErrInvalidInput)
	}
	expires := req.Expires
	if expires == 0 {
		expires = DefaultExpiry
	}
	if expires < time.Second || expires > MaxExpiry {
		return nil, fmt.Errorf("%w: expiry %s must be between 1s and %s", ErrInvalidInput, expires, MaxExpiry)
	}

	signedAt := p.now()
	out, err := p.api.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(req.Bucket),
		Key:    aws.String(req.Key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return nil, fmt.Errorf("failed to presign %s/%s: %w", req.Bucket, req.Key, err)
	}

	p.logger.Debug().
		Str("bucket", req.Bucket).
		Str("key", req.Key).
		Dur("expires", expires).
		Msg("Generated pre-signed URL")

	return &URL{
		URL:       out.URL,
		Method:    out.Method,
		Bucket:    req.Bucket,
		Key:       req.Key,
		ExpiresAt: signedAt.Add(expires),
	}, nil
}

// DefaultKey returns the object key used when none is given:
// <hostname>-<UTC timestamp>.zip.
func DefaultKey(hostname string, now time.Time) string {
	if hostname == "" {
		hostname = "unknown-host"
	}
	return fmt.Sprintf("%s-%s.zip", hostname, now.UTC().Format("20060102-150405"))
}
