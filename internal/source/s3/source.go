package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"legislens/internal/source"
)

type getObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Options configures a Source.
type Options struct {
	Region string
	// Buckets is the allow-list. The first entry is used when a request names
	// no bucket. Empty allows any bucket but then every request must name one.
	Buckets  []string
	Prefix   string
	MaxBytes int64
}

// Source reads contract documents from Amazon S3.
type Source struct {
	client   getObjectAPI
	buckets  []string
	prefix   string
	maxBytes int64
}

// New loads the default AWS configuration and creates a read-only source.
func New(ctx context.Context, opts Options) (*Source, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newWithClient(s3.NewFromConfig(cfg), opts), nil
}

func newWithClient(client getObjectAPI, opts Options) *Source {
	buckets := make([]string, 0, len(opts.Buckets))
	for _, b := range opts.Buckets {
		if b = strings.TrimSpace(b); b != "" {
			buckets = append(buckets, b)
		}
	}
	return &Source{
		client:   client,
		buckets:  buckets,
		prefix:   normalizePrefix(opts.Prefix),
		maxBytes: opts.MaxBytes,
	}
}

// Fetch downloads one object, refusing buckets outside the allow-list and
// bodies over the size limit.
func (s *Source) Fetch(ctx context.Context, bucket, key string) (source.Object, error) {
	if err := ctx.Err(); err != nil {
		return source.Object{}, err
	}
	bucket, err := s.resolveBucket(bucket)
	if err != nil {
		return source.Object{}, err
	}
	key = strings.TrimSpace(key)
	if key == "" || strings.Contains(key, "..") {
		return source.Object{}, fmt.Errorf("%w: invalid key %q", source.ErrForbidden, key)
	}
	objectKey := applyPrefix(s.prefix, key)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return source.Object{}, classifyError(bucket, objectKey, err)
	}
	defer func() { _ = out.Body.Close() }()

	if s.maxBytes > 0 && aws.ToInt64(out.ContentLength) > s.maxBytes {
		return source.Object{}, fmt.Errorf("%w: %d bytes exceeds %d", source.ErrTooLarge, aws.ToInt64(out.ContentLength), s.maxBytes)
	}

	var body io.Reader = out.Body
	if s.maxBytes > 0 {
		body = io.LimitReader(out.Body, s.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return source.Object{}, fmt.Errorf("s3 read object bucket=%s key=%s: %w", bucket, objectKey, err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return source.Object{}, fmt.Errorf("%w: body exceeds %d bytes", source.ErrTooLarge, s.maxBytes)
	}

	return source.Object{
		Bucket:      bucket,
		Key:         objectKey,
		ContentType: aws.ToString(out.ContentType),
		Data:        data,
	}, nil
}

func (s *Source) resolveBucket(bucket string) (string, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		if len(s.buckets) == 0 {
			return "", fmt.Errorf("%w: bucket is required", source.ErrForbidden)
		}
		return s.buckets[0], nil
	}
	if len(s.buckets) == 0 {
		return bucket, nil
	}
	for _, allowed := range s.buckets {
		if allowed == bucket {
			return bucket, nil
		}
	}
	return "", fmt.Errorf("%w: bucket %q", source.ErrForbidden, bucket)
}

func classifyError(bucket, key string, err error) error {
	var noKey *s3types.NoSuchKey
	if errors.As(err, &noKey) {
		return fmt.Errorf("%w: bucket=%s key=%s", source.ErrNotFound, bucket, key)
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return fmt.Errorf("%w: bucket=%s key=%s", source.ErrNotFound, bucket, key)
		case http.StatusForbidden:
			return fmt.Errorf("%w: bucket=%s key=%s", source.ErrForbidden, bucket, key)
		}
	}
	return fmt.Errorf("s3 get object bucket=%s key=%s: %w", bucket, key, err)
}

func normalizePrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func applyPrefix(prefix, key string) string {
	cleanPrefix := strings.Trim(prefix, "/")
	cleanKey := strings.TrimLeft(key, "/")
	if cleanPrefix == "" {
		return cleanKey
	}
	if cleanKey == "" {
		return cleanPrefix
	}
	return cleanPrefix + "/" + cleanKey
}

var _ source.Source = (*Source)(nil)
