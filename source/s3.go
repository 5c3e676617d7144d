package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Scheme prefixes Amazon S3 URLs.
const S3Scheme = "s3://"

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source lists and downloads objects from Amazon S3.
type S3Source struct {
	client S3API
	logger *slog.Logger
}

var _ StorageSource = (*S3Source)(nil)

// S3Option configures an S3Source.
type S3Option func(*S3Source)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) S3Option {
	return func(s *S3Source) {
		s.logger = logger
	}
}

// NewS3Source creates an S3 source around an existing client.
func NewS3Source(client S3API, opts ...S3Option) (*S3Source, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	s := &S3Source{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "s3-source")
	return s, nil
}

// NewDefaultS3Source builds a client from the default AWS credential chain
// (environment, shared config, instance role).
func NewDefaultS3Source(ctx context.Context, region string, opts ...S3Option) (*S3Source, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewS3Source(s3.NewFromConfig(cfg), opts...)
}

func (s *S3Source) IsMatch(url string) bool {
	return strings.HasPrefix(url, S3Scheme)
}

func (s *S3Source) IsCloudURL(url string) bool {
	return s.IsMatch(url)
}

// ParseS3URL splits an s3:// URL into bucket and key.
func ParseS3URL(url string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(url, S3Scheme)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidURL, url)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("%w: missing bucket in %s", ErrInvalidURL, url)
	}
	return bucket, key, nil
}

// List pages through every object under the URL's prefix.
//
// A prefix that does not end in "/" is treated as a folder boundary: keys
// that merely share its leading characters ("folder2/x" for prefix "folder")
// are excluded. A key equal to the prefix is returned as-is.
func (s *S3Source) List(ctx context.Context, url string, recursive bool) ([]string, error) {
	bucket, prefix, err := ParseS3URL(url)
	if err != nil {
		return nil, err
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	var urls []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &StorageIOError{Op: "list", URL: url, Err: err}
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if keep(prefix, key, recursive) {
				urls = append(urls, S3Scheme+bucket+"/"+key)
			}
		}
	}
	s.logger.Debug("listed objects", "url", url, "recursive", recursive, "count", len(urls))
	return urls, nil
}

func keep(prefix, key string, recursive bool) bool {
	if strings.HasSuffix(key, "/") {
		// Folder marker
		return false
	}
	rest := strings.TrimPrefix(key, prefix)
	if rest == "" {
		return true
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") && !strings.HasPrefix(rest, "/") {
		return false
	}
	rest = strings.TrimLeft(rest, "/")
	return recursive || !strings.Contains(rest, "/")
}

// Fetch downloads the object to dst, creating parent directories.
// A partially written file is removed on failure.
func (s *S3Source) Fetch(ctx context.Context, url, dst string) (string, error) {
	bucket, key, err := ParseS3URL(url)
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", fmt.Errorf("%w: missing key in %s", ErrInvalidURL, url)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", &StorageIOError{Op: "fetch", URL: url, Err: err}
	}
	defer out.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}
	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	_, copyErr := io.Copy(f, out.Body)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(dst)
		return "", &StorageIOError{Op: "fetch", URL: url, Err: err}
	}
	return dst, nil
}
