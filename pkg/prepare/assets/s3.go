package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/stevedore/internal/logger"
)

// S3Config holds configuration for the S3 asset source.
type S3Config struct {
	// Bucket is the S3 bucket name.
	Bucket string

	// Prefix restricts collection to keys under this prefix.
	Prefix string

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string

	// AccessKeyID and SecretAccessKey configure static credentials. When
	// empty the SDK default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// PathStyle forces path-style addressing (required for Localstack/MinIO).
	PathStyle bool
}

// S3Source downloads assets from an S3 bucket prefix.
type S3Source struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Source creates an S3 asset source by creating an S3 client from config.
func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket not configured")
	}

	// Build AWS SDK config options
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Build S3 client options
	var s3Opts []func(*s3.Options)

	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	if cfg.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	return &S3Source{
		client: client,
		bucket: cfg.Bucket,
		prefix: normalizePrefix(cfg.Prefix),
	}, nil
}

// normalizePrefix strips a leading slash and guarantees a trailing slash on
// non-empty prefixes so relative paths trim cleanly.
func normalizePrefix(prefix string) string {
	prefix = strings.TrimPrefix(prefix, "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

// Download fetches every object under the prefix into outputDir. Objects
// whose relative path was already collected from an earlier source are
// skipped, as are objects already present with matching size and mtime.
func (s *S3Source) Download(ctx context.Context, outputDir string, seen map[string]bool, stats *Stats) error {
	outRoot := filepath.Clean(outputDir)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("s3 list objects: %w", err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") {
				// Directory marker
				continue
			}

			rel := path.Clean(strings.TrimPrefix(strings.TrimPrefix(key, s.prefix), "/"))
			if rel == "" || rel == "." {
				continue
			}

			if seen[rel] {
				stats.Skipped++
				continue
			}

			dest := filepath.Join(outRoot, filepath.FromSlash(rel))
			if !strings.HasPrefix(dest, outRoot+string(os.PathSeparator)) {
				logger.WarnCtx(ctx, "Skipping object escaping the output directory",
					logger.Bucket(s.bucket), logger.Key(key))
				continue
			}

			seen[rel] = true

			copied, n, err := s.downloadObject(ctx, key, dest, obj)
			if err != nil {
				return fmt.Errorf("s3 get object %s: %w", key, err)
			}
			if copied {
				stats.Copied++
				stats.Bytes += n
			} else {
				stats.Skipped++
			}
		}
	}

	return nil
}

func (s *S3Source) downloadObject(ctx context.Context, key, dest string, obj types.Object) (bool, int64, error) {
	size := aws.ToInt64(obj.Size)
	modified := aws.ToTime(obj.LastModified)

	if info, err := os.Stat(dest); err == nil && info.Size() == size && !info.ModTime().Before(modified) {
		return false, 0, nil
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, 0, err
	}
	defer func() { _ = out.Body.Close() }()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return false, 0, err
	}

	// Write to a temporary file first, then rename for atomicity
	tmp := dest + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return false, 0, err
	}

	n, err := io.Copy(f, out.Body)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return false, 0, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return false, 0, err
	}

	if !modified.IsZero() {
		if err := os.Chtimes(tmp, modified, modified); err != nil {
			_ = os.Remove(tmp)
			return false, 0, err
		}
	}

	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return false, 0, err
	}

	return true, n, nil
}
