// Package archive keeps a copy of every rendered document in S3.
package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	Bucket   string
	Prefix   string // e.g. "inkpost/documents/"
	Region   string
	Compress bool
}

type S3 struct {
	client   s3API
	bucket   string
	prefix   string
	compress bool
	log      *slog.Logger
}

func NewS3(ctx context.Context, cfg S3Config, log *slog.Logger) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newS3(s3.NewFromConfig(awsCfg), cfg, log), nil
}

func newS3(client s3API, cfg S3Config, log *slog.Logger) *S3 {
	if log == nil {
		log = slog.Default()
	}
	return &S3{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		compress: cfg.Compress,
		log:      log.With("component", "archive"),
	}
}

// Key is the object name of a document: date/newsletter/post.html.
func Key(newsletterID int64, postKey string, day time.Time) string {
	return path.Join(day.UTC().Format("2006/01/02"), strconv.FormatInt(newsletterID, 10), postKey+".html")
}

// Store uploads body under the prefixed key, gzip-compressed when configured.
func (s *S3) Store(ctx context.Context, key string, body []byte) error {
	key = s.prefix + key
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		ContentType: aws.String("text/html"),
		Metadata: map[string]string{
			"archived_at": time.Now().UTC().Format(time.RFC3339),
		},
	}

	if s.compress {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(body); err != nil {
			return fmt.Errorf("failed to compress document: %w", err)
		}
		if err := gz.Close(); err != nil {
			return fmt.Errorf("failed to compress document: %w", err)
		}
		body = buf.Bytes()
		key += ".gz"
		input.ContentEncoding = aws.String("gzip")
	}

	input.Key = aws.String(key)
	input.Body = bytes.NewReader(body)
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	s.log.Debug("Document archived", "bucket", s.bucket, "key", key, "bytes", len(body))
	return nil
}
