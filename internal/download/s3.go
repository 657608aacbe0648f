package download

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ramy-dje/madar-dashboard-sub000/internal/logging"
)

// S3Config configures the bucket downloads are copied into.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

// S3Sink stores downloads in an S3 or MinIO bucket.
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Sink creates an S3 sink. Static keys are used when given, otherwise the default AWS
// credential chain. A custom endpoint switches to path-style addressing for MinIO.
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Sink{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Name returns "s3".
func (s *S3Sink) Name() string { return "s3" }

// Save uploads r as prefix/name. Content of unknown size is buffered first, since the upload
// needs a length.
func (s *S3Sink) Save(ctx context.Context, name string, r io.Reader, size int64) (string, int64, error) {
	key := path.Join(s.prefix, name)

	var body io.Reader = r
	if size < 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return "", 0, fmt.Errorf("read content: %w", err)
		}
		body = bytes.NewReader(data)
		size = int64(len(data))
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", 0, fmt.Errorf("put object %s: %w", key, err)
	}
	logging.Debug("download stored in bucket",
		logging.String("bucket", s.bucket),
		logging.String("key", key),
	)
	return "s3://" + s.bucket + "/" + key, size, nil
}
