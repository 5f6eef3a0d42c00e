package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/docmark/internal/filex"
	"github.com/google/uuid"
)

var ErrNoBucket = errors.New("s3 bucket not configured")

// test seams
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}

	now = time.Now
)

// S3Options configures an S3Sink. Endpoint selects an S3-compatible server
// such as MinIO and switches to path-style addressing. Static credentials
// are used when AccessKey is set, the default AWS chain otherwise.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	AccessKey string
	SecretKey string
}

type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Sink(ctx context.Context, o S3Options) (*S3Sink, error) {
	if o.Bucket == "" {
		return nil, ErrNoBucket
	}

	var opts []func(*config.LoadOptions) error
	if o.Region != "" {
		opts = append(opts, config.WithRegion(o.Region))
	}
	if o.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		}
	})

	return &S3Sink{client: client, bucket: o.Bucket, prefix: strings.Trim(o.Prefix, "/")}, nil
}

// objectKey is prefix/yyyy/mm/dd/<uuid>-<name>.
func (s *S3Sink) objectKey(name string) string {
	d := now().UTC()
	return path.Join(s.prefix, fmt.Sprintf("%04d/%02d/%02d", d.Year(), d.Month(), d.Day()), uuid.NewString()+"-"+name)
}

func (s *S3Sink) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	safe, err := filex.SafeName(name)
	if err != nil {
		return "", err
	}
	key := s.objectKey(safe)

	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	if _, err := putObject(s.client, ctx, in); err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}
