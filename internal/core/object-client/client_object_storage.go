package objectclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/markdave123-py/studyvault/internal/core"
	"github.com/markdave123-py/studyvault/internal/logger"
)

var _ core.ObjectClient = (*S3Client)(nil)

// ErrObjectNotFound is returned by GetFile for a missing key.
var ErrObjectNotFound = errors.New("object not found")

const (
	uploadPartSize = 8 << 20
	maxObjectBytes = 100 << 20
)

// S3Config holds static credentials for one region. Endpoint is optional and
// points the client at an S3-compatible server with path-style addressing.
type S3Config struct {
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

// S3Client stores uploaded PDFs. Uploads go through the multipart uploader;
// reads go through the concurrent downloader.
type S3Client struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	log        *logger.Logger
}

func NewS3Client(ctx context.Context, log *logger.Logger, cfg S3Config) (*S3Client, error) {
	switch {
	case cfg.AccessKey == "" || cfg.SecretKey == "":
		return nil, fmt.Errorf("AWS credentials not set")
	case cfg.Region == "":
		return nil, fmt.Errorf("AWS_REGION not set")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Client{
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = uploadPartSize
		}),
		downloader: manager.NewDownloader(client),
		log:        log.With("service", "s3", "region", cfg.Region),
	}, nil
}

// UploadFile stores data under bucket/key and returns its s3:// URL, the form
// the PDF extractor reads back.
func (c *S3Client) UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	out, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload %s/%s: %w", bucket, key, err)
	}

	c.log.Debug("uploaded object", "bucket", bucket, "key", key, "location", out.Location)
	return ObjectURL(bucket, key), nil
}

func (c *S3Client) DeleteFile(ctx context.Context, bucket, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("s3 delete %s/%s: %w", bucket, key, err)
	}
	return nil
}

// GetFile downloads a whole object. Objects over 100 MiB are refused.
func (c *S3Client) GetFile(ctx context.Context, bucket, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	head, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyGetError(bucket, key, err)
	}
	size := aws.ToInt64(head.ContentLength)
	if size > maxObjectBytes {
		return nil, fmt.Errorf("s3 object %s/%s is %d bytes, limit %d", bucket, key, size, maxObjectBytes)
	}

	buf := manager.NewWriteAtBuffer(make([]byte, 0, size))
	if _, err := c.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return nil, classifyGetError(bucket, key, err)
	}
	return buf.Bytes(), nil
}

func classifyGetError(bucket, key string, err error) error {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return fmt.Errorf("s3 get %s/%s: %w", bucket, key, ErrObjectNotFound)
	}
	return fmt.Errorf("s3 get %s/%s: %w", bucket, key, err)
}
