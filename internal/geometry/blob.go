package geometry

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// s3API is the part of the S3 client used by S3Source.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads geometry documents from an S3 bucket. The geojsonPath is
// the object key below prefix.
type S3Source struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Source creates a source using the default AWS credential chain.
func NewS3Source(ctx context.Context, bucket, prefix string) (*S3Source, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return &S3Source{client: s3.NewFromConfig(cfg), bucket: bucket, prefix: prefix}, nil
}

func (s *S3Source) key(name string) string {
	return path.Join(s.prefix, name)
}

func (s *S3Source) Fetch(ctx context.Context, geojsonPath string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(geojsonPath)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 get %s: %w", geojsonPath, err)
	}
	defer out.Body.Close()
	return readLimited(out.Body)
}

// MinioSource reads geometry documents from MinIO or any S3-compatible store.
type MinioSource struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioSource connects to endpoint with static credentials.
func NewMinioSource(endpoint, accessKey, secretKey string, useSSL bool, bucket, prefix string) (*MinioSource, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	return &MinioSource{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *MinioSource) key(name string) string {
	return path.Join(s.prefix, name)
}

func (s *MinioSource) Fetch(ctx context.Context, geojsonPath string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(geojsonPath), minio.GetObjectOptions{})
	if err != nil {
		return nil, minioError(geojsonPath, err)
	}
	defer obj.Close()

	// GetObject is lazy; a missing key only shows up on the first read.
	b, err := readLimited(obj)
	if err != nil {
		return nil, minioError(geojsonPath, err)
	}
	return b, nil
}

func minioError(geojsonPath string, err error) error {
	code := minio.ToErrorResponse(err).Code
	if code == "NoSuchKey" || code == "NotFound" {
		return ErrNotFound
	}
	return fmt.Errorf("minio get %s: %w", geojsonPath, err)
}
