package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	cfg "github.com/bskysched/bskysched/configs"
)

// S3Store keeps image blobs in an S3-compatible bucket (R2, MinIO, AWS).
type S3Store struct {
	client *s3.Client
	bucket string
}

func NewS3Store(c cfg.S3) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
		awsconfig.WithRegion(c.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: c.Bucket}, nil
}

func (s *S3Store) Put(ctx context.Context, name string, data []byte, mimeType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("put object %s: %w", name, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, name string) ([]byte, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, "", ErrNotFound
		}
		slog.Info(err.Error())
		return nil, "", fmt.Errorf("get object %s: %w", name, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read object %s: %w", name, err)
	}

	mimeType := ""
	if out.ContentType != nil {
		mimeType = *out.ContentType
	}
	return data, mimeType, nil
}
