package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"tempchat/internal/pkg/logx"
)

// deleteBatchSize is the DeleteObjects limit per request.
const deleteBatchSize = 1000

// s3Client implements StorageService against an S3-compatible endpoint.
type s3Client struct {
	cfg      ServiceConfig
	s3Client *s3.Client
	uploader *manager.Uploader
	log      zerolog.Logger
}

// newS3Client builds a path-style client with static credentials for cfg.S3Endpoint.
func newS3Client(ctx context.Context, cfg ServiceConfig) (*s3Client, error) {
	sdkCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID,
			cfg.S3SecretAccessKey,
			"",
		)),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(sdkCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		o.UsePathStyle = true
	})

	return &s3Client{
		cfg:      cfg,
		s3Client: client,
		uploader: manager.NewUploader(client),
		log:      logx.Component("storage"),
	}, nil
}

func (c *s3Client) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	_, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        &c.cfg.S3BucketName,
		Key:           &key,
		Body:          body,
		ContentType:   &contentType,
		ContentLength: &size,
	})
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("S3 upload failed")
		return errors.New("failed to upload file to S3")
	}

	return nil
}

func (c *s3Client) PresignDownload(ctx context.Context, key, fileName string, duration time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(c.s3Client)

	presignInput := &s3.GetObjectInput{
		Bucket: &c.cfg.S3BucketName,
		Key:    &key,
	}
	if fileName != "" {
		disposition := mime.FormatMediaType("attachment", map[string]string{"filename": fileName})
		presignInput.ResponseContentDisposition = &disposition
	}

	resp, err := presignClient.PresignGetObject(ctx, presignInput, s3.WithPresignExpires(duration))
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("Failed to generate presigned URL")
		return "", errors.New("failed to generate presigned URL")
	}

	return resp.URL, nil
}

func (c *s3Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &c.cfg.S3BucketName,
		Key:    &key,
	})
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("S3 delete failed")
		return errors.New("failed to delete file from S3")
	}

	return nil
}

func (c *s3Client) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	paginator := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket: &c.cfg.S3BucketName,
		Prefix: &prefix,
	})

	deleted := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			c.log.Error().Err(err).Str("prefix", prefix).Msg("S3 list failed")
			return deleted, errors.New("failed to list files in S3")
		}

		for start := 0; start < len(page.Contents); start += deleteBatchSize {
			end := min(start+deleteBatchSize, len(page.Contents))

			ids := make([]types.ObjectIdentifier, 0, end-start)
			for _, obj := range page.Contents[start:end] {
				ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
			}

			out, err := c.s3Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: &c.cfg.S3BucketName,
				Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
			})
			if err != nil {
				c.log.Error().Err(err).Str("prefix", prefix).Msg("S3 batch delete failed")
				return deleted, errors.New("failed to delete files from S3")
			}
			deleted += len(ids) - len(out.Errors)
		}
	}

	return deleted, nil
}
