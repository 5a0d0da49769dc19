/*
Package storage offloads file payloads to S3-compatible object storage.

Objects are keyed "<ROOM>/<messageID><ext>", so a room's files share one prefix and can
be removed together when the room is deleted.
*/
package storage

import (
	"context"
	"io"
	"time"
)

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// StorageService is the blob store used for file messages.
type StorageService interface {
	// Put uploads size bytes from body under key.
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error

	// PresignDownload returns a time-limited GET URL for key. fileName sets the
	// Content-Disposition of the response when non-empty.
	PresignDownload(ctx context.Context, key, fileName string, duration time.Duration) (string, error)

	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every object whose key starts with prefix and returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// NewStorageService returns the S3-compatible implementation.
func NewStorageService(ctx context.Context, cfg ServiceConfig) (StorageService, error) {
	return newS3Client(ctx, cfg)
}
