// Package storage provides object storage abstractions for cold archive
// replication.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStorage abstracts the remote side of the cold tier: finished archive
// files are uploaded as immutable objects. Implementations include S3 and a
// local filesystem backend for testing and single-node deployments.
type ObjectStorage interface {
	// Upload uploads a local file to objectPath in object storage.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download downloads objectPath from object storage to localPath.
	Download(ctx context.Context, objectPath, localPath string) error

	// Delete removes an object from storage.
	Delete(ctx context.Context, objectPath string) error

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all object paths under the given prefix.
	// Directory listing is the cold tier's only inventory.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}
