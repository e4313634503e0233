// Package blobstore defines the object-storage contract the Job Dispatcher
// uses to stage scripts and recover exit-code artifacts (spec §6, "blob-store
// subclient"). The wire protocol is implemented by a real client library
// (github.com/minio/minio-go/v7); this package only owns the interface
// boundary, matching the Non-goal in spec §1 ("the object-storage client
// library... is consumed as a blob-store interface").
package blobstore

import (
	"context"
)

// Entry is one object returned by a listing call.
type Entry struct {
	Key  string
	Size int64
}

// Store is the blob-store subclient contract from spec §6.
type Store interface {
	// UploadFile uploads localPath to remoteDir under the named provider.
	UploadFile(ctx context.Context, provider, localPath, remoteDir string) error

	// ListFilesFromPath enumerates objects under remotePrefix.
	ListFilesFromPath(ctx context.Context, provider, remotePrefix string) ([]Entry, error)

	// DownloadFile downloads remotePath into localDir, returning the local
	// file path written.
	DownloadFile(ctx context.Context, provider, localDir, remotePath string) (string, error)

	// DeleteFile removes remotePath.
	DeleteFile(ctx context.Context, provider, remotePath string) error
}
