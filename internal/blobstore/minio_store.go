package blobstore

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ProviderConfig resolves a named storage provider ("minio.default",
// "minio.shared", ...) to a reachable MinIO-compatible endpoint.
type ProviderConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Verify    bool
	Bucket    string
}

// MinIOStore implements Store against one or more MinIO-compatible
// endpoints, one per named storage provider.
type MinIOStore struct {
	providers map[string]ProviderConfig

	mu      sync.Mutex
	clients map[string]*minio.Client
}

// NewMinIOStore builds a Store over the given named providers.
func NewMinIOStore(providers map[string]ProviderConfig) *MinIOStore {
	return &MinIOStore{
		providers: providers,
		clients:   make(map[string]*minio.Client),
	}
}

func (s *MinIOStore) client(provider string) (*minio.Client, ProviderConfig, error) {
	cfg, ok := s.providers[provider]
	if !ok {
		return nil, ProviderConfig{}, fmt.Errorf("blobstore: unknown storage provider %q", provider)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[provider]; ok {
		return c, cfg, nil
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	c, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Verify,
		Region: region,
	})
	if err != nil {
		return nil, cfg, fmt.Errorf("blobstore: connect to provider %q: %w", provider, err)
	}
	s.clients[provider] = c
	return c, cfg, nil
}

func (s *MinIOStore) UploadFile(ctx context.Context, provider, localPath, remoteDir string) error {
	c, cfg, err := s.client(provider)
	if err != nil {
		return err
	}
	key := path.Join(remoteDir, filepath.Base(localPath))
	_, err = c.FPutObject(ctx, cfg.Bucket, key, localPath, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("blobstore: upload %s to %s/%s: %w", localPath, provider, key, err)
	}
	return nil
}

func (s *MinIOStore) DownloadFile(ctx context.Context, provider, localDir, remotePath string) (string, error) {
	c, cfg, err := s.client(provider)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(localDir, filepath.Base(remotePath))
	if err := c.FGetObject(ctx, cfg.Bucket, remotePath, dest, minio.GetObjectOptions{}); err != nil {
		return "", fmt.Errorf("blobstore: download %s/%s: %w", provider, remotePath, err)
	}
	return dest, nil
}

func (s *MinIOStore) DeleteFile(ctx context.Context, provider, remotePath string) error {
	c, cfg, err := s.client(provider)
	if err != nil {
		return err
	}
	if err := c.RemoveObject(ctx, cfg.Bucket, remotePath, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("blobstore: delete %s/%s: %w", provider, remotePath, err)
	}
	return nil
}

// ListFilesFromPath enumerates objects under remotePrefix using the
// authenticated SDK client — a real S3/MinIO ListObjectsV2 call requires a
// SigV4-signed request, which only the already-connected minio.Client can
// produce.
func (s *MinIOStore) ListFilesFromPath(ctx context.Context, provider, remotePrefix string) ([]Entry, error) {
	c, cfg, err := s.client(provider)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for obj := range c.ListObjects(ctx, cfg.Bucket, minio.ListObjectsOptions{Prefix: remotePrefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("blobstore: list %s/%s: %w", provider, remotePrefix, obj.Err)
		}
		entries = append(entries, Entry{Key: obj.Key, Size: obj.Size})
	}
	return entries, nil
}
