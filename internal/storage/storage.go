package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/timmy/nercompare/internal/config"
)

// Kind selects the object store backend.
type Kind string

const (
	KindR2           Kind = "r2"
	KindS3           Kind = "s3"
	KindS3Compatible Kind = "s3compatible"
	KindMinIO        Kind = "minio"
)

// ObjectStorage is where uploaded documents are archived.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	GetURL(key string) string
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	EnsureBucket(ctx context.Context) error
}

// New builds the backend named by cfg.Type, detecting it from the
// endpoint when unset.
func New(cfg config.StorageConfig) (ObjectStorage, error) {
	kind := Kind(strings.ToLower(cfg.Type))
	if kind == "" {
		kind = detectKind(cfg.Endpoint)
	}

	switch kind {
	case KindMinIO:
		return NewMinIOStorage(cfg)
	case KindR2, KindS3, KindS3Compatible:
		return NewS3Storage(cfg, kind)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

func detectKind(endpoint string) Kind {
	endpoint = strings.ToLower(endpoint)
	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return KindR2
	case strings.Contains(endpoint, "amazonaws.com"):
		return KindS3
	default:
		return KindS3Compatible
	}
}

// Archive stores uploaded documents under a key prefix.
type Archive struct {
	store  ObjectStorage
	prefix string
}

func NewArchive(store ObjectStorage, prefix string) *Archive {
	return &Archive{store: store, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key for a stored file name.
func (a *Archive) Key(name string) string {
	name = filepath.Base(name)
	if a.prefix == "" {
		return name
	}
	return path.Join(a.prefix, name)
}

// StoreFile uploads the local file at p and returns its URL.
func (a *Archive) StoreFile(ctx context.Context, p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(p)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := a.Key(p)
	if err := a.store.Upload(ctx, key, f, info.Size(), contentType); err != nil {
		return "", err
	}
	return a.store.GetURL(key), nil
}

// Open returns the archived document stored under name.
func (a *Archive) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return a.store.Download(ctx, a.Key(name))
}

// Has reports whether name is archived.
func (a *Archive) Has(ctx context.Context, name string) (bool, error) {
	return a.store.Exists(ctx, a.Key(name))
}

// Remove deletes the archived copy of name.
func (a *Archive) Remove(ctx context.Context, name string) error {
	return a.store.Delete(ctx, a.Key(name))
}
