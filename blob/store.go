// Package blob - read-only access to annotation and image files.
//
// Stores are looked up by name (a slash-separated path relative to the store
// root) and return whole files; annotation documents and images are small
// enough to be read in one go.
package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-coco/config"
)

// ErrNotFound is returned when a name does not exist in the store. It maps to
// os.ErrNotExist so callers can test either.
var ErrNotFound = os.ErrNotExist

// Store reads named blobs. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the full contents of name.
	Get(ctx context.Context, name string) ([]byte, error)
}

// Open builds the store described by cfg.
//
// Arguments:
//   - cfg: Storage settings.
//
// Returns:
//   - Store: A local or MinIO-backed store.
//   - error: An error if the MinIO client cannot be created or the kind is unknown.
func Open(cfg config.Storage) (Store, error) {
	switch cfg.Kind {
	case config.StorageLocal, "":
		return NewLocal(cfg.Root), nil
	case config.StorageMinio:
		access, secret := cfg.AccessKey, cfg.SecretKey
		if access == "" {
			access = os.Getenv("MINIO_ACCESS_KEY")
		}
		if secret == "" {
			secret = os.Getenv("MINIO_SECRET_KEY")
		}
		client, err := minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(access, secret, ""),
			Secure: cfg.Secure,
			Region: cfg.Region,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "minio client for %s", cfg.Endpoint)
		}
		return NewMinio(client, cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, errors.Errorf("unknown storage kind %q", cfg.Kind)
	}
}

// Local reads files below a root directory.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at root.
func NewLocal(root string) *Local {
	return &Local{root: root}
}

// Get reads root/name. Names may not escape the root.
func (s *Local) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, errors.Errorf("name %q escapes the store root", name)
	}
	data, err := os.ReadFile(filepath.Join(s.root, clean))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "%s", name)
		}
		return nil, err
	}
	return data, nil
}

// Minio reads objects from a MinIO or S3-compatible bucket.
type Minio struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinio creates a store over bucket; prefix is prepended to every key.
func NewMinio(client *minio.Client, bucket, prefix string) *Minio {
	return &Minio{client: client, bucket: bucket, prefix: prefix}
}

func (s *Minio) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return strings.TrimSuffix(s.prefix, "/") + "/" + strings.TrimPrefix(name, "/")
}

// Get downloads the object for name.
func (s *Minio) Get(ctx context.Context, name string) ([]byte, error) {
	key := s.key(name)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "get %s/%s", s.bucket, key)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
			return nil, errors.Wrapf(ErrNotFound, "%s/%s", s.bucket, key)
		}
		return nil, errors.Wrapf(err, "read %s/%s", s.bucket, key)
	}
	return data, nil
}
