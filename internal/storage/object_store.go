package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"licensedesk/api/internal/config"
)

// ErrIconNotFound is returned when the requested object key does not exist
// in the icon bucket.
var ErrIconNotFound = errors.New("icon not found")

// ObjectStore holds license-type icons in a single bucket.
type ObjectStore struct {
	client *minio.Client
	cfg    config.StorageConfig
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{
		client: client,
		cfg:    cfg,
	}, nil
}

func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.BucketIcons)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.cfg.BucketIcons, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.cfg.BucketIcons, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.cfg.BucketIcons, err)
		}
	}
	return nil
}

func (s *ObjectStore) PutIcon(ctx context.Context, objectKey string, contentType string, data io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.cfg.BucketIcons, objectKey, data, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put icon %s: %w", objectKey, err)
	}
	return nil
}

// GetIcon returns the object stream and its content type. The caller closes the reader.
func (s *ObjectStore) GetIcon(ctx context.Context, objectKey string) (io.ReadCloser, string, int64, error) {
	obj, err := s.client.GetObject(ctx, s.cfg.BucketIcons, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", 0, fmt.Errorf("get icon %s: %w", objectKey, err)
	}

	// GetObject is lazy; a missing key only surfaces here.
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, "", 0, fmt.Errorf("%s: %w", objectKey, ErrIconNotFound)
		}
		return nil, "", 0, fmt.Errorf("stat icon %s: %w", objectKey, err)
	}

	return obj, stat.ContentType, stat.Size, nil
}

func (s *ObjectStore) RemoveIcon(ctx context.Context, objectKey string) error {
	if err := s.client.RemoveObject(ctx, s.cfg.BucketIcons, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove icon %s: %w", objectKey, err)
	}
	return nil
}

// ListIcons returns every object key in the icon bucket. Used by the orphan reaper.
func (s *ObjectStore) ListIcons(ctx context.Context) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.cfg.BucketIcons, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list icons: %w", obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}
