// Package store persists transformed variants in an S3-compatible bucket.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"edge-resizer-go/internal/config"
)

// ErrNotFound is returned by Get when no variant is stored under the key.
var ErrNotFound = errors.New("object not found")

// Object is a stored variant.
type Object struct {
	Body         io.ReadCloser
	Size         int64
	ContentType  string
	CacheControl string
	Header       http.Header
}

// Store reads and writes variants by key.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType, cacheControl string) error
	Get(ctx context.Context, key string) (*Object, error)
}

// New returns the configured store, or Disabled when no bucket is set.
func New(cfg *config.Config, logger *slog.Logger) (Store, error) {
	if cfg.Store.Bucket == "" {
		logger.Info("variant store disabled: no bucket configured")
		return Disabled{}, nil
	}
	return NewMinioStore(cfg, logger)
}

// Disabled is a Store that keeps nothing.
type Disabled struct{}

func (Disabled) Put(context.Context, string, []byte, string, string) error { return nil }

func (Disabled) Get(context.Context, string) (*Object, error) { return nil, ErrNotFound }

// MinioStore is a Store backed by an S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewMinioStore creates a MinioStore. Static keys are used when configured;
// otherwise credentials come from the environment, the shared AWS
// credentials file or the instance role, in that order.
func NewMinioStore(cfg *config.Config, logger *slog.Logger) (*MinioStore, error) {
	sc := cfg.Store

	var creds *credentials.Credentials
	if sc.AccessKey != "" {
		creds = credentials.NewStaticV4(sc.AccessKey, sc.SecretKey, "")
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.FileAWSCredentials{},
			&credentials.IAM{Client: &http.Client{Transport: http.DefaultTransport}},
		})
	}

	client, err := minio.New(sc.Endpoint, &minio.Options{
		Creds:        creds,
		Secure:       sc.UseSSL,
		Region:       sc.Region,
		BucketLookup: minio.BucketLookupAuto,
	})
	if err != nil {
		return nil, fmt.Errorf("create store client for %s: %w", sc.Endpoint, err)
	}

	return &MinioStore{
		client: client,
		bucket: sc.Bucket,
		logger: logger.With("component", "variant_store", "bucket", sc.Bucket),
	}, nil
}

// ObjectKey maps a request path to its object key.
func ObjectKey(requestPath string) string {
	return strings.TrimPrefix(requestPath, "/")
}

// Put writes body under key, replacing any existing object.
func (s *MinioStore) Put(ctx context.Context, key string, body []byte, contentType, cacheControl string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: cacheControl,
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Get opens the object stored under key. The caller closes Body.
func (s *MinioStore) Get(ctx context.Context, key string) (*Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapErr(key, err)
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, s.mapErr(key, err)
	}
	return &Object{
		Body:         obj,
		Size:         info.Size,
		ContentType:  info.ContentType,
		CacheControl: info.Metadata.Get("Cache-Control"),
		Header:       info.Metadata,
	}, nil
}

func (s *MinioStore) mapErr(key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return ErrNotFound
	}
	return fmt.Errorf("get %s/%s: %w", s.bucket, key, err)
}
