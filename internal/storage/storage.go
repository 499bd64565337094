// Package storage abstracts where frame logs live: local disk for bench
// setups, an S3-compatible object store for fleet loggers. Callers pick one
// through Setup and only ever see the Filesystem interface.
package storage

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Filesystem is the minimal surface the pipeline needs from a log store.
type Filesystem interface {
	// Open returns the content of one log object.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// List returns object paths under prefix, lexicographic order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Config selects and parameterizes the filesystem. With S3 unset only Base is
// used; otherwise Endpoint/Key/Secret (and optionally CACert for self-hosted
// stores with a private CA) configure the object store client.
type Config struct {
	S3       bool
	Base     string
	Endpoint string
	Key      string
	Secret   string
	CACert   string
}

// ErrNotFound is returned by Open for a missing object.
var ErrNotFound = errors.New("storage: object not found")

// Setup returns the filesystem described by cfg.
func Setup(cfg Config) (Filesystem, error) {
	if !cfg.S3 {
		return Local(cfg.Base), nil
	}
	return newS3(cfg)
}

// localFS serves files relative to a base directory.
type localFS struct {
	base string
}

// Local returns a local-disk filesystem rooted at base ("." when empty).
func Local(base string) Filesystem {
	if base == "" {
		base = "."
	}
	return &localFS{base: base}
}

func (l *localFS) Open(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(l.base, filepath.FromSlash(path)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("storage open: %w", err)
	}
	return f, nil
}

func (l *localFS) List(_ context.Context, prefix string) ([]string, error) {
	root := filepath.Join(l.base, filepath.FromSlash(prefix))
	var out []string
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.base, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage list: %w", err)
	}
	return out, nil
}

// s3FS serves objects via an S3-compatible endpoint. Paths are
// "bucket/key/parts".
type s3FS struct {
	client *minio.Client
}

func newS3(cfg Config) (Filesystem, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}
	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Key, cfg.Secret, ""),
		Secure: !strings.HasPrefix(cfg.Endpoint, "http://"),
	}
	// AWS endpoints use stock TLS; a custom CA only makes sense for
	// self-hosted stores.
	if cfg.CACert != "" && !strings.Contains(endpoint, "amazonaws") {
		pem, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return nil, fmt.Errorf("storage: read ca cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("storage: no certificates in %s", cfg.CACert)
		}
		opts.Transport = &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool}}
	}
	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("storage: s3 client: %w", err)
	}
	return &s3FS{client: client}, nil
}

func splitBucket(path string) (bucket, key string, err error) {
	p := strings.TrimPrefix(path, "/")
	i := strings.IndexByte(p, '/')
	if i <= 0 {
		return "", "", fmt.Errorf("storage: path %q lacks bucket prefix", path)
	}
	return p[:i], p[i+1:], nil
}

func (s *s3FS) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, key, err := splitBucket(path)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("storage get %s: %w", path, err)
	}
	// GetObject is lazy; surface missing objects now instead of at first read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("storage stat %s: %w", path, err)
	}
	return obj, nil
}

func (s *s3FS) List(ctx context.Context, prefix string) ([]string, error) {
	bucket, key, err := splitBucket(prefix)
	if err != nil {
		return nil, err
	}
	var out []string
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: key, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("storage list %s: %w", prefix, obj.Err)
		}
		out = append(out, bucket+"/"+obj.Key)
	}
	return out, nil
}
