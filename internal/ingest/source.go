package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ErrObjectNotFound is returned by a Source when the named object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Source fetches raw files by object name, e.g. "fx_rates.csv" or
// "data/2024-10-01.csv".
type Source interface {
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// GCSSource reads objects from a public Cloud Storage bucket.
type GCSSource struct {
	client *storage.Client
	bucket string
}

// NewGCSSource creates an unauthenticated client for bucket unless opts
// supply credentials.
func NewGCSSource(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSSource, error) {
	if len(opts) == 0 {
		opts = []option.ClientOption{option.WithoutAuthentication()}
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSSource{client: client, bucket: bucket}, nil
}

func (s *GCSSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("gs://%s/%s: %w", s.bucket, name, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}
	return data, nil
}

// Close releases the storage client.
func (s *GCSSource) Close() error {
	return s.client.Close()
}

// LocalSource reads files from a flat directory; only the base of the
// object name is used.
type LocalSource struct {
	Dir string
}

func (s LocalSource) Fetch(_ context.Context, name string) ([]byte, error) {
	p := filepath.Join(s.Dir, path.Base(name))
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", p, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read file %q: %w", p, err)
	}
	return data, nil
}

// CachedSource serves files from a local directory and fills it from
// Remote on a miss.
type CachedSource struct {
	Cache  LocalSource
	Remote Source
}

func (s CachedSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	data, err := s.Cache.Fetch(ctx, name)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, ErrObjectNotFound) {
		return nil, err
	}

	data, err = s.Remote.Fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.Cache.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	p := filepath.Join(s.Cache.Dir, path.Base(name))
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return nil, fmt.Errorf("write cache file %q: %w", p, err)
	}
	return data, nil
}
