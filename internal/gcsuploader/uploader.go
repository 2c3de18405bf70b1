package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/Samso9th/samson-coreloops-ai-tech-test/internal/logger"
)

// uploadTimeout bounds a single object upload.
const uploadTimeout = 2 * time.Minute

// Uploader publishes local artifact files to a bucket.
type Uploader struct {
	client *storage.Client
	bucket string
	dst    ObjectWriter
}

// NewUploader creates a storage client for bucket. Unlike the public data
// source, uploads need credentials (Application Default Credentials unless
// opts say otherwise).
func NewUploader(ctx context.Context, bucket string, opts ...option.ClientOption) (*Uploader, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewUploader: create storage client: %w", err)
	}
	u := &Uploader{client: client, bucket: bucket}
	u.dst = bucketWriter{bkt: client.Bucket(bucket)}
	return u, nil
}

// NewUploaderWithWriter uploads through w instead of a storage client.
func NewUploaderWithWriter(bucket string, w ObjectWriter) *Uploader {
	return &Uploader{bucket: bucket, dst: w}
}

func (u *Uploader) Close() error {
	if u.client == nil {
		return nil
	}
	return u.client.Close()
}

// UploadFile copies the local file at filePath to objectName.
func (u *Uploader) UploadFile(ctx context.Context, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("UploadFile: open %q: %w", filePath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := u.dst.NewWriter(ctx, objectName)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("UploadFile: copy %q: %w", filePath, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("UploadFile: finalize %s: %w", ObjectURI(u.bucket, objectName), err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("file", filePath).
		Str("uri", ObjectURI(u.bucket, objectName)).
		Msg("uploaded artifact")
	return nil
}

// UploadFiles uploads each file under prefix, keeping its base name, and
// returns the object URIs in the order given.
func (u *Uploader) UploadFiles(ctx context.Context, prefix string, files []string) ([]string, error) {
	uris := make([]string, 0, len(files))
	for _, f := range files {
		object := path.Join(prefix, filepath.Base(f))
		if err := u.UploadFile(ctx, object, f); err != nil {
			return uris, err
		}
		uris = append(uris, ObjectURI(u.bucket, object))
	}
	return uris, nil
}

// RegularFiles lists the regular files directly inside dir, sorted by name.
func RegularFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("RegularFiles: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// ObjectURI formats gs://bucket/object.
func ObjectURI(bucket, object string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, object)
}

// ParseURI splits gs://bucket/prefix into its bucket and object prefix.
// The prefix may be empty.
func ParseURI(uri string) (bucket, prefix string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	trimmed := strings.TrimPrefix(uri, "gs://")
	bucket, prefix, _ = strings.Cut(trimmed, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no bucket): %s", uri)
	}
	return bucket, strings.Trim(prefix, "/"), nil
}

type bucketWriter struct {
	bkt *storage.BucketHandle
}

func (b bucketWriter) NewWriter(ctx context.Context, object string) io.WriteCloser {
	return b.bkt.Object(object).NewWriter(ctx)
}
