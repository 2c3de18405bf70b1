package gcsuploader

import (
	"context"
	"io"
)

// ObjectWriter opens a writer for one object. Closing the writer finalizes
// the upload.
type ObjectWriter interface {
	NewWriter(ctx context.Context, object string) io.WriteCloser
}
