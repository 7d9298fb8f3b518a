package ports

import (
	"context"
	"io"
)

// ObjectStorage archives exports and uploaded documents.
type ObjectStorage interface {
	Upload(ctx context.Context, bucket, objectName, contentType string, reader io.Reader, size int64) (string, error)
}
