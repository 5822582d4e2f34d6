package reports

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrExportDisabled is returned when no object store is configured.
var ErrExportDisabled = errors.New("export storage not configured")

// ExportStore port (interface untuk penyimpanan file export)
type ExportStore interface {
	// Put stores the object and returns a time-limited download URL.
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64, expiry time.Duration) (string, error)
}
