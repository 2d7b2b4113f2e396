// Package objectstore is the destination for migrated photo assets. The
// production implementation is S3-compatible object storage; tests use
// the in-memory store.
package objectstore

import (
	"context"
	"fmt"
)

// ErrObjectNotFound is returned by Get for keys that were never stored.
var ErrObjectNotFound = fmt.Errorf("object not found")

// Store is the write side of asset storage. Put returns the public URL
// of the stored object; URL builds the same URL for a key that already
// exists.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// PhotoKey is the storage layout for migrated listing photos. Keeping
// the legacy sequence in the key preserves photo order without metadata.
func PhotoKey(namespace string, externalID int64, seq int) string {
	return fmt.Sprintf("%s/%d/%03d.jpg", namespace, externalID, seq)
}

// ThumbnailKey is the storage layout for derived thumbnails.
func ThumbnailKey(namespace string, externalID int64) string {
	return fmt.Sprintf("%s/%d/thumb.jpg", namespace, externalID)
}
