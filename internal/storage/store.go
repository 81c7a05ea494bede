package storage

import "context"

// BlobStore is the durable storage collaborator for uploaded artifacts.
// Put must be idempotent for the same key (overwrite semantics).
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (ref string, err error)
	Delete(ctx context.Context, ref string) error
	PublicURL(key string) string
}
