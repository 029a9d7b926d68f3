// Package snapshot stores small session blobs, such as the source registry,
// keyed by name.
package snapshot

import "context"

// Store persists opaque blobs by key. Get reports false when the key is
// absent or expired.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
}
