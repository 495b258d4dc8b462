package store

import "context"

// KV is the persistence backend for the session collection: put/get/delete of
// serialized values under fixed string keys. Implementations must round-trip
// values byte-exact; interpreting (and healing) corrupt values is the caller's
// concern.
type KV interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
}
