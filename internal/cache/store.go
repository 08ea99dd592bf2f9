package cache

import "context"

// Store is a keyed-value cache with create-only write semantics. Set on an
// existing key fails with apperror.KindCacheKeyExists and Delete on a missing
// key fails with apperror.KindCacheKeyNotFound, so callers can rely on at
// most one writer winning per key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Close() error
}
