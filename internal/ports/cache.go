package ports

import (
	"context"
	"time"
)

// Cache is a best-effort key-value capability for the engine's status
// surfaces. Adapters may be backed by SQLite or any other store; failures are
// never fatal to the operation that populated it.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
