package cache

import (
	"context"
	"time"

	"github.com/nao1215/sheetsql/domain/model"
)

// Tier is one level of the cache hierarchy. Implementations are safe for
// concurrent use. Get never returns an expired entry.
type Tier interface {
	Name() string
	Get(ctx context.Context, key Key) (*Entry, bool, error)
	Put(ctx context.Context, key Key, result *model.QueryResult) error
	Invalidate(ctx context.Context, scope Scope) error
	InvalidateAll(ctx context.Context) error
}

// Default tier settings
const (
	DefaultMemorySize = 200
	DefaultMemoryTTL  = 10 * time.Minute
	DefaultSharedTTL  = time.Hour
)

// DurableTTL is the expiry of the durable tier for a shared tier TTL. The
// durable tier outlives the shared one so that it can refill it after a flush.
func DurableTTL(sharedTTL time.Duration) time.Duration {
	return 2 * sharedTTL
}
