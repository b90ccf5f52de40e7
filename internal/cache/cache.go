package cache

import (
	"context"
	"time"
)

// ReportCache holds serialized read-surface payloads (dashboard summary,
// stock alerts). Every committed ledger mutation invalidates it, so a stale
// entry can only outlive a write by the invalidation call itself.
type ReportCache interface {
	// Get unmarshals the cached value for key into dest and reports whether
	// an entry was present.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// NoopReportCache is the fallback when Redis is unreachable or unconfigured.
type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string, _ any) (bool, error) {
	return false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ any, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Invalidate(_ context.Context, _ ...string) error {
	return nil
}
