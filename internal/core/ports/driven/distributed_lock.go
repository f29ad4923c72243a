package driven

import (
	"context"
	"time"
)

// DistributedLock serializes ingestion of a document across API and worker
// processes. Names are opaque; services use "ingest:<documentID>".
type DistributedLock interface {
	// Acquire takes the named lease without blocking. false means another
	// holder owns it; err is reserved for backend failures.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release gives up a lease this process holds. Releasing an expired or
	// foreign lease is a no-op.
	Release(ctx context.Context, name string) error

	// Extend pushes out the expiry of a lease this process still holds.
	// Session-scoped backends only confirm ownership.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping reports whether the lock backend answers.
	Ping(ctx context.Context) error
}
