package store

import (
	"context"
	"iter"
)

// Backend is the raw document-store client the Store routes through.
//
// Implementations must treat filter values as bound parameters, return
// ErrNotFound from Delete when nothing matched and wrap connectivity
// failures with Unavailable.
type Backend interface {
	// EnsureContainer creates the container if it does not exist. It must be
	// safe to call concurrently, including from other processes.
	EnsureContainer(ctx context.Context, c Container) error
	Query(ctx context.Context, c Container, f Filter) iter.Seq2[Item, error]
	Upsert(ctx context.Context, c Container, id, partition string, it Item) (Item, error)
	Delete(ctx context.Context, c Container, id, partition string) error
	Ping(ctx context.Context) error
	Close() error
}
