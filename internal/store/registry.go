package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	ContainerProducts = "products"
	ContainerCart     = "cart"
	ContainerOrders   = "orders"

	// DefaultPartitionKey is used for any container not listed in
	// partitionKeys. Unknown names are not rejected.
	DefaultPartitionKey = "user_id"
)

var partitionKeys = map[string]string{
	ContainerProducts: "category",
	ContainerCart:     "user_id",
	ContainerOrders:   "user_id",
}

// Container is a handle to an ensured container.
type Container struct {
	Name         string
	PartitionKey string
}

// PartitionKeyFor returns the partition attribute for a container name.
func PartitionKeyFor(name string) string {
	if pk, ok := partitionKeys[name]; ok {
		return pk
	}
	return DefaultPartitionKey
}

// Registry resolves container names to handles, creating containers on
// first use. Concurrent callers for the same name share one backend call,
// which runs detached from any single caller's cancellation and is bounded
// by its own timeout.
type Registry struct {
	backend Backend
	group   singleflight.Group
	timeout time.Duration

	mu      sync.RWMutex
	ensured map[string]Container
}

func NewRegistry(backend Backend) *Registry {
	return &Registry{
		backend: backend,
		timeout: DefaultCallTimeout,
		ensured: make(map[string]Container),
	}
}

func (r *Registry) EnsureContainer(ctx context.Context, name string) (Container, error) {
	if name == "" || !fieldPattern.MatchString(name) {
		return Container{}, fmt.Errorf("invalid container name %q", name)
	}

	r.mu.RLock()
	c, ok := r.ensured[name]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	ch := r.group.DoChan(name, func() (any, error) {
		ctx, cancel := r.sharedContext(ctx)
		defer cancel()

		c := Container{Name: name, PartitionKey: PartitionKeyFor(name)}
		if err := r.backend.EnsureContainer(ctx, c); err != nil {
			return Container{}, fmt.Errorf("ensure container %s: %w", name, classify(err))
		}
		r.mu.Lock()
		r.ensured[name] = c
		r.mu.Unlock()
		return c, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Container{}, res.Err
		}
		return res.Val.(Container), nil
	case <-ctx.Done():
		return Container{}, fmt.Errorf("ensure container %s: %w", name, classify(ctx.Err()))
	}
}

func (r *Registry) sharedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// EnsureAll ensures every well-known container.
func (r *Registry) EnsureAll(ctx context.Context) error {
	for _, name := range []string{ContainerProducts, ContainerCart, ContainerOrders} {
		if _, err := r.EnsureContainer(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
