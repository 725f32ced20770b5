// Package store provides generic CRUD over named, partitioned containers of
// schemaless items. Every call goes to the backend; nothing is cached apart
// from the handles of containers already ensured.
package store

import (
	"context"
	"fmt"
	"iter"
	"time"
)

const DefaultCallTimeout = 5 * time.Second

type Store struct {
	backend  Backend
	registry *Registry
	timeout  time.Duration
}

type Option func(*Store)

// WithCallTimeout bounds every backend call. Zero disables the deadline.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		registry: NewRegistry(backend),
		timeout:  DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registry.timeout = s.timeout
	return s
}

func (s *Store) Registry() *Registry {
	return s.registry
}

func (s *Store) EnsureContainer(ctx context.Context, name string) (Container, error) {
	ctx, cancel := s.callContext(ctx)
	defer cancel()
	return s.registry.EnsureContainer(ctx, name)
}

// Query lazily yields items of container matching f. The deadline covers
// the whole iteration and starts when iteration begins.
func (s *Store) Query(ctx context.Context, container string, f Filter) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		if err := f.validate(); err != nil {
			yield(nil, err)
			return
		}
		c, err := s.EnsureContainer(ctx, container)
		if err != nil {
			yield(nil, err)
			return
		}

		ctx, cancel := s.callContext(ctx)
		defer cancel()

		for it, err := range s.backend.Query(ctx, c, f) {
			if err != nil {
				yield(nil, fmt.Errorf("query %s: %w", container, classify(err)))
				return
			}
			if !yield(it, nil) {
				return
			}
		}
	}
}

// Upsert creates or replaces the item identified by its id and partition
// value and returns the stored copy.
func (s *Store) Upsert(ctx context.Context, container string, it Item) (Item, error) {
	c, err := s.EnsureContainer(ctx, container)
	if err != nil {
		return nil, err
	}

	id := it.ID()
	if id == "" {
		return nil, fmt.Errorf("upsert %s: %w: missing %s", container, ErrInvalidItem, IDField)
	}
	partition := it.String(c.PartitionKey)
	if partition == "" {
		return nil, fmt.Errorf("upsert %s: %w: missing partition key %s", container, ErrInvalidItem, c.PartitionKey)
	}

	ctx, cancel := s.callContext(ctx)
	defer cancel()

	saved, err := s.backend.Upsert(ctx, c, id, partition, it)
	if err != nil {
		return nil, fmt.Errorf("upsert %s/%s: %w", container, id, classify(err))
	}
	return saved, nil
}

// Delete removes exactly one item. It returns ErrNotFound if the item does
// not exist; callers wanting idempotent deletes must ignore that error.
func (s *Store) Delete(ctx context.Context, container, id, partitionKey string) error {
	c, err := s.EnsureContainer(ctx, container)
	if err != nil {
		return err
	}
	if id == "" || partitionKey == "" {
		return fmt.Errorf("delete %s: %w: id and partition key are required", container, ErrInvalidItem)
	}

	ctx, cancel := s.callContext(ctx)
	defer cancel()

	if err := s.backend.Delete(ctx, c, id, partitionKey); err != nil {
		return fmt.Errorf("delete %s/%s: %w", container, id, classify(err))
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.callContext(ctx)
	defer cancel()
	return classify(s.backend.Ping(ctx))
}

func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
