// Package memstore is an in-process store.Backend used for local runs and
// tests. Items are copied on the way in and out.
package memstore

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store"
)

type key struct {
	partition string
	id        string
}

type container struct {
	partitionKey string
	items        map[key]store.Item
}

type Backend struct {
	mu         sync.RWMutex
	containers map[string]*container
	creates    int
}

func New() *Backend {
	return &Backend{containers: make(map[string]*container)}
}

func (b *Backend) EnsureContainer(ctx context.Context, c store.Container) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.containers[c.Name]; ok {
		if existing.partitionKey != c.PartitionKey {
			return fmt.Errorf("container %s is partitioned by %s, not %s", c.Name, existing.partitionKey, c.PartitionKey)
		}
		return nil
	}
	b.containers[c.Name] = &container{
		partitionKey: c.PartitionKey,
		items:        make(map[key]store.Item),
	}
	b.creates++
	return nil
}

// Creates reports how many containers were physically created.
func (b *Backend) Creates() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.creates
}

func (b *Backend) Query(ctx context.Context, c store.Container, f store.Filter) iter.Seq2[store.Item, error] {
	return func(yield func(store.Item, error) bool) {
		b.mu.RLock()
		ct, ok := b.containers[c.Name]
		if !ok {
			b.mu.RUnlock()
			yield(nil, fmt.Errorf("container %s does not exist", c.Name))
			return
		}
		pinned, isPinned := f.Partition(c.PartitionKey)
		var matched []store.Item
		for k, it := range ct.items {
			if isPinned && k.partition != pinned {
				continue
			}
			if f.Matches(it) {
				matched = append(matched, it)
			}
			if f.MaxItems() > 0 && len(matched) == f.MaxItems() {
				break
			}
		}
		b.mu.RUnlock()

		for _, it := range matched {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			cp, err := it.Clone()
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(cp, nil) {
				return
			}
		}
	}
}

func (b *Backend) Upsert(ctx context.Context, c store.Container, id, partition string, it store.Item) (store.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored, err := it.Clone()
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ct, ok := b.containers[c.Name]
	if !ok {
		return nil, fmt.Errorf("container %s does not exist", c.Name)
	}
	ct.items[key{partition: partition, id: id}] = stored
	return stored.Clone()
}

func (b *Backend) Delete(ctx context.Context, c store.Container, id, partition string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ct, ok := b.containers[c.Name]
	if !ok {
		return fmt.Errorf("container %s does not exist", c.Name)
	}
	k := key{partition: partition, id: id}
	if _, ok := ct.items[k]; !ok {
		return store.ErrNotFound
	}
	delete(ct.items, k)
	return nil
}

func (b *Backend) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (b *Backend) Close() error {
	return nil
}
