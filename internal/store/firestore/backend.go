// Package firestore stores each container as a Firestore collection.
// Documents are keyed by the escaped partition value and item id so that the
// same id may exist once per partition.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store"
)

const registryCollection = "container_registry"

type Backend struct {
	client *firestore.Client
}

// Open connects to a Firestore database. An empty credentialsFile falls back
// to Application Default Credentials.
func Open(ctx context.Context, projectID, databaseID, credentialsFile string) (*Backend, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create firestore client: %w", err)
	}
	return New(client), nil
}

func New(client *firestore.Client) *Backend {
	return &Backend{client: client}
}

func docID(id, partition string) string {
	return url.QueryEscape(partition) + ":" + url.QueryEscape(id)
}

func (b *Backend) EnsureContainer(ctx context.Context, c store.Container) error {
	ref := b.client.Collection(registryCollection).Doc(c.Name)
	_, err := ref.Create(ctx, map[string]any{
		"partition_key": c.PartitionKey,
		"created_at":    firestore.ServerTimestamp,
	})
	if err == nil {
		return nil
	}
	if status.Code(err) != codes.AlreadyExists {
		return wrapErr(err)
	}

	snap, err := ref.Get(ctx)
	if err != nil {
		return wrapErr(err)
	}
	existing, err := snap.DataAt("partition_key")
	if err != nil {
		return fmt.Errorf("read partition key of %s: %w", c.Name, err)
	}
	if existing != c.PartitionKey {
		return fmt.Errorf("container %s is partitioned by %v, not %s", c.Name, existing, c.PartitionKey)
	}
	return nil
}

func (b *Backend) Query(ctx context.Context, c store.Container, f store.Filter) iter.Seq2[store.Item, error] {
	return func(yield func(store.Item, error) bool) {
		q := b.client.Collection(c.Name).Query
		for _, cond := range f.Conditions() {
			q = q.WhereEntity(firestore.PropertyFilter{
				Path:     cond.Field,
				Operator: "==",
				Value:    cond.Value,
			})
		}
		if n := f.MaxItems(); n > 0 {
			q = q.Limit(n)
		}

		docs := q.Documents(ctx)
		defer docs.Stop()

		for {
			snap, err := docs.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				yield(nil, wrapErr(err))
				return
			}
			if !yield(store.Item(snap.Data()), nil) {
				return
			}
		}
	}
}

func (b *Backend) Upsert(ctx context.Context, c store.Container, id, partition string, it store.Item) (store.Item, error) {
	doc, err := it.Clone()
	if err != nil {
		return nil, err
	}
	if _, err := b.client.Collection(c.Name).Doc(docID(id, partition)).Set(ctx, map[string]any(doc)); err != nil {
		return nil, wrapErr(err)
	}
	return doc, nil
}

func (b *Backend) Delete(ctx context.Context, c store.Container, id, partition string) error {
	_, err := b.client.Collection(c.Name).Doc(docID(id, partition)).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return store.ErrNotFound
	}
	return wrapErr(err)
}

// Ping issues a minimal read; Firestore has no dedicated health call.
func (b *Backend) Ping(ctx context.Context) error {
	_, err := b.client.Collection(registryCollection).Limit(1).Documents(ctx).GetAll()
	return wrapErr(err)
}

func (b *Backend) Close() error {
	return b.client.Close()
}

func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return store.Unavailable(err)
	}
	return err
}
