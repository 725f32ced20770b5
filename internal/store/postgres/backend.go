// Package postgres stores containers as JSONB tables. Each container maps to
// a table c_<name> keyed by (partition_value, id); the container registry
// table records which attribute partitions it.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net"

	"github.com/lib/pq"

	"github.com/joao-fontenele/cloudmart-otel-demo/internal/store"
)

const (
	DefaultSchema = "documents"
	registryTable = "container_registry"
	tablePrefix   = "c_"
)

type Backend struct {
	db     *sql.DB
	schema string
}

func New(db *sql.DB, schema string) *Backend {
	if schema == "" {
		schema = DefaultSchema
	}
	return &Backend{db: db, schema: schema}
}

func (b *Backend) qualified(table string) string {
	return pq.QuoteIdentifier(b.schema) + "." + pq.QuoteIdentifier(table)
}

func (b *Backend) table(c store.Container) string {
	return b.qualified(tablePrefix + c.Name)
}

// EnsureContainer serialises creation across processes with a transaction
// scoped advisory lock; CREATE TABLE IF NOT EXISTS alone can still fail when
// two sessions race on the catalog.
func (b *Backend) EnsureContainer(ctx context.Context, c store.Container) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, b.schema+"."+c.Name); err != nil {
		return wrapErr(err)
	}

	var existing string
	err = tx.QueryRowContext(ctx, `
		SELECT partition_key
		FROM `+b.qualified(registryTable)+`
		WHERE name = $1
	`, c.Name).Scan(&existing)
	switch {
	case err == nil:
		if existing != c.PartitionKey {
			return fmt.Errorf("container %s is partitioned by %s, not %s", c.Name, existing, c.PartitionKey)
		}
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return wrapErr(err)
	}

	table := b.table(c)
	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS `+table+` (
			id              TEXT        NOT NULL,
			partition_value TEXT        NOT NULL,
			doc             JSONB       NOT NULL,
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (partition_value, id)
		)
	`); err != nil {
		return wrapErr(err)
	}

	if _, err := tx.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS `+pq.QuoteIdentifier(tablePrefix+c.Name+"_doc_idx")+`
		ON `+table+` USING GIN (doc jsonb_path_ops)
	`); err != nil {
		return wrapErr(err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO `+b.qualified(registryTable)+` (name, partition_key)
		VALUES ($1, $2)
	`, c.Name, c.PartitionKey); err != nil {
		return wrapErr(err)
	}

	return wrapErr(tx.Commit())
}

// Query matches with JSONB containment against a bound parameter, so filter
// values never become part of the SQL text.
func (b *Backend) Query(ctx context.Context, c store.Container, f store.Filter) iter.Seq2[store.Item, error] {
	return func(yield func(store.Item, error) bool) {
		query := `SELECT doc FROM ` + b.table(c) + ` WHERE TRUE`
		var args []any

		if conds := f.Values(); len(conds) > 0 {
			data, err := json.Marshal(conds)
			if err != nil {
				yield(nil, fmt.Errorf("%w: %w", store.ErrInvalidFilter, err))
				return
			}
			args = append(args, string(data))
			query += fmt.Sprintf(` AND doc @> $%d::jsonb`, len(args))
		}
		if partition, ok := f.Partition(c.PartitionKey); ok {
			args = append(args, partition)
			query += fmt.Sprintf(` AND partition_value = $%d`, len(args))
		}
		if n := f.MaxItems(); n > 0 {
			args = append(args, n)
			query += fmt.Sprintf(` LIMIT $%d`, len(args))
		}

		rows, err := b.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(nil, wrapErr(err))
			return
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var raw []byte
			if err := rows.Scan(&raw); err != nil {
				yield(nil, wrapErr(err))
				return
			}
			var it store.Item
			if err := json.Unmarshal(raw, &it); err != nil {
				yield(nil, err)
				return
			}
			if !yield(it, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(nil, wrapErr(err))
		}
	}
}

func (b *Backend) Upsert(ctx context.Context, c store.Container, id, partition string, it store.Item) (store.Item, error) {
	data, err := json.Marshal(it)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidItem, err)
	}

	var raw []byte
	err = b.db.QueryRowContext(ctx, `
		INSERT INTO `+b.table(c)+` (id, partition_value, doc, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (partition_value, id)
		DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at
		RETURNING doc
	`, id, partition, string(data)).Scan(&raw)
	if err != nil {
		return nil, wrapErr(err)
	}

	var saved store.Item
	if err := json.Unmarshal(raw, &saved); err != nil {
		return nil, err
	}
	return saved, nil
}

func (b *Backend) Delete(ctx context.Context, c store.Container, id, partition string) error {
	result, err := b.db.ExecContext(ctx, `
		DELETE FROM `+b.table(c)+`
		WHERE partition_value = $1 AND id = $2
	`, partition, id)
	if err != nil {
		return wrapErr(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return wrapErr(err)
	}

	if rowsAffected == 0 {
		return store.ErrNotFound
	}

	return nil
}

func (b *Backend) Ping(ctx context.Context) error {
	return wrapErr(b.db.PingContext(ctx))
}

func (b *Backend) Close() error {
	return b.db.Close()
}

// wrapErr marks connection-level failures as store.ErrStoreUnavailable.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.As(err, &netErr) {
		return store.Unavailable(err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			return store.Unavailable(err)
		}
	}

	return err
}
