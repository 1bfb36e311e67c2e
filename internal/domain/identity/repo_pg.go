package identity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prw/warehouse-core/internal/platform/db"
)

// Advisory lock key for batch resolution. Any value works as long as every
// writer of identity_mapping uses the same one.
const resolveLockKey = 0x70727769 // "prwi"

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) LoadAll(ctx context.Context) (map[string]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT source_id, prw_id FROM identity_mapping`)
	if err != nil {
		return nil, fmt.Errorf("load identity mapping: %w", err)
	}
	defer rows.Close()

	mapping := make(map[string]string)
	for rows.Next() {
		var m Mapping
		if err := rows.Scan(&m.SourceID, &m.PRWID); err != nil {
			return nil, fmt.Errorf("scan identity mapping: %w", err)
		}
		mapping[m.SourceID] = m.PRWID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identity mapping: %w", err)
	}
	return mapping, nil
}

func (r *repoPG) Append(ctx context.Context, rows []Mapping) error {
	if len(rows) == 0 {
		return nil
	}

	tx := db.TxFromContext(ctx)
	if tx == nil {
		return fmt.Errorf("append identity mapping outside batch lock")
	}

	src := make([][]interface{}, len(rows))
	for i, m := range rows {
		src[i] = []interface{}{m.SourceID, m.PRWID}
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"identity_mapping"},
		[]string{"source_id", "prw_id"},
		pgx.CopyFromRows(src),
	)
	if err != nil {
		return fmt.Errorf("append identity mapping: %w", err)
	}
	return nil
}

func (r *repoPG) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM identity_mapping`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count identity mapping: %w", err)
	}
	return n, nil
}

func (r *repoPG) WithBatchLock(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin resolution transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Transaction-scoped advisory lock: released automatically at
	// commit/rollback, so a failed batch cannot leave the lock held.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, resolveLockKey); err != nil {
		return fmt.Errorf("acquire resolution lock: %w", err)
	}

	if err := fn(db.ContextWithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit resolution transaction: %w", err)
	}
	return nil
}
