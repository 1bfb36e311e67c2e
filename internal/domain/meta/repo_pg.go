package meta

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prw/warehouse-core/internal/platform/db"
)

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

func (r *repoPG) Upsert(ctx context.Context, d Dataset) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO prw_meta (dataset, modified, row_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (dataset) DO UPDATE SET modified = $2, row_count = $3`,
		d.ID, d.Modified, d.RowCount)
	if err != nil {
		return fmt.Errorf("upsert dataset meta: %w", err)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context) ([]Dataset, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT dataset, modified, row_count FROM prw_meta ORDER BY dataset`)
	if err != nil {
		return nil, fmt.Errorf("list dataset meta: %w", err)
	}
	defer rows.Close()

	var datasets []Dataset
	for rows.Next() {
		var d Dataset
		if err := rows.Scan(&d.ID, &d.Modified, &d.RowCount); err != nil {
			return nil, fmt.Errorf("scan dataset meta: %w", err)
		}
		datasets = append(datasets, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dataset meta: %w", err)
	}
	return datasets, nil
}
