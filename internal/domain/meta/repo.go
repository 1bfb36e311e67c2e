package meta

import "context"

type Repository interface {
	Upsert(ctx context.Context, d Dataset) error
	List(ctx context.Context) ([]Dataset, error)
}
