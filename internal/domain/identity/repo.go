package identity

import (
	"context"
)

type Repository interface {
	// LoadAll returns the full source→pseudonymous id mapping.
	LoadAll(ctx context.Context) (map[string]string, error)
	// Append adds new mapping rows. Must run inside WithBatchLock.
	Append(ctx context.Context, rows []Mapping) error
	// Count returns the number of mapping rows.
	Count(ctx context.Context) (int, error)
	// WithBatchLock runs fn inside a transaction holding the resolution
	// lock, so concurrent batches serialize their check-then-append and
	// cannot mint colliding ids. Nothing fn writes is visible until it
	// returns nil and the transaction commits.
	WithBatchLock(ctx context.Context, fn func(ctx context.Context) error) error
}
