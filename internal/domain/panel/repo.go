package panel

import "context"

// Repository reads the warehouse input relations and replaces the panel
// assignment output relation.
type Repository interface {
	ListPatients(ctx context.Context) ([]Patient, error)
	ListEncounters(ctx context.Context) ([]Encounter, error)

	// WithTx runs fn inside one warehouse transaction. Any repository on
	// the same store joins the transaction through the context, so the
	// assignment swap and its dataset metadata commit or roll back as a
	// unit.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// ReplaceAssignments swaps the full assignment relation. It joins a
	// transaction carried on the context, or opens its own when called
	// bare; a failed replace leaves the previous relation intact.
	ReplaceAssignments(ctx context.Context, assignments []Assignment) error

	CountByTrace(ctx context.Context) (map[string]int, error)
}
