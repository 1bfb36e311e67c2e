package identity

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// DatasetID identifies the identity mapping dataset in the ingest metadata
// table.
const DatasetID = "identity"

// MetaRecorder records dataset refresh metadata in the warehouse store.
type MetaRecorder interface {
	Record(ctx context.Context, datasetID string, rowCount int) error
}

// Service resolves batches of source patient identifiers against the
// persistent identity mapping. It is the only writer of the mapping store.
type Service struct {
	repo     Repository
	resolver *Resolver
	meta     MetaRecorder
	log      zerolog.Logger
}

func NewService(repo Repository, resolver *Resolver, logger zerolog.Logger) *Service {
	return &Service{repo: repo, resolver: resolver, log: logger}
}

// SetMetaRecorder attaches dataset metadata recording. The metadata lives in
// the warehouse store while the mapping lives in the identity store, so it is
// written after the mapping batch commits rather than inside its transaction.
func (s *Service) SetMetaRecorder(meta MetaRecorder) {
	s.meta = meta
}

// ResolveBatch returns a pseudonymous id for every source id in the batch,
// reusing previously assigned ids and minting unique ids for new sources.
// The load → resolve → append sequence runs under the store's batch lock:
// either all new rows are persisted or none are, and concurrent batches
// cannot observe (or collide with) ids that were never committed.
func (s *Service) ResolveBatch(ctx context.Context, sources []string) (map[string]string, error) {
	var assignments map[string]string
	var mappingSize int

	err := s.repo.WithBatchLock(ctx, func(ctx context.Context) error {
		existing, err := s.repo.LoadAll(ctx)
		if err != nil {
			return err
		}

		resolved, newRows, err := s.resolver.ResolveBatch(sources, existing)
		if err != nil {
			return fmt.Errorf("resolve batch: %w", err)
		}

		if err := s.repo.Append(ctx, newRows); err != nil {
			return err
		}

		s.log.Info().
			Int("batch", len(sources)).
			Int("reused", len(resolved)-len(newRows)).
			Int("minted", len(newRows)).
			Msg("resolved identity batch")

		assignments = resolved
		mappingSize = len(existing) + len(newRows)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.meta != nil {
		if err := s.meta.Record(ctx, DatasetID, mappingSize); err != nil {
			return nil, fmt.Errorf("record identity dataset metadata: %w", err)
		}
	}

	return assignments, nil
}

// MappingCount reports the size of the persistent mapping.
func (s *Service) MappingCount(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
