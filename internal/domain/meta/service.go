package meta

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Service struct {
	repo Repository
	log  zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, log: logger}
}

// Record marks a dataset as refreshed now.
func (s *Service) Record(ctx context.Context, datasetID string, rowCount int) error {
	if err := s.repo.Upsert(ctx, Dataset{ID: datasetID, Modified: time.Now(), RowCount: rowCount}); err != nil {
		return err
	}
	s.log.Info().Str("dataset", datasetID).Int("rows", rowCount).Msg("Dataset metadata recorded")
	return nil
}

// List returns refresh metadata for all datasets.
func (s *Service) List(ctx context.Context) ([]Dataset, error) {
	return s.repo.List(ctx)
}
