package panel

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DatasetID identifies the panel output dataset in the ingest metadata table.
const DatasetID = "patient_panel"

// MetaRecorder records dataset refresh metadata after a successful run.
type MetaRecorder interface {
	Record(ctx context.Context, datasetID string, rowCount int) error
}

// RunSummary reports the outcome of an assignment run.
type RunSummary struct {
	Patients   int            `json:"patients"`
	Encounters int            `json:"encounters"`
	Assigned   int            `json:"assigned"`
	ByTrace    map[string]int `json:"by_trace"`
	Took       string         `json:"took"`
}

type Service struct {
	repo   Repository
	engine *Engine
	meta   MetaRecorder
	log    zerolog.Logger
}

func NewService(repo Repository, engine *Engine, meta MetaRecorder, logger zerolog.Logger) *Service {
	return &Service{repo: repo, engine: engine, meta: meta, log: logger}
}

// Run recomputes the full panel assignment relation. Inputs are loaded up
// front, evaluated in memory, and the output written once; a failed run
// leaves the previous relation untouched.
func (s *Service) Run(ctx context.Context) (*RunSummary, error) {
	start := time.Now()

	patients, err := s.repo.ListPatients(ctx)
	if err != nil {
		return nil, err
	}
	encounters, err := s.repo.ListEncounters(ctx)
	if err != nil {
		return nil, err
	}

	assignments, err := s.engine.Run(ctx, patients, encounters, start)
	if err != nil {
		return nil, err
	}

	// The assignment swap and its dataset metadata land in one warehouse
	// transaction; a metadata failure rolls the whole run back.
	err = s.repo.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.ReplaceAssignments(ctx, assignments); err != nil {
			return err
		}
		if s.meta != nil {
			return s.meta.Record(ctx, DatasetID, len(assignments))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{
		Patients:   len(patients),
		Encounters: len(encounters),
		ByTrace:    make(map[string]int),
		Took:       time.Since(start).Round(time.Millisecond).String(),
	}
	for i := range assignments {
		summary.ByTrace[assignments[i].RuleTrace]++
		if assignments[i].Assigned() {
			summary.Assigned++
		}
	}

	s.log.Info().
		Int("patients", summary.Patients).
		Int("assigned", summary.Assigned).
		Str("took", summary.Took).
		Msg("Panel assignment run complete")

	return summary, nil
}

// Summary reports the current assignment counts grouped by rule trace.
func (s *Service) Summary(ctx context.Context) (map[string]int, error) {
	return s.repo.CountByTrace(ctx)
}
