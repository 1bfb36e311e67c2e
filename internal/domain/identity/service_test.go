package identity

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/rs/zerolog"
)

// -- Mock Repository --

type mockRepo struct {
	mapping   map[string]string
	lockCalls int
	appends   int
}

func newMockRepo() *mockRepo {
	return &mockRepo{mapping: make(map[string]string)}
}

func (m *mockRepo) LoadAll(_ context.Context) (map[string]string, error) {
	out := make(map[string]string, len(m.mapping))
	for k, v := range m.mapping {
		out[k] = v
	}
	return out, nil
}

func (m *mockRepo) Append(_ context.Context, rows []Mapping) error {
	m.appends++
	for _, r := range rows {
		m.mapping[r.SourceID] = r.PRWID
	}
	return nil
}

func (m *mockRepo) Count(_ context.Context) (int, error) {
	return len(m.mapping), nil
}

func (m *mockRepo) WithBatchLock(ctx context.Context, fn func(ctx context.Context) error) error {
	m.lockCalls++
	snapshot := make(map[string]string, len(m.mapping))
	for k, v := range m.mapping {
		snapshot[k] = v
	}
	if err := fn(ctx); err != nil {
		// Roll back: nothing from a failed batch is visible.
		m.mapping = snapshot
		return err
	}
	return nil
}

type mockMeta struct {
	dataset string
	rows    int
	calls   int
	err     error
}

func (m *mockMeta) Record(_ context.Context, datasetID string, rowCount int) error {
	m.calls++
	m.dataset = datasetID
	m.rows = rowCount
	return m.err
}

// -- Tests --

func newTestService(repo Repository, maxRehash int) *Service {
	logger := zerolog.New(os.Stderr)
	return NewService(repo, NewResolver(testSalt, maxRehash, logger), logger)
}

func TestServiceResolveBatch_PersistsNewMappings(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, 16)

	assignments, err := svc.ResolveBatch(context.Background(), []string{"mrn-1", "mrn-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(assignments))
	}
	if repo.lockCalls != 1 {
		t.Errorf("expected resolution under the batch lock, got %d lock calls", repo.lockCalls)
	}
	if repo.mapping["mrn-1"] != assignments["mrn-1"] {
		t.Error("expected new mapping row to be persisted")
	}
}

func TestServiceResolveBatch_Idempotent(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, 16)

	first, err := svc.ResolveBatch(context.Background(), []string{"mrn-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.ResolveBatch(context.Background(), []string{"mrn-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first["mrn-1"] != second["mrn-1"] {
		t.Error("expected re-resolution to return the previously assigned id")
	}
	if len(repo.mapping) != 1 {
		t.Errorf("expected a single mapping row, got %d", len(repo.mapping))
	}
}

func TestServiceResolveBatch_NoPartialStateOnFailure(t *testing.T) {
	repo := newMockRepo()
	// Ceiling of zero: the first collision fails the batch.
	svc := newTestService(repo, 0)

	// Seed a mapping that collides with mrn-1's derivation.
	repo.mapping["occupied"] = Derive(testSalt, "mrn-1")

	_, err := svc.ResolveBatch(context.Background(), []string{"mrn-0", "mrn-1"})
	if err == nil {
		t.Fatal("expected rehash exhaustion error")
	}

	if len(repo.mapping) != 1 {
		t.Errorf("expected failed batch to persist nothing, mapping has %d rows", len(repo.mapping))
	}
}

func TestServiceResolveBatch_RecordsDatasetMeta(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, 16)
	recorder := &mockMeta{}
	svc.SetMetaRecorder(recorder)

	if _, err := svc.ResolveBatch(context.Background(), []string{"mrn-1", "mrn-2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recorder.calls != 1 || recorder.dataset != DatasetID || recorder.rows != 2 {
		t.Errorf("unexpected meta recording: %+v", recorder)
	}

	if _, err := svc.ResolveBatch(context.Background(), []string{"mrn-3"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recorder.rows != 3 {
		t.Errorf("expected meta row count to track full mapping size, got %d", recorder.rows)
	}
}

func TestServiceResolveBatch_MetaFailurePropagates(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, 16)
	svc.SetMetaRecorder(&mockMeta{err: errors.New("meta write failed")})

	if _, err := svc.ResolveBatch(context.Background(), []string{"mrn-1"}); err == nil {
		t.Fatal("expected metadata failure to surface")
	}
	// The mapping batch itself committed; a rerun reuses the same id.
	if len(repo.mapping) != 1 {
		t.Errorf("expected committed mapping row, got %d", len(repo.mapping))
	}
}

func TestServiceMappingCount(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, 16)

	if _, err := svc.ResolveBatch(context.Background(), []string{"mrn-1", "mrn-2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n, err := svc.MappingCount(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 mapping rows, got %d", n)
	}
}
