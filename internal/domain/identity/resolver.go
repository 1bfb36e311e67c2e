package identity

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
)

// RehashExhaustedError is returned when a candidate id still collides after
// the configured number of rehash attempts. It deliberately carries the
// batch position rather than the source id, so it can be logged without
// exposing PHI.
type RehashExhaustedError struct {
	Position int
	Attempts int
}

func (e *RehashExhaustedError) Error() string {
	return fmt.Sprintf("pseudonymous id rehash exhausted after %d attempts (batch position %d)", e.Attempts, e.Position)
}

// Resolver derives pseudonymous ids for source patient identifiers and
// guarantees uniqueness against a previously resolved mapping.
type Resolver struct {
	salt      string
	maxRehash int
	log       zerolog.Logger
}

func NewResolver(salt string, maxRehash int, logger zerolog.Logger) *Resolver {
	return &Resolver{salt: salt, maxRehash: maxRehash, log: logger}
}

// Derive computes the candidate id for a single source id.
func (r *Resolver) Derive(sourceID string) string {
	return Derive(r.salt, sourceID)
}

// ResolveBatch assigns a pseudonymous id to every source id in the batch.
// Source ids already present in existing reuse their id unchanged. New ids
// are derived, then checked for collisions against both the batch and the
// existing mapping; colliding candidates are rehashed with the batch
// position mixed in until unique, bounded by the rehash ceiling.
//
// Returns the full source→id assignment for the batch and the new rows to
// append to the persistent mapping. The union of existing and the returned
// rows is injective.
func (r *Resolver) ResolveBatch(sources []string, existing map[string]string) (map[string]string, []Mapping, error) {
	used := make(map[string]bool, len(existing))
	for _, id := range existing {
		used[id] = true
	}

	assignments := make(map[string]string, len(sources))
	var newRows []Mapping

	for pos, src := range sources {
		if src == "" {
			continue
		}
		if _, ok := assignments[src]; ok {
			// Duplicate source id within the batch; first occurrence wins.
			continue
		}
		if id, ok := existing[src]; ok {
			assignments[src] = id
			continue
		}

		candidate := r.Derive(src)
		attempts := 0
		for used[candidate] {
			if attempts >= r.maxRehash {
				return nil, nil, &RehashExhaustedError{Position: pos, Attempts: attempts}
			}
			r.log.Warn().
				Str("candidate", candidate).
				Int("position", pos).
				Int("attempt", attempts+1).
				Msg("pseudonymous id collision, rehashing")
			candidate = hashString(candidate + "-" + strconv.Itoa(pos))
			attempts++
		}

		used[candidate] = true
		assignments[src] = candidate
		newRows = append(newRows, Mapping{SourceID: src, PRWID: candidate})
	}

	return assignments, newRows, nil
}
