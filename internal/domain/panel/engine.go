package panel

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Engine computes panel assignments. Given the same patients, encounters,
// rules and reference instant it always produces the same output; all state
// is loaded up front and the per-patient evaluation is pure.
type Engine struct {
	rules   *Rules
	workers int
	log     zerolog.Logger
}

func NewEngine(rules *Rules, workers int, logger zerolog.Logger) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{rules: rules, workers: workers, log: logger}
}

// Run produces exactly one assignment row per input patient. Settled
// patients keep their existing panel unchanged; unsettled patients are
// evaluated against the pediatric rules first, then the 4-cut cascade.
// Output order follows input patient order.
func (e *Engine) Run(ctx context.Context, patients []Patient, encounters []Encounter, now time.Time) ([]Assignment, error) {
	if err := validateShape(patients, encounters); err != nil {
		return nil, err
	}

	byPatient := e.groupEncounters(encounters)

	assignments := make([]Assignment, len(patients))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := range patients {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			assignments[i] = e.evaluate(&patients[i], byPatient[patients[i].PRWID], now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return assignments, nil
}

// validateShape fails the run before any evaluation when required fields are
// absent from an input batch.
func validateShape(patients []Patient, encounters []Encounter) error {
	for i := range patients {
		if patients[i].PRWID == "" {
			return &ShapeError{Relation: "patients", Field: "prw_id", Row: i}
		}
	}
	for i := range encounters {
		if encounters[i].PRWID == "" {
			return &ShapeError{Relation: "encounters", Field: "prw_id", Row: i}
		}
		if encounters[i].Date.IsZero() {
			return &ShapeError{Relation: "encounters", Field: "encounter_date", Row: i}
		}
	}
	return nil
}

// groupEncounters discards administrative and non-completed encounters, then
// groups the rest per patient sorted by date descending.
func (e *Engine) groupEncounters(encounters []Encounter) map[string][]Encounter {
	byPatient := make(map[string][]Encounter)
	for _, enc := range encounters {
		if enc.ApptStatus != e.rules.CompletedStatus {
			continue
		}
		if e.rules.IsExcludedType(enc.EncounterType) {
			continue
		}
		byPatient[enc.PRWID] = append(byPatient[enc.PRWID], enc)
	}
	for id := range byPatient {
		encs := byPatient[id]
		sort.SliceStable(encs, func(a, b int) bool {
			return encs[a].Date.After(encs[b].Date)
		})
	}
	return byPatient
}

// evaluate resolves a single patient. Pure with respect to its inputs.
func (e *Engine) evaluate(p *Patient, encs []Encounter, now time.Time) Assignment {
	if p.Settled() {
		return Assignment{
			PRWID:         p.PRWID,
			PanelLocation: p.PanelLocation,
			PanelProvider: p.PanelProvider,
			RuleTrace:     TraceCarryover,
		}
	}

	in3y := filterSince(encs, now.AddDate(-3, 0, 0))

	if trace := e.pedsRule(p, in3y, now); trace != "" {
		loc := e.rules.PedsPanelLocation
		return Assignment{PRWID: p.PRWID, PanelLocation: &loc, RuleTrace: trace}
	}

	if provider, trace := e.cascade(encs, now); trace != TraceNone {
		loc, _ := e.rules.RecognizedProvider(provider)
		return Assignment{
			PRWID:         p.PRWID,
			PanelLocation: &loc,
			PanelProvider: &provider,
			RuleTrace:     trace,
		}
	}

	return Assignment{PRWID: p.PRWID, RuleTrace: TraceNone}
}

// filterSince keeps encounters on or after the cutoff. Preserves order.
func filterSince(encs []Encounter, cutoff time.Time) []Encounter {
	out := make([]Encounter, 0, len(encs))
	for _, enc := range encs {
		if !enc.Date.Before(cutoff) {
			out = append(out, enc)
		}
	}
	return out
}

// lastN returns the n most recent encounters of a date-descending slice.
func lastN(encs []Encounter, n int) []Encounter {
	if len(encs) < n {
		return encs
	}
	return encs[:n]
}
