package panel

import "time"

// cascade evaluates the general 4-cut empanelment cascade over the
// patient's encounters (sorted date descending). Only encounters within the
// trailing 2 years with a recognized service provider qualify. Returns the
// assigned provider and the trace of the deciding cut, or TraceNone when no
// encounter qualifies.
func (e *Engine) cascade(encs []Encounter, now time.Time) (string, string) {
	qualifying := e.qualifyingEncounters(encs, now.AddDate(-2, 0, 0))
	if len(qualifying) == 0 {
		return "", TraceNone
	}

	counts := make(map[string]int)
	for _, enc := range qualifying {
		counts[enc.ServiceProvider]++
	}

	// Cut 1: a single distinct provider.
	if len(counts) == 1 {
		return qualifying[0].ServiceProvider, TraceCut1
	}

	// Cut 2: one provider with a strict majority of visits. A strict
	// majority is unique when it exists, so no tie-break is needed.
	total := len(qualifying)
	for provider, n := range counts {
		if n*2 > total {
			return provider, TraceCut2
		}
	}

	// Cut 3: provider of the most recent well visit.
	if well := e.lastWellVisit(qualifying); well != nil {
		return well.ServiceProvider, TraceCut3
	}

	// Cut 4: provider of the most recent qualifying encounter.
	return qualifying[0].ServiceProvider, TraceCut4
}

// qualifyingEncounters keeps encounters on or after the cutoff whose service
// provider is in the provider-to-location map. Preserves order.
func (e *Engine) qualifyingEncounters(encs []Encounter, cutoff time.Time) []Encounter {
	out := make([]Encounter, 0, len(encs))
	for _, enc := range encs {
		if enc.Date.Before(cutoff) {
			continue
		}
		if _, ok := e.rules.RecognizedProvider(enc.ServiceProvider); !ok {
			continue
		}
		out = append(out, enc)
	}
	return out
}
