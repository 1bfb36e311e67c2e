package panel

import "time"

// pedsRule evaluates the pediatric empanelment rules over the patient's
// encounters within the 3-year window (sorted date descending). It returns
// the trace of the first matching rule, or "" when no rule matches or the
// under-3 exclusion applies.
func (e *Engine) pedsRule(p *Patient, in3y []Encounter, now time.Time) string {
	if len(in3y) == 0 {
		return ""
	}

	in2y := filterSince(in3y, now.AddDate(-2, 0, 0))
	in1y := filterSince(in3y, now.AddDate(-1, 0, 0))

	trace := ""
	switch {
	case e.pedsRule1(in3y, in2y):
		trace = TracePedsRule1
	case e.pedsRule2(in2y):
		trace = TracePedsRule2
	case e.pedsRule3(in3y, in2y, in1y):
		trace = TracePedsRule3
	default:
		return ""
	}

	if e.excludedUnder3(p, in3y, now) {
		return ""
	}
	return trace
}

// pedsRule1: at least 3 pediatrics encounters within the trailing 2 years,
// and all of the 3 most-recent encounters in the full window are pediatrics.
func (e *Engine) pedsRule1(in3y, in2y []Encounter) bool {
	if e.countPeds(in2y) < 3 {
		return false
	}
	return e.allPeds(lastN(in3y, 3))
}

// pedsRule2: the most recent well visit within the trailing 2 years is at
// pediatrics, and at least one of the 3 most-recent encounters in that
// window is pediatrics.
func (e *Engine) pedsRule2(in2y []Encounter) bool {
	lastWell := e.lastWellVisit(in2y)
	if lastWell == nil || !e.rules.IsPedsDept(lastWell.Dept) {
		return false
	}
	return e.anyPeds(lastN(in2y, 3))
}

// pedsRule3: no well visit within the trailing 2 years, at least 3
// encounters within the trailing year with a strict pediatrics majority, and
// at least one of the 3 most-recent encounters in the full window is
// pediatrics.
func (e *Engine) pedsRule3(in3y, in2y, in1y []Encounter) bool {
	if e.lastWellVisit(in2y) != nil {
		return false
	}
	if len(in1y) < 3 {
		return false
	}
	if e.countPeds(in1y)*2 <= len(in1y) {
		return false
	}
	return e.anyPeds(lastN(in3y, 3))
}

// excludedUnder3 removes patients under 3 years old with no pediatrics
// encounter within the trailing 15 months. An unknown age never excludes.
func (e *Engine) excludedUnder3(p *Patient, in3y []Encounter, now time.Time) bool {
	if p.Age == nil || *p.Age >= 3 {
		return false
	}
	return e.countPeds(filterSince(in3y, now.AddDate(0, -15, 0))) == 0
}

// lastWellVisit returns the most recent well visit of a date-descending
// slice, or nil.
func (e *Engine) lastWellVisit(encs []Encounter) *Encounter {
	for i := range encs {
		if e.rules.IsWellVisit(encs[i].EncounterType, encs[i].Diagnoses) {
			return &encs[i]
		}
	}
	return nil
}

func (e *Engine) countPeds(encs []Encounter) int {
	n := 0
	for _, enc := range encs {
		if e.rules.IsPedsDept(enc.Dept) {
			n++
		}
	}
	return n
}

func (e *Engine) anyPeds(encs []Encounter) bool {
	return e.countPeds(encs) > 0
}

func (e *Engine) allPeds(encs []Encounter) bool {
	return e.countPeds(encs) == len(encs)
}
