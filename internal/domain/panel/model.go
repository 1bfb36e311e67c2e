package panel

import (
	"fmt"
	"time"
)

// Patient is a de-identified warehouse patient row. A patient with either
// panel field populated is settled and is never reassigned; only patients
// with both fields unset are candidates for empanelment.
type Patient struct {
	PRWID         string  `db:"prw_id" json:"prw_id"`
	Sex           *string `db:"sex" json:"sex,omitempty"`
	Age           *int    `db:"age" json:"age,omitempty"`
	AgeInMoUnder3 *int    `db:"age_in_mo_under_3" json:"age_in_mo_under_3,omitempty"`
	City          *string `db:"city" json:"city,omitempty"`
	State         *string `db:"state" json:"state,omitempty"`
	PCP           *string `db:"pcp" json:"pcp,omitempty"`
	PanelProvider *string `db:"panel_provider" json:"panel_provider,omitempty"`
	PanelLocation *string `db:"panel_location" json:"panel_location,omitempty"`
}

// Settled reports whether the patient already carries a panel assignment.
func (p *Patient) Settled() bool {
	return p.PanelProvider != nil || p.PanelLocation != nil
}

// Encounter is a de-identified warehouse encounter row, read-only to this
// package.
type Encounter struct {
	PRWID           string    `db:"prw_id" json:"prw_id"`
	Location        *string   `db:"location" json:"location,omitempty"`
	Dept            string    `db:"dept" json:"dept"`
	Date            time.Time `db:"encounter_date" json:"encounter_date"`
	EncounterType   string    `db:"encounter_type" json:"encounter_type"`
	ServiceProvider string    `db:"service_provider" json:"service_provider"`
	WithPCP         bool      `db:"with_pcp" json:"with_pcp"`
	ApptStatus      string    `db:"appt_status" json:"appt_status"`
	Diagnoses       *string   `db:"diagnoses" json:"diagnoses,omitempty"`
	LevelOfService  *string   `db:"level_of_service" json:"level_of_service,omitempty"`
}

// Rule traces recorded on each assignment row.
const (
	TraceNone      = "none"
	TraceCarryover = "carryover"
	TracePedsRule1 = "peds.rule1"
	TracePedsRule2 = "peds.rule2"
	TracePedsRule3 = "peds.rule3"
	TraceCut1      = "cascade.cut1"
	TraceCut2      = "cascade.cut2"
	TraceCut3      = "cascade.cut3"
	TraceCut4      = "cascade.cut4"
)

// Assignment is one row of the panel assignment output relation. The
// relation is fully recomputed each run: every input patient gets exactly
// one row, with nil panel fields and TraceNone when no rule matched.
type Assignment struct {
	PRWID         string  `db:"prw_id" json:"prw_id"`
	PanelLocation *string `db:"panel_location" json:"panel_location,omitempty"`
	PanelProvider *string `db:"panel_provider" json:"panel_provider,omitempty"`
	RuleTrace     string  `db:"rule_trace" json:"rule_trace"`
}

// Assigned reports whether the row carries an actual panel.
func (a *Assignment) Assigned() bool {
	return a.PanelProvider != nil || a.PanelLocation != nil
}

// ShapeError reports an input batch that is missing required fields. A run
// failing shape validation produces no output at all.
type ShapeError struct {
	Relation string
	Field    string
	Row      int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s row %d: missing required field %s", e.Relation, e.Row, e.Field)
}
