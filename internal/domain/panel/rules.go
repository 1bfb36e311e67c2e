package panel

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Rules holds the reference tables the assignment engine evaluates against.
// They are loaded once from a YAML file and treated as immutable for the
// lifetime of a run.
type Rules struct {
	PedsDepartments       []string          `mapstructure:"peds_departments"`
	PedsPanelLocation     string            `mapstructure:"peds_panel_location"`
	WellVisitTypes        []string          `mapstructure:"well_visit_types"`
	WellVisitKeywords     []string          `mapstructure:"well_visit_keywords"`
	ExcludedEncounterType []string          `mapstructure:"excluded_encounter_types"`
	CompletedStatus       string            `mapstructure:"completed_status"`
	ProviderToLocation    map[string]string `mapstructure:"provider_to_location"`

	pedsDepts     map[string]bool
	wellTypes     map[string]bool
	excludedTypes map[string]bool
	wellKeywords  []string
}

// LoadRules reads and validates a rules file.
func LoadRules(path string) (*Rules, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	var r Rules
	if err := v.Unmarshal(&r); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	r.compile()
	return &r, nil
}

// Validate checks that the tables the engine cannot run without are present.
func (r *Rules) Validate() error {
	if len(r.PedsDepartments) == 0 {
		return fmt.Errorf("rules: peds_departments must not be empty")
	}
	if r.PedsPanelLocation == "" {
		return fmt.Errorf("rules: peds_panel_location is required")
	}
	if len(r.WellVisitTypes) == 0 {
		return fmt.Errorf("rules: well_visit_types must not be empty")
	}
	if len(r.ProviderToLocation) == 0 {
		return fmt.Errorf("rules: provider_to_location must not be empty")
	}
	if r.CompletedStatus == "" {
		r.CompletedStatus = "Completed"
	}
	return nil
}

func (r *Rules) compile() {
	r.pedsDepts = toSet(r.PedsDepartments)
	r.wellTypes = toSet(r.WellVisitTypes)
	r.excludedTypes = toSet(r.ExcludedEncounterType)
	r.wellKeywords = make([]string, 0, len(r.WellVisitKeywords))
	for _, kw := range r.WellVisitKeywords {
		if kw != "" {
			r.wellKeywords = append(r.wellKeywords, strings.ToLower(kw))
		}
	}
}

func toSet(vals []string) map[string]bool {
	set := make(map[string]bool, len(vals))
	for _, v := range vals {
		set[v] = true
	}
	return set
}

// IsPedsDept reports whether the department is a pediatrics department.
func (r *Rules) IsPedsDept(dept string) bool {
	return r.pedsDepts[dept]
}

// IsWellVisit classifies an encounter as a preventive/wellness visit, by
// encounter type or by case-insensitive keyword match against the diagnosis
// text.
func (r *Rules) IsWellVisit(encounterType string, diagnoses *string) bool {
	if r.wellTypes[encounterType] {
		return true
	}
	if diagnoses == nil {
		return false
	}
	dx := strings.ToLower(*diagnoses)
	for _, kw := range r.wellKeywords {
		if strings.Contains(dx, kw) {
			return true
		}
	}
	return false
}

// IsExcludedType reports whether the encounter type is an administrative or
// ancillary category that never counts toward empanelment.
func (r *Rules) IsExcludedType(encounterType string) bool {
	return r.excludedTypes[encounterType]
}

// RecognizedProvider looks up the clinic location for a provider. Providers
// absent from the map are not considered for assignment.
func (r *Rules) RecognizedProvider(provider string) (string, bool) {
	loc, ok := r.ProviderToLocation[provider]
	return loc, ok
}
