package panel

import (
	"os"
	"path/filepath"
	"testing"
)

const testRulesYAML = `peds_departments:
  - PALOUSE PEDIATRICS PULLMAN
  - PALOUSE PEDIATRICS MOSCOW
peds_panel_location: Palouse Pediatrics
well_visit_types:
  - WELL CHILD
  - WELLNESS
well_visit_keywords:
  - well child
  - wellness exam
excluded_encounter_types:
  - LAB ONLY
completed_status: Completed
provider_to_location:
  "ADAMS, ALICE": Pullman Family Medicine
  "BAKER, BOB": Palouse Medical
`

func writeRulesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}
	return path
}

func TestLoadRules(t *testing.T) {
	rules, err := LoadRules(writeRulesFile(t, testRulesYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !rules.IsPedsDept("PALOUSE PEDIATRICS MOSCOW") {
		t.Error("expected Moscow pediatrics to be a peds department")
	}
	if rules.IsPedsDept("PULLMAN FAMILY MEDICINE") {
		t.Error("expected family medicine not to be a peds department")
	}
	if loc, ok := rules.RecognizedProvider("BAKER, BOB"); !ok || loc != "Palouse Medical" {
		t.Errorf("expected BAKER, BOB mapped to Palouse Medical, got %q ok=%v", loc, ok)
	}
	if _, ok := rules.RecognizedProvider("UNKNOWN, PROVIDER"); ok {
		t.Error("expected unknown provider to be unrecognized")
	}
}

func TestLoadRules_MissingFile(t *testing.T) {
	if _, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing rules file")
	}
}

func TestLoadRules_MissingPedsDepartments(t *testing.T) {
	content := `peds_panel_location: Palouse Pediatrics
well_visit_types: [WELLNESS]
provider_to_location:
  "ADAMS, ALICE": Pullman Family Medicine
`
	if _, err := LoadRules(writeRulesFile(t, content)); err == nil {
		t.Fatal("expected validation error for empty peds_departments")
	}
}

func TestIsWellVisit_ByType(t *testing.T) {
	r := newTestRules()
	if !r.IsWellVisit("WELL CHILD", nil) {
		t.Error("expected WELL CHILD type to classify as well visit")
	}
	if r.IsWellVisit("OFFICE VISIT", nil) {
		t.Error("expected OFFICE VISIT without diagnosis not to classify")
	}
}

func TestIsWellVisit_ByKeywordCaseInsensitive(t *testing.T) {
	r := newTestRules()
	dx := "Z00.129 WELL CHILD visit, routine"
	if !r.IsWellVisit("OFFICE VISIT", &dx) {
		t.Error("expected diagnosis keyword match to be case-insensitive")
	}
	unrelated := "I10 Essential hypertension"
	if r.IsWellVisit("OFFICE VISIT", &unrelated) {
		t.Error("expected unrelated diagnosis not to classify")
	}
}

func TestValidate_DefaultsCompletedStatus(t *testing.T) {
	r := &Rules{
		PedsDepartments:    []string{"PEDS"},
		PedsPanelLocation:  "Peds",
		WellVisitTypes:     []string{"WELLNESS"},
		ProviderToLocation: map[string]string{"A": "X"},
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.CompletedStatus != "Completed" {
		t.Errorf("expected completed_status to default, got %q", r.CompletedStatus)
	}
}
