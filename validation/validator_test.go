package validation

import (
	"strings"
	"testing"

	"github.com/haniwon/clinic-server/formula"
	"github.com/haniwon/clinic-server/store"
)

func TestValidateInput(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple formula name", "소시호탕", false},
		{"plus separated", "소시호탕+반하사심탕", false},
		{"with multiplier", "이진탕*2", false},
		{"composition syntax", "시호:12/감초:4", false},
		{"chart shorthand", "<소시호탕>", false},
		{"latin and digits", "Vitamin B12", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"too long", strings.Repeat("가", 200), true},
		{"script tag", "<script>alert(1)</script>", true},
		{"sql comment", "소시호탕--", true},
		{"union select", "소시호탕 union select", true},
		{"path traversal", "../etc/passwd", true},
		{"disallowed characters", "소시호탕;rm", true},
		{"braces", "소시호탕{12}", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateInput(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateInput(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateSearchQuery(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{"single syllable", "김", false},
		{"patient name", "김철수", false},
		{"chart number", "2024-0042", false},
		{"two words", "김 철수", false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 60), true},
		{"too many words", "a b c d e f g", true},
		{"composition syntax not allowed", "시호:12", true},
		{"sql injection", "' or 1=1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateSearchQuery(tt.query)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSearchQuery(%q) error = %v, wantErr %v", tt.query, err, tt.wantErr)
			}
		})
	}
}

func TestValidateCatalog(t *testing.T) {
	v := NewValidator()

	goodHerbs := []formula.HerbRecord{
		{ID: 1, Name: "시호"},
		{ID: 2, Name: "감초"},
	}
	goodDefs := []store.FormulaDefinitionRow{
		{Name: "소시호탕", Composition: "시호:12/감초:4"},
	}

	if err := v.ValidateCatalog(goodHerbs, goodDefs); err != nil {
		t.Errorf("Expected valid catalog, got: %v", err)
	}

	tests := []struct {
		name  string
		herbs []formula.HerbRecord
		defs  []store.FormulaDefinitionRow
	}{
		{"no herbs", nil, goodDefs},
		{"no definitions", goodHerbs, nil},
		{"invalid herb id", []formula.HerbRecord{{ID: 0, Name: "시호"}}, goodDefs},
		{"empty herb name", []formula.HerbRecord{{ID: 1, Name: " "}}, goodDefs},
		{"duplicate herb id", []formula.HerbRecord{{ID: 1, Name: "시호"}, {ID: 1, Name: "감초"}}, goodDefs},
		{"duplicate herb name", []formula.HerbRecord{{ID: 1, Name: "시호"}, {ID: 2, Name: "시호"}}, goodDefs},
		{"empty definition name", goodHerbs, []store.FormulaDefinitionRow{{Name: "", Composition: "시호:12"}}},
		{"duplicate definition", goodHerbs, []store.FormulaDefinitionRow{
			{Name: "소시호탕", Composition: "시호:12"},
			{Name: "소시호탕", Composition: "감초:4"},
		}},
		{"empty composition", goodHerbs, []store.FormulaDefinitionRow{{Name: "소시호탕", Composition: " "}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := v.ValidateCatalog(tt.herbs, tt.defs); err == nil {
				t.Errorf("Expected error for %s, got nil", tt.name)
			}
		})
	}
}

func TestValidateCatalogUnknownHerbIsWarning(t *testing.T) {
	v := NewValidator()

	herbs := []formula.HerbRecord{{ID: 1, Name: "시호"}}
	defs := []store.FormulaDefinitionRow{
		{Name: "소시호탕", Composition: "시호:12/없는약재:4"},
	}

	// Unknown leaf herbs are resolver territory, not a rebuild blocker.
	if err := v.ValidateCatalog(herbs, defs); err != nil {
		t.Errorf("Expected unknown herb to pass validation, got: %v", err)
	}
}
