// Package formula implements the prescription formula resolution and herb
// dosage computation engine. It turns the stored formula catalog into resolved
// herb templates, matches free-text prescription input against them, merges
// the matched templates into a single per-dose herb list and derives the
// batch-level quantities used for dispensing.
//
// Every function in this package is a pure computation over in-memory values:
// no I/O, no retained state between calls. Callers own the catalog snapshot
// and rebuild it wholesale whenever the underlying definitions change.
package formula

// UnknownHerbID is assigned to herbs that are not present in the herb catalog
// (ad hoc additions from the adjustment text). The sentinel is large so that
// unknown herbs sort to the end of the final list.
const UnknownHerbID = 99999

// HerbRecord is one entry of the herb reference table.
type HerbRecord struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// FormulaDefinition is the raw stored form of a named formula. Composition is
// either a "+"-joined list of references to other definitions (each with an
// optional "*N" scaling suffix) or a "/"-joined list of "herb:dosage" leaf
// entries. The two forms are distinguished by the presence of "+".
type FormulaDefinition struct {
	Name        string `json:"name"`
	Alias       string `json:"alias,omitempty"`
	Composition string `json:"composition"`
}

// ResolvedHerb is one herb of a resolved template, in grams per single dose.
type ResolvedHerb struct {
	HerbName string  `json:"herbName"`
	Dosage   float64 `json:"dosage"`
	Unit     string  `json:"unit"`
}

// ResolvedTemplate is the in-memory, fully expanded form of one
// FormulaDefinition. Warnings lists references that were dropped or skipped
// during resolution so callers can surface data-quality problems.
type ResolvedTemplate struct {
	Name     string         `json:"name"`
	Alias    string         `json:"alias,omitempty"`
	Herbs    []ResolvedHerb `json:"herbs"`
	Warnings []string       `json:"warnings,omitempty"`
}

// MergedHerb is one entry of the merged per-dose herb list, one per distinct
// herb name across all matched templates.
type MergedHerb struct {
	HerbName string  `json:"herbName"`
	Dosage   float64 `json:"dosage"`
}

// HerbAdjustment is one parsed entry of the free-text adjustment expression.
type HerbAdjustment struct {
	HerbName string  `json:"herbName"`
	Amount   float64 `json:"amount"`
	IsAdd    bool    `json:"isAdd"`
}

// FinalHerb is one herb of the dispensing list, with the total amount in
// grams for the whole batch.
type FinalHerb struct {
	HerbID   int     `json:"herbId"`
	HerbName string  `json:"herbName"`
	Amount   float64 `json:"amount"`
}

// DosingParameters are caller-supplied batch parameters, never derived.
type DosingParameters struct {
	TotalDoses   float64 `json:"totalDoses"`
	Days         int     `json:"days"`
	DosesPerDay  int     `json:"dosesPerDay"`
	PackVolumeMl int     `json:"packVolumeMl"`
}

// Quantities holds the fully derived batch quantities.
type Quantities struct {
	TotalPerDoseWeight float64  `json:"totalPerDoseWeight"`
	TotalBatchWeight   float64  `json:"totalBatchWeight"`
	TotalPacks         int      `json:"totalPacks"`
	WaterVolumeMl      int      `json:"waterVolumeMl"`
	RecommendedDoses   *float64 `json:"recommendedDoses,omitempty"`
}
