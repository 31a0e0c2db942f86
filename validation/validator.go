// Package validation guards user-supplied text and catalog data before
// they reach SQL queries or the formula engine.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/haniwon/clinic-server/formula"
	"github.com/haniwon/clinic-server/interfaces"
	"github.com/haniwon/clinic-server/logging"
	"github.com/haniwon/clinic-server/store"
)

// Pre-compiled patterns, compiled once at package initialization.
var (
	// Formula text: Hangul, latin letters, digits, whitespace and the
	// characters the tokenizer understands (+ * : / < > . - ').
	formulaTextRegex = regexp.MustCompile(`^[\p{Hangul}a-zA-Z0-9\s\+\*:/<>\.\-']+$`)

	// Search queries are narrower: no composition syntax.
	searchQueryRegex = regexp.MustCompile(`^[\p{Hangul}a-zA-Z0-9\s\-\.']+$`)

	// Substring matching is much faster than regex for these.
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "eval(", "expression(", "@import",
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"--", "/*", "*/", "exec(", "execute(",
		"../", "..\\", "%2e%2e", "file://",
	}
)

const (
	maxFormulaTextLen = 500
	maxSearchQueryLen = 50
	maxSearchWords    = 6
)

// Validator implements interfaces.DataValidator.
type Validator struct{}

var _ interfaces.DataValidator = (*Validator)(nil)

// NewValidator creates a new data validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateInput validates prescription formula text.
func (v *Validator) ValidateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if len(input) > maxFormulaTextLen {
		return fmt.Errorf("input too long: maximum %d bytes", maxFormulaTextLen)
	}

	if err := checkDangerous(input); err != nil {
		return err
	}

	if !formulaTextRegex.MatchString(input) {
		return fmt.Errorf("input contains invalid characters: only Hangul, letters, numbers and formula punctuation are allowed")
	}

	return nil
}

// ValidateSearchQuery validates free-text search terms. Single Hangul
// syllables are meaningful, so no minimum length is enforced.
func (v *Validator) ValidateSearchQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("search query cannot be empty")
	}

	if len(query) > maxSearchQueryLen {
		return fmt.Errorf("search query too long: maximum %d bytes", maxSearchQueryLen)
	}

	if len(strings.Fields(query)) > maxSearchWords {
		return fmt.Errorf("search query too complex: maximum %d words allowed", maxSearchWords)
	}

	if err := checkDangerous(query); err != nil {
		return err
	}

	if !searchQueryRegex.MatchString(query) {
		return fmt.Errorf("search query contains invalid characters")
	}

	return nil
}

// ValidateCatalog checks herb and formula definition rows before a catalog
// rebuild swaps them in. A bad catalog must never replace a good one.
func (v *Validator) ValidateCatalog(herbs []formula.HerbRecord, definitions []store.FormulaDefinitionRow) error {
	if len(herbs) == 0 {
		return fmt.Errorf("no herbs found")
	}

	herbIDs := make(map[int]bool, len(herbs))
	herbNames := make(map[string]bool, len(herbs))
	for _, h := range herbs {
		if h.ID <= 0 {
			return fmt.Errorf("invalid herb id: %d", h.ID)
		}
		if strings.TrimSpace(h.Name) == "" {
			return fmt.Errorf("empty name for herb %d", h.ID)
		}
		if herbIDs[h.ID] {
			return fmt.Errorf("duplicate herb id: %d", h.ID)
		}
		herbIDs[h.ID] = true
		if herbNames[h.Name] {
			return fmt.Errorf("duplicate herb name: %s", h.Name)
		}
		herbNames[h.Name] = true
	}

	if len(definitions) == 0 {
		return fmt.Errorf("no formula definitions found")
	}

	defNames := make(map[string]bool, len(definitions))
	var unknownHerbs []string
	for _, d := range definitions {
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("formula definition with empty name")
		}
		if defNames[d.Name] {
			return fmt.Errorf("duplicate formula definition: %s", d.Name)
		}
		defNames[d.Name] = true
		if strings.TrimSpace(d.Composition) == "" {
			return fmt.Errorf("empty composition for formula %s", d.Name)
		}
	}

	// Leaf herbs that are neither a known herb nor another definition are
	// worth a warning but do not block the rebuild: the resolver drops
	// them with its own warning.
	for _, d := range definitions {
		for _, ref := range strings.Split(d.Composition, "/") {
			name, _, ok := strings.Cut(ref, ":")
			if !ok {
				continue
			}
			name = strings.TrimSpace(name)
			if name != "" && !herbNames[name] && !defNames[name] {
				unknownHerbs = append(unknownHerbs, fmt.Sprintf("%s (%s)", name, d.Name))
			}
		}
	}
	if len(unknownHerbs) > 0 {
		limit := len(unknownHerbs)
		if limit > 10 {
			limit = 10
		}
		logging.Warn("Formula compositions reference unknown herbs",
			"count", len(unknownHerbs),
			"examples", unknownHerbs[:limit],
		)
	}

	return nil
}

func checkDangerous(input string) error {
	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}
	return nil
}
