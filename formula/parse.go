package formula

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Formula-name suffixes tried, in order, when a token has no exact match.
// These are the common Korean prescription type endings (decoction, powder,
// pill, drink).
var matchSuffixes = []string{"탕", "산", "환", "음"}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	plusRun       = regexp.MustCompile(`\++`)
)

// AmbiguousMatch records one input token that matched more than one catalog
// entry, together with the candidate template names.
type AmbiguousMatch struct {
	SearchName string   `json:"searchName"`
	Candidates []string `json:"candidates"`
}

// ParseError is the single error type surfaced by Parse. Both failure kinds
// are batched: every ambiguous or not-found token of one parse attempt is
// reported at once. Ambiguity takes priority: when both kinds occur, only the
// ambiguous tokens are reported.
type ParseError struct {
	Ambiguous []AmbiguousMatch `json:"ambiguous,omitempty"`
	NotFound  []string         `json:"notFound,omitempty"`
}

func (e *ParseError) Error() string {
	if len(e.Ambiguous) > 0 {
		parts := make([]string, 0, len(e.Ambiguous))
		for _, a := range e.Ambiguous {
			parts = append(parts, fmt.Sprintf("%s (%s)", a.SearchName, strings.Join(a.Candidates, ", ")))
		}
		return "ambiguous formula names: " + strings.Join(parts, "; ")
	}
	return "formula names not found: " + strings.Join(e.NotFound, ", ")
}

// FormulaToken is one "+"-delimited segment of the user input after
// normalization.
type FormulaToken struct {
	SearchName string
	Multiplier float64
}

// templateMatch pairs a matched template with its token's multiplier.
type templateMatch struct {
	template   *ResolvedTemplate
	multiplier float64
}

// Parse resolves free-text prescription input against the catalog and returns
// the merged per-dose herb list. Empty input (after normalization) yields no
// herbs and no error. A single unmatched or ambiguous token fails the whole
// parse; partial results are never returned.
func Parse(text string, catalog []ResolvedTemplate) ([]MergedHerb, error) {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	var (
		matches   []templateMatch
		ambiguous []AmbiguousMatch
		notFound  []string
	)

	for _, token := range tokens {
		candidates := matchTemplates(token.SearchName, catalog)
		switch len(candidates) {
		case 0:
			notFound = append(notFound, token.SearchName)
		case 1:
			matches = append(matches, templateMatch{template: candidates[0], multiplier: token.Multiplier})
		default:
			names := make([]string, 0, len(candidates))
			for _, c := range candidates {
				names = append(names, c.Name)
			}
			ambiguous = append(ambiguous, AmbiguousMatch{SearchName: token.SearchName, Candidates: names})
		}
	}

	if len(ambiguous) > 0 {
		return nil, &ParseError{Ambiguous: ambiguous}
	}
	if len(notFound) > 0 {
		return nil, &ParseError{NotFound: notFound}
	}

	return mergeMatches(matches), nil
}

// Tokenize normalizes the raw input and splits it into formula tokens.
// Normalization: NFC (macOS clients send decomposed Hangul jamo, which would
// never match catalog names), trim, strip one enclosing "<...>" pair,
// collapse whitespace runs to "+", collapse repeated "+", strip
// leading/trailing "+".
func Tokenize(text string) []FormulaToken {
	text = norm.NFC.String(text)
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "<")
	text = strings.TrimSuffix(text, ">")
	text = whitespaceRun.ReplaceAllString(text, "+")
	text = plusRun.ReplaceAllString(text, "+")
	text = strings.Trim(text, "+")
	if text == "" {
		return nil
	}

	var tokens []FormulaToken
	for _, segment := range strings.Split(text, "+") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		name, multiplier := splitMultiplierSuffix(segment)
		tokens = append(tokens, FormulaToken{SearchName: name, Multiplier: multiplier})
	}
	return tokens
}

// matchTemplates runs the exact -> suffix-variant -> prefix cascade. The
// first rule that yields at least one candidate wins.
func matchTemplates(searchName string, catalog []ResolvedTemplate) []*ResolvedTemplate {
	// Exact name or alias: unique by construction, first catalog hit wins.
	for i := range catalog {
		t := &catalog[i]
		if t.Name == searchName || (t.Alias != "" && t.Alias == searchName) {
			return []*ResolvedTemplate{t}
		}
	}

	var candidates []*ResolvedTemplate
	seen := make(map[string]bool)

	for _, suffix := range matchSuffixes {
		variant := searchName + suffix
		for i := range catalog {
			t := &catalog[i]
			if (t.Name == variant || (t.Alias != "" && t.Alias == variant)) && !seen[t.Name] {
				seen[t.Name] = true
				candidates = append(candidates, t)
			}
		}
	}
	if len(candidates) > 0 {
		return candidates
	}

	for i := range catalog {
		t := &catalog[i]
		if (strings.HasPrefix(t.Name, searchName) || (t.Alias != "" && strings.HasPrefix(t.Alias, searchName))) && !seen[t.Name] {
			seen[t.Name] = true
			candidates = append(candidates, t)
		}
	}
	return candidates
}

// mergeMatches combines the herb lists of all matched templates into one
// per-dose list. Overlapping herbs keep the highest scaled dosage across
// sources, never the sum. Output is sorted by dosage descending with a
// name-ascending tie-break so results are reproducible.
func mergeMatches(matches []templateMatch) []MergedHerb {
	dosages := make(map[string]float64)
	for _, m := range matches {
		for _, h := range m.template.Herbs {
			scaled := h.Dosage * m.multiplier
			if current, ok := dosages[h.HerbName]; !ok || scaled > current {
				dosages[h.HerbName] = scaled
			}
		}
	}

	merged := make([]MergedHerb, 0, len(dosages))
	for name, dosage := range dosages {
		merged = append(merged, MergedHerb{HerbName: name, Dosage: dosage})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Dosage != merged[j].Dosage {
			return merged[i].Dosage > merged[j].Dosage
		}
		return merged[i].HerbName < merged[j].HerbName
	})
	return merged
}
