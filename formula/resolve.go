package formula

import (
	"strconv"
	"strings"
)

// definitionIndex maps both names and aliases to their definition. Names take
// precedence over aliases when the same key appears as both.
type definitionIndex map[string]*FormulaDefinition

func buildDefinitionIndex(definitions []FormulaDefinition) definitionIndex {
	idx := make(definitionIndex, len(definitions)*2)
	for i := range definitions {
		d := &definitions[i]
		if alias := strings.TrimSpace(d.Alias); alias != "" {
			if _, exists := idx[alias]; !exists {
				idx[alias] = d
			}
		}
	}
	for i := range definitions {
		d := &definitions[i]
		if name := strings.TrimSpace(d.Name); name != "" {
			idx[name] = d
		}
	}
	return idx
}

// BuildCatalog expands every definition into a ResolvedTemplate. It is run
// once per catalog load; a malformed definition degrades to fewer (or zero)
// herbs and a warning rather than failing the whole catalog.
func BuildCatalog(definitions []FormulaDefinition) []ResolvedTemplate {
	idx := buildDefinitionIndex(definitions)

	templates := make([]ResolvedTemplate, 0, len(definitions))
	for _, d := range definitions {
		herbs, warnings := resolveComposition(d.Composition, 1.0, nil, idx)
		templates = append(templates, ResolvedTemplate{
			Name:     d.Name,
			Alias:    d.Alias,
			Herbs:    herbs,
			Warnings: warnings,
		})
	}
	return templates
}

// resolveComposition expands one raw composition expression into a flat herb
// list. multiplier scales every dosage the expression contributes. visited
// holds the reference names of all ancestors on the current expansion path;
// each recursive branch gets its own copy so siblings never see each other's
// marks, only their ancestors'.
func resolveComposition(composition string, multiplier float64, visited map[string]struct{}, idx definitionIndex) ([]ResolvedHerb, []string) {
	composition = strings.TrimSpace(composition)
	if composition == "" {
		return nil, nil
	}

	if strings.Contains(composition, "+") {
		return resolveReferences(composition, multiplier, visited, idx)
	}
	return resolveLeaf(composition, multiplier), nil
}

// resolveReferences handles the "+" form: every segment references another
// definition by name or alias, optionally scaled by a "*N" suffix. Cyclic or
// unresolved references are dropped with a warning instead of failing, so one
// bad definition cannot block resolution of the rest of the catalog.
func resolveReferences(composition string, multiplier float64, visited map[string]struct{}, idx definitionIndex) ([]ResolvedHerb, []string) {
	var (
		order    []string
		dosages  = make(map[string]float64)
		warnings []string
	)

	for _, segment := range strings.Split(composition, "+") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		referenceName, localMultiplier := splitMultiplierSuffix(segment)
		if _, onPath := visited[referenceName]; onPath {
			warnings = append(warnings, "cyclic reference skipped: "+referenceName)
			continue
		}

		def, found := idx[referenceName]
		if !found || strings.TrimSpace(def.Composition) == "" {
			warnings = append(warnings, "unresolved reference dropped: "+referenceName)
			continue
		}

		branch := make(map[string]struct{}, len(visited)+1)
		for name := range visited {
			branch[name] = struct{}{}
		}
		branch[referenceName] = struct{}{}

		herbs, nested := resolveComposition(def.Composition, multiplier*localMultiplier, branch, idx)
		warnings = append(warnings, nested...)

		for _, h := range herbs {
			current, seen := dosages[h.HerbName]
			if !seen {
				order = append(order, h.HerbName)
				dosages[h.HerbName] = h.Dosage
			} else if h.Dosage > current {
				dosages[h.HerbName] = h.Dosage
			}
		}
	}

	herbs := make([]ResolvedHerb, 0, len(order))
	for _, name := range order {
		herbs = append(herbs, ResolvedHerb{HerbName: name, Dosage: dosages[name], Unit: "g"})
	}
	return herbs, warnings
}

// resolveLeaf handles the "/" form: flat "herb:dosage" entries. Repeated herb
// names within one leaf composition are deliberately not collapsed; they only
// collapse once the definition is used as a sub-reference of a "+" expression.
func resolveLeaf(composition string, multiplier float64) []ResolvedHerb {
	var herbs []ResolvedHerb
	for _, part := range strings.Split(composition, "/") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, dosageText, hasColon := strings.Cut(part, ":")
		name = strings.TrimSpace(name)
		dosageText = strings.TrimSpace(dosageText)
		if !hasColon || name == "" || dosageText == "" {
			continue
		}

		dosage, err := strconv.ParseFloat(dosageText, 64)
		if err != nil {
			dosage = 0 // malformed dosage degrades to zero rather than erroring
		}

		herbs = append(herbs, ResolvedHerb{HerbName: name, Dosage: dosage * multiplier, Unit: "g"})
	}
	return herbs
}

// splitMultiplierSuffix extracts an optional trailing "*<number>" from a
// segment. Anything that does not parse as a number leaves the segment intact
// with the default multiplier of 1.
func splitMultiplierSuffix(segment string) (string, float64) {
	if i := strings.LastIndex(segment, "*"); i >= 0 {
		if m, err := strconv.ParseFloat(strings.TrimSpace(segment[i+1:]), 64); err == nil {
			return strings.TrimSpace(segment[:i]), m
		}
	}
	return segment, 1.0
}
