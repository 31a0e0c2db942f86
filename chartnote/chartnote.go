// Package chartnote splits free-text chart notes into bracket-delimited
// sections. Notes are written as "[주소증] ... [복진] ..." and the UI renders
// each section separately; unknown headers are preserved as-is.
package chartnote

import (
	"regexp"
	"strings"
)

// DefaultSection receives any text appearing before the first bracket header.
const DefaultSection = "메모"

var headerPattern = regexp.MustCompile(`\[([^\[\]]+)\]`)

// Section is one (header, body) pair of a sectionized note.
type Section struct {
	Header string `json:"header"`
	Body   string `json:"body"`
}

// Split sectionizes a note in document order. Empty bodies are kept so the
// caller can tell an empty section from a missing one; a blank note yields
// no sections.
func Split(note string) []Section {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil
	}

	headers := headerPattern.FindAllStringSubmatchIndex(note, -1)
	if len(headers) == 0 {
		return []Section{{Header: DefaultSection, Body: note}}
	}

	var sections []Section
	if lead := strings.TrimSpace(note[:headers[0][0]]); lead != "" {
		sections = append(sections, Section{Header: DefaultSection, Body: lead})
	}

	for i, h := range headers {
		end := len(note)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		sections = append(sections, Section{
			Header: note[h[2]:h[3]],
			Body:   strings.TrimSpace(note[h[1]:end]),
		})
	}
	return sections
}

// Get returns the body of the first section with the given header.
func Get(sections []Section, header string) (string, bool) {
	for _, s := range sections {
		if s.Header == header {
			return s.Body, true
		}
	}
	return "", false
}
