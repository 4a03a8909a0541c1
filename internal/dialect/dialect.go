// Package dialect classifies infrastructure source text as dialect A (Chef
// recipes), dialect B (Puppet manifests) or unknown.
package dialect

import (
	"errors"
	"strings"
)

// Dialect is the classification of a source unit.
type Dialect int

const (
	Unknown Dialect = iota
	A
	B
)

// ErrAmbiguous is returned when a conversion needs a dialect and none could be resolved.
var ErrAmbiguous = errors.New("classification ambiguous")

// Keyword sets are matched against lower-cased input. They must stay disjoint.
var (
	keywordsA = []string{"recipe", "::", "default['", "cookbook_file", "template", "node["}
	keywordsB = []string{"class ", "define ", "$", "notify", "file {", "package {"}
)

// Classify returns A when any dialect A keyword occurs, otherwise B when any
// dialect B keyword occurs, otherwise Unknown. A is checked first.
func Classify(text string) Dialect {
	lower := strings.ToLower(text)
	if containsAny(lower, keywordsA) {
		return A
	}
	if containsAny(lower, keywordsB) {
		return B
	}
	return Unknown
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// String returns the wire label: "A", "B" or "unknown".
func (d Dialect) String() string {
	switch d {
	case A:
		return "A"
	case B:
		return "B"
	default:
		return "unknown"
	}
}

// Label is the human-readable framing used in instruction templates.
func (d Dialect) Label() string {
	switch d {
	case A:
		return "Chef recipe"
	case B:
		return "Puppet module"
	default:
		return "infrastructure code"
	}
}

// Collection returns the retrieval collection that documents this dialect.
func (d Dialect) Collection() string {
	switch d {
	case A:
		return "dialect-A-docs"
	case B:
		return "dialect-B-docs"
	default:
		return ""
	}
}

// Parse maps a wire label back to a Dialect. Unrecognised labels are Unknown.
func Parse(s string) Dialect {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A", "CHEF":
		return A
	case "B", "PUPPET":
		return B
	default:
		return Unknown
	}
}

// FromExtension guesses a dialect from a file extension, used only as a hint
// when listing batch inputs.
func FromExtension(ext string) Dialect {
	switch strings.ToLower(ext) {
	case ".rb":
		return A
	case ".pp":
		return B
	default:
		return Unknown
	}
}
