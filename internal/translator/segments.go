package translator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// DefaultSegmentRunes bounds one translation request segment.
const DefaultSegmentRunes = 4500

var (
	reFence   = regexp.MustCompile("(?s)```.*?```")
	reInline  = regexp.MustCompile("`[^`\n]+`")
	reTag     = regexp.MustCompile(`<[^>\n]+>`)
	reShield  = regexp.MustCompile(`\[PC(\d+)\]`)
	shieldFmt = "[PC%d]"
)

// shield swaps code fences, inline code and HTML tags for [PCn] markers so
// module names and YAML snippets survive translation untouched.
func shield(text string) (string, []string) {
	var kept []string
	replace := func(m string) string {
		kept = append(kept, m)
		return fmt.Sprintf(shieldFmt, len(kept)-1)
	}
	text = reFence.ReplaceAllStringFunc(text, replace)
	text = reInline.ReplaceAllStringFunc(text, replace)
	text = reTag.ReplaceAllStringFunc(text, replace)
	return text, kept
}

// unshield restores markers produced by shield and reports how many were
// dropped by the translation.
func unshield(text string, kept []string) (string, int) {
	seen := make([]bool, len(kept))
	out := reShield.ReplaceAllStringFunc(text, func(m string) string {
		idx, err := strconv.Atoi(reShield.FindStringSubmatch(m)[1])
		if err != nil || idx < 0 || idx >= len(kept) {
			return m
		}
		seen[idx] = true
		return kept[idx]
	})
	lost := 0
	for _, ok := range seen {
		if !ok {
			lost++
		}
	}
	return out, lost
}

// segment is one piece of a split text plus the separator that followed it.
type segment struct {
	text string
	sep  string
}

// split cuts text into segments of at most limit runes, preferring paragraph
// breaks, then line breaks, then whitespace. Joining text+sep of every
// segment yields the input with separator whitespace normalized.
func split(text string, limit int) []segment {
	if limit <= 0 || len([]rune(text)) <= limit {
		return []segment{{text: text}}
	}

	var out []segment
	rest := text
	for len([]rune(rest)) > limit {
		head := string([]rune(rest)[:limit])
		cut, sep := cutPoint(head)
		out = append(out, segment{text: rest[:cut], sep: sep})
		rest = strings.TrimLeftFunc(rest[cut:], unicode.IsSpace)
	}
	if rest != "" {
		out = append(out, segment{text: rest})
	}
	return out
}

// cutPoint returns the byte offset to cut head at and the separator to
// re-insert after the cut.
func cutPoint(head string) (int, string) {
	if i := strings.LastIndex(head, "\n\n"); i > 0 {
		return i, "\n\n"
	}
	if i := strings.LastIndex(head, "\n"); i > 0 {
		return i, "\n"
	}
	if i := strings.LastIndexFunc(head, unicode.IsSpace); i > 0 {
		return i, " "
	}
	return len(head), ""
}

func join(segs []segment, texts []string) string {
	var b strings.Builder
	for i, s := range segs {
		b.WriteString(texts[i])
		b.WriteString(s.sep)
	}
	return b.String()
}
