// Package detector identifies the natural language of analysis prose. Code
// spans are removed first so resource names do not skew the result.
package detector

import (
	"regexp"
	"strings"

	lingua "github.com/pemistahl/lingua-go"
)

var (
	fencedCodeRe = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe = regexp.MustCompile("`[^`\n]*`")
)

type Detector struct {
	detector lingua.LanguageDetector
}

func New() *Detector {
	detector := lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		Build()

	return &Detector{detector: detector}
}

// Prose returns text with fenced and inline code removed.
func Prose(text string) string {
	text = fencedCodeRe.ReplaceAllString(text, " ")
	text = inlineCodeRe.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}

func (d *Detector) Detect(text string) (lingua.Language, bool) {
	text = Prose(text)
	if text == "" {
		return lingua.Unknown, false
	}
	return d.detector.DetectLanguageOf(text)
}

// DetectISO returns the upper-case ISO 639-1 code of the detected language.
func (d *Detector) DetectISO(text string) (string, bool) {
	lang, ok := d.Detect(text)
	if !ok {
		return "", false
	}
	return lang.IsoCode639_1().String(), true
}

// Is reports whether text is confidently written in the language with the
// given ISO 639-1 code.
func (d *Detector) Is(text, iso string) bool {
	code, ok := d.DetectISO(text)
	return ok && strings.EqualFold(code, iso)
}
