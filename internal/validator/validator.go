// Package validator runs structural checks on flattened playbooks and checks
// that localized analyses came back in the requested language.
package validator

import (
	"fmt"
	"strings"

	"github.com/valpere/playconv/internal/detector"
	"github.com/valpere/playconv/internal/diag"
	"github.com/valpere/playconv/internal/playbook"
)

// Lint returns warnings for plays without hosts, tasks without names, and
// task names repeated within one play. It never fails a conversion.
func Lint(doc *playbook.Document) []diag.Diagnostic {
	var out []diag.Diagnostic
	for i, play := range doc.Plays {
		label := fmt.Sprintf("play %d", i+1)
		if !play.HasField("hosts") && !play.HasField("import_playbook") {
			out = append(out, diag.Warn(diag.StageValidate, diag.CodeLint, "%s has no hosts", label))
		}

		seen := make(map[string]int)
		for _, tasks := range play.TaskLists() {
			for j, task := range tasks {
				name := strings.TrimSpace(task.Name())
				if name == "" {
					if _, _, ok := task.Module(); ok {
						out = append(out, diag.Warn(diag.StageValidate, diag.CodeLint, "%s task %d has no name", label, j+1))
					}
					continue
				}
				seen[name]++
				if seen[name] == 2 {
					out = append(out, diag.Warn(diag.StageValidate, diag.CodeLint, "%s repeats task name %q", label, name))
				}
			}
		}
	}
	return out
}

// minValidationLength is the minimum rune count required to attempt language detection.
// Shorter texts produce unreliable results and are accepted without validation.
const minValidationLength = 20

// Validator checks that a localized analysis is written in the expected language.
// The underlying language detector is expensive to build; reuse the instance.
type Validator struct {
	det *detector.Detector
}

// New creates a Validator sharing det. A nil det builds a new detector.
func New(det *detector.Detector) *Validator {
	if det == nil {
		det = detector.New()
	}
	return &Validator{det: det}
}

// IsValid returns true when text appears to be written in targetLang.
//
// Short texts and texts whose language cannot be determined pass without
// error. When the detected language differs from targetLang the returned
// error names both codes.
func (v *Validator) IsValid(text, targetLang string) (bool, error) {
	if targetLang == "" {
		return true, nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return false, fmt.Errorf("analysis is empty")
	}

	if len([]rune(text)) < minValidationLength {
		return true, nil
	}

	detected, ok := v.det.DetectISO(text)
	if !ok {
		return true, nil
	}

	if !strings.EqualFold(detected, targetLang) {
		return false, fmt.Errorf("expected %s but detected %s", targetLang, detected)
	}

	return true, nil
}
