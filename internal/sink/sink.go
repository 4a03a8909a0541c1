// Package sink persists conversion artifacts. Every sink uses the same flat
// naming so a directory and a bucket prefix hold identical layouts.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/valpere/playconv/internal"
	"github.com/valpere/playconv/internal/diag"
	"github.com/valpere/playconv/internal/markdown"
)

// Artifact is the final output of one item.
type Artifact struct {
	Identifier  string
	Mode        internal.Mode
	Dialect     string
	Backend     string
	Model       string
	Text        string
	Diagnostics []diag.Diagnostic
}

// Object is one file-like unit a sink stores.
type Object struct {
	Name        string
	ContentType string
	Data        []byte
}

// Sink stores artifacts. Implementations must be safe for concurrent use.
type Sink interface {
	Write(ctx context.Context, a Artifact) error
}

// Objects lays an artifact out as named objects. Existing objects with the
// same name are overwritten by the sinks.
func Objects(a Artifact) ([]Object, error) {
	base := BaseName(a.Identifier)
	if base == "" {
		return nil, fmt.Errorf("artifact has no identifier")
	}

	var objs []Object
	switch a.Mode {
	case internal.ModeAnalyze:
		report := markdown.Report{
			Identifier: a.Identifier,
			Dialect:    a.Dialect,
			Backend:    a.Backend,
			Model:      a.Model,
			Body:       a.Text,
		}
		objs = append(objs,
			Object{Name: base + ".analysis.md", ContentType: "text/markdown; charset=utf-8", Data: []byte(report.Markdown())},
			Object{Name: base + ".analysis.html", ContentType: "text/html; charset=utf-8", Data: []byte(report.HTML())},
		)
	default:
		text := a.Text
		if text != "" && !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		objs = append(objs, Object{Name: base + ".yaml", ContentType: "application/yaml", Data: []byte(text)})
	}

	if len(a.Diagnostics) > 0 {
		data, err := json.MarshalIndent(a.Diagnostics, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode diagnostics: %w", err)
		}
		objs = append(objs, Object{Name: base + ".diagnostics.json", ContentType: "application/json", Data: data})
	}
	return objs, nil
}

// BaseName is the last path element of an identifier, keeping its extension
// so web.rb and web.pp do not collide.
func BaseName(identifier string) string {
	identifier = strings.TrimSpace(strings.ReplaceAll(identifier, "\\", "/"))
	if identifier == "" {
		return ""
	}
	base := filepath.Base(filepath.FromSlash(identifier))
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}

// Multi writes to every sink in order and stops at the first error.
type Multi []Sink

func (m Multi) Write(ctx context.Context, a Artifact) error {
	for _, s := range m {
		if err := s.Write(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
