package playbook

import (
	"github.com/valpere/playconv/internal/diag"
)

// Outcome is the result of Flatten. Document is nil when the text could not
// be parsed, in which case Text is the input unchanged and Diagnostics holds
// exactly one warning.
type Outcome struct {
	Document    *Document
	Text        string
	Diagnostics []diag.Diagnostic
}

// Flatten parses text as a playbook and removes every grouping task.
func Flatten(text string) Outcome {
	doc, err := Parse(text)
	if err != nil {
		return fallback(text, err)
	}

	flat := FlattenDocument(doc)
	out, err := Marshal(flat)
	if err != nil {
		return fallback(text, err)
	}
	return Outcome{Document: flat, Text: out}
}

func fallback(text string, err error) Outcome {
	return Outcome{
		Text:        text,
		Diagnostics: []diag.Diagnostic{diag.Warn(diag.StageFlatten, diag.CodeFlattenParse, "%v", err)},
	}
}

// FlattenDocument returns a copy of doc where every task-list section has been
// rewritten by FlattenTasks. doc is not modified.
func FlattenDocument(doc *Document) *Document {
	out := &Document{Plays: make([]Play, 0, len(doc.Plays))}
	for _, p := range doc.Plays {
		fp := Play{Fields: make([]PlayField, len(p.Fields))}
		for i, pf := range p.Fields {
			if pf.TaskList {
				pf.Tasks = FlattenTasks(pf.Tasks)
			}
			fp.Fields[i] = pf
		}
		out.Plays = append(out.Plays, fp)
	}
	return out
}

// FlattenTasks expands grouping tasks in pre-order: each grouping task is
// replaced by its own entry without the block, followed by its flattened
// children. Tasks without children are returned as they are.
func FlattenTasks(tasks []Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		out = appendFlat(out, t)
	}
	return out
}

func appendFlat(out []Task, t Task) []Task {
	if !t.grouping {
		return append(out, t.withFlatSections())
	}
	out = append(out, t.residual())
	for _, c := range t.Children {
		out = appendFlat(out, c)
	}
	return out
}

// residual is the grouping task with its block removed. Its rescue and
// always lists stay in place, flattened.
func (t Task) residual() Task {
	fields := make([]Field, len(t.Fields))
	copy(fields, t.Fields)
	return Task{Fields: fields, sections: flatSections(t.sections)}
}

func (t Task) withFlatSections() Task {
	if len(t.sections) == 0 {
		return t
	}
	t.sections = flatSections(t.sections)
	return t
}

func flatSections(sections map[int][]Task) map[int][]Task {
	if len(sections) == 0 {
		return nil
	}
	out := make(map[int][]Task, len(sections))
	for i, tasks := range sections {
		out[i] = FlattenTasks(tasks)
	}
	return out
}

// CountTasks returns the number of tasks in a tree, counting every grouping
// task once plus its descendants.
func CountTasks(tasks []Task) int {
	n := 0
	for _, t := range tasks {
		n++
		if t.grouping {
			n += CountTasks(t.Children)
		}
	}
	return n
}

// IsFlat reports whether no task in doc, including tasks under rescue or
// always, carries children.
func IsFlat(doc *Document) bool {
	for _, p := range doc.Plays {
		for _, tasks := range p.TaskLists() {
			if !flatTasks(tasks) {
				return false
			}
		}
	}
	return true
}

func flatTasks(tasks []Task) bool {
	for _, t := range tasks {
		if t.grouping {
			return false
		}
		for _, section := range t.Sections() {
			if !flatTasks(section) {
				return false
			}
		}
	}
	return true
}
