// Package playbook models generated playbooks as ordered YAML documents and
// rewrites them so that no task carries nested grouping ("block") children.
//
// Every key of a play or task is kept as its original yaml.Node, so fields
// the model emitted but this package does not interpret survive a
// parse/serialize cycle in their original order.
package playbook

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrParse wraps every failure to read text as a playbook.
var ErrParse = errors.New("playbook parse error")

// Keys of a play whose value is an ordered list of tasks.
var taskSections = map[string]bool{
	"pre_tasks":  true,
	"tasks":      true,
	"post_tasks": true,
	"handlers":   true,
}

// Task keys whose value is a list of tasks that runs alongside a block.
var errorSections = map[string]bool{
	"rescue": true,
	"always": true,
}

// Task-level keywords. Any other key on a task is its module invocation.
var taskKeywords = map[string]bool{
	"name": true, "when": true, "notify": true, "listen": true, "tags": true,
	"register": true, "vars": true, "args": true, "environment": true,
	"become": true, "become_user": true, "become_method": true, "become_flags": true,
	"loop": true, "loop_control": true, "until": true, "retries": true, "delay": true,
	"ignore_errors": true, "ignore_unreachable": true, "changed_when": true, "failed_when": true,
	"delegate_to": true, "delegate_facts": true, "run_once": true, "no_log": true,
	"check_mode": true, "diff": true, "any_errors_fatal": true, "throttle": true,
	"timeout": true, "connection": true, "module_defaults": true, "collections": true,
	"debugger": true, "block": true, "rescue": true, "always": true,
}

// Field is one key/value pair of a mapping, in document order.
type Field struct {
	Key   *yaml.Node
	Value *yaml.Node
}

// Name returns the key as a string.
func (f Field) Name() string {
	if f.Key == nil {
		return ""
	}
	return f.Key.Value
}

// Document is an ordered sequence of plays.
type Document struct {
	Plays []Play
}

// Play groups task lists under a target scope.
type Play struct {
	Fields []PlayField
}

// PlayField is a play key. Task-list sections hold parsed Tasks; all other
// keys keep their raw value.
type PlayField struct {
	Field
	Tasks    []Task
	TaskList bool
}

// Task is one unit of work. Children is non-nil only for grouping tasks.
type Task struct {
	Fields   []Field
	Children []Task

	grouping bool
	blockAt  int
	blockKey *yaml.Node
	raw      *yaml.Node

	// sections holds parsed rescue/always lists keyed by their index in Fields.
	sections map[int][]Task
}

// Parse reads text as a single YAML document holding a list of plays.
func Parse(text string) (*Document, error) {
	dec := yaml.NewDecoder(strings.NewReader(text))

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrParse)
		}
		if errors.Is(err, ErrParse) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var extra yaml.Node
	if err := dec.Decode(&extra); err == nil {
		return nil, fmt.Errorf("%w: more than one YAML document", ErrParse)
	} else if !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	return &doc, nil
}

// Marshal serializes a document with two-space indentation.
func Marshal(doc *Document) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && (n.Kind == yaml.AliasNode || n.Kind == yaml.DocumentNode) {
		if n.Kind == yaml.AliasNode {
			n = n.Alias
			continue
		}
		if len(n.Content) == 0 {
			return nil
		}
		n = n.Content[0]
	}
	return n
}

func (d *Document) UnmarshalYAML(value *yaml.Node) error {
	n := resolve(value)
	if n == nil || n.Kind != yaml.SequenceNode {
		return fmt.Errorf("%w: top level is not a list of plays", ErrParse)
	}
	d.Plays = make([]Play, 0, len(n.Content))
	for i, item := range n.Content {
		var p Play
		if err := p.UnmarshalYAML(item); err != nil {
			return fmt.Errorf("%w (play %d)", err, i+1)
		}
		d.Plays = append(d.Plays, p)
	}
	return nil
}

func (d Document) MarshalYAML() (interface{}, error) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, p := range d.Plays {
		n, err := p.node()
		if err != nil {
			return nil, err
		}
		seq.Content = append(seq.Content, n)
	}
	return seq, nil
}

func (p *Play) UnmarshalYAML(value *yaml.Node) error {
	n := resolve(value)
	if n == nil || n.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: play is not a mapping", ErrParse)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		pf := PlayField{Field: Field{Key: n.Content[i], Value: n.Content[i+1]}}
		if taskSections[pf.Name()] {
			if seq := resolve(pf.Value); seq != nil && seq.Kind == yaml.SequenceNode {
				pf.TaskList = true
				pf.Tasks = make([]Task, 0, len(seq.Content))
				for _, item := range seq.Content {
					var t Task
					if err := t.UnmarshalYAML(item); err != nil {
						return err
					}
					pf.Tasks = append(pf.Tasks, t)
				}
			}
		}
		p.Fields = append(p.Fields, pf)
	}
	return nil
}

func (p Play) MarshalYAML() (interface{}, error) {
	return p.node()
}

func (p Play) node() (*yaml.Node, error) {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, pf := range p.Fields {
		value := pf.Value
		if pf.TaskList {
			seq, err := tasksNode(pf.Tasks)
			if err != nil {
				return nil, err
			}
			value = seq
		}
		m.Content = append(m.Content, pf.Key, value)
	}
	return m, nil
}

func tasksNode(tasks []Task) (*yaml.Node, error) {
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, t := range tasks {
		n, err := t.node()
		if err != nil {
			return nil, err
		}
		seq.Content = append(seq.Content, n)
	}
	return seq, nil
}

func (t *Task) UnmarshalYAML(value *yaml.Node) error {
	n := resolve(value)
	if n == nil || n.Kind != yaml.MappingNode {
		t.raw = value
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		if key.Value == "block" && !t.grouping {
			if seq := resolve(val); seq != nil && seq.Kind == yaml.SequenceNode {
				t.grouping = true
				t.blockAt = len(t.Fields)
				t.blockKey = key
				t.Children = make([]Task, 0, len(seq.Content))
				for _, item := range seq.Content {
					var c Task
					if err := c.UnmarshalYAML(item); err != nil {
						return err
					}
					t.Children = append(t.Children, c)
				}
				continue
			}
		}
		if errorSections[key.Value] {
			if seq := resolve(val); seq != nil && seq.Kind == yaml.SequenceNode {
				tasks := make([]Task, 0, len(seq.Content))
				for _, item := range seq.Content {
					var c Task
					if err := c.UnmarshalYAML(item); err != nil {
						return err
					}
					tasks = append(tasks, c)
				}
				if t.sections == nil {
					t.sections = make(map[int][]Task)
				}
				t.sections[len(t.Fields)] = tasks
			}
		}
		t.Fields = append(t.Fields, Field{Key: key, Value: val})
	}
	return nil
}

func (t Task) MarshalYAML() (interface{}, error) {
	return t.node()
}

func (t Task) node() (*yaml.Node, error) {
	if t.raw != nil {
		return t.raw, nil
	}
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i, f := range t.Fields {
		if t.grouping && i == t.blockAt {
			if err := t.appendBlock(m); err != nil {
				return nil, err
			}
		}
		value := f.Value
		if tasks, ok := t.sections[i]; ok {
			seq, err := tasksNode(tasks)
			if err != nil {
				return nil, err
			}
			value = seq
		}
		m.Content = append(m.Content, f.Key, value)
	}
	if t.grouping && t.blockAt >= len(t.Fields) {
		if err := t.appendBlock(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (t Task) appendBlock(m *yaml.Node) error {
	seq, err := tasksNode(t.Children)
	if err != nil {
		return err
	}
	m.Content = append(m.Content, t.blockKey, seq)
	return nil
}

// IsGrouping reports whether the task carries a block of child tasks.
func (t Task) IsGrouping() bool { return t.grouping }

// Sections returns the parsed rescue and always lists in document order.
func (t Task) Sections() [][]Task {
	var out [][]Task
	for i := range t.Fields {
		if tasks, ok := t.sections[i]; ok {
			out = append(out, tasks)
		}
	}
	return out
}

// field returns the value node for key, or nil.
func (t Task) field(key string) *yaml.Node {
	for _, f := range t.Fields {
		if f.Name() == key {
			return f.Value
		}
	}
	return nil
}

// Name returns the task's name, or "" when it has none.
func (t Task) Name() string {
	if n := resolve(t.field("name")); n != nil && n.Kind == yaml.ScalarNode {
		return n.Value
	}
	return ""
}

// Module returns the first key that is not a task keyword together with its
// decoded arguments.
func (t Task) Module() (string, any, bool) {
	for _, f := range t.Fields {
		key := f.Name()
		if taskKeywords[key] || strings.HasPrefix(key, "with_") {
			continue
		}
		var args any
		if f.Value != nil {
			if err := f.Value.Decode(&args); err != nil {
				return key, nil, true
			}
		}
		return key, args, true
	}
	return "", nil, false
}

// Condition returns the decoded `when` value, or nil.
func (t Task) Condition() any {
	n := t.field("when")
	if n == nil {
		return nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil
	}
	return v
}

// NotifyTargets returns the handlers listed under `notify`, which may be a
// single string or a list.
func (t Task) NotifyTargets() []string {
	n := resolve(t.field("notify"))
	if n == nil {
		return nil
	}
	switch n.Kind {
	case yaml.ScalarNode:
		return []string{n.Value}
	case yaml.SequenceNode:
		var out []string
		for _, item := range n.Content {
			if item = resolve(item); item != nil && item.Kind == yaml.ScalarNode {
				out = append(out, item.Value)
			}
		}
		return out
	}
	return nil
}

// Hosts returns the play's hosts value, or "" when missing or not a scalar.
func (p Play) Hosts() string {
	for _, pf := range p.Fields {
		if pf.Name() == "hosts" {
			if n := resolve(pf.Value); n != nil && n.Kind == yaml.ScalarNode {
				return n.Value
			}
			if n := resolve(pf.Value); n != nil && n.Kind == yaml.SequenceNode {
				var hosts []string
				for _, item := range n.Content {
					hosts = append(hosts, item.Value)
				}
				return strings.Join(hosts, ",")
			}
		}
	}
	return ""
}

// HasField reports whether the play sets key.
func (p Play) HasField(key string) bool {
	for _, pf := range p.Fields {
		if pf.Name() == key {
			return true
		}
	}
	return false
}

// Tasks returns the play's `tasks` section. A missing or non-list section is empty.
func (p Play) Tasks() []Task {
	for _, pf := range p.Fields {
		if pf.Name() == "tasks" && pf.TaskList {
			return pf.Tasks
		}
	}
	return nil
}

// TaskLists returns every task-list section in document order.
func (p Play) TaskLists() [][]Task {
	var out [][]Task
	for _, pf := range p.Fields {
		if pf.TaskList {
			out = append(out, pf.Tasks)
		}
	}
	return out
}
