// Package diag holds per-item diagnostics produced while converting a source
// unit, and a log that accumulates them across a batch.
package diag

import (
	"fmt"
	"sync"
	"time"
)

// Severity of a diagnostic.
type Severity string

const (
	Warning Severity = "warning"
	Error   Severity = "error"
)

// Stage names the pipeline step that produced a diagnostic.
type Stage string

const (
	StageClassify  Stage = "classify"
	StageBackend   Stage = "backend"
	StageAggregate Stage = "aggregate"
	StageFlatten   Stage = "flatten"
	StageValidate  Stage = "validate"
	StageLocalize  Stage = "localize"
	StageSink      Stage = "sink"
)

// Code is the error category carried by a diagnostic.
type Code string

const (
	CodeClassificationAmbiguous Code = "ClassificationAmbiguous"
	CodeBackendAuth             Code = "BackendAuthError"
	CodeBackendTransport        Code = "BackendTransportError"
	CodeToolLoopExceeded        Code = "ToolLoopExceeded"
	CodeMalformedResponse       Code = "MalformedResponseError"
	CodeFlattenParse            Code = "FlattenParseError"
	CodeRepaired                Code = "RepairedOutput"
	CodeTimeout                 Code = "Timeout"
	CodePartialOutput           Code = "PartialOutput"
	CodeLint                    Code = "PlaybookLint"
	CodeLocalize                Code = "LocalizationError"
	CodeSink                    Code = "SinkError"
	CodeInternal                Code = "InternalError"
)

// Diagnostic is one observation about a conversion.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Stage    Stage    `json:"stage"`
	Code     Code     `json:"code"`
	Message  string   `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s/%s: %s", d.Severity, d.Stage, d.Code, d.Message)
}

// Warn builds a warning diagnostic.
func Warn(stage Stage, code Code, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: Warning, Stage: stage, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Fail builds an error diagnostic.
func Fail(stage Stage, code Code, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: Error, Stage: stage, Code: code, Message: fmt.Sprintf(format, args...)}
}

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(ds []Diagnostic) bool {
	for _, d := range ds {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Entry is a diagnostic attributed to the item that produced it.
type Entry struct {
	Item string
	At   time.Time
	Diagnostic
}

// Log is an append-only diagnostics log safe for concurrent use. Each entry
// is written once by the worker that owns its item.
type Log struct {
	mu      sync.Mutex
	entries []Entry
}

// Append records diagnostics for item.
func (l *Log) Append(item string, ds ...Diagnostic) {
	if len(ds) == 0 {
		return
	}
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, d := range ds {
		l.entries = append(l.entries, Entry{Item: item, At: now, Diagnostic: d})
	}
}

// Entries returns a copy of everything appended so far.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// For returns the diagnostics recorded for one item, in append order.
func (l *Log) For(item string) []Diagnostic {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Diagnostic
	for _, e := range l.entries {
		if e.Item == item {
			out = append(out, e.Diagnostic)
		}
	}
	return out
}
