package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/valpere/playconv/internal/dialect"
)

// Mode selects what the backend is asked to produce.
type Mode string

const (
	ModeAnalyze Mode = "analyze"
	ModeConvert Mode = "convert"
)

// ParseMode accepts "analyze" or "convert".
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeAnalyze:
		return ModeAnalyze, nil
	case ModeConvert:
		return ModeConvert, nil
	}
	return "", fmt.Errorf("unknown mode %q (want analyze or convert)", s)
}

// SourceUnit is one input file. Dialect is resolved once by NewSourceUnit.
type SourceUnit struct {
	ID      string          `json:"id"`
	Content string          `json:"content"`
	Dialect dialect.Dialect `json:"dialect"`
}

// NewSourceUnit classifies content and returns the unit.
func NewSourceUnit(id, content string) SourceUnit {
	return SourceUnit{ID: id, Content: content, Dialect: dialect.Classify(content)}
}

// ConversionRequest is the persisted record of one conversion attempt.
type ConversionRequest struct {
	ID         string    `json:"id"`
	BatchID    string    `json:"batch_id,omitempty"`
	Identifier string    `json:"identifier"`
	Dialect    string    `json:"dialect"`
	Mode       Mode      `json:"mode"`
	Backend    string    `json:"backend"`
	Model      string    `json:"model"`
	Timestamp  time.Time `json:"timestamp"`
}
