// Package translator localizes analysis prose into the reader's language.
package translator

import (
	"context"
	"time"
)

// Config configures a Localizer.
type Config struct {
	Credentials string        `mapstructure:"credentials" json:"credentials"`
	ProjectID   string        `mapstructure:"project_id" json:"project_id"`
	Language    string        `mapstructure:"language" json:"language"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`

	// SegmentRunes caps each translated segment; 0 means DefaultSegmentRunes.
	SegmentRunes int `mapstructure:"segment_runes" json:"segment_runes"`
}

// Result describes one localization.
type Result struct {
	Text        string        `json:"text"`
	SourceLang  string        `json:"source_lang"`
	TargetLang  string        `json:"target_lang"`
	Skipped     bool          `json:"skipped"`
	ServiceName string        `json:"service_name"`
	Latency     time.Duration `json:"latency"`

	// LostMarkers counts shielded code spans the translation dropped.
	LostMarkers int `json:"lost_markers"`
}

// Localizer translates text into targetLang.
type Localizer interface {
	Name() string
	Localize(ctx context.Context, text, targetLang string) (*Result, error)
}
