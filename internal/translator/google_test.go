package translator

import (
	"context"
	"testing"

	"github.com/valpere/playconv/internal/detector"
)

var sharedDetector = detector.New()

func TestGoogleLocalizer_Name(t *testing.T) {
	if got := NewGoogleLocalizer(Config{}, sharedDetector).Name(); got != "google" {
		t.Errorf("expected 'google', got %q", got)
	}
}

func TestGoogleLocalizer_InvalidLanguage(t *testing.T) {
	l := NewGoogleLocalizer(Config{}, sharedDetector)

	result, err := l.Localize(context.Background(), "Installs nginx.", "not a language tag")
	if err == nil {
		t.Error("expected error for invalid target language")
	}
	if result == nil || result.Text != "Installs nginx." {
		t.Errorf("expected original text in result, got %+v", result)
	}
}

func TestGoogleLocalizer_SkipsSameLanguage(t *testing.T) {
	l := NewGoogleLocalizer(Config{}, sharedDetector)
	text := "This recipe installs the nginx package, renders its configuration from a template and restarts the service."

	result, err := l.Localize(context.Background(), text, "en-US")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Skipped {
		t.Error("expected localization to be skipped for English text")
	}
	if result.Text != text {
		t.Errorf("expected text unchanged, got %q", result.Text)
	}
	if result.SourceLang != "en" {
		t.Errorf("expected source 'en', got %q", result.SourceLang)
	}
}

func TestGoogleLocalizer_SkipsEmpty(t *testing.T) {
	l := NewGoogleLocalizer(Config{}, sharedDetector)

	result, err := l.Localize(context.Background(), "  ", "uk")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Skipped {
		t.Error("expected empty text to be skipped")
	}
}
