package translator

import (
	"context"
	"fmt"
	"strings"
	"time"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"

	"github.com/valpere/playconv/internal/detector"
)

// GoogleLocalizer translates analyses with Google Cloud Translation. Text
// already in the target language is returned as is. Code spans are shielded
// and long analyses are sent as several segments in one request.
type GoogleLocalizer struct {
	cfg Config
	det *detector.Detector
}

func NewGoogleLocalizer(cfg Config, det *detector.Detector) *GoogleLocalizer {
	if det == nil {
		det = detector.New()
	}
	if cfg.SegmentRunes <= 0 {
		cfg.SegmentRunes = DefaultSegmentRunes
	}
	return &GoogleLocalizer{cfg: cfg, det: det}
}

func (s *GoogleLocalizer) Name() string {
	return "google"
}

func (s *GoogleLocalizer) Localize(ctx context.Context, text, targetLang string) (*Result, error) {
	result := &Result{ServiceName: s.Name(), TargetLang: targetLang, Text: text}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	targetLangTag, err := language.Parse(targetLang)
	if err != nil {
		return result, fmt.Errorf("invalid target language: %w", err)
	}

	if strings.TrimSpace(text) == "" {
		result.Skipped = true
		return result, nil
	}
	if code, ok := s.det.DetectISO(text); ok {
		result.SourceLang = strings.ToLower(code)
		base, _ := targetLangTag.Base()
		if strings.EqualFold(code, base.String()) {
			result.Skipped = true
			return result, nil
		}
	}

	opts := []option.ClientOption{}
	if s.cfg.Credentials != "" {
		opts = append(opts, option.WithCredentialsFile(s.cfg.Credentials))
	}

	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return result, fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	translateOpts := &translate.Options{Format: translate.Text}
	if result.SourceLang != "" {
		if tag, err := language.Parse(result.SourceLang); err == nil {
			translateOpts.Source = tag
		}
	}

	shielded, kept := shield(text)
	segs := split(shielded, s.cfg.SegmentRunes)
	inputs := make([]string, len(segs))
	for i, seg := range segs {
		inputs[i] = seg.text
	}

	translations, err := client.Translate(ctx, inputs, targetLangTag, translateOpts)
	if err != nil {
		return result, fmt.Errorf("translation failed: %w", err)
	}
	if len(translations) != len(inputs) {
		return result, fmt.Errorf("expected %d translations, got %d", len(inputs), len(translations))
	}

	outputs := make([]string, len(translations))
	for i, tr := range translations {
		outputs[i] = tr.Text
	}
	result.Text, result.LostMarkers = unshield(join(segs, outputs), kept)
	return result, nil
}
