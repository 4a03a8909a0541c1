package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	genai "google.golang.org/genai"

	"github.com/valpere/playconv/internal/ctxlog"
)

// GeminiAdapter is the chat variant backed by the Gemini API through the
// official genai client.
type GeminiAdapter struct {
	cli *genai.Client
}

// NewGeminiAdapter builds the client. An empty apiKey lets genai read
// GEMINI_API_KEY / GOOGLE_API_KEY from the environment.
func NewGeminiAdapter(ctx context.Context, apiKey string) (*GeminiAdapter, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiAdapter{cli: cli}, nil
}

func (a *GeminiAdapter) Name() string {
	return "gemini"
}

func (a *GeminiAdapter) Transform(ctx context.Context, cfg Config, req Request, onChunk ChunkFunc) (*Result, error) {
	cfg = cfg.WithDefaults()
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	result := &Result{Backend: a.Name(), Model: model}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	ctxlog.FromContext(ctx).Debug("gemini request", "model", model, "streaming", cfg.Streaming)

	temperature := float32(0.2)
	if cfg.Temperature > 0 {
		temperature = float32(cfg.Temperature)
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(Instructions(req.Mode, req.Dialect, req.Hints, false), genai.RoleUser),
		Temperature:       &temperature,
		MaxOutputTokens:   int32(cfg.MaxTokens),
	}
	contents := []*genai.Content{genai.NewContentFromText(req.Source, genai.RoleUser)}

	if !cfg.Streaming {
		resp, err := a.cli.Models.GenerateContent(ctx, model, contents, config)
		if err != nil {
			return result, geminiError(err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			result.Malformed = append(result.Malformed, malformed("response has no candidates"))
			return result, nil
		}
		result.emit(onChunk, resp.Text())
		return result, nil
	}

	for resp, err := range a.cli.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			return result, geminiError(err)
		}
		if resp == nil || len(resp.Candidates) == 0 {
			result.Malformed = append(result.Malformed, malformed("stream chunk has no candidates"))
			continue
		}
		result.emit(onChunk, resp.Text())
	}
	return result, nil
}

func geminiError(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return fmt.Errorf("%w: %w", ErrAuth, err)
	}
	return transportError("gemini", err)
}
