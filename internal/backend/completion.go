package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/valpere/playconv/internal/ctxlog"
)

// CompletionAdapter calls an OpenAI-style /v1/completions endpoint with a
// single prompt. It never uses tools.
type CompletionAdapter struct {
	client *http.Client
}

func NewCompletionAdapter(client *http.Client) *CompletionAdapter {
	return &CompletionAdapter{client: defaultClient(client)}
}

func (a *CompletionAdapter) Name() string {
	return "completion"
}

type completionChoice struct {
	Text *string `json:"text"`
}

type completionResponse struct {
	Choices []completionChoice `json:"choices"`
}

func (a *CompletionAdapter) Transform(ctx context.Context, cfg Config, req Request, onChunk ChunkFunc) (*Result, error) {
	cfg = cfg.WithDefaults()
	result := &Result{Backend: a.Name(), Model: cfg.Model}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	log := ctxlog.FromContext(ctx).With("backend", a.Name())
	url := versioned(cfg.Endpoint) + "/completions"
	log.Debug("completion request", "url", url, "model", cfg.Model, "streaming", cfg.Streaming)

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.2
	}
	body := map[string]any{
		"model":       cfg.Model,
		"prompt":      CompletionPrompt(req.Mode, req.Dialect, req.Source, req.Hints),
		"max_tokens":  cfg.MaxTokens,
		"temperature": temperature,
		"stream":      cfg.Streaming,
	}

	resp, err := postJSON(ctx, a.client, url, cfg.Credential, body, cfg.Streaming)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	if !cfg.Streaming {
		var cr completionResponse
		if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
			result.Malformed = append(result.Malformed, malformed("failed to decode response: %v", err))
			return result, nil
		}
		if len(cr.Choices) == 0 || cr.Choices[0].Text == nil {
			result.Malformed = append(result.Malformed, malformed("response has no choices[0].text"))
			return result, nil
		}
		result.emit(onChunk, *cr.Choices[0].Text)
		return result, nil
	}

	err = readSSE(resp.Body, func(data string) error {
		var frame completionResponse
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			log.Warn("skipping malformed frame", "error", err)
			result.Malformed = append(result.Malformed, malformed("frame %q: %v", truncate(data, 80), err))
			return nil
		}
		if len(frame.Choices) > 0 && frame.Choices[0].Text != nil {
			result.emit(onChunk, *frame.Choices[0].Text)
		}
		return nil
	})
	if err != nil {
		return result, transportError("stream read failed", err)
	}
	return result, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
