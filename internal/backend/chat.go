package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/valpere/playconv/internal/ctxlog"
)

// ChatAdapter exchanges system and user messages with an OpenAI-compatible
// /chat/completions endpoint (OpenRouter, vLLM, Ollama's compatibility API).
type ChatAdapter struct {
	client *http.Client
}

func NewChatAdapter(client *http.Client) *ChatAdapter {
	return &ChatAdapter{client: defaultClient(client)}
}

func (a *ChatAdapter) Name() string {
	return "chat"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message *chatMessage `json:"message"`
		Delta   *chatMessage `json:"delta"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (a *ChatAdapter) Transform(ctx context.Context, cfg Config, req Request, onChunk ChunkFunc) (*Result, error) {
	cfg = cfg.WithDefaults()
	result := &Result{Backend: a.Name(), Model: cfg.Model, Metadata: map[string]string{}}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	log := ctxlog.FromContext(ctx).With("backend", a.Name())
	url := strings.TrimRight(cfg.Endpoint, "/") + "/chat/completions"
	log.Debug("chat request", "url", url, "model", cfg.Model, "streaming", cfg.Streaming)

	body := map[string]any{
		"model": cfg.Model,
		"messages": []chatMessage{
			{Role: "system", Content: Instructions(req.Mode, req.Dialect, req.Hints, false)},
			{Role: "user", Content: req.Source},
		},
		"max_tokens": cfg.MaxTokens,
		"stream":     cfg.Streaming,
	}
	if cfg.Temperature > 0 {
		body["temperature"] = cfg.Temperature
	}

	resp, err := postJSON(ctx, a.client, url, cfg.Credential, body, cfg.Streaming)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	if !cfg.Streaming {
		var cr chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
			result.Malformed = append(result.Malformed, malformed("failed to decode response: %v", err))
			return result, nil
		}
		if len(cr.Choices) == 0 || cr.Choices[0].Message == nil {
			result.Malformed = append(result.Malformed, malformed("response has no choices[0].message"))
			return result, nil
		}
		result.emit(onChunk, cr.Choices[0].Message.Content)
		result.Metadata["prompt_tokens"] = strconv.Itoa(cr.Usage.PromptTokens)
		result.Metadata["completion_tokens"] = strconv.Itoa(cr.Usage.CompletionTokens)
		return result, nil
	}

	err = readSSE(resp.Body, func(data string) error {
		var frame chatResponse
		if err := json.Unmarshal([]byte(data), &frame); err != nil {
			log.Warn("skipping malformed frame", "error", err)
			result.Malformed = append(result.Malformed, malformed("frame %q: %v", truncate(data, 80), err))
			return nil
		}
		if len(frame.Choices) > 0 && frame.Choices[0].Delta != nil {
			result.emit(onChunk, frame.Choices[0].Delta.Content)
		}
		return nil
	})
	if err != nil {
		return result, transportError("stream read failed", err)
	}
	return result, nil
}
