package refiner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/valpere/playconv/internal/postprocess"
)

// OllamaRepairer uses a local Ollama model to fix YAML syntax.
type OllamaRepairer struct {
	model   string
	baseURL string
	client  *http.Client
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// NewOllamaRepairer creates a repairer backed by a local Ollama model.
func NewOllamaRepairer(model, baseURL string) *OllamaRepairer {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaRepairer{
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Repair returns the model's rewrite with fences and echoes stripped. An
// empty answer returns broken unchanged.
func (r *OllamaRepairer) Repair(ctx context.Context, source, broken, parseErr string) (string, error) {
	reqBody := ollamaRequest{
		Model:   r.model,
		Prompt:  buildRepairPrompt(source, broken, parseErr),
		Stream:  false,
		Options: map[string]any{"temperature": 0},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal repair request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", fmt.Sprintf("%s/api/generate", r.baseURL), bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create repair request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("repair request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("repairer returned status %d", resp.StatusCode)
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", fmt.Errorf("failed to decode repair response: %w", err)
	}

	repaired := postprocess.Clean(ollamaResp.Response)
	if body, ok := postprocess.ExtractFenced(repaired); ok {
		repaired = body
	}
	if repaired == "" {
		return broken, nil
	}
	return repaired, nil
}

func buildRepairPrompt(source, broken, parseErr string) string {
	return fmt.Sprintf(`You fix YAML syntax in Ansible playbooks.

The playbook below was generated from the original source code but does not parse.

PARSER ERROR:
%s

ORIGINAL SOURCE:
%s

BROKEN PLAYBOOK:
%s

Rewrite the playbook so that it is valid YAML: a list of plays, each with hosts and a tasks list.
Keep every task, its name, module and arguments. Do not add new tasks.
Do not use block: sections; list the tasks directly.

Output ONLY the corrected YAML. No markdown fences, no explanations.`, parseErr, source, broken)
}
