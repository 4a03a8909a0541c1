package refiner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaRepairer_New(t *testing.T) {
	r := NewOllamaRepairer("llama3.2", "")

	if r == nil {
		t.Fatal("expected non-nil repairer")
	}
	if r.baseURL != "http://localhost:11434" {
		t.Errorf("expected default baseURL, got %q", r.baseURL)
	}
	if r.client == nil {
		t.Error("expected non-nil HTTP client")
	}
}

func TestOllamaRepairer_Repair_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Model != "llama3.2" {
			t.Errorf("expected model 'llama3.2', got %q", req.Model)
		}
		if req.Stream {
			t.Error("expected stream=false")
		}
		if !strings.Contains(req.Prompt, "did not find expected key") {
			t.Errorf("expected parser error in prompt, got %q", req.Prompt)
		}

		json.NewEncoder(w).Encode(ollamaResponse{
			Response: "Here is the Ansible playbook:\n```yaml\n- hosts: all\n  tasks: []\n```",
		})
	}))
	defer server.Close()

	r := NewOllamaRepairer("llama3.2", server.URL)

	result, err := r.Repair(context.Background(), "package 'nginx'", "- hosts: all\n tasks: [", "did not find expected key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "- hosts: all\n  tasks: []" {
		t.Errorf("unexpected repair %q", result)
	}
}

func TestOllamaRepairer_Repair_EmptyKeepsBroken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaResponse{Response: ""})
	}))
	defer server.Close()

	r := NewOllamaRepairer("llama3.2", server.URL)

	result, err := r.Repair(context.Background(), "src", "broken: [", "err")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != "broken: [" {
		t.Errorf("expected broken text when response empty, got %q", result)
	}
}

func TestOllamaRepairer_Repair_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	r := NewOllamaRepairer("llama3.2", server.URL)

	if _, err := r.Repair(context.Background(), "src", "broken", "err"); err == nil {
		t.Error("expected error for non-200 status")
	}
}

func TestRepairerInterface(t *testing.T) {
	var _ Repairer = (*OllamaRepairer)(nil)
}
