package backend

import (
	"errors"
	"testing"

	genai "google.golang.org/genai"
)

func TestGeminiError(t *testing.T) {
	if err := geminiError(genai.APIError{Code: 403, Message: "denied"}); !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth for 403, got %v", err)
	}
	if err := geminiError(genai.APIError{Code: 503, Message: "overloaded"}); !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport for 503, got %v", err)
	}
	if err := geminiError(errors.New("dial tcp: refused")); !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport for network error, got %v", err)
	}
}
