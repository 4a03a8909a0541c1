package backend

import (
	"strings"
	"testing"

	"github.com/valpere/playconv/internal"
	"github.com/valpere/playconv/internal/dialect"
)

func TestInstructions_ByMode(t *testing.T) {
	analyze := Instructions(internal.ModeAnalyze, dialect.B, nil, true)
	if !strings.Contains(analyze, "Puppet module code") {
		t.Errorf("expected dialect framing in analyze instructions, got %q", analyze)
	}
	if strings.Contains(analyze, "knowledge_search") {
		t.Error("analyze instructions must not mention the retrieval tool")
	}

	convert := Instructions(internal.ModeConvert, dialect.A, nil, true)
	for _, want := range []string{"Chef recipe code", "Avoid nested blocks", "Respond with YAML ONLY", "knowledge_search"} {
		if !strings.Contains(convert, want) {
			t.Errorf("expected convert instructions to contain %q", want)
		}
	}
	if strings.Contains(Instructions(internal.ModeConvert, dialect.A, nil, false), "knowledge_search") {
		t.Error("expected no retrieval note without tools")
	}
}

func TestInstructions_UnknownDialectUsesGenericFraming(t *testing.T) {
	got := Instructions(internal.ModeAnalyze, dialect.Unknown, nil, false)
	if !strings.Contains(got, "Chef or Puppet") {
		t.Errorf("expected generic framing, got %q", got)
	}
}

func TestInstructions_HintsSorted(t *testing.T) {
	got := Instructions(internal.ModeConvert, dialect.A, map[string]string{
		"template":      "ansible.builtin.template",
		"cookbook_file": "ansible.builtin.copy",
	}, false)
	i := strings.Index(got, "cookbook_file → ansible.builtin.copy")
	j := strings.Index(got, "template → ansible.builtin.template")
	if i < 0 || j < 0 || i > j {
		t.Errorf("expected sorted hints section, got %q", got)
	}
}

func TestCompletionPrompt(t *testing.T) {
	got := CompletionPrompt(internal.ModeConvert, dialect.B, "class x {}", nil)
	if !strings.HasPrefix(got, "As a software developer, convert this Puppet module to an Ansible Playbook.") {
		t.Errorf("unexpected prompt prefix: %q", got)
	}
	if !strings.HasSuffix(got, "[INPUT]\nclass x {}\n[OUTPUT]") {
		t.Errorf("unexpected prompt suffix: %q", got)
	}
}
