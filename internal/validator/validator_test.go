package validator

import (
	"testing"

	"github.com/valpere/playconv/internal/playbook"
)

func mustParse(t *testing.T, text string) *playbook.Document {
	t.Helper()
	doc, err := playbook.Parse(text)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestLint_Clean(t *testing.T) {
	doc := mustParse(t, `- hosts: all
  tasks:
    - name: Install nginx
      apt: {name: nginx}
    - name: Start nginx
      service: {name: nginx, state: started}
`)
	if ds := Lint(doc); len(ds) != 0 {
		t.Errorf("expected no warnings, got %v", ds)
	}
}

func TestLint_Findings(t *testing.T) {
	doc := mustParse(t, `- name: no hosts here
  tasks:
    - apt: {name: nginx}
    - name: Restart
      service: {name: nginx, state: restarted}
    - name: Restart
      service: {name: nginx, state: restarted}
    - name: Restart
      service: {name: nginx, state: restarted}
`)
	ds := Lint(doc)
	if len(ds) != 3 {
		t.Fatalf("expected 3 warnings (hosts, unnamed, duplicate), got %d: %v", len(ds), ds)
	}
	for _, d := range ds {
		if d.Severity != "warning" {
			t.Errorf("expected warnings only, got %v", d)
		}
	}
}

func TestLint_ResidualGroupEntryWithoutModuleIsFine(t *testing.T) {
	out := playbook.Flatten(`- hosts: all
  tasks:
    - block:
        - name: Install nginx
          apt: {name: nginx}
`)
	if out.Document == nil {
		t.Fatal("expected document")
	}
	if ds := Lint(out.Document); len(ds) != 0 {
		t.Errorf("expected no warnings, got %v", ds)
	}
}

func TestIsValid_EmptyTargetLang(t *testing.T) {
	v := New(nil)

	valid, err := v.IsValid("Some analysis text", "")
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !valid {
		t.Error("expected valid=true for empty targetLang")
	}
}

func TestIsValid_Empty(t *testing.T) {
	v := New(nil)

	valid, err := v.IsValid("   ", "en")
	if err == nil {
		t.Error("expected error for whitespace-only analysis")
	}
	if valid {
		t.Error("expected valid=false for whitespace-only analysis")
	}
}

func TestIsValid_ShortTextSkipsDetection(t *testing.T) {
	v := New(nil)

	valid, err := v.IsValid("Installs nginx.", "uk")
	if err != nil || !valid {
		t.Errorf("expected short text to pass, got valid=%v err=%v", valid, err)
	}
}

func TestIsValid_WrongLanguage(t *testing.T) {
	v := New(nil)

	valid, err := v.IsValid("This recipe installs the nginx package and starts the service on every web node.", "uk")
	if err == nil {
		t.Error("expected error for wrong language")
	}
	if valid {
		t.Error("expected valid=false for wrong language")
	}
}
