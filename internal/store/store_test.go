package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/valpere/playconv/internal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_New(t *testing.T) {
	s := newTestStore(t)
	if s == nil {
		t.Fatal("expected non-nil store")
	}
}

func TestStore_New_InvalidPath(t *testing.T) {
	_, err := New("/nonexistent/path/test.db")
	if err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestStore_RunHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	runs := []struct {
		id     string
		status string
		ms     int64
	}{
		{"run-1", "success", 100},
		{"run-2", "fallback", 200},
		{"run-3", "failed", 300},
	}
	for i, r := range runs {
		req := internal.ConversionRequest{
			ID:         r.id,
			Identifier: r.id + ".rb",
			Dialect:    "A",
			Mode:       internal.ModeConvert,
			Backend:    "completion",
			Model:      "llama3",
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.SaveRequest(ctx, req); err != nil {
			t.Fatalf("SaveRequest failed: %v", err)
		}
		if err := s.SaveResult(ctx, r.id, r.status, "- hosts: all", r.ms, "[]"); err != nil {
			t.Fatalf("SaveResult failed: %v", err)
		}
	}

	entries, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(entries))
	}
	if entries[0].ID != "run-3" {
		t.Errorf("expected newest first, got %q", entries[0].ID)
	}
	if entries[0].Status != "failed" || entries[0].LatencyMs != 300 {
		t.Errorf("unexpected joined result: %+v", entries[0])
	}

	limited, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 runs with limit, got %d", len(limited))
	}

	stats, err := s.RunStats(ctx)
	if err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if stats.Total != 3 || stats.Succeeded != 1 || stats.Fallback != 1 || stats.Failed != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.AvgMs != 200 {
		t.Errorf("expected avg 200ms, got %v", stats.AvgMs)
	}

	if err := s.DeleteRun(ctx, "run-1"); err != nil {
		t.Errorf("DeleteRun failed: %v", err)
	}
	entries, _ = s.ListRuns(ctx, 0)
	if len(entries) != 2 {
		t.Errorf("expected 2 runs after delete, got %d", len(entries))
	}

	n, err := s.ClearRuns(ctx)
	if err != nil {
		t.Errorf("ClearRuns failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 cleared, got %d", n)
	}
}

func TestStore_GetMemory_Miss(t *testing.T) {
	s := newTestStore(t)

	_, found, err := s.GetMemory(context.Background(), MemoryKey{Source: "package 'nginx'", Mode: "convert", Backend: "chat", Model: "m"})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if found {
		t.Error("expected not found")
	}
}

func TestStore_GetMemory_Hit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := MemoryKey{Source: "package 'nginx'", Mode: "convert", Backend: "chat", Model: "m"}

	if err := s.SaveMemory(ctx, key, "- hosts: all"); err != nil {
		t.Fatalf("SaveMemory failed: %v", err)
	}

	// surrounding whitespace is not part of the key
	key.Source = "  package 'nginx'\n"
	out, found, err := s.GetMemory(ctx, key)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !found {
		t.Fatal("expected found")
	}
	if out != "- hosts: all" {
		t.Errorf("expected stored output, got %q", out)
	}

	entries, _ := s.ListMemory(ctx)
	if len(entries) != 1 || entries[0].UsageCount != 2 {
		t.Errorf("expected one entry with usage 2, got %+v", entries)
	}
}

func TestStore_GetMemory_KeyIncludesBackend(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SaveMemory(ctx, MemoryKey{Source: "x", Mode: "convert", Backend: "chat", Model: "m"}, "chat output")

	_, found, _ := s.GetMemory(ctx, MemoryKey{Source: "x", Mode: "convert", Backend: "agent", Model: "m"})
	if found {
		t.Error("expected miss for a different backend")
	}
	_, found, _ = s.GetMemory(ctx, MemoryKey{Source: "x", Mode: "analyze", Backend: "chat", Model: "m"})
	if found {
		t.Error("expected miss for a different mode")
	}
}

func TestStore_GetMemory_KeyIncludesHints(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	before := MemoryKey{Source: "x", Mode: "convert", Backend: "chat", Model: "m"}
	after := before
	after.Hints = HintsFingerprint(map[string]string{"cookbook_file": "ansible.builtin.copy"})

	s.SaveMemory(ctx, before, "without hints")

	if _, found, _ := s.GetMemory(ctx, after); found {
		t.Error("expected miss once hints changed")
	}
	s.SaveMemory(ctx, after, "with hints")

	out, found, err := s.GetMemory(ctx, before)
	if err != nil || !found || out != "without hints" {
		t.Errorf("expected original entry to survive, got %q found=%v err=%v", out, found, err)
	}
	out, found, err = s.GetMemory(ctx, after)
	if err != nil || !found || out != "with hints" {
		t.Errorf("expected hinted entry, got %q found=%v err=%v", out, found, err)
	}
}

func TestHintsFingerprint(t *testing.T) {
	if got := HintsFingerprint(nil); got != "" {
		t.Errorf("expected empty fingerprint for no hints, got %q", got)
	}

	a := HintsFingerprint(map[string]string{"package": "ansible.builtin.dnf", "service": "ansible.builtin.systemd"})
	b := HintsFingerprint(map[string]string{"service": "ansible.builtin.systemd", "package": "ansible.builtin.dnf"})
	if a == "" || a != b {
		t.Errorf("expected stable non-empty fingerprint, got %q and %q", a, b)
	}

	c := HintsFingerprint(map[string]string{"package": "ansible.builtin.apt", "service": "ansible.builtin.systemd"})
	if a == c {
		t.Error("expected different fingerprint when a module changes")
	}
}

func TestStore_GetMemory_Invalidated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := MemoryKey{Source: "x", Mode: "convert", Backend: "chat", Model: "m"}

	s.SaveMemory(ctx, key, "out")
	entries, _ := s.ListMemory(ctx)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if err := s.InvalidateMemory(ctx, entries[0].ID); err != nil {
		t.Fatalf("InvalidateMemory failed: %v", err)
	}

	_, found, err := s.GetMemory(ctx, key)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if found {
		t.Error("expected invalidated entry to miss")
	}

	stats, err := s.MemoryStats(ctx)
	if err != nil {
		t.Fatalf("MemoryStats failed: %v", err)
	}
	if stats.TotalEntries != 1 || stats.InvalidEntries != 1 || stats.ActiveEntries != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestStore_DeleteAndClearMemory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SaveMemory(ctx, MemoryKey{Source: "a", Mode: "convert", Backend: "chat", Model: "m"}, "A")
	s.SaveMemory(ctx, MemoryKey{Source: "b", Mode: "convert", Backend: "chat", Model: "m"}, "B")
	s.SaveMemory(ctx, MemoryKey{Source: "c", Mode: "convert", Backend: "chat", Model: "m"}, "C")

	entries, err := s.ListMemory(ctx)
	if err != nil {
		t.Fatalf("ListMemory failed: %v", err)
	}
	if err := s.DeleteMemory(ctx, entries[0].ID); err != nil {
		t.Errorf("DeleteMemory failed: %v", err)
	}

	count, err := s.ClearMemory(ctx)
	if err != nil {
		t.Errorf("ClearMemory failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 cleared, got %d", count)
	}
}

func TestStore_Checkpoint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cpID, err := s.CreateCheckpoint(ctx, "batch-1", "./recipes", "convert")
	if err != nil {
		t.Fatalf("CreateCheckpoint failed: %v", err)
	}
	if cpID != "batch-1" {
		t.Errorf("expected given id, got %q", cpID)
	}

	// re-creating an existing checkpoint keeps it
	if _, err := s.CreateCheckpoint(ctx, "batch-1", "./other", "analyze"); err != nil {
		t.Fatalf("CreateCheckpoint (again) failed: %v", err)
	}

	cp, err := s.GetCheckpoint(ctx, cpID)
	if err != nil {
		t.Fatalf("GetCheckpoint failed: %v", err)
	}
	if cp.InputDir != "./recipes" || cp.Mode != "convert" {
		t.Errorf("unexpected checkpoint: %+v", cp)
	}
	if cp.Status != "running" {
		t.Errorf("expected running status, got %q", cp.Status)
	}

	s.SaveItem(ctx, cpID, "web.rb", "success")
	s.SaveItem(ctx, cpID, "db.pp", "failed")
	s.SaveItem(ctx, cpID, "db.pp", "fallback")

	items, err := s.CompletedItems(ctx, cpID)
	if err != nil {
		t.Fatalf("CompletedItems failed: %v", err)
	}
	if len(items) != 2 || items["web.rb"] != "success" || items["db.pp"] != "fallback" {
		t.Errorf("unexpected items: %v", items)
	}

	if err := s.CompleteCheckpoint(ctx, cpID); err != nil {
		t.Errorf("CompleteCheckpoint failed: %v", err)
	}
	cp, _ = s.GetCheckpoint(ctx, cpID)
	if cp.Status != "completed" {
		t.Errorf("expected completed status, got %q", cp.Status)
	}

	if _, err := s.GetCheckpoint(ctx, "missing"); err == nil {
		t.Error("expected error for missing checkpoint")
	}
}

func TestStore_Hints(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.AddHint(ctx, "A", "cookbook_file", "ansible.builtin.copy")
	s.AddHint(ctx, "A", "template", "ansible.builtin.template")
	s.AddHint(ctx, "B", "file", "ansible.builtin.file")
	// replaces the earlier mapping
	s.AddHint(ctx, "A", "cookbook_file", "ansible.builtin.copy_v2")

	hints, err := s.GetHints(ctx, "A")
	if err != nil {
		t.Fatalf("GetHints failed: %v", err)
	}
	if len(hints) != 2 {
		t.Fatalf("expected 2 hints for A, got %d", len(hints))
	}
	if hints["cookbook_file"] != "ansible.builtin.copy_v2" {
		t.Errorf("expected replaced hint, got %q", hints["cookbook_file"])
	}

	all, err := s.ListHints(ctx, "")
	if err != nil {
		t.Fatalf("ListHints failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 hints, got %d", len(all))
	}

	onlyB, _ := s.ListHints(ctx, "B")
	if len(onlyB) != 1 {
		t.Fatalf("expected 1 hint for B, got %d", len(onlyB))
	}
	if err := s.DeleteHint(ctx, onlyB[0].ID); err != nil {
		t.Errorf("DeleteHint failed: %v", err)
	}
	onlyB, _ = s.ListHints(ctx, "B")
	if len(onlyB) != 0 {
		t.Errorf("expected 0 hints for B after delete, got %d", len(onlyB))
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  Hello  ", "Hello"},
		{"e\u0301", "\u00e9"}, // NFC normalization
		{"\t\nHello\t\n", "Hello"},
		{"", ""},
	}

	for _, tt := range tests {
		result := normalizeText(tt.input)
		if result != tt.expected {
			t.Errorf("normalizeText(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
