package dialect

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Dialect
	}{
		{
			name: "recipe keyword",
			text: "# recipe for web servers\nservice 'nginx'",
			want: A,
		},
		{
			name: "cookbook_file",
			text: "cookbook_file '/etc/motd' do\n  source 'motd'\nend",
			want: A,
		},
		{
			name: "node attribute",
			text: "port = NODE['nginx']['port']",
			want: A,
		},
		{
			name: "puppet class with package",
			text: "class nginx {\n  package { 'nginx': ensure => installed }\n}",
			want: B,
		},
		{
			name: "puppet variable",
			text: "$port = 8080",
			want: B,
		},
		{
			name: "prose",
			text: "Just some plain words about the weather.",
			want: Unknown,
		},
		{
			name: "empty",
			text: "",
			want: Unknown,
		},
		{
			name: "mixed signals prefer A",
			text: "class web {\n  include web::recipe\n}",
			want: A,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.text)
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	text := "package { 'ntp': ensure => present }"
	first := Classify(text)
	for i := 0; i < 100; i++ {
		if got := Classify(text); got != first {
			t.Fatalf("classification changed on call %d: %s != %s", i, got, first)
		}
	}
}

func TestKeywordSetsDisjoint(t *testing.T) {
	seen := make(map[string]bool)
	for _, kw := range keywordsA {
		seen[kw] = true
	}
	for _, kw := range keywordsB {
		if seen[kw] {
			t.Errorf("keyword %q appears in both sets", kw)
		}
	}
}

func TestDialect_String(t *testing.T) {
	if A.String() != "A" || B.String() != "B" || Unknown.String() != "unknown" {
		t.Errorf("unexpected labels: %s %s %s", A, B, Unknown)
	}
}

func TestParse(t *testing.T) {
	for in, want := range map[string]Dialect{"A": A, "b": B, "chef": A, "puppet": B, "unknown": Unknown, "": Unknown} {
		if got := Parse(in); got != want {
			t.Errorf("Parse(%q): expected %s, got %s", in, want, got)
		}
	}
}

func TestFromExtension(t *testing.T) {
	if FromExtension(".RB") != A {
		t.Error("expected .RB to hint A")
	}
	if FromExtension(".pp") != B {
		t.Error("expected .pp to hint B")
	}
	if FromExtension(".yml") != Unknown {
		t.Error("expected .yml to hint unknown")
	}
}
