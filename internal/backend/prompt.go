package backend

import (
	"fmt"
	"sort"
	"strings"

	"github.com/valpere/playconv/internal"
	"github.com/valpere/playconv/internal/dialect"
)

const analyzeInstructions = `You are an expert infrastructure automation analyst.

Your task is to analyze and explain in plain English what the input %s does.

Be concise but precise. Focus on key resources, logic, and structure.

Avoid YAML. Do not reformat the code.

Explain what the infrastructure automation code is doing, as if to a DevOps engineer new to the codebase.`

const convertInstructions = `You are an expert infrastructure automation assistant.

Your task is to convert the input %s into a clean and valid Ansible Playbook.
%s
You MUST follow these formatting rules:

Output only valid Ansible YAML.
Use "tasks:" under each play. Do not use "block:" unless absolutely necessary.
Avoid nested blocks. If needed, flatten them.
Use descriptive and distinct task names (e.g., "Install Apache", "Configure firewall").
Use appropriate Ansible modules (e.g., apt, yum, copy, template, service, ufw, firewalld).
Ensure proper indentation and correct YAML formatting.
Avoid any markdown, comments, explanations, or non-YAML content.

Do not return raw Chef or Puppet code.
Do not invent fictional modules.
Respond with YAML ONLY.`

const retrievalNote = `
Use the knowledge_search tool to retrieve relevant examples and concepts before answering.
`

// Instructions builds the system instructions for mode. withRetrieval adds
// the note telling the model to use the retrieval tool.
func Instructions(mode internal.Mode, d dialect.Dialect, hints map[string]string, withRetrieval bool) string {
	if mode == internal.ModeAnalyze {
		return fmt.Sprintf(analyzeInstructions, subject(d))
	}
	note := ""
	if withRetrieval {
		note = retrievalNote
	}
	return fmt.Sprintf(convertInstructions, subject(d), note) + formatHints(hints)
}

// CompletionPrompt builds a single-string prompt for completion endpoints.
func CompletionPrompt(mode internal.Mode, d dialect.Dialect, source string, hints map[string]string) string {
	if mode == internal.ModeAnalyze {
		return fmt.Sprintf(analyzeInstructions, subject(d)) + "\n\n[INPUT]\n" + source + "\n[OUTPUT]"
	}
	return fmt.Sprintf("As a software developer, convert this %s to an Ansible Playbook.\n"+
		"Only provide the YAML code (no explanations, no comments). Use proper indentation and formatting.\n"+
		"Use flat task lists and descriptive, distinct task names.%s\n\n[INPUT]\n%s\n[OUTPUT]",
		d.Label(), formatHints(hints), source)
}

func subject(d dialect.Dialect) string {
	if d == dialect.Unknown {
		return "infrastructure code (Chef or Puppet)"
	}
	return d.Label() + " code"
}

func formatHints(hints map[string]string) string {
	if len(hints) == 0 {
		return ""
	}
	keys := make([]string, 0, len(hints))
	for k := range hints {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("\n\nMODULE HINTS (prefer these target modules):\n")
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %s → %s\n", k, hints[k]))
	}
	return strings.TrimRight(sb.String(), "\n")
}
