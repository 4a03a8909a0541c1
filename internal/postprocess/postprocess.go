// Package postprocess removes common LLM artifacts from backend output before
// it is flattened or written as an analysis.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean removes LLM artifacts from text and returns the trimmed result:
//  1. Thinking / reasoning block removal
//  2. Leading instruction echo removal ("Here is the Ansible playbook:")
func Clean(text string) string {
	text = removeThinkingBlocks(text)
	text = removeInstructionEchoes(text)
	return strings.TrimSpace(text)
}

// --- Phase 1: thinking blocks ---

// Go's RE2 engine has no backreferences, so every tag pair is listed.
var thinkingBlockRe = regexp.MustCompile(
	`(?is)<thinking>.*?</thinking>|<think>.*?</think>|<reasoning>.*?</reasoning>|<reflection>.*?</reflection>`,
)

// truncatedThinkingRe matches an opened thinking tag whose closing tag is
// missing (the model was cut off mid-thought).
var truncatedThinkingRe = regexp.MustCompile(
	`(?is)(?:<thinking>|<think>|<reasoning>|<reflection>).*$`,
)

func removeThinkingBlocks(text string) string {
	text = thinkingBlockRe.ReplaceAllString(text, "")
	text = truncatedThinkingRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// --- Phase 2: instruction echoes ---

// echoPatterns are anchored at the start and require a trailing colon so
// that YAML content is never matched.
var echoPatterns = []*regexp.Regexp{
	// "Here is / Here's [the] [converted] [Ansible] playbook:"
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the| your| an)? (?:converted |equivalent |resulting )?(?:ansible )?(?:playbook|yaml|explanation|analysis)[^:\n]{0,40}:`),
	// "Certainly / Sure / Of course[,] here is [the] playbook:"
	regexp.MustCompile(`(?i)^(?:certainly|sure|of course)[,.!]? here(?:'s| is)(?: the| your| an)? (?:converted |equivalent |resulting )?(?:ansible )?(?:playbook|yaml|explanation|analysis)[^:\n]{0,40}:`),
	// "Ansible playbook:" / "Playbook:" on its own line
	regexp.MustCompile(`(?i)^(?:the )?(?:ansible )?playbook\s*:\s*\n`),
}

func removeInstructionEchoes(text string) string {
	for _, re := range echoPatterns {
		if loc := re.FindStringIndex(text); loc != nil && loc[0] == 0 {
			text = strings.TrimSpace(text[loc[1]:])
		}
	}
	return text
}

// --- Fenced code blocks ---

var (
	yamlFenceRe = regexp.MustCompile("(?s)```[ \\t]*(?:yaml|yml|ansible)[ \\t]*\\r?\\n(.*?)\\r?\\n[ \\t]*```")
	anyFenceRe  = regexp.MustCompile("(?s)```[ \\t]*[A-Za-z0-9_+-]*[ \\t]*\\r?\\n(.*?)\\r?\\n[ \\t]*```")
)

// ExtractFenced returns the body of the first YAML-tagged fenced block, or of
// the first fenced block of any kind. ok is false when text has no complete
// fence, in which case text is returned unchanged.
func ExtractFenced(text string) (string, bool) {
	if m := yamlFenceRe.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	if m := anyFenceRe.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return text, false
}
