// Package tone provides a fixed whitelist of interviewer tone tags,
// validation, mutual-exclusion enforcement, and prompt-guide construction.
// Survey definitions declare tone tags statically; unknown tags from
// configuration or model output are stripped, never passed through.
package tone

import (
	"strings"
)

// AllTags is the hard-coded set of safe tone tags.
var AllTags = map[string]bool{
	// Style
	"concise":  true,
	"detailed": true,
	"formal":   true,
	"casual":   true,
	// Stance
	"warm_supportive":      true,
	"neutral_professional": true,
	// Interaction
	"one_question_at_a_time": true,
	"no_emojis":              true,
}

// mutuallyExclusivePairs defines tags where at most one may be active.
// The first member of a pair wins when both are present.
var mutuallyExclusivePairs = [][2]string{
	{"concise", "detailed"},
	{"formal", "casual"},
	{"warm_supportive", "neutral_professional"},
}

// ValidateTags trims, lowercases, deduplicates, and strips unknown tags,
// then resolves mutual exclusions. The result is safe to embed in prompts.
func ValidateTags(tags []string) []string {
	var cleaned []string
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if !AllTags[t] || seen[t] {
			continue
		}
		seen[t] = true
		cleaned = append(cleaned, t)
	}
	for _, pair := range mutuallyExclusivePairs {
		if seen[pair[0]] && seen[pair[1]] {
			seen[pair[1]] = false
			cleaned = remove(cleaned, pair[1])
		}
	}
	return cleaned
}

func remove(tags []string, target string) []string {
	out := tags[:0]
	for _, t := range tags {
		if t != target {
			out = append(out, t)
		}
	}
	return out
}

// BuildToneGuide produces a compact instruction snippet for injection into
// LLM system prompts. It returns an empty string when there are no active tags.
func BuildToneGuide(tags []string) string {
	active := ValidateTags(tags)
	if len(active) == 0 {
		return ""
	}

	set := make(map[string]bool, len(active))
	for _, t := range active {
		set[t] = true
	}

	var b strings.Builder
	b.WriteString("\n<TONE POLICY>\nPhrase survey questions and clarifications in this style:\n")

	if set["concise"] {
		b.WriteString("- Be concise: short sentences, minimal filler.\n")
	}
	if set["detailed"] {
		b.WriteString("- Give brief context with each question, but avoid rambling.\n")
	}
	if set["formal"] {
		b.WriteString("- Use formal diction and professional register.\n")
	}
	if set["casual"] {
		b.WriteString("- Use casual, friendly language.\n")
	}
	if set["warm_supportive"] {
		b.WriteString("- Be warm and supportive, especially on sensitive topics.\n")
	}
	if set["neutral_professional"] {
		b.WriteString("- Keep a neutral, professional stance; do not editorialize.\n")
	}
	if set["one_question_at_a_time"] {
		b.WriteString("- Ask only one question at a time.\n")
	}
	if set["no_emojis"] {
		b.WriteString("- Do NOT use emojis.\n")
	}
	b.WriteString("</TONE POLICY>\n")
	return b.String()
}
