package llm

import (
	"regexp"
	"strings"
)

// Reasoning tag names some models leak into user-visible output.
// Only these exact tags are stripped; any other angle-bracket text in
// plain prose passes through untouched.
var reasoningTagPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<think>.*?</think>`),
	regexp.MustCompile(`(?is)<thinking>.*?</thinking>`),
	regexp.MustCompile(`(?is)<reasoning>.*?</reasoning>`),
	regexp.MustCompile(`(?is)<reflection>.*?</reflection>`),
	regexp.MustCompile(`(?is)<internal>.*?</internal>`),
}

// leadingReasoningTagPattern handles unterminated tags: some models emit a
// bare closing tag at the very start of the answer (`</think> rest`).
var leadingReasoningTagPattern = regexp.MustCompile(`(?i)^</?(?:think|thinking|reasoning|reflection|internal)>\s*`)

var reasoningIndicators = []string{"<think", "</think", "<reasoning", "</reasoning", "<reflection", "</reflection", "<internal", "</internal"}

// Sanitize removes hidden chain-of-thought markup from model output before
// it is shown to users or saved as the final answer.
func Sanitize(content string) string {
	if content == "" {
		return content
	}

	lower := strings.ToLower(content)
	found := false
	for _, ind := range reasoningIndicators {
		if strings.Contains(lower, ind) {
			found = true
			break
		}
	}
	if !found {
		return strings.TrimSpace(content)
	}

	result := content
	for _, pat := range reasoningTagPatterns {
		result = pat.ReplaceAllString(result, "")
	}
	result = leadingReasoningTagPattern.ReplaceAllString(result, "")

	return strings.TrimSpace(result)
}
