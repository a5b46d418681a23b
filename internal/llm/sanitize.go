package llm

import "strings"

// StripThinkingTags removes <think>...</think> blocks from model output.
// Reasoning models (qwen3 and friends) wrap their chain of thought in these
// tags, which would otherwise end up in the classification label.
func StripThinkingTags(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start == -1 {
			break
		}
		end := strings.Index(s, "</think>")
		if end == -1 {
			// Unterminated block: drop everything from the opening tag on.
			s = strings.TrimSpace(s[:start])
			break
		}
		s = s[:start] + s[end+len("</think>"):]
	}
	return strings.TrimSpace(s)
}
