package llm

import (
	"strings"
)

// CleanJSON strips Markdown code fences and any prose around the outermost
// JSON object.
func CleanJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// ```json ... ``` or ``` ... ```
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(strings.TrimPrefix(s, "```json"), "```")
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 && !strings.HasPrefix(s, "[") {
		if end := strings.LastIndex(s, "}"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
