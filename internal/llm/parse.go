// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"encoding/json"
	"strings"
)

// ExtractJSON salvages a JSON object from free-form model output: it strips
// markdown code fences and returns the substring between the first "{" and
// the last "}". It returns "" when no object-shaped substring exists.
// Callers pair it with a typed fallback value; a parse failure must never
// escape an agent as an error.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// ParseInto extracts a JSON object from model output and unmarshals it into
// v. It reports whether parsing succeeded. On failure v may hold partially
// decoded fields, so callers must discard it unless ParseInto returned true.
func ParseInto(text string, v any) bool {
	raw := ExtractJSON(text)
	if raw == "" {
		return false
	}
	return json.Unmarshal([]byte(raw), v) == nil
}
