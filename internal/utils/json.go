package utils

import (
	"strings"
)

// SanitizeJSON cleans raw AI output to extract valid JSON.
// It removes Markdown code blocks (```json ... ```) and any prose the model
// put around the top-level object or array.
func SanitizeJSON(input string) string {
	cleaned := strings.TrimSpace(input)

	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
	}
	cleaned = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(cleaned), "```"))

	if cleaned == "" || cleaned[0] == '{' || cleaned[0] == '[' {
		return cleaned
	}

	// "Here is the result: {...}"
	start := strings.IndexAny(cleaned, "{[")
	if start < 0 {
		return cleaned
	}
	closing := "}"
	if cleaned[start] == '[' {
		closing = "]"
	}
	end := strings.LastIndex(cleaned, closing)
	if end < start {
		return cleaned
	}
	return cleaned[start : end+1]
}
