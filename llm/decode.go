package llm

import (
	"encoding/json"
	"strings"

	"github.com/fabrik-ai/fabrik/schema"
)

// StripFence removes a leading/trailing triple-backtick fence (with an
// optional language tag such as "json") from the text. Text without a fence
// is returned trimmed but otherwise unchanged.
func StripFence(text string) string {
	trimmed := strings.TrimSpace(text)

	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")

	// Drop the language tag on the opening fence line, if any.
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(trimmed[:idx])
		if firstLine == "" || isFenceTag(firstLine) {
			trimmed = trimmed[idx+1:]
		}
	}

	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")

	return strings.TrimSpace(trimmed)
}

// isFenceTag reports whether s looks like a fence language tag (a single
// short identifier such as "json" or "typescript").
func isFenceTag(s string) bool {
	if len(s) > 20 {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// DecodeStructured attempts to decode text as a JSON object and validate it
// against the schema. It returns nil when the text does not parse or does
// not validate; structured decoding is best-effort and never errors.
func DecodeStructured(text string, s *schema.JSON) map[string]any {
	if s == nil {
		return nil
	}

	candidate := StripFence(text)

	// Tolerate prose around the object by locating the outermost braces.
	start := strings.IndexByte(candidate, '{')
	end := strings.LastIndexByte(candidate, '}')
	if start == -1 || end == -1 || end < start {
		return nil
	}
	candidate = candidate[start : end+1]

	var parsed map[string]any
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil
	}

	if err := s.Validate(parsed); err != nil {
		return nil
	}

	return parsed
}
