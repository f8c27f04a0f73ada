package pipeline

import (
	"fmt"
	"strings"
)

// ParseError indicates a backend response that could not be extracted or
// validated. It always triggers the deterministic fallback for that stage.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing backend response: %s", e.Reason)
}

// stripFences removes markdown code fences models often wrap JSON in
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// extractJSONObject returns the first top-level JSON object in text,
// scanning from the first { to the last }
func extractJSONObject(text string) (string, error) {
	text = stripFences(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return "", &ParseError{Reason: "no JSON object found in response"}
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return "", &ParseError{Reason: "invalid JSON object in response"}
	}

	return text[startIdx : endIdx+1], nil
}

// extractJSONValue returns the first JSON value (object or array) in text
func extractJSONValue(text string) (string, error) {
	text = stripFences(text)

	startIdx := strings.IndexAny(text, "{[")
	if startIdx == -1 {
		return "", &ParseError{Reason: "no JSON value found in response"}
	}

	endObj := strings.LastIndex(text, "}")
	endArr := strings.LastIndex(text, "]")
	endIdx := endObj
	if endArr > endIdx {
		endIdx = endArr
	}
	if endIdx < startIdx {
		return "", &ParseError{Reason: "invalid JSON value in response"}
	}

	return text[startIdx : endIdx+1], nil
}
