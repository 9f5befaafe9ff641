package query

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fencePattern matches a markdown code fence, optionally tagged json.
var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON returns the JSON payload of a model answer: the interior of the
// first fenced block when there is one, otherwise the trimmed text.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// Decode extracts, parses and validates a raw model answer.
func Decode(text string) (ParsedQuery, error) {
	payload := ExtractJSON(text)

	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return ParsedQuery{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return Validate(v)
}
