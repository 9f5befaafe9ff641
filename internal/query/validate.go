package query

import (
	"fmt"
	"strings"
)

// ValidationError explains why a model answer was rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid parsed query: " + e.Reason
}

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Validate checks an arbitrary decoded JSON value against the query contract.
//
// Keywords are load-bearing: a missing, empty or non-string keyword list is
// an error. Category and sortBy are refinements: values outside their enums
// are dropped and the query is still valid.
func Validate(v any) (ParsedQuery, error) {
	obj, ok := v.(map[string]any)
	if !ok || obj == nil {
		return ParsedQuery{}, invalid("model answer is not an object")
	}

	rawKeywords, ok := obj["keywords"]
	if !ok || rawKeywords == nil {
		return ParsedQuery{}, invalid("keywords is missing")
	}
	list, ok := rawKeywords.([]any)
	if !ok {
		return ParsedQuery{}, invalid("keywords must be an array, got %T", rawKeywords)
	}
	if len(list) == 0 {
		return ParsedQuery{}, invalid("keywords must be a non-empty array")
	}

	keywords := make([]string, 0, len(list))
	for i, item := range list {
		kw, ok := item.(string)
		if !ok {
			return ParsedQuery{}, invalid("keywords[%d] must be a string, got %T", i, item)
		}
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		keywords = append(keywords, kw)
	}
	if len(keywords) == 0 {
		return ParsedQuery{}, invalid("keywords contains only blank strings")
	}
	if len(keywords) > MaxKeywords {
		keywords = keywords[:MaxKeywords]
	}

	out := ParsedQuery{Keywords: keywords}

	if raw, ok := obj["category"]; ok && raw != nil {
		if c := Category(fmt.Sprint(raw)); c.Valid() {
			out.Category = c
		}
	}

	if raw, ok := obj["sortBy"].(string); ok {
		if s := SortBy(raw); s.Valid() {
			out.SortBy = s
		}
	}

	return out, nil
}
