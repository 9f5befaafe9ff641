// Package query holds the structured search intent produced by the language
// model and the strict decoding rules that turn model output into it.
package query

import "strings"

// MaxKeywords caps the keyword list kept from a model answer.
const MaxKeywords = 12

// Category is a hazard domain the model may attach to a query.
type Category string

const (
	CategoryPlayground Category = "playground"
	CategoryRoad       Category = "road"
	CategoryLighting   Category = "lighting"
	CategoryAnimals    Category = "animals"
	CategoryWater      Category = "water"
	CategoryGeneral    Category = "general"
)

var categories = map[Category]struct{}{
	CategoryPlayground: {},
	CategoryRoad:       {},
	CategoryLighting:   {},
	CategoryAnimals:    {},
	CategoryWater:      {},
	CategoryGeneral:    {},
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

// SortBy is the ordering the model asked for.
type SortBy string

const (
	SortRecent  SortBy = "recent"
	SortPopular SortBy = "popular"
)

// Valid reports whether s is exactly "recent" or "popular".
func (s SortBy) Valid() bool {
	return s == SortRecent || s == SortPopular
}

// ParsedQuery is a validated search intent.
// Keywords is never empty; Category and SortBy are empty when absent.
type ParsedQuery struct {
	Keywords []string `json:"keywords"`
	Category Category `json:"category,omitempty"`
	SortBy   SortBy   `json:"sortBy,omitempty"`
}

// Normalize folds a raw query into its cache/dedup key form:
// lowercased, trimmed, inner whitespace collapsed to single spaces.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}
