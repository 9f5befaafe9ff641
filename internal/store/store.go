// Package store defines the read-side view of hazard posts used by search and
// the contract every document store backend implements.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode"
)

// MaxResults caps every search, AI-assisted or fallback.
const MaxResults = 20

// maxTerms bounds the OR-expansion sent to a backend.
const maxTerms = 32

// ErrUnavailable wraps failures reaching the backing store.
var ErrUnavailable = errors.New("store unavailable")

// Author is the populated subset of the post author.
type Author struct {
	ID           string `json:"_id" bson:"_id"`
	Username     string `json:"username" bson:"username"`
	ProfileImage string `json:"profileImage,omitempty" bson:"profileImage,omitempty"`
}

// Post is a hazard report as returned by search.
type Post struct {
	ID            string    `json:"_id"`
	Author        Author    `json:"author"`
	Text          string    `json:"text"`
	Image         string    `json:"image,omitempty"`
	LikesCount    int       `json:"likesCount"`
	CommentsCount int       `json:"commentsCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	// Score is the backend's relevance score, when it computed one.
	Score float64 `json:"score,omitempty"`
}

// Sort selects result ordering.
type Sort string

const (
	SortNewest    Sort = "newest"     // createdAt descending
	SortMostLiked Sort = "most_liked" // likesCount descending
	SortRelevance Sort = "relevance"  // text score descending
)

// Query is a compiled free-text search.
type Query struct {
	// Text is a free-text expression; any of its terms may match.
	Text  string
	Sort  Sort
	Limit int
}

// EffectiveLimit clamps Limit into [1, MaxResults].
func (q Query) EffectiveLimit() int {
	if q.Limit <= 0 || q.Limit > MaxResults {
		return MaxResults
	}
	return q.Limit
}

// Terms splits Text into lowercased, de-duplicated search terms. Anything
// that is not a letter, digit or combining mark separates terms, so query
// syntax of the backend never leaks through.
func (q Query) Terms() []string {
	return Terms(q.Text)
}

// Terms is the tokenizer shared by backends that build their own query syntax.
func Terms(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
	})

	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
		if len(out) == maxTerms {
			break
		}
	}
	return out
}

// Searcher is a document store with free-text relevance search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Post, error)
	Ping(ctx context.Context) error
	Close() error
}

// Seeder loads posts (with their authors) into a store.
type Seeder interface {
	Seed(ctx context.Context, posts []Post) error
}
