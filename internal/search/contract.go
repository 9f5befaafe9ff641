package search

import (
	"context"

	"safekids-search/internal/query"
	"safekids-search/internal/store"
)

// Parser turns a raw query into a validated structured query.
type Parser interface {
	Parse(ctx context.Context, raw string) (query.ParsedQuery, error)
}

// Store runs compiled queries against the document store.
type Store interface {
	Search(ctx context.Context, q store.Query) ([]store.Post, error)
}
