package search

import (
	"strings"

	"safekids-search/internal/query"
	"safekids-search/internal/store"
)

// Compile turns a parsed query into a store query.
//
// The text expression is every keyword plus the category name, unless the
// category is the generic "general" bucket. Sort is a two-way choice:
// popular orders by likes, anything else (recent or absent) by newest first.
// The limit is left to the caller.
func Compile(pq query.ParsedQuery) store.Query {
	terms := make([]string, 0, len(pq.Keywords)+1)
	terms = append(terms, pq.Keywords...)
	if pq.Category != "" && pq.Category != query.CategoryGeneral {
		terms = append(terms, string(pq.Category))
	}

	sort := store.SortNewest
	if pq.SortBy == query.SortPopular {
		sort = store.SortMostLiked
	}

	return store.Query{Text: strings.Join(terms, " "), Sort: sort}
}
