package store

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestTermsSplitsOnNonWordRunes(t *testing.T) {
	got := Terms(`Broken  SWING, "playground" OR (swing)* גן-שעשועים`)
	want := []string{"broken", "swing", "playground", "or", "גן", "שעשועים"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Terms = %v, want %v", got, want)
	}
}

func TestTermsCapsExpansion(t *testing.T) {
	words := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		words = append(words, strings.Repeat("a", i+1))
	}
	if got := Terms(strings.Join(words, " ")); len(got) != maxTerms {
		t.Fatalf("expected %d terms, got %d", maxTerms, len(got))
	}
}

func TestEffectiveLimit(t *testing.T) {
	for limit, want := range map[int]int{0: MaxResults, -1: MaxResults, 5: 5, 20: 20, 500: MaxResults} {
		if got := (Query{Limit: limit}).EffectiveLimit(); got != want {
			t.Fatalf("EffectiveLimit(%d) = %d, want %d", limit, got, want)
		}
	}
}

func TestDevPostsHaveDistinctIDs(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range DevPosts(time.Now()) {
		if seen[p.ID] {
			t.Fatalf("duplicate id %s", p.ID)
		}
		seen[p.ID] = true
		if len(p.ID) != 24 || len(p.Author.ID) != 24 {
			t.Fatalf("ids must be 24-char hex: %q %q", p.ID, p.Author.ID)
		}
	}
}
