package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safekids-search/internal/store"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Seed(context.Background(), store.DevPosts(now)))
	return s
}

func ids(posts []store.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestSearchMatchesAnyTerm(t *testing.T) {
	s := setupTestStore(t)

	posts, err := s.Search(context.Background(), store.Query{Text: "swing streetlights", Sort: store.SortNewest, Limit: 20})
	require.NoError(t, err)

	assert.Equal(t, []string{"65f100000000000000000002", "65f100000000000000000001"}, ids(posts))
}

func TestSearchPopulatesAuthor(t *testing.T) {
	s := setupTestStore(t)

	posts, err := s.Search(context.Background(), store.Query{Text: "dogs", Sort: store.SortRelevance})
	require.NoError(t, err)
	require.Len(t, posts, 1)

	p := posts[0]
	assert.Equal(t, "noa", p.Author.Username)
	assert.Equal(t, "/uploads/noa.png", p.Author.ProfileImage)
	assert.Equal(t, "/uploads/dogs.jpg", p.Image)
	assert.Equal(t, 5, p.CommentsCount)
	assert.Greater(t, p.Score, 0.0)
	assert.False(t, p.CreatedAt.IsZero())
}

func TestSearchStemsEnglishPlurals(t *testing.T) {
	s := setupTestStore(t)

	posts, err := s.Search(context.Background(), store.Query{Text: "dog", Sort: store.SortNewest})
	require.NoError(t, err)
	assert.Equal(t, []string{"65f100000000000000000003"}, ids(posts))
}

func TestSearchHebrew(t *testing.T) {
	s := setupTestStore(t)

	posts, err := s.Search(context.Background(), store.Query{Text: "כלבים", Sort: store.SortNewest})
	require.NoError(t, err)
	assert.Equal(t, []string{"65f100000000000000000004"}, ids(posts))
}

func TestSearchSortMostLiked(t *testing.T) {
	s := setupTestStore(t)

	posts, err := s.Search(context.Background(), store.Query{Text: "playground road park", Sort: store.SortMostLiked})
	require.NoError(t, err)
	require.Len(t, posts, 3)

	for i := 1; i < len(posts); i++ {
		assert.GreaterOrEqual(t, posts[i-1].LikesCount, posts[i].LikesCount)
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	s := setupTestStore(t)

	posts, err := s.Search(context.Background(), store.Query{Text: "playground road park", Sort: store.SortNewest, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}

func TestSearchIgnoresQuerySyntax(t *testing.T) {
	s := setupTestStore(t)

	posts, err := s.Search(context.Background(), store.Query{Text: `"dogs" OR (NEAR* -`, Sort: store.SortRelevance})
	require.NoError(t, err)
	assert.NotEmpty(t, posts)

	posts, err = s.Search(context.Background(), store.Query{Text: "!!! ???", Sort: store.SortRelevance})
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestSeedIsIdempotent(t *testing.T) {
	s := setupTestStore(t)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Seed(context.Background(), store.DevPosts(now)))

	posts, err := s.Search(context.Background(), store.Query{Text: "dogs", Sort: store.SortNewest})
	require.NoError(t, err)
	assert.Len(t, posts, 1)
}

func TestPingAfterClose(t *testing.T) {
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)

	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(context.Background()), store.ErrUnavailable)
}
