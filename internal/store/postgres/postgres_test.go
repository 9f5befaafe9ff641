package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safekids-search/internal/store"
)

func TestTSQueryQuotesAndORsTerms(t *testing.T) {
	assert.Equal(t, "'broken' | 'swing'", tsQuery(store.Terms("Broken  swing!")))
	assert.Equal(t, "'נדנדה' | 'שבורה'", tsQuery(store.Terms("נדנדה שבורה")))
	assert.Equal(t, "", tsQuery(nil))
}

func TestOrderBy(t *testing.T) {
	assert.Equal(t, "p.created_at DESC", orderBy(store.SortNewest))
	assert.Equal(t, "p.created_at DESC", orderBy(""))
	assert.Contains(t, orderBy(store.SortMostLiked), "likes_count DESC")
	assert.Contains(t, orderBy(store.SortRelevance), "score DESC")
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	connString := os.Getenv("TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("Skipping integration test: TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	require.NoError(t, RunMigrations(connString))

	s, err := New(ctx, connString)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = s.Pool.Exec(ctx, "DELETE FROM posts")
		_, _ = s.Pool.Exec(ctx, "DELETE FROM users")
		_ = s.Close()
	})
	return s
}

func TestSearchIntegration(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Seed(ctx, store.DevPosts(time.Now())))

	posts, err := s.Search(ctx, store.Query{Text: "swing streetlights", Sort: store.SortNewest, Limit: 20})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "65f100000000000000000002", posts[0].ID)
	assert.Equal(t, "dan", posts[0].Author.Username)

	posts, err = s.Search(ctx, store.Query{Text: "כלבים", Sort: store.SortRelevance})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Greater(t, posts[0].Score, 0.0)
}
