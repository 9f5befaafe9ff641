package elastic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safekids-search/internal/store"
)

func TestBuildSearchQuerySorts(t *testing.T) {
	q := buildSearchQuery("dog כלב", store.SortMostLiked, 20)

	assert.Equal(t, 20, q["size"])
	assert.Equal(t, true, q["track_scores"])

	mm := q["query"].(map[string]any)["multi_match"].(map[string]any)
	assert.Equal(t, "dog כלב", mm["query"])
	assert.Equal(t, "or", mm["operator"])

	sort := q["sort"].([]any)
	require.Len(t, sort, 2)
	assert.Equal(t, map[string]any{"likesCount": "desc"}, sort[0])

	relevance := buildSearchQuery("dog", store.SortRelevance, 5)["sort"].([]any)
	assert.Equal(t, "_score", relevance[0])

	newest := buildSearchQuery("dog", store.SortNewest, 5)["sort"].([]any)
	assert.Equal(t, []any{map[string]any{"createdAt": "desc"}}, newest)
}

// fakeCluster answers like an Elasticsearch node; the client refuses
// responses without the product header.
func fakeCluster(t *testing.T, search http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/" {
			_, _ = w.Write([]byte(`{"version":{"number":"8.12.0"},"tagline":"You Know, for Search"}`))
			return
		}
		search(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSearchParsesHits(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	srv := fakeCluster(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{
			"hits": {"total": {"value": 1}, "hits": [{
				"_id": "65f100000000000000000003",
				"_score": 2.5,
				"_source": {
					"text": "Stray dogs near the park entrance",
					"likesCount": 1,
					"commentsCount": 5,
					"createdAt": "2025-03-01T12:00:00Z",
					"updatedAt": "2025-03-01T12:00:00Z",
					"author": {"id": "65f000000000000000000001", "username": "noa"}
				}
			}]}
		}`))
	})

	s, err := New(Config{Addresses: []string{srv.URL}, Index: "posts"})
	require.NoError(t, err)

	posts, err := s.Search(context.Background(), store.Query{Text: "Stray DOGS!", Sort: store.SortRelevance, Limit: 20})
	require.NoError(t, err)

	assert.Equal(t, "/posts/_search", gotPath)
	mm := gotBody["query"].(map[string]any)["multi_match"].(map[string]any)
	assert.Equal(t, "stray dogs", mm["query"])

	require.Len(t, posts, 1)
	assert.Equal(t, "65f100000000000000000003", posts[0].ID)
	assert.Equal(t, "noa", posts[0].Author.Username)
	assert.Equal(t, 2.5, posts[0].Score)
	assert.Equal(t, 5, posts[0].CommentsCount)
}

func TestSearchClusterErrorIsUnavailable(t *testing.T) {
	srv := fakeCluster(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"type":"cluster_block_exception"},"status":503}`))
	})

	s, err := New(Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	_, err = s.Search(context.Background(), store.Query{Text: "dogs"})
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestPing(t *testing.T) {
	srv := fakeCluster(t, func(w http.ResponseWriter, r *http.Request) {})

	s, err := New(Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	assert.NoError(t, s.Ping(context.Background()))
}
