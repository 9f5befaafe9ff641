// Package elastic is a document store backed by Elasticsearch.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"safekids-search/internal/store"
)

// Config for the Elasticsearch store.
// Addresses: list of http(s) endpoints, e.g. ["http://localhost:9200"].
// Index: index name, default "posts".
// Basic auth optional.
type Config struct {
	Addresses []string
	Index     string
	Username  string
	Password  string

	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

type Store struct {
	cli   *elasticsearch.Client
	index string
}

func New(cfg Config) (*Store, error) {
	if len(cfg.Addresses) == 0 {
		cfg.Addresses = []string{"http://localhost:9200"}
	}
	if cfg.Index == "" {
		cfg.Index = "posts"
	}
	esCfg := elasticsearch.Config{Addresses: cfg.Addresses, Transport: cfg.Transport}
	if cfg.Username != "" || cfg.Password != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	cli, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Store{cli: cli, index: cfg.Index}, nil
}

// document is the indexed shape. The author is denormalized into each post.
type document struct {
	Text          string    `json:"text"`
	Image         string    `json:"image,omitempty"`
	LikesCount    int       `json:"likesCount"`
	CommentsCount int       `json:"commentsCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Author        struct {
		ID           string `json:"id"`
		Username     string `json:"username"`
		ProfileImage string `json:"profileImage,omitempty"`
	} `json:"author"`
}

// text is indexed twice: standard (any script) and english (stemmed).
const indexMapping = `{
	"mappings": {"properties": {
		"text": {
			"type": "text",
			"analyzer": "standard",
			"fields": {"en": {"type": "text", "analyzer": "english"}}
		},
		"image":         {"type": "keyword", "index": false},
		"likesCount":    {"type": "integer"},
		"commentsCount": {"type": "integer"},
		"createdAt":     {"type": "date"},
		"updatedAt":     {"type": "date"},
		"author": {"properties": {
			"id":           {"type": "keyword"},
			"username":     {"type": "keyword"},
			"profileImage": {"type": "keyword", "index": false}
		}}
	}}
}`

// EnsureIndex creates the index with its mapping if it doesn't exist.
func (s *Store) EnsureIndex(ctx context.Context) error {
	res, err := s.cli.Indices.Exists([]string{s.index}, s.cli.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: index exists: %w", store.ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	cr := esapi.IndicesCreateRequest{Index: s.index, Body: strings.NewReader(indexMapping)}
	cres, err := cr.Do(ctx, s.cli)
	if err != nil {
		return fmt.Errorf("%w: create index: %w", store.ErrUnavailable, err)
	}
	defer cres.Body.Close()
	if cres.IsError() {
		return fmt.Errorf("create index failed: %s", cres.String())
	}
	return nil
}

func (s *Store) Search(ctx context.Context, q store.Query) ([]store.Post, error) {
	terms := q.Terms()
	if len(terms) == 0 {
		return []store.Post{}, nil
	}

	body, err := json.Marshal(buildSearchQuery(strings.Join(terms, " "), q.Sort, q.EffectiveLimit()))
	if err != nil {
		return nil, fmt.Errorf("marshal search: %w", err)
	}

	sr := esapi.SearchRequest{Index: []string{s.index}, Body: bytes.NewReader(body)}
	res, err := sr.Do(ctx, s.cli)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", store.ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("%w: search failed: %s", store.ErrUnavailable, res.String())
	}

	return parseSearchResponse(res)
}

// buildSearchQuery matches any term against both text analyzers.
// Explicit sorts keep _score populated via track_scores.
func buildSearchQuery(text string, sort store.Sort, limit int) map[string]any {
	var sortSpec []any
	switch sort {
	case store.SortMostLiked:
		sortSpec = []any{
			map[string]any{"likesCount": "desc"},
			map[string]any{"createdAt": "desc"},
		}
	case store.SortRelevance:
		sortSpec = []any{"_score", map[string]any{"createdAt": "desc"}}
	default:
		sortSpec = []any{map[string]any{"createdAt": "desc"}}
	}

	return map[string]any{
		"size":         limit,
		"track_scores": true,
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":    text,
				"fields":   []string{"text", "text.en"},
				"type":     "most_fields",
				"operator": "or",
			},
		},
		"sort": sortSpec,
	}
}

func parseSearchResponse(res *esapi.Response) ([]store.Post, error) {
	var resp struct {
		Hits struct {
			Hits []struct {
				ID     string   `json:"_id"`
				Score  *float64 `json:"_score"`
				Source document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %w", store.ErrUnavailable, err)
	}

	posts := make([]store.Post, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		p := store.Post{
			ID:            h.ID,
			Text:          h.Source.Text,
			Image:         h.Source.Image,
			LikesCount:    h.Source.LikesCount,
			CommentsCount: h.Source.CommentsCount,
			CreatedAt:     h.Source.CreatedAt,
			UpdatedAt:     h.Source.UpdatedAt,
			Author: store.Author{
				ID:           h.Source.Author.ID,
				Username:     h.Source.Author.Username,
				ProfileImage: h.Source.Author.ProfileImage,
			},
		}
		if h.Score != nil {
			p.Score = *h.Score
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// Seed indexes posts, refreshing after the last one so they are searchable.
func (s *Store) Seed(ctx context.Context, posts []store.Post) error {
	if err := s.EnsureIndex(ctx); err != nil {
		return err
	}
	for i, p := range posts {
		var d document
		d.Text = p.Text
		d.Image = p.Image
		d.LikesCount = p.LikesCount
		d.CommentsCount = p.CommentsCount
		d.CreatedAt = p.CreatedAt
		d.UpdatedAt = p.UpdatedAt
		d.Author.ID = p.Author.ID
		d.Author.Username = p.Author.Username
		d.Author.ProfileImage = p.Author.ProfileImage

		payload, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshal post %s: %w", p.ID, err)
		}

		ir := esapi.IndexRequest{Index: s.index, DocumentID: p.ID, Body: bytes.NewReader(payload)}
		if i == len(posts)-1 {
			ir.Refresh = "true"
		}
		res, err := ir.Do(ctx, s.cli)
		if err != nil {
			return fmt.Errorf("index post %s: %w", p.ID, err)
		}
		res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("index post %s failed: %s", p.ID, res.Status())
		}
	}
	return nil
}

// Ping performs a lightweight health check using the Info API.
func (s *Store) Ping(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
	}
	res, err := s.cli.Info(s.cli.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("%w: es info status %d", store.ErrUnavailable, res.StatusCode)
	}
	return nil
}

// Close is a no-op; the client holds no pooled resources beyond its transport.
func (s *Store) Close() error {
	return nil
}
