// Package postgres is a document store backed by PostgreSQL full-text search.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"safekids-search/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a pgxpool connection pool.
type Store struct {
	Pool *pgxpool.Pool
}

// New creates a new connection pool and checks connectivity.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{Pool: pool}, nil
}

// RunMigrations runs all embedded SQL migrations.
func RunMigrations(connString string) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, connString)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.Pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return nil
}

// Search matches any term against the generated tsvector column.
func (s *Store) Search(ctx context.Context, q store.Query) ([]store.Post, error) {
	tsq := tsQuery(q.Terms())
	if tsq == "" {
		return []store.Post{}, nil
	}

	sql := `
		SELECT
			p.id, p.text, COALESCE(p.image, ''), p.likes_count, p.comments_count, p.created_at, p.updated_at,
			COALESCE(u.id, ''), COALESCE(u.username, ''), COALESCE(u.profile_image, ''),
			ts_rank(p.search, q)::float8 AS score
		FROM posts p
		CROSS JOIN to_tsquery('simple', $1) AS q
		LEFT JOIN users u ON u.id = p.author_id
		WHERE p.search @@ q
		ORDER BY ` + orderBy(q.Sort) + `
		LIMIT $2`

	rows, err := s.Pool.Query(ctx, sql, tsq, q.EffectiveLimit())
	if err != nil {
		return nil, fmt.Errorf("%w: text search: %w", store.ErrUnavailable, err)
	}
	defer rows.Close()

	posts := make([]store.Post, 0, q.EffectiveLimit())
	for rows.Next() {
		var p store.Post
		if err := rows.Scan(
			&p.ID, &p.Text, &p.Image, &p.LikesCount, &p.CommentsCount, &p.CreatedAt, &p.UpdatedAt,
			&p.Author.ID, &p.Author.Username, &p.Author.ProfileImage,
			&p.Score,
		); err != nil {
			return nil, fmt.Errorf("%w: scan post: %w", store.ErrUnavailable, err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate posts: %w", store.ErrUnavailable, err)
	}

	return posts, nil
}

// Seed upserts posts and their authors. Existing rows are overwritten.
func (s *Store) Seed(ctx context.Context, posts []store.Post) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, p := range posts {
		if _, err := tx.Exec(ctx, `
			INSERT INTO users (id, username, profile_image) VALUES ($1, $2, NULLIF($3, ''))
			ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, profile_image = EXCLUDED.profile_image`,
			p.Author.ID, p.Author.Username, p.Author.ProfileImage,
		); err != nil {
			return fmt.Errorf("failed to seed user %s: %w", p.Author.ID, err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO posts (id, author_id, text, image, likes_count, comments_count, created_at, updated_at)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				author_id = EXCLUDED.author_id,
				text = EXCLUDED.text,
				image = EXCLUDED.image,
				likes_count = EXCLUDED.likes_count,
				comments_count = EXCLUDED.comments_count,
				updated_at = EXCLUDED.updated_at`,
			p.ID, p.Author.ID, p.Text, p.Image, p.LikesCount, p.CommentsCount, p.CreatedAt, p.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to seed post %s: %w", p.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// tsQuery quotes each term as a lexeme and ORs them.
func tsQuery(terms []string) string {
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = "'" + strings.ReplaceAll(t, "'", "''") + "'"
	}
	return strings.Join(quoted, " | ")
}

func orderBy(sort store.Sort) string {
	switch sort {
	case store.SortMostLiked:
		return "p.likes_count DESC, p.created_at DESC"
	case store.SortRelevance:
		return "score DESC, p.created_at DESC"
	default:
		return "p.created_at DESC"
	}
}
