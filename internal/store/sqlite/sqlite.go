// Package sqlite is an embedded document store backed by SQLite FTS5.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"safekids-search/internal/store"
)

// DriverName is the database/sql name registered by modernc.org/sqlite.
const DriverName = "sqlite"

// Store implements store.Searcher on a single SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dsn and applies the schema.
// ":memory:" gives a private in-process database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// single writer; also keeps one shared connection for :memory:
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return nil
}

// Search runs a BM25-ranked FTS5 match where any term may match.
func (s *Store) Search(ctx context.Context, q store.Query) ([]store.Post, error) {
	match := matchExpression(q.Terms())
	if match == "" {
		return []store.Post{}, nil
	}

	// bm25() is lower-is-better; negate so Score is higher-is-better
	sqlQuery := `
		SELECT
			p.id, p.text, p.image, p.likes_count, p.comments_count, p.created_at, p.updated_at,
			u.id, u.username, u.profile_image,
			-bm25(posts_fts) AS score
		FROM posts_fts
		INNER JOIN posts p ON p.rowid = posts_fts.rowid
		LEFT JOIN users u ON u.id = p.author_id
		WHERE posts_fts MATCH ?
		ORDER BY ` + orderBy(q.Sort) + `
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, sqlQuery, match, q.EffectiveLimit())
	if err != nil {
		return nil, fmt.Errorf("%w: fts search: %w", store.ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	posts := make([]store.Post, 0, q.EffectiveLimit())
	for rows.Next() {
		var (
			p                             store.Post
			image                         sql.NullString
			authorID, username, avatarURL sql.NullString
			createdAt, updatedAt          int64
		)
		if err := rows.Scan(
			&p.ID, &p.Text, &image, &p.LikesCount, &p.CommentsCount, &createdAt, &updatedAt,
			&authorID, &username, &avatarURL,
			&p.Score,
		); err != nil {
			return nil, fmt.Errorf("%w: scan post: %w", store.ErrUnavailable, err)
		}
		p.Image = image.String
		p.CreatedAt = time.UnixMilli(createdAt).UTC()
		p.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		p.Author = store.Author{ID: authorID.String, Username: username.String, ProfileImage: avatarURL.String}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate posts: %w", store.ErrUnavailable, err)
	}

	return posts, nil
}

// Seed upserts posts and their authors in one transaction.
func (s *Store) Seed(ctx context.Context, posts []store.Post) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range posts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, username, profile_image) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET username = excluded.username, profile_image = excluded.profile_image`,
			p.Author.ID, p.Author.Username, nullString(p.Author.ProfileImage),
		); err != nil {
			return fmt.Errorf("seed user %s: %w", p.Author.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO posts (id, author_id, text, image, likes_count, comments_count, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				author_id = excluded.author_id,
				text = excluded.text,
				image = excluded.image,
				likes_count = excluded.likes_count,
				comments_count = excluded.comments_count,
				updated_at = excluded.updated_at`,
			p.ID, p.Author.ID, p.Text, nullString(p.Image), p.LikesCount, p.CommentsCount,
			p.CreatedAt.UnixMilli(), p.UpdatedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("seed post %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// matchExpression quotes every term and ORs them together.
func matchExpression(terms []string) string {
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
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

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
