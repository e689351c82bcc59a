package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"eyecare-intake/internal/consultation"
)

const connectAttempts = 10

// PostgresStore ranks passages with full-text search over a generated tsvector column.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects with retries; the database container may still be starting.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for i := 0; i < connectAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return &PostgresStore{db: db}, nil
		}
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	db.Close()
	return nil, fmt.Errorf("ping database: %w", err)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Add(ctx context.Context, content string, metadata map[string]string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}
	meta, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO knowledge_documents (id, content, metadata) VALUES ($1, $2, $3::jsonb)`,
		uuid.New(), content, meta,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// Search matches any query term. Scores are ts_rank normalized into [0,1).
func (s *PostgresStore) Search(ctx context.Context, query string, limit int, threshold float64) ([]consultation.Passage, error) {
	words := terms(query)
	if len(words) == 0 || limit <= 0 {
		return nil, nil
	}
	tsquery := strings.Join(words, " | ")

	rows, err := s.db.QueryContext(ctx, `
		SELECT content, metadata, ts_rank(search, q, 32) AS score
		FROM knowledge_documents, to_tsquery('english', $1) AS q
		WHERE search @@ q AND ts_rank(search, q, 32) >= $2
		ORDER BY score DESC
		LIMIT $3
	`, tsquery, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	var out []consultation.Passage
	for rows.Next() {
		var p consultation.Passage
		var meta []byte
		if err := rows.Scan(&p.Content, &meta, &p.Score); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		p.Metadata = decodeMetadata(meta)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Migrate applies the schema migrations found at source (e.g. "file://migrations").
func Migrate(dsn, source string) error {
	m, err := migrate.New(source, dsn)
	if err != nil {
		return fmt.Errorf("migration init: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up: %w", err)
	}
	return nil
}
