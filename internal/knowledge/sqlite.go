package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"eyecare-intake/internal/consultation"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS knowledge_documents (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	metadata TEXT NOT NULL DEFAULT '{}',
	createdAt REAL NOT NULL
)`

// SQLiteStore is the single-file store for local runs. Ranking is done in
// process by term overlap.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) the database at path.
// ":memory:" gives a private in-memory store.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Each connection to :memory: would otherwise see its own empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Add(ctx context.Context, content string, metadata map[string]string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyContent
	}
	meta, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO knowledge_documents (id, content, metadata, createdAt) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), content, meta, float64(time.Now().UnixNano())/1e9,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// Search scores every passage by the overlap coefficient of its terms with the
// query terms and returns the best ones at or above threshold.
func (s *SQLiteStore) Search(ctx context.Context, query string, limit int, threshold float64) ([]consultation.Passage, error) {
	words := terms(query)
	if len(words) == 0 || limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT content, metadata
		FROM knowledge_documents
		ORDER BY createdAt ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []consultation.Passage
	for rows.Next() {
		var content, meta string
		if err := rows.Scan(&content, &meta); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		score := overlap(words, terms(content))
		if score <= 0 || score < threshold {
			continue
		}
		out = append(out, consultation.Passage{
			Content:  content,
			Score:    score,
			Metadata: decodeMetadata([]byte(meta)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
