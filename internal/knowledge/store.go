// Package knowledge stores reference passages that enrich the clinical summary.
package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"eyecare-intake/internal/consultation"
)

var (
	ErrEmptyContent      = errors.New("content is required")
	ErrUnsupportedDriver = errors.New("unsupported knowledge driver")
)

// Store is a searchable passage collection.
type Store interface {
	consultation.Retriever
	Add(ctx context.Context, content string, metadata map[string]string) error
	Close() error
}

// Open returns the store for driver ("postgres" or "sqlite").
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "postgres":
		s, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

func encodeMetadata(m map[string]string) (string, error) {
	if m == nil {
		m = map[string]string{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

func decodeMetadata(raw []byte) map[string]string {
	out := map[string]string{}
	if len(raw) == 0 {
		return out
	}
	// Metadata written by other tools may carry non-string values; keep what fits.
	var loose map[string]any
	if err := json.Unmarshal(raw, &loose); err != nil {
		return out
	}
	for k, v := range loose {
		switch t := v.(type) {
		case string:
			out[k] = t
		case nil:
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}
