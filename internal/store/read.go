package store

import (
	"context"
	"fmt"
	"iter"

	"github.com/roach88/endog/internal/journal"
)

// Replay yields every record ordered by seq. Empty bodies are skipped.
func (s *Store) Replay(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		if s.db == nil {
			yield(nil, journal.ErrClosed)
			return
		}

		rows, err := s.db.QueryContext(ctx, `
			SELECT body FROM records ORDER BY seq ASC
		`)
		if err != nil {
			yield(nil, fmt.Errorf("query records: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var body string
			if err := rows.Scan(&body); err != nil {
				yield(nil, fmt.Errorf("scan record: %w", err))
				return
			}
			if body == "" {
				continue
			}
			if !yield([]byte(body), nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("iterate records: %w", err))
		}
	}
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, journal.ErrClosed
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}
