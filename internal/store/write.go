package store

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/roach88/endog/internal/journal"
)

// Append inserts records in order inside a single transaction.
//
// Records must be single-line, like those of the file journal, so that a
// database can be exported line by line.
func (s *Store) Append(ctx context.Context, records [][]byte) error {
	if len(records) == 0 {
		return nil
	}
	if s.db == nil {
		return journal.ErrClosed
	}

	for i, rec := range records {
		if bytes.IndexByte(rec, '\n') >= 0 {
			return fmt.Errorf("append record %d: %w", i, journal.ErrMultilineRecord)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (body, appended_at) VALUES (?, ?)
	`)
	if err != nil {
		return fmt.Errorf("append: prepare: %w", err)
	}
	defer stmt.Close()

	appendedAt := time.Now().UTC().Format(time.RFC3339Nano)
	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx, string(rec), appendedAt); err != nil {
			return fmt.Errorf("append record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append: commit: %w", err)
	}
	return nil
}
