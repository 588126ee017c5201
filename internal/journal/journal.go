// Package journal provides durable, append-only record storage.
//
// A Journal stores opaque single-line records. Replay returns every record
// in append order; Append writes a batch synchronously and returns only once
// the batch is durable. Each Append call is the unit of durability: a crash
// in the middle of a batch is not recovered.
package journal

import (
	"context"
	"errors"
	"iter"
)

var (
	// ErrMultilineRecord is returned when a record contains a newline.
	ErrMultilineRecord = errors.New("journal: record contains a newline")

	// ErrClosed is returned by Append after Close.
	ErrClosed = errors.New("journal: closed")
)

// Journal is an append-only record store.
//
// Implementations: File (line-oriented text file) and store.Store (SQLite).
// A Journal has a single writer; concurrent Append calls are serialized.
type Journal interface {
	// Replay yields every record in append order. Blank records are skipped.
	// On error the sequence yields the error once and stops.
	Replay(ctx context.Context) iter.Seq2[[]byte, error]

	// Append durably writes records in order.
	Append(ctx context.Context, records [][]byte) error

	// Close releases the journal's resources.
	Close() error
}

// Checker is implemented by journals that can tell in advance whether
// Append would accept a record. The engine calls Check when an event is
// admitted, so a record the journal cannot store is refused before it
// reaches a sweep.
type Checker interface {
	Check(record []byte) error
}
