package tally

import (
	"time"

	"github.com/google/uuid"
)

// IDGenerator generates event IDs.
// Implemented by UUIDv7Generator and, in tests, testutil.FixedIDGenerator.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 event IDs.
//
// UUIDv7 embeds a timestamp in the most significant bits, so IDs of events
// stamped by the same process sort by creation time.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Stamp fills in a missing ID and time on ev.
func Stamp(ev Event, ids IDGenerator, now func() time.Time) Event {
	if ev.ID == "" {
		ev.ID = ids.Generate()
	}
	if ev.Time.IsZero() {
		ev.Time = now()
	}
	return ev
}
