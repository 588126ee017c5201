package testutil

// FixedIDGenerator generates the same event ID every time.
//
// Scenarios that compare against golden output use it so that stamped IDs
// are stable across runs.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator that always returns id.
// If id is empty, Generate() returns "test-event".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-event"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed ID.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
