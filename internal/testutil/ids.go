package testutil

// FixedIDGenerator generates the same request id every time.
//
// Unlike engine.FixedGenerator which returns ids in sequence, this generator
// never runs out, so a scenario file can resolve any number of questions and
// still produce byte-identical golden output.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator returning id. If id is empty,
// Generate returns "test-request".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-request"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id. Implements engine.RequestIDGenerator.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
