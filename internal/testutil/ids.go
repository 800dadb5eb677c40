package testutil

// FixedIDGenerator returns the same id every time.
//
// Used in place of UUIDv7 run ids so log output and metric labels are
// deterministic. If id is empty, Generate returns "test-run".
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator that always returns id.
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-run"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
