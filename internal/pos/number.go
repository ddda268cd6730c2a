package pos

import (
	"sync"

	"github.com/google/uuid"
)

// NumberPrefix is prepended to generated transaction numbers.
const NumberPrefix = "TRX-"

// NumberGenerator produces transaction numbers (idempotency keys).
type NumberGenerator interface {
	Generate() string
}

// UUIDv7Numbers generates time-sortable, collision-resistant numbers.
//
// UUIDv7 embeds a millisecond timestamp followed by random bits, so
// numbers from different devices do not collide and sort by creation time.
//
// Thread-safety: UUIDv7Numbers is stateless and safe for concurrent use.
type UUIDv7Numbers struct{}

// Generate returns "TRX-" followed by a hyphenated UUIDv7.
func (UUIDv7Numbers) Generate() string {
	return NumberPrefix + uuid.Must(uuid.NewV7()).String()
}

// FixedNumbers returns predetermined numbers in order. Used by tests and
// scenario runs for deterministic output.
type FixedNumbers struct {
	mu      sync.Mutex
	numbers []string
	idx     int
}

// NewFixedNumbers creates a generator that returns numbers in order.
func NewFixedNumbers(numbers ...string) *FixedNumbers {
	return &FixedNumbers{numbers: numbers}
}

// Generate returns the next predetermined number.
//
// Panics if all numbers have been consumed.
func (g *FixedNumbers) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.numbers) {
		panic("FixedNumbers: all numbers exhausted")
	}
	n := g.numbers[g.idx]
	g.idx++
	return n
}
