package testutil

import (
	"fmt"
	"sync"
)

// SequentialNumbers generates transaction numbers "<prefix>0001",
// "<prefix>0002", ... without ever running out.
//
// Unlike pos.FixedNumbers, which panics once its list is consumed, this
// generator is suited to scenarios whose number of checkouts is not known
// up front. The same scenario always yields the same numbers.
//
// Thread-safety: Generate is safe for concurrent use.
type SequentialNumbers struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialNumbers creates a generator with the given prefix.
//
// If prefix is empty, "TRX-TEST-" is used.
func NewSequentialNumbers(prefix string) *SequentialNumbers {
	if prefix == "" {
		prefix = "TRX-TEST-"
	}
	return &SequentialNumbers{prefix: prefix}
}

// Generate returns the next number in sequence.
//
// Implements pos.NumberGenerator.
func (g *SequentialNumbers) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s%04d", g.prefix, g.n)
}
