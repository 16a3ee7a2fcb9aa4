package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDGenerator generates UUID-shaped error ids in sequence.
//
// This enables golden snapshot comparison of error documents, which
// otherwise carry random UUIDv7 ids.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialIDGenerator struct {
	mu  sync.Mutex
	seq int
}

// NewSequentialIDGenerator creates a generator whose first id ends in 1.
func NewSequentialIDGenerator() *SequentialIDGenerator {
	return &SequentialIDGenerator{}
}

// Generate returns the next id, e.g. "00000000-0000-7000-8000-000000000001".
//
// Implements constraint.IDGenerator.
func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("00000000-0000-7000-8000-%012d", g.seq)
}
