package testutil

import (
	"fmt"
	"sync"
)

// SequentialOIDGenerator hands out predictable oids: prefix-000001,
// prefix-000002, and so on.
//
// Row entities get their oids from a generator; tests swap the UUIDv7
// generator for this one so golden files stay byte-identical.
//
// Thread-safety: safe for concurrent use.
type SequentialOIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialOIDGenerator creates a generator. An empty prefix defaults
// to "test:row".
func NewSequentialOIDGenerator(prefix string) *SequentialOIDGenerator {
	if prefix == "" {
		prefix = "test:row"
	}
	return &SequentialOIDGenerator{prefix: prefix}
}

// Generate returns the next oid.
func (g *SequentialOIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%06d", g.prefix, g.n)
}
