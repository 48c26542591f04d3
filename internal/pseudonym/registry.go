// Package pseudonym tracks stable fake replacements for matched entities:
// the same value, seen anywhere in a document (or across a batch when the
// registry is shared), always maps to the same pseudonym.
package pseudonym

import (
	"context"
	"strings"
	"sync"
)

// Registry resolves (entityType, value) pairs to stable pseudonyms. The
// read-check-insert sequence is serialized by implementations, so one
// registry may be shared by concurrent redaction calls.
type Registry interface {
	Pseudonym(ctx context.Context, entityType, value string) (string, error)
}

type entityKey struct {
	entityType string
	normalized string
}

// MemoryRegistry is the default, in-process registry. Its scope is one
// redaction session; discard it when the session ends.
type MemoryRegistry struct {
	mu     sync.Mutex
	values map[entityKey]string
	counts map[string]int
}

// NewRegistry creates an empty in-memory registry.
func NewRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		values: make(map[entityKey]string),
		counts: make(map[string]int),
	}
}

// Pseudonym returns the stored pseudonym for the value, generating and
// storing a new one on first sight. It never fails: when the generator pool
// for the entity type is exhausted it degrades to a numbered placeholder.
func (r *MemoryRegistry) Pseudonym(_ context.Context, entityType, value string) (string, error) {
	key := entityKey{entityType: entityType, normalized: Normalize(value)}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.values[key]; ok {
		return existing, nil
	}

	n := r.counts[entityType]
	r.counts[entityType] = n + 1

	generated := Generate(entityType, n)
	r.values[key] = generated
	return generated, nil
}

// Len returns the number of distinct entities tracked so far.
func (r *MemoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// Normalize folds a matched value into its registry key form: surrounding
// whitespace is dropped and case differences collapse, so "Alice" and
// " alice " are the same entity.
func Normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
