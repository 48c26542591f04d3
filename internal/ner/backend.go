// Package ner plugs model-based entity detection into the redaction engine
// as just another match candidate source. The engine never knows whether a
// candidate came from a pattern or a model; overlap resolution treats both
// uniformly.
package ner

import (
	"context"
)

// Entity is one span found by the model, in byte offsets of the input text.
type Entity struct {
	Label      string
	ByteStart  int
	ByteEnd    int
	Confidence float32
}

// Backend defines a pluggable named-entity recognition backend.
// Implementations may use ONNX Runtime or other engines.
type Backend interface {
	// DetectEntities returns entity spans for the text.
	DetectEntities(ctx context.Context, text string) ([]Entity, error)
	// IsReady returns whether the backend is initialized and ready.
	IsReady() bool
	// Close releases any native resources.
	Close() error
}

// NewBackend creates a backend if supported by the current build.
// The default (no build tags) returns nil to avoid CGO dependencies.
// The ONNX implementation lives in backend_onnx.go behind the 'onnx' tag.
