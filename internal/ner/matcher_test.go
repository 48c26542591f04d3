package ner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/textveil/textveil/internal/rules"
)

// fakeBackend returns canned entities.
type fakeBackend struct {
	entities []Entity
	err      error
	ready    bool
}

func (b *fakeBackend) DetectEntities(context.Context, string) ([]Entity, error) {
	return b.entities, b.err
}
func (b *fakeBackend) IsReady() bool { return b.ready }
func (b *fakeBackend) Close() error  { return nil }

func TestDetectorMatch(t *testing.T) {
	text := "John Doe works at Acme in Berlin"

	t.Run("EntitiesBecomeCandidates", func(t *testing.T) {
		backend := &fakeBackend{ready: true, entities: []Entity{
			{Label: "PER", ByteStart: 0, ByteEnd: 8, Confidence: 0.95},
			{Label: "ORG", ByteStart: 18, ByteEnd: 22, Confidence: 0.90},
		}}
		detector := NewDetector(backend, 0.5, zap.NewNop())

		matches, err := detector.Match(context.Background(), text)
		require.NoError(t, err)
		require.Len(t, matches, 2)

		assert.Equal(t, "ner.per", matches[0].RuleID)
		assert.Equal(t, rules.CategoryPersonal, matches[0].Category)
		assert.Equal(t, "John Doe", matches[0].Text)
		assert.Equal(t, detectorPriority, matches[0].Priority)
		assert.Equal(t, "Acme", matches[1].Text)
	})

	t.Run("LowConfidenceDropped", func(t *testing.T) {
		backend := &fakeBackend{ready: true, entities: []Entity{
			{Label: "PER", ByteStart: 0, ByteEnd: 8, Confidence: 0.3},
		}}
		detector := NewDetector(backend, 0.5, zap.NewNop())

		matches, err := detector.Match(context.Background(), text)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("OutOfBoundsSpansDropped", func(t *testing.T) {
		backend := &fakeBackend{ready: true, entities: []Entity{
			{Label: "PER", ByteStart: -1, ByteEnd: 4, Confidence: 0.9},
			{Label: "PER", ByteStart: 4, ByteEnd: 1000, Confidence: 0.9},
			{Label: "PER", ByteStart: 5, ByteEnd: 5, Confidence: 0.9},
		}}
		detector := NewDetector(backend, 0.5, zap.NewNop())

		matches, err := detector.Match(context.Background(), text)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("CandidatesSortedDeterministically", func(t *testing.T) {
		backend := &fakeBackend{ready: true, entities: []Entity{
			{Label: "LOC", ByteStart: 26, ByteEnd: 32, Confidence: 0.9},
			{Label: "PER", ByteStart: 0, ByteEnd: 8, Confidence: 0.9},
		}}
		detector := NewDetector(backend, 0.5, zap.NewNop())

		matches, err := detector.Match(context.Background(), text)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Less(t, matches[0].ByteStart, matches[1].ByteStart)
	})

	t.Run("UnknownLabelMapsToPersonal", func(t *testing.T) {
		backend := &fakeBackend{ready: true, entities: []Entity{
			{Label: "MISC", ByteStart: 0, ByteEnd: 4, Confidence: 0.9},
		}}
		detector := NewDetector(backend, 0.5, zap.NewNop())

		matches, err := detector.Match(context.Background(), text)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, rules.CategoryPersonal, matches[0].Category)
	})

	t.Run("NotReadyBackendIsSilent", func(t *testing.T) {
		detector := NewDetector(&fakeBackend{ready: false}, 0.5, zap.NewNop())
		matches, err := detector.Match(context.Background(), text)
		require.NoError(t, err)
		assert.Nil(t, matches)
	})

	t.Run("NilBackendIsSilent", func(t *testing.T) {
		detector := NewDetector(nil, 0.5, zap.NewNop())
		matches, err := detector.Match(context.Background(), text)
		require.NoError(t, err)
		assert.Nil(t, matches)
	})

	t.Run("BackendErrorPropagates", func(t *testing.T) {
		wantErr := errors.New("model unavailable")
		detector := NewDetector(&fakeBackend{ready: true, err: wantErr}, 0.5, zap.NewNop())
		_, err := detector.Match(context.Background(), text)
		assert.ErrorIs(t, err, wantErr)
	})
}
