package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/textveil/textveil/internal/engine"
	"github.com/textveil/textveil/internal/logger"
	"github.com/textveil/textveil/internal/pseudonym"
	"github.com/textveil/textveil/internal/rules"
)

func newTestPipeline(workers int, opts engine.Options) *Pipeline {
	eng := engine.New(engine.Config{}, logger.NewNop())
	return NewPipeline(eng, rules.DefaultCatalog(), opts, &Config{
		WorkerCount:     workers,
		DocumentTimeout: 5 * time.Second,
	}, zap.NewNop())
}

func TestPipelineRun(t *testing.T) {
	t.Run("ResultsInInputOrder", func(t *testing.T) {
		docs := make([]Document, 20)
		for i := range docs {
			docs[i] = Document{ID: fmt.Sprintf("doc-%d", i), Text: fmt.Sprintf("item %d ssn 123-45-6789", i)}
		}

		pipeline := newTestPipeline(4, engine.Options{})
		items, stats := pipeline.Run(context.Background(), docs)

		require.Len(t, items, len(docs))
		for i, item := range items {
			assert.Equal(t, docs[i].ID, item.Document.ID)
			require.NoError(t, item.Err)
			assert.Contains(t, item.Result.RedactedText, "XXX-XX-XXXX")
		}
		assert.Equal(t, int64(len(docs)), stats.Succeeded)
		assert.Equal(t, int64(0), stats.Failed)
		assert.Equal(t, int64(len(docs)), stats.Matches)
	})

	t.Run("FailedDocumentDoesNotAbortBatch", func(t *testing.T) {
		docs := []Document{
			{ID: "good", Text: "mail bob@example.com"},
			{ID: "empty", Text: ""},
			{ID: "also-good", Text: "ssn 123-45-6789"},
		}

		pipeline := newTestPipeline(2, engine.Options{})
		items, stats := pipeline.Run(context.Background(), docs)

		require.Len(t, items, 3)
		assert.NoError(t, items[0].Err)
		assert.Error(t, items[1].Err)
		assert.NoError(t, items[2].Err)
		assert.Equal(t, int64(2), stats.Succeeded)
		assert.Equal(t, int64(1), stats.Failed)
	})

	t.Run("SharedRegistryAcrossDocuments", func(t *testing.T) {
		docs := []Document{
			{ID: "a", Text: "contact alice@example.com"},
			{ID: "b", Text: "escalate to alice@example.com"},
		}

		registry := pseudonym.NewRegistry()
		// One worker keeps document order deterministic for the assertion.
		pipeline := newTestPipeline(1, engine.Options{Registry: registry})
		items, _ := pipeline.Run(context.Background(), docs)

		require.Len(t, items, 2)
		require.NoError(t, items[0].Err)
		require.NoError(t, items[1].Err)
		require.Len(t, items[0].Result.Matches, 1)
		require.Len(t, items[1].Result.Matches, 1)
		assert.Equal(t,
			items[0].Result.Matches[0].Replacement,
			items[1].Result.Matches[0].Replacement,
			"one entity must pseudonymize identically across the batch")
	})

	t.Run("CancelledContextFailsRemainingDocuments", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		docs := []Document{
			{ID: "a", Text: "ssn 123-45-6789"},
			{ID: "b", Text: "ssn 123-45-6789"},
		}
		pipeline := newTestPipeline(2, engine.Options{})
		items, stats := pipeline.Run(ctx, docs)

		require.Len(t, items, 2)
		for _, item := range items {
			assert.Error(t, item.Err)
		}
		assert.Equal(t, int64(2), stats.Failed)
	})

	t.Run("ZeroWorkersClampedToOne", func(t *testing.T) {
		pipeline := newTestPipeline(0, engine.Options{})
		items, stats := pipeline.Run(context.Background(), []Document{{ID: "x", Text: "plain"}})
		require.Len(t, items, 1)
		assert.Equal(t, int64(1), stats.Succeeded)
	})
}

func TestProcessFiles(t *testing.T) {
	dir := t.TempDir()
	inputDir := filepath.Join(dir, "in")
	outputDir := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(inputDir, 0o755))

	inputs := map[string]string{
		"one.txt": "card 4111-2222-3333-4444",
		"two.txt": "nothing sensitive",
	}
	var paths []string
	for name, text := range inputs {
		path := filepath.Join(inputDir, name)
		require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
		paths = append(paths, path)
	}

	pipeline := newTestPipeline(2, engine.Options{})
	stats, err := pipeline.ProcessFiles(context.Background(), paths, outputDir, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, int64(2), stats.Succeeded)

	redacted, err := os.ReadFile(filepath.Join(outputDir, "one.txt"))
	require.NoError(t, err)
	assert.Equal(t, "card XXXX-XXXX-XXXX-XXXX", string(redacted))

	untouched, err := os.ReadFile(filepath.Join(outputDir, "two.txt"))
	require.NoError(t, err)
	assert.Equal(t, "nothing sensitive", string(untouched))
}
