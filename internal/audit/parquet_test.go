package audit

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/segmentio/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/textveil/textveil/internal/engine"
)

func sampleResult() *engine.Result {
	return &engine.Result{
		RedactedText: "ssn XXX-XX-XXXX mail jordan.avery@example.com",
		Matches: []engine.SelectedMatch{
			{RuleID: "financial.ssn", Category: "financial", Start: 4, End: 15, Replacement: "XXX-XX-XXXX"},
			{RuleID: "personal.email", Category: "personal", Start: 21, End: 36, Replacement: "jordan.avery@example.com"},
		},
		Stats: engine.Statistics{Total: 2, DurationMS: 1.25},
	}
}

func TestWriter(t *testing.T) {
	t.Run("AppendAndReadBack", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "audit.parquet")
		writer, err := NewWriter(path, zap.NewNop())
		require.NoError(t, err)

		require.NoError(t, writer.Append("doc-1", sampleResult()))
		require.NoError(t, writer.Append("doc-2", sampleResult()))
		assert.Equal(t, int64(4), writer.Rows())
		require.NoError(t, writer.Close())

		file, err := os.Open(path)
		require.NoError(t, err)
		defer file.Close()
		info, err := file.Stat()
		require.NoError(t, err)

		rows, err := parquet.Read[Record](file, info.Size())
		require.NoError(t, err)
		require.Len(t, rows, 4)

		assert.Equal(t, "doc-1", rows[0].DocumentID)
		assert.Equal(t, "financial.ssn", rows[0].RuleID)
		assert.Equal(t, int64(4), rows[0].Start)
		assert.Equal(t, int64(15), rows[0].End)
		assert.Equal(t, "XXX-XX-XXXX", rows[0].Replaced)
		assert.Equal(t, "doc-2", rows[2].DocumentID)
	})

	t.Run("EmptyResultsWriteNothing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "audit.parquet")
		writer, err := NewWriter(path, zap.NewNop())
		require.NoError(t, err)

		require.NoError(t, writer.Append("doc", nil))
		require.NoError(t, writer.Append("doc", &engine.Result{RedactedText: "clean"}))
		assert.Equal(t, int64(0), writer.Rows())
		require.NoError(t, writer.Close())
	})

	t.Run("ConcurrentAppends", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "audit.parquet")
		writer, err := NewWriter(path, zap.NewNop())
		require.NoError(t, err)

		const workers = 8
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, writer.Append("doc", sampleResult()))
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(workers*2), writer.Rows())
		require.NoError(t, writer.Close())
	})
}
