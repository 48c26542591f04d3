// Package audit writes redaction audit trails as Parquet files for offline
// analysis. One row is written per applied match; original matched text is
// deliberately not part of the schema.
package audit

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/textveil/textveil/internal/engine"
)

// Record is one applied match in the audit trail.
type Record struct {
	DocumentID string  `parquet:"document_id" json:"document_id"`
	RuleID     string  `parquet:"rule_id" json:"rule_id"`
	Category   string  `parquet:"category" json:"category"`
	Start      int64   `parquet:"start" json:"start"`
	End        int64   `parquet:"end" json:"end"`
	Replaced   string  `parquet:"replaced" json:"replaced"`
	DurationMS float64 `parquet:"duration_ms" json:"duration_ms"`
	Timestamp  int64   `parquet:"timestamp" json:"timestamp"`
}

// Writer appends audit records to a Parquet file. Safe for concurrent use
// by batch workers.
type Writer struct {
	file   *os.File
	writer *parquet.GenericWriter[Record]
	logger *zap.Logger
	mu     sync.Mutex
	rows   int64
}

// NewWriter creates (truncating) the audit file.
func NewWriter(path string, logger *zap.Logger) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit file: %w", err)
	}
	return &Writer{
		file:   file,
		writer: parquet.NewGenericWriter[Record](file),
		logger: logger,
	}, nil
}

// Append writes one row per applied match of a result.
func (w *Writer) Append(documentID string, result *engine.Result) error {
	if result == nil || len(result.Matches) == 0 {
		return nil
	}

	now := time.Now().UnixMilli()
	records := make([]Record, 0, len(result.Matches))
	for _, m := range result.Matches {
		records = append(records, Record{
			DocumentID: documentID,
			RuleID:     m.RuleID,
			Category:   m.Category,
			Start:      int64(m.Start),
			End:        int64(m.End),
			Replaced:   m.Replacement,
			DurationMS: result.Stats.DurationMS,
			Timestamp:  now,
		})
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.writer.Write(records)
	if err != nil {
		return fmt.Errorf("failed to write audit rows: %w", err)
	}
	w.rows += int64(n)
	return nil
}

// Rows returns how many rows have been written so far.
func (w *Writer) Rows() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

// Close flushes the Parquet footer and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to finalize audit file: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close audit file: %w", err)
	}
	w.logger.Info("Audit file written",
		zap.String("path", w.file.Name()),
		zap.Int64("rows", w.rows))
	return nil
}
