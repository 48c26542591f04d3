// Package batch redacts many documents concurrently. Each document runs on
// its own worker; workers share only the read-only rule catalog and,
// optionally, one pseudonym registry for cross-document consistency.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/textveil/textveil/internal/audit"
	"github.com/textveil/textveil/internal/engine"
	"github.com/textveil/textveil/internal/rules"
)

// Config contains batch pipeline configuration
type Config struct {
	WorkerCount     int           `yaml:"worker_count" mapstructure:"worker_count"`
	DocumentTimeout time.Duration `yaml:"document_timeout" mapstructure:"document_timeout"`
}

// Document is one unit of work.
type Document struct {
	ID   string
	Text string
}

// Item is the outcome for one document. Exactly one of Result and Err is
// set; a cancelled document may carry a partial Result flagged Incomplete.
type Item struct {
	Document Document
	Result   *engine.Result
	Err      error
}

// Stats aggregates a batch run.
type Stats struct {
	Documents  int           `json:"documents"`
	Succeeded  int64         `json:"succeeded"`
	Failed     int64         `json:"failed"`
	Incomplete int64         `json:"incomplete"`
	Matches    int64         `json:"matches"`
	Duration   time.Duration `json:"duration"`
}

// Pipeline fans documents out over a worker pool.
type Pipeline struct {
	engine  *engine.Engine
	catalog []rules.Rule
	opts    engine.Options
	config  *Config
	logger  *zap.Logger
}

// NewPipeline creates a batch pipeline. opts.Registry, when set, is shared
// by every worker so repeated entities pseudonymize identically across the
// whole batch.
func NewPipeline(eng *engine.Engine, catalog []rules.Rule, opts engine.Options, config *Config, logger *zap.Logger) *Pipeline {
	workers := config.WorkerCount
	if workers < 1 {
		workers = 1
	}
	cfg := *config
	cfg.WorkerCount = workers
	return &Pipeline{
		engine:  eng,
		catalog: catalog,
		opts:    opts,
		config:  &cfg,
		logger:  logger,
	}
}

// Run redacts all documents and returns one item per document, in input
// order. Cancelling ctx stops scheduling new documents; documents already
// in flight finish as partial results. A failed document never aborts the
// batch and nothing is retried automatically.
func (p *Pipeline) Run(ctx context.Context, docs []Document) ([]Item, Stats) {
	start := time.Now()
	items := make([]Item, len(docs))
	jobs := make(chan int)

	var succeeded, failed, incomplete, matches int64

	var wg sync.WaitGroup
	for w := 0; w < p.config.WorkerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				doc := docs[idx]
				result, err := p.redactOne(ctx, doc)
				items[idx] = Item{Document: doc, Result: result, Err: err}
				switch {
				case err != nil:
					atomic.AddInt64(&failed, 1)
					p.logger.Warn("document failed",
						zap.String("document_id", doc.ID), zap.Error(err))
				default:
					atomic.AddInt64(&succeeded, 1)
					atomic.AddInt64(&matches, int64(result.Stats.Total))
					if result.Incomplete {
						atomic.AddInt64(&incomplete, 1)
					}
				}
			}
		}()
	}

dispatch:
	for idx := range docs {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	// Documents never scheduled report the batch cancellation.
	for idx := range items {
		if items[idx].Result == nil && items[idx].Err == nil {
			items[idx] = Item{Document: docs[idx], Err: ctx.Err()}
			atomic.AddInt64(&failed, 1)
		}
	}

	stats := Stats{
		Documents:  len(docs),
		Succeeded:  succeeded,
		Failed:     failed,
		Incomplete: incomplete,
		Matches:    matches,
		Duration:   time.Since(start),
	}

	p.logger.Info("batch completed",
		zap.Int("documents", stats.Documents),
		zap.Int64("succeeded", stats.Succeeded),
		zap.Int64("failed", stats.Failed),
		zap.Int64("incomplete", stats.Incomplete),
		zap.Int64("matches", stats.Matches),
		zap.Duration("duration", stats.Duration),
	)

	return items, stats
}

func (p *Pipeline) redactOne(ctx context.Context, doc Document) (*engine.Result, error) {
	docCtx := ctx
	if p.config.DocumentTimeout > 0 {
		var cancel context.CancelFunc
		docCtx, cancel = context.WithTimeout(ctx, p.config.DocumentTimeout)
		defer cancel()
	}
	return p.engine.Redact(docCtx, doc.Text, p.catalog, p.opts)
}

// ProcessFiles reads each input file, redacts it, writes the redacted copy
// under outputDir with the same base name, and appends audit rows when an
// audit writer is provided.
func (p *Pipeline) ProcessFiles(ctx context.Context, paths []string, outputDir string, auditWriter *audit.Writer) (Stats, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Stats{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	docs := make([]Document, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return Stats{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
		docs = append(docs, Document{ID: filepath.Base(path), Text: string(data)})
	}

	items, stats := p.Run(ctx, docs)

	for _, item := range items {
		if item.Err != nil || item.Result == nil {
			continue
		}
		outPath := filepath.Join(outputDir, item.Document.ID)
		if err := os.WriteFile(outPath, []byte(item.Result.RedactedText), 0o644); err != nil {
			return stats, fmt.Errorf("failed to write %s: %w", outPath, err)
		}
		if auditWriter != nil {
			if err := auditWriter.Append(item.Document.ID, item.Result); err != nil {
				return stats, err
			}
		}
	}

	return stats, nil
}
