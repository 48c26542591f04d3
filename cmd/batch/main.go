package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"go.uber.org/zap"

	"github.com/textveil/textveil/internal/audit"
	"github.com/textveil/textveil/internal/batch"
	"github.com/textveil/textveil/internal/config"
	"github.com/textveil/textveil/internal/engine"
	"github.com/textveil/textveil/internal/logger"
	"github.com/textveil/textveil/internal/pseudonym"
	"github.com/textveil/textveil/internal/rules"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Configuration file path")
		inputGlob   = flag.String("input", "", "Glob of input text files to redact")
		outputDir   = flag.String("output", "", "Output directory (default from config)")
		auditFile   = flag.String("audit", "", "Parquet audit file path (default from config)")
		workers     = flag.Int("workers", 0, "Worker goroutines (default from config)")
		sensitivity = flag.String("sensitivity", "", "Sensitivity level override")
	)
	flag.Parse()

	if *inputGlob == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s --input 'docs/*.txt' [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input 'intake/*.txt' --output redacted\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input 'intake/*.txt' --workers 8 --sensitivity maximum\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *outputDir == "" {
		*outputDir = cfg.Batch.OutputDir
	}
	if *auditFile == "" {
		*auditFile = cfg.Batch.AuditFile
	}
	if *workers <= 0 {
		*workers = cfg.Batch.WorkerCount
	}
	if *sensitivity == "" {
		*sensitivity = cfg.Redaction.Sensitivity
	}

	level, err := rules.ParseSensitivity(*sensitivity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid sensitivity: %v\n", err)
		os.Exit(1)
	}

	paths, err := filepath.Glob(*inputGlob)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bad input glob: %v\n", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "No files match %s\n", *inputGlob)
		os.Exit(1)
	}
	sort.Strings(paths)

	log.Info("Starting textveil batch run",
		zap.String("input", *inputGlob),
		zap.Int("files", len(paths)),
		zap.String("output_dir", *outputDir),
		zap.Int("workers", *workers))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling batch...")
		cancel()
	}()

	registry, cleanup, err := buildRegistry(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize pseudonym registry", zap.Error(err))
	}
	defer cleanup()

	auditWriter, err := audit.NewWriter(*auditFile, log.WithComponent("audit").Logger)
	if err != nil {
		log.Fatal("Failed to create audit writer", zap.Error(err))
	}

	eng := engine.New(engine.Config{RuleBudget: cfg.Redaction.RuleBudget}, log.WithComponent("engine"))
	pipeline := batch.NewPipeline(eng, rules.DefaultCatalog(), engine.Options{
		Sensitivity: level,
		Categories:  cfg.Redaction.Categories,
		Registry:    registry,
	}, &batch.Config{
		WorkerCount:     *workers,
		DocumentTimeout: cfg.Batch.DocumentTimeout,
	}, log.WithComponent("batch").Logger)

	stats, err := pipeline.ProcessFiles(ctx, paths, *outputDir, auditWriter)
	if closeErr := auditWriter.Close(); closeErr != nil {
		log.Error("Failed to finalize audit file", zap.Error(closeErr))
	}
	if err != nil {
		log.Fatal("Batch processing failed", zap.Error(err))
	}

	log.Info("Batch run completed",
		zap.Int("documents", stats.Documents),
		zap.Int64("succeeded", stats.Succeeded),
		zap.Int64("failed", stats.Failed),
		zap.Int64("incomplete", stats.Incomplete),
		zap.Int64("matches", stats.Matches),
		zap.Duration("duration", stats.Duration),
		zap.Float64("docs_per_second", float64(stats.Documents)/stats.Duration.Seconds()))

	if stats.Failed > 0 {
		os.Exit(1)
	}
}

// buildRegistry picks the shared Redis registry when configured, falling
// back to an in-process one otherwise. Either way every worker shares it,
// so repeated entities pseudonymize identically across the batch.
func buildRegistry(cfg *config.Config, log *logger.Logger) (pseudonym.Registry, func(), error) {
	if !cfg.Registry.Shared {
		return pseudonym.NewRegistry(), func() {}, nil
	}
	registry, err := pseudonym.NewRedisRegistry(&cfg.Registry.Redis, log.WithComponent("registry").Logger)
	if err != nil {
		return nil, nil, err
	}
	return registry, func() { registry.Close() }, nil
}
