// Package server exposes the redaction engine over HTTP: a synchronous
// redact endpoint, rule catalog management, and a live dashboard fed over
// WebSocket. Documents are redacted in-request and never persisted.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/textveil/textveil/internal/config"
	"github.com/textveil/textveil/internal/engine"
	"github.com/textveil/textveil/internal/logger"
	"github.com/textveil/textveil/internal/ner"
	"github.com/textveil/textveil/internal/pseudonym"
	"github.com/textveil/textveil/internal/rules"
	"github.com/textveil/textveil/internal/store"
	"github.com/textveil/textveil/internal/web"
	"github.com/textveil/textveil/internal/websocket"
)

// Server represents the redaction service
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	engine   *engine.Engine
	registry pseudonym.Registry
	detector *ner.Detector
	store    *store.Store
	router   *mux.Router
	server   *http.Server
	wsHub    *websocket.Hub

	mu      sync.RWMutex
	catalog []rules.Rule

	startTime       time.Time
	totalRequests   int64
	totalRedactions int64
}

// New creates a new service instance: engine, pseudonym registry, optional
// rule store, optional model detector, and the dashboard hub.
func New(cfg *config.Config, log *logger.Logger) (*Server, error) {
	eng := engine.New(engine.Config{RuleBudget: cfg.Redaction.RuleBudget}, log.WithComponent("engine"))

	registry, err := buildRegistry(cfg, log)
	if err != nil {
		return nil, err
	}

	wsHub := websocket.NewHub(&websocket.Config{
		MaxConnections: cfg.WebSocket.MaxConnections,
		AllowedOrigins: cfg.WebSocket.AllowedOrigins,
	}, log.WithComponent("websocket").Logger)

	s := &Server{
		config:    cfg,
		logger:    log.WithComponent("server"),
		engine:    eng,
		registry:  registry,
		router:    mux.NewRouter(),
		wsHub:     wsHub,
		catalog:   rules.DefaultCatalog(),
		startTime: time.Now(),
	}

	if cfg.Store.Enabled {
		ruleStore, err := store.New(&store.Config{
			DatabaseURL:     cfg.Store.DatabaseURL,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
		}, log.WithComponent("store").Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open rule store: %w", err)
		}
		s.store = ruleStore
	}

	if err := s.loadRules(context.Background()); err != nil {
		return nil, err
	}

	if cfg.Redaction.NER.Enabled {
		backend := ner.NewBackend(log.WithComponent("ner").Logger, cfg.Redaction.NER.ModelPath)
		if backend != nil {
			s.detector = ner.NewDetector(backend, cfg.Redaction.NER.MinConfidence, log.WithComponent("ner").Logger)
		} else {
			log.Warn("Model detector requested but no backend is available")
		}
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

func buildRegistry(cfg *config.Config, log *logger.Logger) (pseudonym.Registry, error) {
	if !cfg.Registry.Shared {
		return pseudonym.NewRegistry(), nil
	}
	registry, err := pseudonym.NewRedisRegistry(&cfg.Registry.Redis, log.WithComponent("registry").Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect shared registry: %w", err)
	}
	return registry, nil
}

// loadRules layers persisted and file rules over the builtin catalog.
// Later sources win on rule ID.
func (s *Server) loadRules(ctx context.Context) error {
	catalog := rules.DefaultCatalog()

	if s.store != nil {
		stored, err := s.store.LoadRules(ctx)
		if err != nil {
			return err
		}
		catalog = mergeRules(catalog, stored)
	}

	if s.config.Rules.File != "" {
		data, err := os.ReadFile(s.config.Rules.File)
		if err != nil {
			return fmt.Errorf("failed to read rules file: %w", err)
		}
		report, err := rules.Import(data)
		if err != nil {
			return err
		}
		for _, msg := range report.Errors {
			s.logger.Warn("Skipping rule from file", zap.String("reason", msg))
		}
		catalog = mergeRules(catalog, report.Imported)
	}

	s.mu.Lock()
	s.catalog = catalog
	s.mu.Unlock()

	s.logger.Info("Rule catalog loaded", zap.Int("rules", len(catalog)))
	return nil
}

// mergeRules overlays incoming rules onto base, replacing by ID.
func mergeRules(base, incoming []rules.Rule) []rules.Rule {
	byID := make(map[string]int, len(base))
	for i, rule := range base {
		byID[rule.ID] = i
	}
	merged := append([]rules.Rule(nil), base...)
	for _, rule := range incoming {
		if i, ok := byID[rule.ID]; ok {
			merged[i] = rule
			continue
		}
		byID[rule.ID] = len(merged)
		merged = append(merged, rule)
	}
	return merged
}

// Catalog returns a copy of the current rule catalog.
func (s *Server) Catalog() []rules.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]rules.Rule(nil), s.catalog...)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	// Dashboard and its event stream
	s.router.HandleFunc("/", web.ServeDashboard).Methods("GET")
	s.router.HandleFunc("/dashboard", web.ServeDashboard).Methods("GET")
	if s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.handleWebSocket).Methods("GET")
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/redact", s.handleRedact).Methods("POST")
	api.HandleFunc("/rules", s.handleListRules).Methods("GET")
	api.HandleFunc("/rules/import", s.handleImportRules).Methods("POST")
	api.HandleFunc("/rules/{id}", s.handleDeleteRule).Methods("DELETE")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting textveil server",
		zap.Int("port", s.config.Server.Port),
		zap.Int("rules", len(s.Catalog())),
		zap.Bool("shared_registry", s.config.Registry.Shared),
		zap.Bool("store_enabled", s.store != nil),
	)

	go s.wsHub.Run()

	if s.config.Rules.Watch && s.config.Rules.File != "" {
		if err := s.watchRules(); err != nil {
			s.logger.Warn("Rules file watching disabled", zap.Error(err))
		}
	}

	return s.server.ListenAndServe()
}

// watchRules reloads the full catalog whenever the rules file changes. A
// reload that fails leaves the current catalog in place.
func (s *Server) watchRules() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.config.Rules.File); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := s.loadRules(context.Background()); err != nil {
					s.logger.Warn("Rules reload failed, keeping current catalog",
						zap.String("file", s.config.Rules.File), zap.Error(err))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("Rules file watcher error", zap.Error(err))
			}
		}
	}()

	s.logger.Info("Watching rules file", zap.String("file", s.config.Rules.File))
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping textveil server")
	if s.store != nil {
		defer s.store.Close()
	}
	return s.server.Shutdown(ctx)
}

// handleWebSocket handles WebSocket connections for the dashboard
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}

// Hub returns the WebSocket hub for broadcasting events.
func (s *Server) Hub() *websocket.Hub {
	return s.wsHub
}
