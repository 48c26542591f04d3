package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/textveil/textveil/internal/engine"
	"github.com/textveil/textveil/internal/logger"
	"github.com/textveil/textveil/internal/rules"
	"github.com/textveil/textveil/internal/store"
	"github.com/textveil/textveil/internal/websocket"
)

// maxDocumentBytes caps the request body of a redact call.
const maxDocumentBytes = 10 << 20

// redactRequest is the body of POST /v1/redact. Sensitivity, categories and
// style override the configured defaults when present; style forces one
// replacement style onto every match of the call.
type redactRequest struct {
	Text        string   `json:"text"`
	DocumentID  string   `json:"documentId,omitempty"`
	Sensitivity string   `json:"sensitivity,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Style       string   `json:"style,omitempty"`
}

// handleRedact redacts one document synchronously.
func (s *Server) handleRedact(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&s.totalRequests, 1)
	requestID := getRequestID(r.Context())

	var req redactRequest
	body := http.MaxBytesReader(w, r.Body, maxDocumentBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed request body: %v", err))
		return
	}

	opts := engine.Options{
		Categories: s.config.Redaction.Categories,
		Registry:   s.registry,
	}
	if level, err := rules.ParseSensitivity(s.config.Redaction.Sensitivity); err == nil {
		opts.Sensitivity = level
	}
	if req.Sensitivity != "" {
		level, err := rules.ParseSensitivity(req.Sensitivity)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Sensitivity = level
	}
	if len(req.Categories) > 0 {
		opts.Categories = req.Categories
	}
	if req.Style != "" {
		style, err := rules.ParseStrategyType(req.Style)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts.Style = style
	}
	if s.detector != nil {
		opts.Extra = []engine.Matcher{s.detector}
	}

	ctx := r.Context()
	if s.config.Redaction.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Redaction.CallTimeout)
		defer cancel()
	}

	result, err := s.engine.Redact(ctx, req.Text, s.Catalog(), opts)
	if err != nil {
		var invalid *engine.InvalidInputError
		if errors.As(err, &invalid) {
			writeError(w, http.StatusBadRequest, invalid.Error())
			return
		}
		s.logger.WithRequestID(requestID).Error("Redaction failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "redaction did not complete")
		return
	}

	atomic.AddInt64(&s.totalRedactions, int64(result.Stats.Total))
	s.publishResult(requestID, req.DocumentID, result)

	s.logger.WithRequestID(requestID).Debug("Redaction completed",
		zap.Int("matches", result.Stats.Total),
		zap.String("output_preview", logger.Preview(result.RedactedText, 80)))

	writeJSON(w, http.StatusOK, result)
}

// publishResult fans a finished call out to the dashboard and the audit log.
// Neither destination ever receives document text.
func (s *Server) publishResult(requestID, documentID string, result *engine.Result) {
	event := websocket.Event{
		Type:      websocket.EventTypeRedaction,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: websocket.RedactionEvent{
			RequestID:    requestID,
			Total:        result.Stats.Total,
			ByCategory:   result.Stats.ByCategory,
			RuleErrors:   len(result.RuleErrors),
			Incomplete:   result.Incomplete,
			ProcessingMS: result.Stats.DurationMS,
		},
	}
	s.wsHub.BroadcastEvent(event)

	if len(result.RuleErrors) > 0 {
		s.wsHub.BroadcastEvent(websocket.Event{
			Type:      websocket.EventTypeRuleError,
			Timestamp: time.Now(),
			RequestID: requestID,
			Data: websocket.RuleErrorEvent{
				RequestID: requestID,
				Errors:    result.RuleErrors,
			},
		})
	}

	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.store.RecordAudit(ctx, store.AuditEvent{
		DocumentID: documentID,
		Total:      result.Stats.Total,
		ByCategory: result.Stats.ByCategory,
		DurationMS: result.Stats.DurationMS,
		RuleErrors: len(result.RuleErrors),
		Incomplete: result.Incomplete,
	})
	if err != nil {
		s.logger.Warn("Failed to record audit event", zap.Error(err))
	}
}

// handleListRules exports the current catalog in the interchange format.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	data, err := rules.Export(s.Catalog())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to export rules")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleImportRules merges interchange-format rules into the catalog.
// Malformed entries are skipped and reported; valid ones always land.
func (s *Server) handleImportRules(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	report, err := rules.Import(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	s.catalog = mergeRules(s.catalog, report.Imported)
	s.mu.Unlock()

	if s.store != nil {
		for _, rule := range report.Imported {
			if err := s.store.UpsertRule(r.Context(), rule); err != nil {
				s.logger.Warn("Failed to persist imported rule",
					zap.String("rule_id", rule.ID), zap.Error(err))
			}
		}
	}

	s.logger.Info("Rules imported",
		zap.Int("accepted", report.Accepted),
		zap.Int("skipped", report.Skipped))

	writeJSON(w, http.StatusOK, report)
}

// handleDeleteRule removes one rule from the catalog (and the store).
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id := muxVar(r, "id")

	s.mu.Lock()
	found := false
	kept := s.catalog[:0]
	for _, rule := range s.catalog {
		if rule.ID == id {
			found = true
			continue
		}
		kept = append(kept, rule)
	}
	s.catalog = kept
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.DeleteRule(r.Context(), id); err != nil && !errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusInternalServerError, "failed to delete stored rule")
			return
		}
	}

	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown rule %q", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// infoResponse describes the running service.
type infoResponse struct {
	Name             string `json:"name"`
	Version          string `json:"version"`
	ActiveRules      int    `json:"active_rules"`
	SharedRegistry   bool   `json:"shared_registry"`
	StoreEnabled     bool   `json:"store_enabled"`
	ModelDetector    bool   `json:"model_detector"`
	ConnectedClients int    `json:"connected_clients"`
	Uptime           string `json:"uptime"`
	TotalRequests    int64  `json:"total_requests"`
	TotalRedactions  int64  `json:"total_redactions"`
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, infoResponse{
		Name:             "textveil",
		Version:          Version,
		ActiveRules:      len(s.Catalog()),
		SharedRegistry:   s.config.Registry.Shared,
		StoreEnabled:     s.store != nil,
		ModelDetector:    s.detector != nil,
		ConnectedClients: s.wsHub.ClientCount(),
		Uptime:           time.Since(s.startTime).Round(time.Second).String(),
		TotalRequests:    atomic.LoadInt64(&s.totalRequests),
		TotalRedactions:  atomic.LoadInt64(&s.totalRedactions),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
