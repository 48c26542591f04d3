package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textveil/textveil/internal/config"
	"github.com/textveil/textveil/internal/engine"
	"github.com/textveil/textveil/internal/logger"
	"github.com/textveil/textveil/internal/rules"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.GetDefaults()
	cfg.Redaction.Sensitivity = "maximum"
	cfg.Server.RateLimit = 0

	srv, err := New(cfg, logger.NewNop())
	require.NoError(t, err)
	return srv
}

func doRequest(srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleRedact(t *testing.T) {
	srv := newTestServer(t)

	t.Run("RedactsDocument", func(t *testing.T) {
		rec := doRequest(srv, http.MethodPost, "/v1/redact", redactRequest{
			Text: "ssn 123-45-6789 card 4111-2222-3333-4444",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var result engine.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, "ssn XXX-XX-XXXX card XXXX-XXXX-XXXX-XXXX", result.RedactedText)
		assert.Equal(t, 2, result.Stats.Total)
		assert.Len(t, result.Matches, 2)
	})

	t.Run("EmptyTextRejected", func(t *testing.T) {
		rec := doRequest(srv, http.MethodPost, "/v1/redact", redactRequest{Text: ""})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("MalformedBodyRejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/redact", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UnknownSensitivityRejected", func(t *testing.T) {
		rec := doRequest(srv, http.MethodPost, "/v1/redact", redactRequest{
			Text: "hello", Sensitivity: "paranoid",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("SensitivityOverride", func(t *testing.T) {
		rec := doRequest(srv, http.MethodPost, "/v1/redact", redactRequest{
			Text: "phone 555-123-4567", Sensitivity: "basic",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var result engine.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Contains(t, result.RedactedText, "555-123-4567",
			"moderate phone rule must be inactive at basic sensitivity")
	})

	t.Run("StyleOverride", func(t *testing.T) {
		rec := doRequest(srv, http.MethodPost, "/v1/redact", redactRequest{
			Text: "ssn 123-45-6789", Style: "mask",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var result engine.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, "ssn ***********", result.RedactedText)
	})

	t.Run("UnknownStyleRejected", func(t *testing.T) {
		rec := doRequest(srv, http.MethodPost, "/v1/redact", redactRequest{
			Text: "hello", Style: "rot13",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("CategoryOverride", func(t *testing.T) {
		rec := doRequest(srv, http.MethodPost, "/v1/redact", redactRequest{
			Text:       "ssn 123-45-6789 mail a@x.com",
			Categories: []string{rules.CategoryFinancial},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var result engine.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Contains(t, result.RedactedText, "XXX-XX-XXXX")
		assert.Contains(t, result.RedactedText, "a@x.com")
	})
}

func TestHandleRules(t *testing.T) {
	t.Run("ExportsCatalog", func(t *testing.T) {
		srv := newTestServer(t)
		rec := doRequest(srv, http.MethodGet, "/v1/rules", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var exported []map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exported))
		assert.Len(t, exported, len(rules.DefaultCatalog()))
	})

	t.Run("ImportMergesAndReports", func(t *testing.T) {
		srv := newTestServer(t)
		body := `[
			{"id":"custom.codename","name":"Codename","category":"personal",
			 "sensitivity":"basic","literal":"Blue Falcon","replacementType":"fixed",
			 "replacement":"[PROJECT]","priority":99,"enabled":true},
			{"id":"custom.broken","name":"Broken","category":"personal",
			 "sensitivity":"nope","literal":"x","replacementType":"fixed",
			 "replacement":"[X]","priority":1,"enabled":true}
		]`
		req := httptest.NewRequest(http.MethodPost, "/v1/rules/import", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var report rules.ImportReport
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Equal(t, 1, report.Accepted)
		assert.Equal(t, 1, report.Skipped)

		// The imported rule is active immediately.
		redact := doRequest(srv, http.MethodPost, "/v1/redact", redactRequest{
			Text: "status of Blue Falcon?",
		})
		require.Equal(t, http.StatusOK, redact.Code)
		var result engine.Result
		require.NoError(t, json.Unmarshal(redact.Body.Bytes(), &result))
		assert.Equal(t, "status of [PROJECT]?", result.RedactedText)
	})

	t.Run("ImportRejectsNonArray", func(t *testing.T) {
		srv := newTestServer(t)
		req := httptest.NewRequest(http.MethodPost, "/v1/rules/import", bytes.NewBufferString(`{}`))
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("DeleteRemovesRule", func(t *testing.T) {
		srv := newTestServer(t)
		rec := doRequest(srv, http.MethodDelete, "/v1/rules/financial.ssn", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		redact := doRequest(srv, http.MethodPost, "/v1/redact", redactRequest{
			Text: "ssn 123-45-6789",
		})
		require.Equal(t, http.StatusOK, redact.Code)
		var result engine.Result
		require.NoError(t, json.Unmarshal(redact.Body.Bytes(), &result))
		assert.NotContains(t, result.RedactedText, "XXX-XX-XXXX")
	})

	t.Run("DeleteUnknownRuleIs404", func(t *testing.T) {
		srv := newTestServer(t)
		rec := doRequest(srv, http.MethodDelete, "/v1/rules/no.such.rule", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHealthAndInfo(t *testing.T) {
	srv := newTestServer(t)

	t.Run("Health", func(t *testing.T) {
		rec := doRequest(srv, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	})

	t.Run("Info", func(t *testing.T) {
		rec := doRequest(srv, http.MethodGet, "/info", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var info infoResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
		assert.Equal(t, "textveil", info.Name)
		assert.Equal(t, len(rules.DefaultCatalog()), info.ActiveRules)
		assert.False(t, info.StoreEnabled)
	})
}

func TestRateLimit(t *testing.T) {
	cfg := config.GetDefaults()
	cfg.Server.RateLimit = 1
	cfg.Server.RateBurst = 2

	srv, err := New(cfg, logger.NewNop())
	require.NoError(t, err)

	limited := 0
	for i := 0; i < 5; i++ {
		rec := doRequest(srv, http.MethodGet, "/v1/rules", nil)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 3, limited, "burst of 2 allows two requests, the rest are limited")
}

func TestMergeRules(t *testing.T) {
	base := []rules.Rule{
		{ID: "a", Priority: 1},
		{ID: "b", Priority: 2},
	}
	incoming := []rules.Rule{
		{ID: "b", Priority: 99},
		{ID: "c", Priority: 3},
	}

	merged := mergeRules(base, incoming)
	require.Len(t, merged, 3)
	assert.Equal(t, "a", merged[0].ID)
	assert.Equal(t, 99, merged[1].Priority, "incoming replaces by ID")
	assert.Equal(t, "c", merged[2].ID)

	assert.Equal(t, 1, base[0].Priority, "base slice unchanged")
}
