// Package store persists user-authored rules and the redaction audit log in
// PostgreSQL. The engine itself never touches storage; the service loads the
// catalog here and records what each call changed.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/textveil/textveil/internal/rules"
)

// Store handles rule and audit persistence.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Config contains database configuration
type Config struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// New creates a new store instance and ensures the schema exists.
func New(config *Config, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	store := &Store{db: db, logger: logger}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	logger.Info("Rule store initialized",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns))

	return store, nil
}

func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS redaction_rules (
		id               TEXT PRIMARY KEY,
		name             TEXT NOT NULL,
		category         TEXT NOT NULL,
		sensitivity      TEXT NOT NULL,
		pattern          TEXT NOT NULL DEFAULT '',
		literal          TEXT NOT NULL DEFAULT '',
		case_sensitive   BOOLEAN NOT NULL DEFAULT FALSE,
		replacement_type TEXT NOT NULL,
		replacement      TEXT NOT NULL DEFAULT '',
		replacement_char TEXT NOT NULL DEFAULT '',
		priority         INTEGER NOT NULL DEFAULT 0,
		enabled          BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE TABLE IF NOT EXISTS audit_events (
		id           BIGSERIAL PRIMARY KEY,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		document_id  TEXT NOT NULL,
		total        INTEGER NOT NULL,
		by_category  JSONB NOT NULL,
		duration_ms  DOUBLE PRECISION NOT NULL,
		rule_errors  INTEGER NOT NULL DEFAULT 0,
		incomplete   BOOLEAN NOT NULL DEFAULT FALSE
	);
	CREATE INDEX IF NOT EXISTS idx_audit_events_created_at ON audit_events (created_at DESC);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// dbRule mirrors the redaction_rules columns.
type dbRule struct {
	ID              string `db:"id"`
	Name            string `db:"name"`
	Category        string `db:"category"`
	Sensitivity     string `db:"sensitivity"`
	Pattern         string `db:"pattern"`
	Literal         string `db:"literal"`
	CaseSensitive   bool   `db:"case_sensitive"`
	ReplacementType string `db:"replacement_type"`
	Replacement     string `db:"replacement"`
	ReplacementChar string `db:"replacement_char"`
	Priority        int    `db:"priority"`
	Enabled         bool   `db:"enabled"`
}

func toDBRule(rule rules.Rule) dbRule {
	row := dbRule{
		ID:            rule.ID,
		Name:          rule.Name,
		Category:      rule.Category,
		Sensitivity:   rule.Sensitivity.String(),
		Pattern:       rule.Pattern,
		Literal:       rule.Literal,
		CaseSensitive: rule.CaseSensitive,
		Priority:      rule.Priority,
		Enabled:       rule.Enabled,
	}
	row.ReplacementType = string(rule.Strategy.Type)
	switch rule.Strategy.Type {
	case rules.StrategyFixed:
		row.Replacement = rule.Strategy.Text
	case rules.StrategyCharacterMask:
		row.ReplacementChar = string(rule.Strategy.MaskChar)
	case rules.StrategyPseudonym:
		row.Replacement = rule.Strategy.EntityType
	}
	return row
}

func (row dbRule) toRule() (rules.Rule, error) {
	sensitivity, err := rules.ParseSensitivity(row.Sensitivity)
	if err != nil {
		return rules.Rule{}, err
	}
	rule := rules.Rule{
		ID:            row.ID,
		Name:          row.Name,
		Category:      row.Category,
		Sensitivity:   sensitivity,
		Pattern:       row.Pattern,
		Literal:       row.Literal,
		CaseSensitive: row.CaseSensitive,
		Priority:      row.Priority,
		Enabled:       row.Enabled,
	}
	switch rules.StrategyType(row.ReplacementType) {
	case rules.StrategyFixed:
		rule.Strategy = rules.Fixed(row.Replacement)
	case rules.StrategyCharacterMask:
		chars := []rune(row.ReplacementChar)
		if len(chars) != 1 {
			return rules.Rule{}, fmt.Errorf("rule %s: stored replacement_char is not one character", row.ID)
		}
		rule.Strategy = rules.CharacterMask(chars[0])
	case rules.StrategyFormatPreserving:
		rule.Strategy = rules.FormatPreserving()
	case rules.StrategyPseudonym:
		rule.Strategy = rules.Pseudonym(row.Replacement)
	default:
		return rules.Rule{}, fmt.Errorf("rule %s: unknown stored replacement_type %q", row.ID, row.ReplacementType)
	}
	return rule, rule.Validate()
}

// LoadRules returns all persisted rules. Rows that no longer validate are
// skipped and logged rather than failing the load.
func (s *Store) LoadRules(ctx context.Context) ([]rules.Rule, error) {
	var rows []dbRule
	query := `SELECT id, name, category, sensitivity, pattern, literal, case_sensitive,
		replacement_type, replacement, replacement_char, priority, enabled
		FROM redaction_rules ORDER BY id`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	catalog := make([]rules.Rule, 0, len(rows))
	for _, row := range rows {
		rule, err := row.toRule()
		if err != nil {
			s.logger.Warn("Skipping invalid stored rule",
				zap.String("rule_id", row.ID), zap.Error(err))
			continue
		}
		catalog = append(catalog, rule)
	}
	return catalog, nil
}

// UpsertRule inserts or replaces one rule.
func (s *Store) UpsertRule(ctx context.Context, rule rules.Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	row := toDBRule(rule)
	query := `INSERT INTO redaction_rules
		(id, name, category, sensitivity, pattern, literal, case_sensitive,
		 replacement_type, replacement, replacement_char, priority, enabled, updated_at)
		VALUES (:id, :name, :category, :sensitivity, :pattern, :literal, :case_sensitive,
		 :replacement_type, :replacement, :replacement_char, :priority, :enabled, now())
		ON CONFLICT (id) DO UPDATE SET
		 name = EXCLUDED.name, category = EXCLUDED.category,
		 sensitivity = EXCLUDED.sensitivity, pattern = EXCLUDED.pattern,
		 literal = EXCLUDED.literal, case_sensitive = EXCLUDED.case_sensitive,
		 replacement_type = EXCLUDED.replacement_type, replacement = EXCLUDED.replacement,
		 replacement_char = EXCLUDED.replacement_char, priority = EXCLUDED.priority,
		 enabled = EXCLUDED.enabled, updated_at = now()`
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to upsert rule %s: %w", rule.ID, err)
	}
	return nil
}

// DeleteRule removes one rule by ID.
func (s *Store) DeleteRule(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM redaction_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule %s: %w", id, err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AuditEvent summarizes one redaction call for the audit log. DocumentID is
// a caller-supplied identifier or content hash, never document text.
type AuditEvent struct {
	DocumentID string         `json:"documentId"`
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"byCategory"`
	DurationMS float64        `json:"durationMs"`
	RuleErrors int            `json:"ruleErrors"`
	Incomplete bool           `json:"incomplete"`
}

// RecordAudit appends one audit event.
func (s *Store) RecordAudit(ctx context.Context, event AuditEvent) error {
	byCategory, err := json.Marshal(event.ByCategory)
	if err != nil {
		return fmt.Errorf("failed to marshal audit categories: %w", err)
	}
	query := `INSERT INTO audit_events
		(document_id, total, by_category, duration_ms, rule_errors, incomplete)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.db.ExecContext(ctx, query,
		event.DocumentID, event.Total, byCategory,
		event.DurationMS, event.RuleErrors, event.Incomplete); err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// maskDatabaseURL masks credentials in a connection URL for logging.
func maskDatabaseURL(url string) string {
	if at := strings.Index(url, "@"); at > 0 {
		if scheme := strings.Index(url, "://"); scheme > 0 && scheme+3 < at {
			return url[:scheme+3] + "***:***" + url[at:]
		}
	}
	return url
}
