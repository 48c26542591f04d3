package config

import (
	"time"

	"github.com/textveil/textveil/internal/pseudonym"
)

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Redaction RedactionConfig `yaml:"redaction" mapstructure:"redaction"`
	Rules     RulesConfig     `yaml:"rules" mapstructure:"rules"`
	Registry  RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	// RateLimit is the sustained request rate allowed per client IP.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// RedactionConfig contains the engine defaults used by the service when a
// request does not override them.
type RedactionConfig struct {
	Sensitivity string        `yaml:"sensitivity" mapstructure:"sensitivity"`
	Categories  []string      `yaml:"categories" mapstructure:"categories"`
	RuleBudget  time.Duration `yaml:"rule_budget" mapstructure:"rule_budget"`
	// CallTimeout bounds one document's redaction call.
	CallTimeout time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`
	NER         NERConfig     `yaml:"ner" mapstructure:"ner"`
}

// NERConfig configures the optional model-based entity detector.
type NERConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	ModelPath string `yaml:"model_path" mapstructure:"model_path"`
	// MinConfidence drops model findings below this score.
	MinConfidence float32 `yaml:"min_confidence" mapstructure:"min_confidence"`
}

// RulesConfig controls where user-authored rules come from.
type RulesConfig struct {
	// File is an interchange-format JSON file merged over the builtin
	// catalog at startup.
	File string `yaml:"file" mapstructure:"file"`
	// Watch reloads File on change.
	Watch bool `yaml:"watch" mapstructure:"watch"`
}

// RegistryConfig selects the pseudonym registry backing.
type RegistryConfig struct {
	// Shared enables the Redis-backed registry so pseudonyms stay
	// consistent across processes and batch workers.
	Shared bool                  `yaml:"shared" mapstructure:"shared"`
	Redis  pseudonym.RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// StoreConfig contains the optional Postgres persistence settings for
// user-authored rules and the redaction audit log.
type StoreConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// WebSocketConfig contains the dashboard event stream configuration
type WebSocketConfig struct {
	Enabled        bool     `yaml:"enabled" mapstructure:"enabled"`
	Path           string   `yaml:"path" mapstructure:"path"`
	MaxConnections int      `yaml:"max_connections" mapstructure:"max_connections"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// BatchConfig contains the bulk file pipeline configuration
type BatchConfig struct {
	WorkerCount     int           `yaml:"worker_count" mapstructure:"worker_count"`
	DocumentTimeout time.Duration `yaml:"document_timeout" mapstructure:"document_timeout"`
	OutputDir       string        `yaml:"output_dir" mapstructure:"output_dir"`
	AuditFile       string        `yaml:"audit_file" mapstructure:"audit_file"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			RateLimit:    50,
			RateBurst:    100,
		},
		Redaction: RedactionConfig{
			Sensitivity: "high",
			Categories:  nil, // all
			RuleBudget:  250 * time.Millisecond,
			CallTimeout: 10 * time.Second,
			NER: NERConfig{
				Enabled:       false,
				MinConfidence: 0.5,
			},
		},
		Rules: RulesConfig{
			Watch: false,
		},
		Registry: RegistryConfig{
			Shared: false,
			Redis: pseudonym.RedisConfig{
				RedisURL:       "redis://localhost:6379/0",
				KeyPrefix:      "veil",
				DefaultTTL:     24 * time.Hour,
				MaxConnections: 10,
				MinIdleConns:   2,
			},
		},
		Store: StoreConfig{
			Enabled:         false,
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			Path:           "/ws",
			MaxConnections: 100,
			AllowedOrigins: []string{"*"},
		},
		Batch: BatchConfig{
			WorkerCount:     4,
			DocumentTimeout: 30 * time.Second,
			OutputDir:       "redacted",
			AuditFile:       "audit.parquet",
		},
	}
	cfg.Logging.File.Path = "logs/veil.log"
	return cfg
}
