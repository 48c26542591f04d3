package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/textveil/textveil/internal/logger"
	"github.com/textveil/textveil/internal/pseudonym"
	"github.com/textveil/textveil/internal/rules"
	"go.uber.org/zap"
)

// Config contains engine tuning knobs.
type Config struct {
	// RuleBudget caps the wall-clock time one rule may spend scanning a
	// document before its matches are discarded. Zero disables the budget.
	RuleBudget time.Duration `yaml:"rule_budget" mapstructure:"rule_budget"`
}

// Engine finds sensitive spans in plain text, resolves overlapping matches
// deterministically, and rewrites the selected spans per their rules'
// strategies. An Engine is safe for concurrent use: a call mutates nothing
// except the registry the caller optionally shares.
type Engine struct {
	logger     *logger.Logger
	patterns   *patternCache
	ruleBudget time.Duration
}

// Options selects what one redaction call applies.
type Options struct {
	// Sensitivity gates which rules are active. The zero value behaves as
	// SensitivityMaximum (everything enabled).
	Sensitivity rules.SensitivityLevel

	// Categories restricts active rules to these category tags; empty
	// means all categories.
	Categories []string

	// Style forces one replacement style onto every match of this call,
	// overriding each rule's own strategy. The zero value keeps the
	// per-rule strategies. Parameters the rule does not carry for the
	// forced style are derived from the match: fixed labels become
	// "[REDACTED:<category>]", masks use '*', pseudonyms use the match's
	// category as the entity type.
	Style rules.StrategyType

	// Registry is the pseudonym session. Nil creates a fresh registry
	// scoped to this single call; pass one registry across a batch of
	// documents for cross-document pseudonym consistency.
	Registry pseudonym.Registry

	// Extra are additional signal sources (for example an NER detector)
	// whose candidates join the rule candidates before overlap resolution.
	Extra []Matcher
}

// New creates an engine instance.
func New(cfg Config, log *logger.Logger) *Engine {
	return &Engine{
		logger:     log,
		patterns:   newPatternCache(),
		ruleBudget: cfg.RuleBudget,
	}
}

// Redact applies the active subset of catalog to text and returns the
// rewritten text together with a full account of what changed.
//
// Per-rule failures (uncompilable pattern, budget overrun) are reported in
// Result.RuleErrors and never abort the call. Cancellation mid-scan returns
// a partial result flagged Incomplete when any candidates were already
// collected, otherwise the context error. Identical inputs and registry
// state produce byte-identical results.
func (e *Engine) Redact(ctx context.Context, text string, catalog []rules.Rule, opts Options) (*Result, error) {
	start := time.Now()

	if text == "" {
		return nil, errEmptyText()
	}
	if len(catalog) == 0 {
		return nil, errNoRules()
	}

	sensitivity := opts.Sensitivity
	if !sensitivity.Valid() {
		sensitivity = rules.SensitivityMaximum
	}
	active := rules.ActiveRules(catalog, sensitivity, opts.Categories)

	strategies := make(map[string]rules.Strategy, len(active))
	for _, rule := range active {
		strategies[rule.ID] = rule.Strategy
	}

	var (
		candidates []RawMatch
		ruleErrors []RuleError
		cancelled  bool
	)

	for _, rule := range active {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		matches, ruleErr := e.scanRule(ctx, rule, text)
		if ruleErr != nil {
			ruleErrors = append(ruleErrors, *ruleErr)
			e.logger.Warn("rule excluded from call",
				zap.String("rule_id", ruleErr.RuleID),
				zap.String("kind", string(ruleErr.Kind)),
				zap.String("reason", ruleErr.Message),
			)
			continue
		}
		candidates = append(candidates, matches...)
	}

	for _, matcher := range opts.Extra {
		if cancelled || ctx.Err() != nil {
			cancelled = true
			break
		}
		matches, err := matcher.Match(ctx, text)
		if err != nil {
			ruleErrors = append(ruleErrors, RuleError{
				RuleID:  "external",
				Kind:    RuleErrorExternal,
				Message: err.Error(),
			})
			continue
		}
		// External sources are not trusted with the text's coordinate
		// space; a candidate outside it is dropped, not applied.
		dropped := 0
		for _, m := range matches {
			if m.ByteStart < 0 || m.ByteEnd > len(text) || m.ByteStart >= m.ByteEnd {
				dropped++
				continue
			}
			candidates = append(candidates, m)
		}
		if dropped > 0 {
			ruleErrors = append(ruleErrors, RuleError{
				RuleID:  "external",
				Kind:    RuleErrorExternal,
				Message: fmt.Sprintf("dropped %d candidate(s) with offsets outside the text", dropped),
			})
		}
	}

	if cancelled && len(candidates) == 0 {
		return nil, ctx.Err()
	}

	offsets := newRuneOffsets(text)
	for i := range candidates {
		candidates[i].Start = offsets.at(candidates[i].ByteStart)
		candidates[i].End = offsets.at(candidates[i].ByteEnd)
	}

	resolved := resolveOverlaps(candidates)

	registry := opts.Registry
	if registry == nil {
		registry = pseudonym.NewRegistry()
	}

	selected := make([]SelectedMatch, 0, len(resolved))
	for _, m := range resolved {
		strategy, ok := strategies[m.RuleID]
		if !ok {
			// Candidates from external matchers carry no rule; fall back
			// to a fixed label derived from their category.
			strategy = rules.Fixed("[REDACTED:" + m.Category + "]")
		}
		if opts.Style != "" {
			strategy = forceStyle(strategy, opts.Style, m.Category)
		}
		selected = append(selected, SelectedMatch{
			RuleID:       m.RuleID,
			Category:     m.Category,
			OriginalText: m.Text,
			Start:        m.Start,
			End:          m.End,
			Replacement:  e.renderReplacement(ctx, strategy, m.Text, registry),
			byteStart:    m.ByteStart,
			byteEnd:      m.ByteEnd,
		})
	}

	result := &Result{
		RedactedText: assemble(text, selected),
		Matches:      selected,
		Stats:        buildStatistics(selected, start),
		RuleErrors:   ruleErrors,
		Incomplete:   cancelled,
	}

	e.logger.Debug("redaction completed",
		zap.Int("active_rules", len(active)),
		zap.Int("candidates", len(candidates)),
		zap.Int("applied", len(selected)),
		zap.Int("rule_errors", len(ruleErrors)),
		zap.Bool("incomplete", cancelled),
		zap.Float64("duration_ms", result.Stats.DurationMS),
	)

	return result, nil
}
