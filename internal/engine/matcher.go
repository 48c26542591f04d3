package engine

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/textveil/textveil/internal/rules"
)

// Matcher produces raw match candidates for one signal source. Rule-based
// matchers are built internally; external detectors (for example an NER
// model) implement the same interface, so overlap resolution treats their
// findings exactly like pattern findings.
type Matcher interface {
	Match(ctx context.Context, text string) ([]RawMatch, error)
}

// ruleMatcher runs one compiled rule against text. A single rule reports
// only non-overlapping occurrences of itself (standard global scan).
type ruleMatcher struct {
	rule rules.Rule
	re   *regexp.Regexp
}

func (m *ruleMatcher) Match(_ context.Context, text string) ([]RawMatch, error) {
	locs := m.re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil, nil
	}
	matches := make([]RawMatch, 0, len(locs))
	for _, loc := range locs {
		matches = append(matches, RawMatch{
			RuleID:    m.rule.ID,
			Category:  m.rule.Category,
			Priority:  m.rule.Priority,
			ByteStart: loc[0],
			ByteEnd:   loc[1],
			Text:      text[loc[0]:loc[1]],
		})
	}
	return matches, nil
}

// patternCache compiles each distinct rule pattern once. Keys include the
// literal/case flags so the same source string never maps to two programs.
type patternCache struct {
	mu       sync.RWMutex
	compiled map[string]*regexp.Regexp
}

func newPatternCache() *patternCache {
	return &patternCache{compiled: make(map[string]*regexp.Regexp)}
}

func (c *patternCache) compile(rule rules.Rule) (*regexp.Regexp, error) {
	expr := rule.Pattern
	if rule.Literal != "" {
		// Literal terms are pre-escaped so metacharacters in user-supplied
		// text never gain pattern meaning. Literal matching defaults to
		// case-insensitive.
		expr = regexp.QuoteMeta(rule.Literal)
		if !rule.CaseSensitive {
			expr = "(?i)" + expr
		}
	}

	c.mu.RLock()
	re, ok := c.compiled[expr]
	c.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compiling rule %s: %w", rule.ID, err)
	}

	c.mu.Lock()
	c.compiled[expr] = re
	c.mu.Unlock()
	return re, nil
}

// scanRule runs one rule's global scan under the per-rule wall-clock budget.
// Go's regexp engine is RE2: evaluation is linear in the input, so a single
// scan always terminates; the budget converts a pathologically slow rule on
// a huge document into a RuleError instead of stalling the whole call.
func (e *Engine) scanRule(ctx context.Context, rule rules.Rule, text string) ([]RawMatch, *RuleError) {
	re, err := e.patterns.compile(rule)
	if err != nil {
		return nil, &RuleError{RuleID: rule.ID, Kind: RuleErrorPattern, Message: err.Error()}
	}

	matcher := &ruleMatcher{rule: rule, re: re}

	start := time.Now()
	matches, _ := matcher.Match(ctx, text)
	if budget := e.ruleBudget; budget > 0 && time.Since(start) > budget {
		return nil, &RuleError{
			RuleID:  rule.ID,
			Kind:    RuleErrorTimeout,
			Message: fmt.Sprintf("scan exceeded budget of %s", budget),
		}
	}
	return matches, nil
}
