package rules

import (
	"fmt"
	"strings"
)

// SensitivityLevel orders how aggressive detection should be. A rule is only
// active when its level is at or below the level selected for the call.
type SensitivityLevel int

const (
	SensitivityBasic SensitivityLevel = iota + 1
	SensitivityModerate
	SensitivityHigh
	SensitivityMaximum
)

var sensitivityNames = map[SensitivityLevel]string{
	SensitivityBasic:    "basic",
	SensitivityModerate: "moderate",
	SensitivityHigh:     "high",
	SensitivityMaximum:  "maximum",
}

// String returns the lowercase name used in configuration and on the wire.
func (s SensitivityLevel) String() string {
	if name, ok := sensitivityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("sensitivity(%d)", int(s))
}

// Valid reports whether the level is one of the defined values.
func (s SensitivityLevel) Valid() bool {
	_, ok := sensitivityNames[s]
	return ok
}

// ParseSensitivity converts a configuration string into a SensitivityLevel.
func ParseSensitivity(name string) (SensitivityLevel, error) {
	for level, n := range sensitivityNames {
		if n == strings.ToLower(strings.TrimSpace(name)) {
			return level, nil
		}
	}
	return 0, fmt.Errorf("unknown sensitivity level: %q", name)
}

// StrategyType identifies how a matched span is rewritten.
type StrategyType string

const (
	// StrategyFixed replaces the match with a fixed label.
	StrategyFixed StrategyType = "fixed"
	// StrategyCharacterMask repeats a mask character over the match.
	StrategyCharacterMask StrategyType = "mask"
	// StrategyFormatPreserving masks letters and digits but keeps separators.
	StrategyFormatPreserving StrategyType = "format"
	// StrategyPseudonym substitutes a stable fake value per entity.
	StrategyPseudonym StrategyType = "pseudonym"
)

// ParseStrategyType converts a wire or configuration string into a
// StrategyType.
func ParseStrategyType(name string) (StrategyType, error) {
	switch t := StrategyType(strings.ToLower(strings.TrimSpace(name))); t {
	case StrategyFixed, StrategyCharacterMask, StrategyFormatPreserving, StrategyPseudonym:
		return t, nil
	}
	return "", fmt.Errorf("unknown replacement style: %q", name)
}

// Strategy describes the replacement behavior of one rule.
type Strategy struct {
	Type StrategyType `json:"type"`
	// Text is the label used by StrategyFixed.
	Text string `json:"text,omitempty"`
	// MaskChar is the character repeated by StrategyCharacterMask.
	MaskChar rune `json:"maskChar,omitempty"`
	// EntityType selects the pseudonym pool for StrategyPseudonym.
	EntityType string `json:"entityType,omitempty"`
}

// Fixed builds a fixed-label strategy.
func Fixed(text string) Strategy {
	return Strategy{Type: StrategyFixed, Text: text}
}

// CharacterMask builds a character-mask strategy.
func CharacterMask(char rune) Strategy {
	return Strategy{Type: StrategyCharacterMask, MaskChar: char}
}

// FormatPreserving builds a format-preserving mask strategy.
func FormatPreserving() Strategy {
	return Strategy{Type: StrategyFormatPreserving}
}

// Pseudonym builds a pseudonymization strategy for the given entity type.
func Pseudonym(entityType string) Strategy {
	return Strategy{Type: StrategyPseudonym, EntityType: entityType}
}

// Rule is an immutable description of one detector: what to look for, how
// sensitive it is, and how matched spans are rewritten. Editing a rule means
// constructing a new one with a new ID; existing values are never mutated.
type Rule struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Category    string           `json:"category"`
	Sensitivity SensitivityLevel `json:"sensitivity"`

	// Pattern and Literal are mutually exclusive. Pattern is RE2 syntax;
	// Literal is matched as an exact substring with no metacharacter
	// interpretation, so user-supplied terms are always safe.
	Pattern string `json:"pattern,omitempty"`
	Literal string `json:"literal,omitempty"`

	// CaseSensitive applies to literal rules only; the default is
	// case-insensitive matching.
	CaseSensitive bool `json:"caseSensitive,omitempty"`

	Strategy Strategy `json:"strategy"`

	// Priority breaks ties between equal-length overlapping matches from
	// different rules; higher wins.
	Priority int  `json:"priority"`
	Enabled  bool `json:"enabled"`
}

// Validate checks the structural invariants of a rule.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("rule ID is required")
	}
	if r.Pattern == "" && r.Literal == "" {
		return fmt.Errorf("rule %s: either pattern or literal is required", r.ID)
	}
	if r.Pattern != "" && r.Literal != "" {
		return fmt.Errorf("rule %s: pattern and literal are mutually exclusive", r.ID)
	}
	if !r.Sensitivity.Valid() {
		return fmt.Errorf("rule %s: invalid sensitivity %d", r.ID, int(r.Sensitivity))
	}
	switch r.Strategy.Type {
	case StrategyFixed:
		if r.Strategy.Text == "" {
			return fmt.Errorf("rule %s: fixed strategy requires replacement text", r.ID)
		}
	case StrategyCharacterMask:
		if r.Strategy.MaskChar == 0 {
			return fmt.Errorf("rule %s: mask strategy requires a mask character", r.ID)
		}
	case StrategyFormatPreserving:
	case StrategyPseudonym:
		if r.Strategy.EntityType == "" {
			return fmt.Errorf("rule %s: pseudonym strategy requires an entity type", r.ID)
		}
	default:
		return fmt.Errorf("rule %s: unknown strategy type %q", r.ID, r.Strategy.Type)
	}
	return nil
}
