package rules

import (
	"encoding/json"
	"fmt"
)

// wireRule is the stable interchange schema for rule import/export. The
// replacement field is overloaded the way the schema defines it: it carries
// the fixed label for "fixed" rules and the entity type for "pseudonym"
// rules; "mask" rules use replacementChar instead.
type wireRule struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Category        string `json:"category"`
	Sensitivity     string `json:"sensitivity"`
	Pattern         string `json:"pattern,omitempty"`
	Literal         string `json:"literal,omitempty"`
	CaseSensitive   bool   `json:"caseSensitive,omitempty"`
	ReplacementType string `json:"replacementType"`
	Replacement     string `json:"replacement,omitempty"`
	ReplacementChar string `json:"replacementChar,omitempty"`
	Priority        int    `json:"priority"`
	Enabled         bool   `json:"enabled"`
}

// ImportReport describes the outcome of a catalog import. Malformed entries
// are skipped and reported, never fatal to the import as a whole.
type ImportReport struct {
	Imported []Rule   `json:"-"`
	Accepted int      `json:"accepted"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Import parses an interchange-format JSON document into rules, validating
// each entry independently.
func Import(data []byte) (*ImportReport, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("rule import is not a JSON array: %w", err)
	}

	report := &ImportReport{}
	for i, raw := range entries {
		rule, err := decodeWireRule(raw)
		if err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("entry %d: %v", i, err))
			continue
		}
		report.Imported = append(report.Imported, rule)
		report.Accepted++
	}
	return report, nil
}

// Export serializes a catalog into the interchange format.
func Export(catalog []Rule) ([]byte, error) {
	wire := make([]wireRule, 0, len(catalog))
	for _, rule := range catalog {
		w := wireRule{
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
		switch rule.Strategy.Type {
		case StrategyFixed:
			w.ReplacementType = string(StrategyFixed)
			w.Replacement = rule.Strategy.Text
		case StrategyCharacterMask:
			w.ReplacementType = string(StrategyCharacterMask)
			w.ReplacementChar = string(rule.Strategy.MaskChar)
		case StrategyFormatPreserving:
			w.ReplacementType = string(StrategyFormatPreserving)
		case StrategyPseudonym:
			w.ReplacementType = string(StrategyPseudonym)
			w.Replacement = rule.Strategy.EntityType
		}
		wire = append(wire, w)
	}
	return json.MarshalIndent(wire, "", "  ")
}

func decodeWireRule(raw json.RawMessage) (Rule, error) {
	var w wireRule
	if err := json.Unmarshal(raw, &w); err != nil {
		return Rule{}, fmt.Errorf("malformed entry: %w", err)
	}

	sensitivity, err := ParseSensitivity(w.Sensitivity)
	if err != nil {
		return Rule{}, err
	}

	rule := Rule{
		ID:            w.ID,
		Name:          w.Name,
		Category:      w.Category,
		Sensitivity:   sensitivity,
		Pattern:       w.Pattern,
		Literal:       w.Literal,
		CaseSensitive: w.CaseSensitive,
		Priority:      w.Priority,
		Enabled:       w.Enabled,
	}

	switch StrategyType(w.ReplacementType) {
	case StrategyFixed:
		rule.Strategy = Fixed(w.Replacement)
	case StrategyCharacterMask:
		chars := []rune(w.ReplacementChar)
		if len(chars) != 1 {
			return Rule{}, fmt.Errorf("rule %s: replacementChar must be exactly one character", w.ID)
		}
		rule.Strategy = CharacterMask(chars[0])
	case StrategyFormatPreserving:
		rule.Strategy = FormatPreserving()
	case StrategyPseudonym:
		rule.Strategy = Pseudonym(w.Replacement)
	default:
		return Rule{}, fmt.Errorf("rule %s: unknown replacementType %q", w.ID, w.ReplacementType)
	}

	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}
