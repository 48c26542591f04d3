package engine

import (
	"context"
	"strings"
	"unicode"

	"github.com/textveil/textveil/internal/pseudonym"
	"github.com/textveil/textveil/internal/rules"
)

// renderReplacement computes the replacement text for one selected match
// according to its rule's strategy.
func (e *Engine) renderReplacement(ctx context.Context, strategy rules.Strategy, matchText string, registry pseudonym.Registry) string {
	switch strategy.Type {
	case rules.StrategyFixed:
		return strategy.Text

	case rules.StrategyCharacterMask:
		count := len([]rune(matchText))
		return strings.Repeat(string(strategy.MaskChar), count)

	case rules.StrategyFormatPreserving:
		return formatPreservingMask(matchText)

	case rules.StrategyPseudonym:
		value, err := registry.Pseudonym(ctx, strategy.EntityType, matchText)
		if err != nil {
			// Registries degrade internally; this is a final safety net so
			// pseudonymization never aborts a call.
			e.logger.Warn("pseudonym lookup failed, using generic label")
			return "[" + strings.ToUpper(strategy.EntityType) + "]"
		}
		return value

	default:
		return strategy.Text
	}
}

// forceStyle rewrites a strategy to the caller-selected style. A strategy
// already of that style is kept as is, parameters included; otherwise the
// parameters the style needs are derived from the match's category.
func forceStyle(base rules.Strategy, style rules.StrategyType, category string) rules.Strategy {
	if base.Type == style {
		return base
	}
	switch style {
	case rules.StrategyFixed:
		return rules.Fixed("[REDACTED:" + category + "]")
	case rules.StrategyCharacterMask:
		return rules.CharacterMask('*')
	case rules.StrategyFormatPreserving:
		return rules.FormatPreserving()
	case rules.StrategyPseudonym:
		entityType := base.EntityType
		if entityType == "" {
			entityType = category
		}
		return rules.Pseudonym(entityType)
	default:
		return base
	}
}

// formatPreservingMask masks letters and digits per character while keeping
// the shape of the value: digits and uppercase letters become X, lowercase
// letters become x, everything else (dashes, dots, spaces) passes through.
func formatPreservingMask(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune('X')
		case unicode.IsLower(r):
			b.WriteRune('x')
		case unicode.IsUpper(r):
			b.WriteRune('X')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// assemble builds the output in a single left-to-right pass over the
// original text: unmatched spans are copied verbatim and each selected
// match's replacement is written in its place. No pattern ever runs against
// intermediate output, so replacements can never drift or be re-redacted.
func assemble(text string, matches []SelectedMatch) string {
	var b strings.Builder
	b.Grow(len(text))
	cursor := 0
	for _, m := range matches {
		b.WriteString(text[cursor:m.byteStart])
		b.WriteString(m.Replacement)
		cursor = m.byteEnd
	}
	b.WriteString(text[cursor:])
	return b.String()
}
