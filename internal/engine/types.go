package engine

import (
	"time"
	"unicode/utf8"
)

// RawMatch is one candidate span reported by a matcher before overlap
// resolution. Offsets exist in two coordinate systems: Start/End are
// half-open codepoint offsets into the original text (the public, audit
// coordinates), while ByteStart/ByteEnd address the raw string for the
// single-pass assembly of the output. Matchers only need to fill the byte
// offsets; the engine derives the codepoint offsets itself.
type RawMatch struct {
	RuleID   string
	Category string
	Priority int

	Start int
	End   int

	ByteStart int
	ByteEnd   int

	Text string
}

// overlaps reports whether two candidates cover any common text.
func (m RawMatch) overlaps(other RawMatch) bool {
	return m.ByteStart < other.ByteEnd && other.ByteStart < m.ByteEnd
}

// SelectedMatch is a resolved, non-overlapping match together with its
// computed replacement, as reported in the final result.
type SelectedMatch struct {
	RuleID       string `json:"ruleId"`
	Category     string `json:"category"`
	OriginalText string `json:"originalText"`
	Start        int    `json:"start"`
	End          int    `json:"end"`
	Replacement  string `json:"replacement"`

	byteStart int
	byteEnd   int
}

// RuleErrorKind classifies why a rule was excluded from a call.
type RuleErrorKind string

const (
	// RuleErrorPattern marks a rule whose pattern failed to compile.
	RuleErrorPattern RuleErrorKind = "pattern"
	// RuleErrorTimeout marks a rule whose scan exceeded its budget.
	RuleErrorTimeout RuleErrorKind = "timeout"
	// RuleErrorExternal marks a failed external signal source.
	RuleErrorExternal RuleErrorKind = "external"
)

// RuleError records a recoverable per-rule failure. The rule is excluded
// from the call; the call itself continues.
type RuleError struct {
	RuleID  string        `json:"ruleId"`
	Kind    RuleErrorKind `json:"kind"`
	Message string        `json:"message"`
}

// Statistics aggregates what one redaction call changed and how long it took.
type Statistics struct {
	ByRule     map[string]int `json:"byRule"`
	ByCategory map[string]int `json:"byCategory"`
	Total      int            `json:"total"`
	DurationMS float64        `json:"durationMs"`
}

// Result is the outcome of one redaction call. Everything untouched in the
// original text is preserved byte for byte in RedactedText.
type Result struct {
	RedactedText string          `json:"redactedText"`
	Matches      []SelectedMatch `json:"appliedMatches"`
	Stats        Statistics      `json:"statistics"`
	RuleErrors   []RuleError     `json:"ruleErrors,omitempty"`

	// Incomplete is set when the call was cancelled after some matches had
	// already been resolved; the result then covers only those matches.
	Incomplete bool `json:"incomplete,omitempty"`
}

// runeOffsets maps byte offsets to codepoint offsets for one text. Regex
// matching yields byte offsets; audit output uses codepoint offsets.
type runeOffsets []int

func newRuneOffsets(text string) runeOffsets {
	idx := make(runeOffsets, len(text)+1)
	count := 0
	for i := 0; i < len(text); {
		_, size := utf8.DecodeRuneInString(text[i:])
		// Positions inside multi-byte runes never appear as match
		// boundaries, but fill them anyway so lookups stay total.
		for j := 0; j < size; j++ {
			idx[i+j] = count
		}
		i += size
		count++
	}
	idx[len(text)] = count
	return idx
}

func (r runeOffsets) at(byteOffset int) int {
	return r[byteOffset]
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
