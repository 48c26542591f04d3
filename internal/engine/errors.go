package engine

// InvalidInputError marks call-level input problems: missing text or an
// empty rule set. Unlike per-rule failures it is fatal to the call and no
// partial result is produced.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

func errEmptyText() error {
	return &InvalidInputError{Reason: "text is empty"}
}

func errNoRules() error {
	return &InvalidInputError{Reason: "no rules provided"}
}
