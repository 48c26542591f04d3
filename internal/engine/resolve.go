package engine

import "sort"

// resolveOverlaps reduces all candidates from all matchers to one
// non-overlapping, deterministically ordered selection.
//
// Candidates are ranked by (length desc, start asc, priority desc, ruleID
// asc) and accepted greedily: a candidate enters the selection only if it
// does not overlap anything already accepted. Longer spans rank first so a
// specific detector (a full SSN) beats a generic one (a bare digit run)
// overlapping the same text; the trailing keys make equal-length conflicts
// deterministic. The accepted set is returned sorted by start.
func resolveOverlaps(candidates []RawMatch) []RawMatch {
	if len(candidates) == 0 {
		return nil
	}

	ranked := make([]RawMatch, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if la, lb := a.End-a.Start, b.End-b.Start; la != lb {
			return la > lb
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.RuleID < b.RuleID
	})

	var selected []RawMatch
	for _, candidate := range ranked {
		conflict := false
		for _, accepted := range selected {
			if candidate.overlaps(accepted) {
				conflict = true
				break
			}
		}
		if !conflict {
			selected = append(selected, candidate)
		}
	}

	sort.Slice(selected, func(i, j int) bool {
		return selected[i].Start < selected[j].Start
	})
	return selected
}
