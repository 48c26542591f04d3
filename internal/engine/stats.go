package engine

import "time"

// buildStatistics aggregates the final selection into per-rule and
// per-category counts. Pure; the only inputs are the applied matches and
// the call's start time.
func buildStatistics(matches []SelectedMatch, start time.Time) Statistics {
	stats := Statistics{
		ByRule:     make(map[string]int),
		ByCategory: make(map[string]int),
	}
	for _, m := range matches {
		stats.ByRule[m.RuleID]++
		stats.ByCategory[m.Category]++
		stats.Total++
	}
	stats.DurationMS = elapsedMS(start)
	return stats
}
