package rules

import "sort"

// ActiveRules filters a catalog down to the rules that apply for the given
// sensitivity level and enabled categories, ordered by (priority desc,
// id asc). That order is what downstream overlap resolution uses for its
// final tie-breaks, so it must be stable across calls.
//
// An empty category set means all categories are enabled. The input slice is
// never modified.
func ActiveRules(catalog []Rule, level SensitivityLevel, categories []string) []Rule {
	enabled := make(map[string]bool, len(categories))
	for _, c := range categories {
		enabled[c] = true
	}

	active := make([]Rule, 0, len(catalog))
	for _, rule := range catalog {
		if !rule.Enabled {
			continue
		}
		if rule.Sensitivity > level {
			continue
		}
		if len(enabled) > 0 && !enabled[rule.Category] {
			continue
		}
		active = append(active, rule)
	}

	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority > active[j].Priority
		}
		return active[i].ID < active[j].ID
	})

	return active
}

// Categories returns the distinct category tags present in a catalog, sorted.
func Categories(catalog []Rule) []string {
	seen := make(map[string]bool)
	var out []string
	for _, rule := range catalog {
		if !seen[rule.Category] {
			seen[rule.Category] = true
			out = append(out, rule.Category)
		}
	}
	sort.Strings(out)
	return out
}
