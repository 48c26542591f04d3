package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selectorCatalog() []Rule {
	return []Rule{
		{ID: "b.low", Category: CategoryPersonal, Sensitivity: SensitivityBasic, Pattern: `x`, Strategy: Fixed("[X]"), Priority: 10, Enabled: true},
		{ID: "a.low", Category: CategoryPersonal, Sensitivity: SensitivityBasic, Pattern: `x`, Strategy: Fixed("[X]"), Priority: 10, Enabled: true},
		{ID: "c.high", Category: CategoryFinancial, Sensitivity: SensitivityHigh, Pattern: `x`, Strategy: Fixed("[X]"), Priority: 90, Enabled: true},
		{ID: "d.max", Category: CategoryNetwork, Sensitivity: SensitivityMaximum, Pattern: `x`, Strategy: Fixed("[X]"), Priority: 50, Enabled: true},
		{ID: "e.disabled", Category: CategoryPersonal, Sensitivity: SensitivityBasic, Pattern: `x`, Strategy: Fixed("[X]"), Priority: 99, Enabled: false},
	}
}

func TestActiveRules(t *testing.T) {
	catalog := selectorCatalog()

	t.Run("SensitivityGates", func(t *testing.T) {
		basic := ActiveRules(catalog, SensitivityBasic, nil)
		ids := ruleIDs(basic)
		assert.Equal(t, []string{"a.low", "b.low"}, ids)

		max := ActiveRules(catalog, SensitivityMaximum, nil)
		assert.Len(t, max, 4)
	})

	t.Run("DisabledNeverActive", func(t *testing.T) {
		active := ActiveRules(catalog, SensitivityMaximum, nil)
		assert.NotContains(t, ruleIDs(active), "e.disabled")
	})

	t.Run("CategoryFilter", func(t *testing.T) {
		active := ActiveRules(catalog, SensitivityMaximum, []string{CategoryFinancial})
		require.Len(t, active, 1)
		assert.Equal(t, "c.high", active[0].ID)
	})

	t.Run("EmptyCategoriesMeansAll", func(t *testing.T) {
		all := ActiveRules(catalog, SensitivityMaximum, nil)
		some := ActiveRules(catalog, SensitivityMaximum, []string{})
		assert.Equal(t, ruleIDs(all), ruleIDs(some))
	})

	t.Run("OrderPriorityDescThenIDAsc", func(t *testing.T) {
		active := ActiveRules(catalog, SensitivityMaximum, nil)
		assert.Equal(t, []string{"c.high", "d.max", "a.low", "b.low"}, ruleIDs(active))
	})

	t.Run("InputNotModified", func(t *testing.T) {
		before := ruleIDs(catalog)
		ActiveRules(catalog, SensitivityMaximum, nil)
		assert.Equal(t, before, ruleIDs(catalog))
	})
}

func ruleIDs(catalog []Rule) []string {
	ids := make([]string, 0, len(catalog))
	for _, rule := range catalog {
		ids = append(ids, rule.ID)
	}
	return ids
}
