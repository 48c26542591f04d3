package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImport(t *testing.T) {
	t.Run("ValidEntries", func(t *testing.T) {
		data := []byte(`[
			{"id":"u.codename","name":"Project codename","category":"personal",
			 "sensitivity":"high","literal":"Project (X)","replacementType":"fixed",
			 "replacement":"[PROJECT]","priority":50,"enabled":true},
			{"id":"u.badge","name":"Badge number","category":"credentials",
			 "sensitivity":"basic","pattern":"\\bBADGE-\\d{4}\\b",
			 "replacementType":"mask","replacementChar":"*","priority":60,"enabled":true}
		]`)

		report, err := Import(data)
		require.NoError(t, err)
		assert.Equal(t, 2, report.Accepted)
		assert.Equal(t, 0, report.Skipped)
		require.Len(t, report.Imported, 2)

		assert.Equal(t, "Project (X)", report.Imported[0].Literal)
		assert.Equal(t, StrategyFixed, report.Imported[0].Strategy.Type)
		assert.Equal(t, '*', report.Imported[1].Strategy.MaskChar)
	})

	t.Run("MalformedEntriesSkippedNotFatal", func(t *testing.T) {
		data := []byte(`[
			{"id":"ok","name":"ok","category":"personal","sensitivity":"basic",
			 "literal":"alice","replacementType":"pseudonym","replacement":"name",
			 "priority":1,"enabled":true},
			{"id":"no-strategy","name":"bad","category":"personal","sensitivity":"basic",
			 "literal":"bob","replacementType":"rot13","priority":1,"enabled":true},
			{"id":"no-sensitivity","name":"bad","category":"personal","sensitivity":"huge",
			 "literal":"eve","replacementType":"fixed","replacement":"[X]","priority":1,"enabled":true}
		]`)

		report, err := Import(data)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Accepted)
		assert.Equal(t, 2, report.Skipped)
		assert.Len(t, report.Errors, 2)
		require.Len(t, report.Imported, 1)
		assert.Equal(t, "ok", report.Imported[0].ID)
	})

	t.Run("NotAnArray", func(t *testing.T) {
		_, err := Import([]byte(`{"id":"x"}`))
		assert.Error(t, err)
	})

	t.Run("MaskCharMustBeSingleCharacter", func(t *testing.T) {
		data := []byte(`[{"id":"m","name":"m","category":"personal","sensitivity":"basic",
			"literal":"x","replacementType":"mask","replacementChar":"**","priority":1,"enabled":true}]`)
		report, err := Import(data)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Skipped)
	})
}

func TestExportImportRoundTrip(t *testing.T) {
	original := []Rule{
		{
			ID: "rt.fixed", Name: "Fixed", Category: CategoryCredentials,
			Sensitivity: SensitivityBasic, Pattern: `\btok_\w+\b`,
			Strategy: Fixed("[TOKEN]"), Priority: 90, Enabled: true,
		},
		{
			ID: "rt.pseudonym", Name: "Pseudonym", Category: CategoryPersonal,
			Sensitivity: SensitivityHigh, Literal: "Dr. Smith", CaseSensitive: true,
			Strategy: Pseudonym("name"), Priority: 40, Enabled: true,
		},
		{
			ID: "rt.format", Name: "Format", Category: CategoryFinancial,
			Sensitivity: SensitivityModerate, Pattern: `\b\d{4}\b`,
			Strategy: FormatPreserving(), Priority: 30, Enabled: false,
		},
	}

	data, err := Export(original)
	require.NoError(t, err)

	report, err := Import(data)
	require.NoError(t, err)
	require.Equal(t, len(original), report.Accepted)
	assert.Equal(t, original, report.Imported)
}
