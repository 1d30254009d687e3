package report

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"marketpulse/store"
)

func writeRaw(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func TestCompileTOCListsEveryModuleAndMarksPresence(t *testing.T) {
	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = st.SaveModule("market_insights", "Some prose content.", "sess-1")
	require.NoError(t, err)
	_, err = st.SaveModule("launch_protocol_1", map[string]any{
		"title":       "Magnetic Event",
		"description": "Overview",
		"phases": map[string]any{
			"phase_one": map[string]any{"title": "Phase One", "summary": "details"},
		},
	}, "sess-1")
	require.NoError(t, err)

	c := New(st, nil)
	result, err := c.Compile("sess-1")
	require.NoError(t, err)

	require.FileExists(t, result.ReportPath)
	require.Contains(t, result.Document, "sess-1")
	require.Contains(t, result.Document, "Table of Contents")

	for _, name := range ModuleOrder {
		require.Contains(t, result.Document, moduleTitle(name))
	}
	require.Contains(t, result.Document, "✅ "+moduleTitle("market_insights"))
	require.Contains(t, result.Document, "❌ "+moduleTitle("action_plan"))

	require.Equal(t, len(ModuleOrder), result.Stats.TotalModules)
	require.Equal(t, 2, result.Stats.ModulesCompiled)
	require.Equal(t, len(ModuleOrder)-2, result.Stats.ModulesMissing)
	require.Equal(t, len(result.Document), result.Stats.TotalCharacters)
	require.GreaterOrEqual(t, result.Stats.EstimatedPages, MinEstimatedPages)
}

func TestCompileRendersMalformedJSONAsCodeBlock(t *testing.T) {
	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)

	path, err := st.SaveModule("competitive_analysis", "placeholder", "sess-2")
	require.NoError(t, err)
	// Corrupt the just-written JSON artifact to simulate a malformed module.
	require.NoError(t, writeRaw(path, "{not valid json"))

	c := New(st, nil)
	result, err := c.Compile("sess-2")
	require.NoError(t, err)
	require.Contains(t, result.Document, "```json")
	require.Contains(t, result.Document, "{not valid json")
}

func TestCompileMissingSessionStillProducesReport(t *testing.T) {
	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)

	c := New(st, nil)
	result, err := c.Compile("sess-empty")
	require.NoError(t, err)
	require.Equal(t, 0, result.Stats.ModulesCompiled)
	require.Equal(t, len(ModuleOrder), result.Stats.ModulesMissing)
}

func TestCompileRequiresSession(t *testing.T) {
	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	c := New(st, nil)
	_, err = c.Compile("")
	require.Error(t, err)
}
