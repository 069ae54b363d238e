package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ScentIQ-Intelligence/internal/application/intelligence"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

func TestAnalyze_FromFile(t *testing.T) {
	path := writeCollections(t, sampleCollections)
	out, _, err := run(t, "--file", path, "analyze", "alice")
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "alice", got["user_id"])
	assert.Equal(t, true, got["success"])
	assert.Equal(t, false, got["cache_used"])
	assert.Contains(t, got, "gap_analysis")
	assert.Contains(t, got, "personality_profile")
}

func TestAnalyze_Table(t *testing.T) {
	path := writeCollections(t, sampleCollections)
	out, _, err := run(t, "--file", path, "-o", "table", "analyze", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "METRIC")
	assert.Contains(t, out, "health_score")
	assert.Contains(t, out, "family:citrus")
	assert.Contains(t, out, "success")
}

func TestAnalyze_UnknownUserIsEmpty(t *testing.T) {
	path := writeCollections(t, sampleCollections)
	out, _, err := run(t, "--file", path, "analyze", "nobody")
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, true, got["success"])
	assert.Equal(t, true, got["empty"])
}

func TestAnalyze_MissingFile(t *testing.T) {
	_, _, err := run(t, "--file", "/nonexistent/collections.json", "analyze", "alice")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestOperation_SingleView(t *testing.T) {
	path := writeCollections(t, sampleCollections)
	out, _, err := run(t, "--file", path, "patterns", "alice", "brands")
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, true, got["success"])
	assert.Equal(t, "alice", got["user_id"])
}

func TestOperation_WholeGroup(t *testing.T) {
	path := writeCollections(t, sampleCollections)
	out, _, err := run(t, "--file", path, "gaps", "alice")
	require.NoError(t, err)

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	for _, name := range []string{"gaps.seasonal", "gaps.occasions", "gaps.intensity"} {
		assert.Contains(t, got, name)
	}
}

func TestOperation_WholeGroupTable(t *testing.T) {
	path := writeCollections(t, sampleCollections)
	out, _, err := run(t, "--file", path, "-o", "table", "insights", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "OPERATION")
	assert.Contains(t, out, "insights.health")
}

func TestOperation_UnknownView(t *testing.T) {
	path := writeCollections(t, sampleCollections)
	_, _, err := run(t, "--file", path, "patterns", "alice", "colors")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestOperationsFor(t *testing.T) {
	names, err := operationsFor("patterns", []string{"Brands"})
	require.NoError(t, err)
	assert.Equal(t, []string{"patterns.brands"}, names)

	names, err = operationsFor("patterns", nil)
	require.NoError(t, err)
	assert.Contains(t, names, "patterns")
	assert.Contains(t, names, "patterns.usage")
	assert.NotContains(t, names, "gaps.seasonal")

	_, err = operationsFor("astrology", nil)
	assert.True(t, errors.IsValidation(err))
}

func TestRecommend_FromFileCatalog(t *testing.T) {
	path := writeCollections(t, sampleCollections)
	out, _, err := run(t, "--file", path, "recommend", "bob", "-n", "2")
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, true, got["success"])
}

func TestPlan_Validation(t *testing.T) {
	path := writeCollections(t, sampleCollections)
	_, _, err := run(t, "--file", path, "plan", "alice", "--target", "10", "--budget", "-5")
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	_, _, err = run(t, "--file", path, "plan", "alice")
	assert.Error(t, err, "--target is required")
}

func TestPlan_Table(t *testing.T) {
	path := writeCollections(t, sampleCollections)
	out, _, err := run(t, "--file", path, "-o", "table", "plan", "alice", "--target", "12", "--budget", "600")
	require.NoError(t, err)
	assert.Contains(t, out, "PHASE")
}

func TestNotify(t *testing.T) {
	path := writeCollections(t, sampleCollections)

	out, _, err := run(t, "--file", path, "notify", "alice", "--trigger", "collection_milestone")
	require.NoError(t, err)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, true, got["success"])
	assert.NotNil(t, got["notification"])

	out, _, err = run(t, "--file", path, "notify", "alice", "--trigger", "full_moon")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUnknownTrigger))
	assert.Contains(t, out, "failure", "the failed report is still printed")
}

func TestHealth_Table(t *testing.T) {
	path := writeCollections(t, sampleCollections)
	out, _, err := run(t, "--file", path, "-o", "table", "health", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "FRAGRANCE")
}

func TestImportCollection_BareArrayNeedsUser(t *testing.T) {
	path := writeCollections(t, `[{"fragrance_id": "f1"}]`)
	_, _, err := run(t, "import", "collection", path)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestImportCatalog_NoFragrances(t *testing.T) {
	path := writeCollections(t, `[{"fragrance_id": "f1"}]`)
	_, _, err := run(t, "import", "catalog", path)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

// ─────────────────────────────────────────────────────────────────────────────
// FileCollections
// ─────────────────────────────────────────────────────────────────────────────

func TestParseCollections_KeyedDocument(t *testing.T) {
	fc, err := ParseCollections([]byte(sampleCollections))
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, fc.Users())

	items, err := fc.GetUserCollection(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = fc.GetUserCollection(context.Background(), "carol")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestParseCollections_BareArrayIsShared(t *testing.T) {
	fc, err := ParseCollections([]byte(` [{"fragrance_id": "f9", "fragrance": {"name": "Solo", "family": "fresh"}}] `))
	require.NoError(t, err)
	assert.Empty(t, fc.Users())

	for _, u := range []string{"anyone", "else"} {
		items, err := fc.GetUserCollection(context.Background(), u)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	}

	frags := fc.Fragrances()
	require.Len(t, frags, 1)
	assert.Equal(t, "f9", frags[0].ID, "missing fragrance id falls back to fragrance_id")
}

func TestParseCollections_Rejects(t *testing.T) {
	cases := map[string]string{
		"empty":         "   ",
		"malformed":     `{"alice": [`,
		"no id":         `[{"rating": 4}]`,
		"unknown usage": `[{"fragrance_id": "f1", "usage_frequency": "hourly"}]`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCollections([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestFileCollections_Fragrances(t *testing.T) {
	fc, err := ParseCollections([]byte(sampleCollections))
	require.NoError(t, err)
	frags := fc.Fragrances()
	require.Len(t, frags, 3)
	assert.Equal(t, "f1", frags[0].ID)
	assert.Equal(t, "f3", frags[2].ID)
}

func TestFileCollections_SearchByFamilies(t *testing.T) {
	fc, err := ParseCollections([]byte(sampleCollections))
	require.NoError(t, err)
	ctx := context.Background()

	got, err := fc.SearchByFamilies(ctx, []string{"Floral", "woody"}, nil, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "f2", got[0].ID)
	assert.Equal(t, "f3", got[1].ID)

	got, err = fc.SearchByFamilies(ctx, []string{"floral", "woody"}, []string{"f2"}, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "f3", got[0].ID)

	got, err = fc.SearchByFamilies(ctx, []string{"floral", "woody"}, nil, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

// printAs renders data through PrintResult with the given output format.
func printAs(t *testing.T, format string, data interface{}) string {
	t.Helper()
	cmd := &cobra.Command{}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetContext(context.WithValue(context.Background(), cliContextKey{}, &CLIContext{OutputFormat: format}))
	require.NotPanics(t, func() {
		require.NoError(t, PrintResult(cmd, data))
	})
	return out.String()
}

func TestReportViews_EncodeWrappedReport(t *testing.T) {
	views := map[string]reportView{
		"analysis":        analysisView{&intelligence.CollectionAnalysis{UserID: "alice"}},
		"recommendations": recommendationView{&intelligence.RecommendationReport{UserID: "alice"}},
		"health":          healthView{&intelligence.HealthReport{UserID: "alice"}},
		"plan":            planView{&intelligence.StrategicPlanReport{UserID: "alice"}},
	}
	for name, view := range views {
		t.Run(name, func(t *testing.T) {
			var got map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(printAs(t, "json", view)), &got))
			assert.Equal(t, "alice", got["user_id"])
			assert.Equal(t, false, got["success"])

			assert.Contains(t, printAs(t, "text", view), "user_id: alice")
			assert.NotEmpty(t, printAs(t, "table", view))
		})
	}
}

func TestHealth_JSON(t *testing.T) {
	path := writeCollections(t, sampleCollections)
	out, _, err := run(t, "--file", path, "health", "alice")
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "alice", got["user_id"])
	assert.Contains(t, got, "health_score")
}

func TestPlan_JSON(t *testing.T) {
	path := writeCollections(t, sampleCollections)
	out, _, err := run(t, "--file", path, "plan", "alice", "--target", "12", "--budget", "600")
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, true, got["success"])
	assert.Contains(t, got, "phases")
}
