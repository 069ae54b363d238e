package intelligence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	apperrors "github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

func newPatternAnalyzer(t *testing.T, repo collection.Repository) PatternAnalyzer {
	t.Helper()
	a, err := NewPatternAnalyzer(analyzerConfig(repo, newFakeClock()))
	require.NoError(t, err)
	return a
}

func TestNewPatternAnalyzer_RequiresRepository(t *testing.T) {
	a, err := NewPatternAnalyzer(AnalyzerConfig{})
	assert.Error(t, err)
	assert.Nil(t, a)
	assert.True(t, apperrors.IsValidation(err))
}

func TestAnalyzePatterns_ScenarioA(t *testing.T) {
	a := newPatternAnalyzer(t, newFakeRepo(scenarioA()...))

	report := a.AnalyzePatterns(context.Background(), testUser)
	require.True(t, report.Success)
	assert.False(t, report.Empty)
	assert.Equal(t, 10, report.TotalItems)

	require.Len(t, report.FamilyDistribution, 2)
	woody, floral := report.FamilyDistribution[0], report.FamilyDistribution[1]
	assert.Equal(t, "woody", woody.Family)
	assert.InDelta(t, 0.6, woody.Percentage, 1e-9)
	assert.InDelta(t, 28.0/6, woody.AvgRating, 1e-9)
	assert.Equal(t, "floral", floral.Family)
	assert.InDelta(t, 0.4, floral.Percentage, 1e-9)
	assert.InDelta(t, -0.25, floral.PreferenceStrength, 1e-9)

	assert.Equal(t, "woody", report.DominantPreferences.PrimaryFamily)
	assert.Equal(t, "floral", report.DominantPreferences.SecondaryFamily)
	assert.InDelta(t, 0.5, report.DominantPreferences.Confidence, 1e-9)
}

func TestAnalyzePatterns_PercentagesSumToOne(t *testing.T) {
	items := []*collection.Item{
		newItem("a", "woody", 5), newItem("b", "citrus", 0), newItem("c", "floral", 3),
		newItem("d", "", 2), newItem("e", "citrus", 4), newItem("f", "gourmand", 1), newItem("g", "woody", 0),
	}
	a := newPatternAnalyzer(t, newFakeRepo(items...))

	report := a.AnalyzePatterns(context.Background(), testUser)
	require.True(t, report.Success)
	var sum float64
	for _, f := range report.FamilyDistribution {
		sum += f.Percentage
		assert.GreaterOrEqual(t, f.Percentage, 0.0)
		assert.LessOrEqual(t, f.Percentage, 1.0)
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestAnalyzePatterns_Idempotent(t *testing.T) {
	a := newPatternAnalyzer(t, newFakeRepo(scenarioA()...))
	first := a.AnalyzePatterns(context.Background(), testUser)
	second := a.AnalyzePatterns(context.Background(), testUser)
	assert.Equal(t, first, second)
}

func TestAnalyzePatterns_PreferenceStrength(t *testing.T) {
	items := []*collection.Item{newItem("a", "woody", 5), newItem("b", "woody", 1), newItem("c", "woody", 3)}
	a := newPatternAnalyzer(t, newFakeRepo(items...))

	report := a.AnalyzePatterns(context.Background(), testUser)
	require.True(t, report.Success)
	assert.InDelta(t, 0.0, report.PreferenceStrength.Overall, 1e-9)
	assert.InDelta(t, 1-(8.0/3)/4, report.PreferenceStrength.Consistency, 1e-9)
	assert.InDelta(t, 1.0, report.PreferenceStrength.Volatility, 1e-9)
}

func TestAnalyzePatterns_DislikedPrimaryHasZeroConfidence(t *testing.T) {
	items := []*collection.Item{newItem("a", "floral", 1), newItem("b", "floral", 2), newItem("c", "woody", 5)}
	a := newPatternAnalyzer(t, newFakeRepo(items...))

	report := a.AnalyzePatterns(context.Background(), testUser)
	assert.Equal(t, "floral", report.DominantPreferences.PrimaryFamily)
	assert.Equal(t, 0.0, report.DominantPreferences.Confidence)
}

func TestPatternAnalyzer_EmptyCollection(t *testing.T) {
	a := newPatternAnalyzer(t, newFakeRepo())
	ctx := context.Background()

	patterns := a.AnalyzePatterns(ctx, testUser)
	assert.True(t, patterns.Success)
	assert.True(t, patterns.Empty)
	assert.Nil(t, patterns.Failure)
	assert.Zero(t, patterns.TotalItems)

	brands := a.AnalyzeBrandPatterns(ctx, testUser)
	assert.True(t, brands.Empty)
	assert.Zero(t, brands.Loyalty)

	notes := a.AnalyzeNotePatterns(ctx, testUser)
	assert.True(t, notes.Empty)

	clusters := a.PerformVectorClustering(ctx, testUser)
	assert.True(t, clusters.Empty)
	assert.Zero(t, clusters.ClusterQuality)

	usage := a.AnalyzeUsagePatterns(ctx, testUser)
	assert.True(t, usage.Empty)
}

func TestPatternAnalyzer_DataAccessFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.err = errors.New("connection refused")
	a := newPatternAnalyzer(t, repo)

	report := a.AnalyzePatterns(context.Background(), testUser)
	assert.False(t, report.Success)
	assert.False(t, report.Empty)
	require.NotNil(t, report.Failure)
	assert.Equal(t, FailureDataAccess, report.Failure.Kind)
	assert.Equal(t, apperrors.ErrCodeDataAccessFailure, report.Failure.Code)
	assert.Error(t, report.Err())
}

func TestPatternAnalyzer_MissingUser(t *testing.T) {
	a := newPatternAnalyzer(t, newFakeRepo())
	report := a.AnalyzePatterns(context.Background(), "")
	require.NotNil(t, report.Failure)
	assert.Equal(t, FailureInvalidInput, report.Failure.Kind)
}

func TestPatternAnalyzer_CanceledContext(t *testing.T) {
	repo := newFakeRepo()
	repo.err = context.Canceled
	a := newPatternAnalyzer(t, repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := a.AnalyzePatterns(ctx, testUser)
	require.NotNil(t, report.Failure)
	assert.Equal(t, FailureCanceled, report.Failure.Kind)
}

func TestPatternAnalyzer_RecoversPanic(t *testing.T) {
	repo := newFakeRepo()
	repo.panicOn = testUser
	a := newPatternAnalyzer(t, repo)

	report := a.AnalyzeUsagePatterns(context.Background(), testUser)
	require.NotNil(t, report.Failure)
	assert.Equal(t, FailureInternal, report.Failure.Kind)
	assert.False(t, report.Success)
}

func TestAnalyzeBrandPatterns(t *testing.T) {
	items := []*collection.Item{
		newItem("a", "woody", 5, withBrand("Creed")),
		newItem("b", "woody", 5, withBrand("Creed")),
		newItem("c", "floral", 3, withBrand("Dior")),
		newItem("d", "citrus", 4, withBrand("Le Labo")),
		newItem("e", "citrus", 2, withBrand("Zara")),
		newItem("f", "citrus", 4),
	}
	a := newPatternAnalyzer(t, newFakeRepo(items...))

	report := a.AnalyzeBrandPatterns(context.Background(), testUser)
	require.True(t, report.Success)
	assert.Equal(t, 4, report.UniqueBrands)
	assert.Equal(t, "Creed", report.TopBrand)
	require.Len(t, report.Brands, 4)
	assert.InDelta(t, 0.6*(2.0/6)+0.4, report.Brands[0].Affinity, 0.005)
	assert.Equal(t, "luxury", string(report.Brands[0].Tier))

	// Creed(2) + two single-item brands picked alphabetically.
	assert.InDelta(t, 4.0/6, report.Loyalty, 1e-9)
	assert.InDelta(t, 4.0/6, report.Diversity, 1e-9)

	for i := 1; i < len(report.Brands); i++ {
		assert.GreaterOrEqual(t, report.Brands[i-1].Affinity, report.Brands[i].Affinity)
	}
}

func TestAnalyzeNotePatterns(t *testing.T) {
	items := []*collection.Item{
		newItem("a", "woody", 5, withNotes("Vanilla", "oud")),
		newItem("b", "woody", 4, withNotes("vanilla", "Bergamot")),
		newItem("c", "fresh", 1, withNotes("bergamot", "aldehydes")),
		newItem("d", "fresh", 2, withNotes("Aldehydes")),
		newItem("e", "fresh", 5, withNotes("oud")),
	}
	a := newPatternAnalyzer(t, newFakeRepo(items...))

	report := a.AnalyzeNotePatterns(context.Background(), testUser)
	require.True(t, report.Success)
	assert.Equal(t, 4, report.DistinctNotes)

	loved := map[string]NotePreference{}
	for _, n := range report.LovedNotes {
		loved[n.Name] = n
	}
	require.Contains(t, loved, "vanilla")
	require.Contains(t, loved, "oud")
	assert.InDelta(t, 0.75, loved["vanilla"].Strength, 1e-9)
	assert.InDelta(t, 1.0, loved["oud"].Strength, 1e-9)
	assert.Equal(t, "oud", report.LovedNotes[0].Name)

	require.Len(t, report.DislikedNotes, 1)
	assert.Equal(t, "aldehydes", report.DislikedNotes[0].Name)
	assert.InDelta(t, 0.75, report.DislikedNotes[0].Strength, 1e-9)
}

func TestPerformVectorClustering_ScenarioC(t *testing.T) {
	items := []*collection.Item{
		newItem("b", "woody", 4, withEmbedding(0.2, 0.4, 0.1)),
		newItem("a", "woody", 5, withEmbedding(0.2, 0.4, 0.1)),
	}
	a := newPatternAnalyzer(t, newFakeRepo(items...))

	report := a.PerformVectorClustering(context.Background(), testUser)
	require.True(t, report.Success)
	require.Len(t, report.Clusters, 1)
	c := report.Clusters[0]
	assert.Equal(t, "cluster_1", c.ClusterID)
	assert.Equal(t, []string{"a", "b"}, c.FragranceIDs)
	assert.InDelta(t, 4.5, c.AvgRating, 1e-9)
	assert.InDelta(t, 1.0, c.Strength, 1e-9)
	assert.Equal(t, "woody", c.DominantFamily)
	assert.Equal(t, 1.0, c.CohesionScore)
	assert.Equal(t, 1.0, report.ClusterQuality)
	assert.Equal(t, 2, report.ClusteredItems)
}

func TestPerformVectorClustering_SeparatesDissimilarItems(t *testing.T) {
	items := []*collection.Item{
		newItem("a", "woody", 5, withEmbedding(1, 0, 0)),
		newItem("b", "fresh", 3, withEmbedding(0, 1, 0)),
		newItem("c", "woody", 0, withEmbedding(0.95, 0.05, 0)),
		newItem("d", "fresh", 4),
	}
	a := newPatternAnalyzer(t, newFakeRepo(items...))

	report := a.PerformVectorClustering(context.Background(), testUser)
	require.True(t, report.Success)
	require.Len(t, report.Clusters, 2)
	assert.Equal(t, []string{"a", "c"}, report.Clusters[0].FragranceIDs)
	assert.InDelta(t, 4.0, report.Clusters[0].AvgRating, 1e-9)
	assert.Equal(t, []string{"b"}, report.Clusters[1].FragranceIDs)
	assert.Equal(t, 1, report.UnembeddedItems)
}

func TestPerformVectorClustering_IncompatibleDimensions(t *testing.T) {
	items := []*collection.Item{
		newItem("a", "woody", 5, withEmbedding(1, 0, 0)),
		newItem("b", "woody", 4, withEmbedding(1, 0)),
	}
	a := newPatternAnalyzer(t, newFakeRepo(items...))

	report := a.PerformVectorClustering(context.Background(), testUser)
	assert.False(t, report.Success)
	require.NotNil(t, report.Failure)
	assert.Equal(t, FailureIncompatibleDimensions, report.Failure.Kind)
	assert.Equal(t, apperrors.ErrCodeIncompatibleDimensions, report.Failure.Code)
}

func TestAnalyzeUsagePatterns(t *testing.T) {
	items := []*collection.Item{
		newItem("a", "woody", 5, withUsage(collection.UsageDaily), withSeasons("Winter", "autumn"), withMoods("Confidence")),
		newItem("b", "fresh", 4, withUsage(collection.UsageWeekly), withSeasons("summer")),
		newItem("c", "fresh", 3, withUsage(collection.UsageWeekly)),
		newItem("d", "floral", 0, withMoods("romance")),
	}
	a := newPatternAnalyzer(t, newFakeRepo(items...))

	report := a.AnalyzeUsagePatterns(context.Background(), testUser)
	require.True(t, report.Success)
	require.Len(t, report.DailyDrivers, 2)
	assert.Equal(t, "a", report.DailyDrivers[0].FragranceID)
	assert.InDelta(t, 1.0, report.DailyDrivers[0].Confidence, 1e-9)
	assert.Equal(t, "b", report.DailyDrivers[1].FragranceID)
	assert.InDelta(t, 0.66, report.DailyDrivers[1].Confidence, 1e-9)

	assert.Equal(t, []string{"a"}, report.SeasonalRotation["fall"])
	assert.Equal(t, []string{"a"}, report.SeasonalRotation["winter"])
	assert.Equal(t, []string{"b", "c"}, report.WeeklyRotation["weekly"])
	assert.Equal(t, []string{"d"}, report.WeeklyRotation["unknown"])
	assert.Equal(t, []string{"a"}, report.MoodRotation["confidence"])
	assert.InDelta(t, 0.5, report.UsageDistribution["weekly"], 1e-9)
}
