package intelligence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
)

func newProfiler(t *testing.T, items ...*collection.Item) PersonalityProfiler {
	t.Helper()
	p, err := NewPersonalityProfiler(analyzerConfig(newFakeRepo(items...), newFakeClock()))
	require.NoError(t, err)
	return p
}

func TestGeneratePersonalityProfile_ScenarioD(t *testing.T) {
	p := newProfiler(t,
		newItem("a", "woody", 5, withBrand("Tom Ford"), withPrice(250)),
		newItem("b", "oriental", 5, withBrand("Tom Ford"), withPrice(320)),
		newItem("c", "woody", 4, withBrand("Creed"), withPrice(435)),
		newItem("d", "fresh", 4, withBrand("Creed"), withPrice(410)),
		newItem("e", "woody", 5, withBrand("Tom Ford"), withPrice(280)),
	)

	report := p.GeneratePersonalityProfile(context.Background(), testUser)
	require.True(t, report.Success)
	assert.Equal(t, ArchetypeSophisticatedMinimalist, report.Archetype)
	assert.Contains(t, report.Traits, TraitQualityFocused)
	assert.Contains(t, report.Traits, TraitMinimalist)
	assert.NotContains(t, report.Traits, TraitExperimental)
	assert.Equal(t, 1.0, report.Lifestyle.LuxuryOrientation)
}

func TestGeneratePersonalityProfile_ArchetypeChain(t *testing.T) {
	t.Run("adventurous explorer", func(t *testing.T) {
		report := newProfiler(t,
			newItem("a", "woody", 4, withBrand("Le Labo"), withPrice(100)),
			newItem("b", "fresh", 4, withBrand("Byredo"), withPrice(100)),
			newItem("c", "floral", 4, withBrand("Diptyque"), withPrice(100)),
			newItem("d", "leather", 3, withBrand("Zara"), withPrice(30)),
		).GeneratePersonalityProfile(context.Background(), testUser)
		assert.Equal(t, ArchetypeAdventurousExplorer, report.Archetype)
		assert.Contains(t, report.Traits, TraitExperimental)
		assert.Contains(t, report.Traits, TraitOpenToNew)
	})

	t.Run("romantic traditionalist", func(t *testing.T) {
		var items []*collection.Item
		for i := 0; i < 8; i++ {
			items = append(items, newItem(string(rune('a'+i)), "floral", 4))
		}
		items = append(items, newItem("y", "oriental", 4), newItem("z", "oriental", 5))
		report := newProfiler(t, items...).GeneratePersonalityProfile(context.Background(), testUser)
		assert.Equal(t, ArchetypeRomanticTraditionalist, report.Archetype)
	})

	t.Run("luxury rule needs a small collection", func(t *testing.T) {
		var items []*collection.Item
		for i := 0; i < 6; i++ {
			items = append(items, newItem(string(rune('a'+i)), "woody", 4, withBrand("Creed"), withPrice(300)))
		}
		report := newProfiler(t, items...).GeneratePersonalityProfile(context.Background(), testUser)
		assert.Equal(t, ArchetypeEclecticEnthusiast, report.Archetype)
		assert.NotContains(t, report.Traits, TraitMinimalist)
	})
}

func TestInferLifestyle(t *testing.T) {
	var items []*collection.Item
	for i := 0; i < 10; i++ {
		var opts []itemOpt
		if i < 3 {
			opts = append(opts, withOccasions("office"))
		}
		if i >= 6 {
			opts = append(opts, withOccasions("evening"))
		}
		brand := "Zara"
		if i < 4 {
			brand = "Chanel"
		}
		opts = append(opts, withBrand(brand))
		items = append(items, newItem(string(rune('a'+i)), "floral", 4, opts...))
	}
	report := newProfiler(t, items...).InferLifestyle(context.Background(), testUser)
	require.True(t, report.Success)
	assert.Equal(t, WorkStyleProfessional, report.WorkStyle)
	assert.Equal(t, SocialStyleSocial, report.SocialStyle)
	assert.InDelta(t, 0.6, report.BrandLoyalty, 1e-9)
	assert.InDelta(t, 0.1, report.ExplorationTendency, 1e-9)
	assert.InDelta(t, 0.4, report.LuxuryOrientation, 1e-9)
}

func TestInferLifestyle_IntimateAndFlexible(t *testing.T) {
	report := newProfiler(t,
		newItem("a", "floral", 4, withOccasions("date")),
		newItem("b", "floral", 4, withOccasions("casual")),
		newItem("c", "floral", 4, withOccasions("casual")),
		newItem("d", "floral", 4, withOccasions("casual")),
		newItem("e", "floral", 4, withOccasions("office")),
	).InferLifestyle(context.Background(), testUser)
	assert.Equal(t, WorkStyleFlexible, report.WorkStyle)
	assert.Equal(t, SocialStyleIntimate, report.SocialStyle)
}

func TestAssessExperienceLevel(t *testing.T) {
	old := testNow.Add(-400 * 24 * time.Hour)
	mid := testNow.Add(-200 * 24 * time.Hour)

	t.Run("expert", func(t *testing.T) {
		report := newProfiler(t,
			newItem("a", "woody", 4, withBrand("Creed"), withComplexity(8), withCreated(old)),
			newItem("b", "woody", 4, withBrand("Dior"), withComplexity(8)),
			newItem("c", "woody", 4, withBrand("Byredo"), withComplexity(8)),
			newItem("d", "woody", 4, withBrand("Creed"), withComplexity(8)),
		).AssessExperienceLevel(context.Background(), testUser)
		require.True(t, report.Success)
		assert.Equal(t, ExperienceExpert, report.Level)
		assert.Equal(t, 400, report.CollectionAgeDays)
		assert.InDelta(t, 0.75, report.BrandDiversity, 1e-9)
		assert.InDelta(t, 0.8, report.ComplexityComfort, 1e-9)
	})

	t.Run("intermediate", func(t *testing.T) {
		report := newProfiler(t,
			newItem("a", "woody", 4, withBrand("Creed"), withComplexity(6), withCreated(mid)),
			newItem("b", "woody", 4, withBrand("Dior"), withComplexity(6)),
			newItem("c", "woody", 4, withBrand("Dior"), withComplexity(6)),
		).AssessExperienceLevel(context.Background(), testUser)
		assert.Equal(t, ExperienceIntermediate, report.Level)
	})

	t.Run("beginner uses default complexity", func(t *testing.T) {
		report := newProfiler(t,
			newItem("a", "woody", 4, withBrand("Creed"), withCreated(old)),
			newItem("b", "woody", 4, withBrand("Dior")),
		).AssessExperienceLevel(context.Background(), testUser)
		assert.Equal(t, ExperienceBeginner, report.Level)
		assert.InDelta(t, 0.5, report.ComplexityComfort, 1e-9)
	})
}

func TestAnalyzeCollectionEvolution(t *testing.T) {
	base := testNow.Add(-100 * 24 * time.Hour)
	day := 24 * time.Hour

	t.Run("increasing", func(t *testing.T) {
		report := newProfiler(t,
			newItem("d", "woody", 4, withComplexity(8), withCreated(base.Add(3*day))),
			newItem("a", "woody", 4, withComplexity(2), withCreated(base)),
			newItem("c", "woody", 4, withComplexity(6), withCreated(base.Add(2*day))),
			newItem("b", "woody", 4, withComplexity(4), withCreated(base.Add(day))),
		).AnalyzeCollectionEvolution(context.Background(), testUser)
		require.True(t, report.Success)
		assert.Equal(t, TrendIncreasing, report.Trend)
		assert.InDelta(t, 2.0, report.Slope, 1e-9)
		assert.Equal(t, 1.0, report.NormalizedSlope)
		assert.Equal(t, []float64{2, 4, 6, 8}, report.Timeline)
	})

	t.Run("decreasing", func(t *testing.T) {
		report := newProfiler(t,
			newItem("a", "woody", 4, withComplexity(6), withCreated(base)),
			newItem("b", "woody", 4, withComplexity(5.8), withCreated(base.Add(day))),
		).AnalyzeCollectionEvolution(context.Background(), testUser)
		assert.Equal(t, TrendDecreasing, report.Trend)
		assert.InDelta(t, 0.4, report.NormalizedSlope, 1e-9)
	})

	t.Run("single item is stable", func(t *testing.T) {
		report := newProfiler(t, newItem("a", "woody", 4, withComplexity(9))).
			AnalyzeCollectionEvolution(context.Background(), testUser)
		assert.Equal(t, TrendStable, report.Trend)
		assert.Equal(t, 0.0, report.Slope)
		assert.Equal(t, 0.5, report.NormalizedSlope)
	})
}

func TestPersonalityProfiler_EmptyCollection(t *testing.T) {
	p := newProfiler(t)
	ctx := context.Background()

	profile := p.GeneratePersonalityProfile(ctx, testUser)
	assert.True(t, profile.Empty)
	assert.Equal(t, ArchetypeEclecticEnthusiast, profile.Archetype)
	assert.Empty(t, profile.Traits)

	assert.True(t, p.InferLifestyle(ctx, testUser).Empty)
	assert.Equal(t, ExperienceBeginner, p.AssessExperienceLevel(ctx, testUser).Level)
	assert.Equal(t, TrendStable, p.AnalyzeCollectionEvolution(ctx, testUser).Trend)
}
