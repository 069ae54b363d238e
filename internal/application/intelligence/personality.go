package intelligence

import (
	"context"
	"math"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
)

// Archetypes, in rule-chain order.
const (
	ArchetypeSophisticatedMinimalist = "sophisticated_minimalist"
	ArchetypeAdventurousExplorer     = "adventurous_explorer"
	ArchetypeRomanticTraditionalist  = "romantic_traditionalist"
	ArchetypeEclecticEnthusiast      = "eclectic_enthusiast"
)

const (
	TraitQualityFocused = "quality_focused"
	TraitMinimalist     = "minimalist"
	TraitExperimental   = "experimental"
	TraitOpenToNew      = "open_to_new_experiences"
)

const (
	ExperienceBeginner     = "beginner"
	ExperienceIntermediate = "intermediate"
	ExperienceExpert       = "expert"
)

const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"

	trendSlopeThreshold = 0.05
	minimalistMaxSize   = 5
)

const (
	WorkStyleProfessional = "professional"
	WorkStyleFlexible     = "flexible"
	SocialStyleSocial     = "social"
	SocialStyleIntimate   = "intimate"
	SocialStyleCasual     = "casual"
)

type Lifestyle struct {
	LuxuryOrientation   float64 `json:"luxury_orientation"`
	ExplorationTendency float64 `json:"exploration_tendency"`
	BrandLoyalty        float64 `json:"brand_loyalty"`
	WorkStyle           string  `json:"work_style"`
	SocialStyle         string  `json:"social_style"`
}

type LifestyleReport struct {
	Outcome
	UserID string `json:"user_id"`
	Lifestyle
}

type ExperienceAssessment struct {
	Level             string  `json:"level"`
	CollectionAgeDays int     `json:"collection_age_days"`
	BrandDiversity    float64 `json:"brand_diversity"`
	ComplexityComfort float64 `json:"complexity_comfort"`
}

type ExperienceReport struct {
	Outcome
	UserID string `json:"user_id"`
	ExperienceAssessment
}

type Evolution struct {
	Trend           string    `json:"trend"`
	Slope           float64   `json:"slope"`
	NormalizedSlope float64   `json:"normalized_slope"`
	DataPoints      int       `json:"data_points"`
	Timeline        []float64 `json:"complexity_timeline"`
}

type EvolutionReport struct {
	Outcome
	UserID string `json:"user_id"`
	Evolution
}

type PersonalityProfile struct {
	Archetype  string               `json:"archetype"`
	Traits     []string             `json:"traits"`
	Lifestyle  Lifestyle            `json:"lifestyle"`
	Experience ExperienceAssessment `json:"experience"`
	Evolution  Evolution            `json:"evolution"`
}

type PersonalityReport struct {
	Outcome
	UserID string `json:"user_id"`
	PersonalityProfile
}

// PersonalityProfiler classifies a collection into an archetype and infers
// lifestyle and experience signals.
type PersonalityProfiler interface {
	GeneratePersonalityProfile(ctx context.Context, userID string) *PersonalityReport
	InferLifestyle(ctx context.Context, userID string) *LifestyleReport
	AssessExperienceLevel(ctx context.Context, userID string) *ExperienceReport
	AnalyzeCollectionEvolution(ctx context.Context, userID string) *EvolutionReport
}

type profiler struct {
	*analyzerBase
}

// NewPersonalityProfiler builds a PersonalityProfiler.
func NewPersonalityProfiler(cfg AnalyzerConfig) (PersonalityProfiler, error) {
	base, err := newAnalyzerBase(cfg, "personality")
	if err != nil {
		return nil, err
	}
	return &profiler{analyzerBase: base}, nil
}

func (p *profiler) GeneratePersonalityProfile(ctx context.Context, userID string) (report *PersonalityReport) {
	report = &PersonalityReport{UserID: userID, PersonalityProfile: emptyProfile()}
	defer p.guard("generate_personality_profile", userID, &report.Outcome)

	items, outcome := p.load(ctx, "generate_personality_profile", userID)
	report.Outcome = outcome
	if items != nil {
		report.PersonalityProfile = p.profile(items)
	}
	return report
}

func (p *profiler) InferLifestyle(ctx context.Context, userID string) (report *LifestyleReport) {
	report = &LifestyleReport{UserID: userID, Lifestyle: Lifestyle{WorkStyle: WorkStyleFlexible, SocialStyle: SocialStyleCasual}}
	defer p.guard("infer_lifestyle", userID, &report.Outcome)

	items, outcome := p.load(ctx, "infer_lifestyle", userID)
	report.Outcome = outcome
	if items != nil {
		report.Lifestyle = p.lifestyle(items)
	}
	return report
}

func (p *profiler) AssessExperienceLevel(ctx context.Context, userID string) (report *ExperienceReport) {
	report = &ExperienceReport{UserID: userID, ExperienceAssessment: ExperienceAssessment{Level: ExperienceBeginner}}
	defer p.guard("assess_experience_level", userID, &report.Outcome)

	items, outcome := p.load(ctx, "assess_experience_level", userID)
	report.Outcome = outcome
	if items != nil {
		report.ExperienceAssessment = p.experience(items)
	}
	return report
}

func (p *profiler) AnalyzeCollectionEvolution(ctx context.Context, userID string) (report *EvolutionReport) {
	report = &EvolutionReport{UserID: userID, Evolution: emptyEvolution()}
	defer p.guard("analyze_collection_evolution", userID, &report.Outcome)

	items, outcome := p.load(ctx, "analyze_collection_evolution", userID)
	report.Outcome = outcome
	if items != nil {
		report.Evolution = evolution(items)
	}
	return report
}

// ─────────────────────────────────────────────────────────────────────────────
// rules
// ─────────────────────────────────────────────────────────────────────────────

func emptyProfile() PersonalityProfile {
	return PersonalityProfile{
		Archetype:  ArchetypeEclecticEnthusiast,
		Traits:     []string{},
		Lifestyle:  Lifestyle{WorkStyle: WorkStyleFlexible, SocialStyle: SocialStyleCasual},
		Experience: ExperienceAssessment{Level: ExperienceBeginner},
		Evolution:  emptyEvolution(),
	}
}

func emptyEvolution() Evolution {
	return Evolution{Trend: TrendStable, NormalizedSlope: 0.5, Timeline: []float64{}}
}

func (p *profiler) isLuxury(t *tuning, it *collection.Item) bool {
	if it.Fragrance == nil {
		return false
	}
	return t.tiers.Tier(it.Fragrance) == fragrance.TierLuxury || it.Fragrance.Price > t.th.LuxuryPrice
}

func (p *profiler) profile(items []*collection.Item) PersonalityProfile {
	t := p.tuning.get()
	size := len(items)

	luxuryShare := shareOf(items, func(it *collection.Item) bool { return p.isLuxury(t, it) })
	nicheShare := shareOf(items, func(it *collection.Item) bool { return t.tiers.Tier(it.Fragrance) == fragrance.TierNiche })
	familyDiv := float64(uniqueCount(items, familyKey)) / float64(size)
	floralShare := shareOf(items, func(it *collection.Item) bool { return it.Family() == fragrance.FamilyFloral })
	orientalShare := shareOf(items, func(it *collection.Item) bool { return it.Family() == fragrance.FamilyOriental })

	out := emptyProfile()
	switch {
	case luxuryShare > 0.6 && size <= minimalistMaxSize:
		out.Archetype = ArchetypeSophisticatedMinimalist
	case nicheShare > 0.4 && familyDiv > 0.7:
		out.Archetype = ArchetypeAdventurousExplorer
	case familyDiv < 0.3 && (floralShare > 0.5 || orientalShare > 0.5):
		out.Archetype = ArchetypeRomanticTraditionalist
	}

	var prices []float64
	allLoved := true
	for _, it := range items {
		if it.Fragrance != nil && it.Fragrance.Price > 0 {
			prices = append(prices, it.Fragrance.Price)
		}
		if !it.HasRating() || it.Rating < 4 {
			allLoved = false
		}
	}
	if len(prices) > 0 && mean(prices) > t.th.QualityPrice {
		out.Traits = append(out.Traits, TraitQualityFocused)
	}
	if size <= minimalistMaxSize && allLoved {
		out.Traits = append(out.Traits, TraitMinimalist)
	}
	if familyDiv > 0.6 {
		out.Traits = append(out.Traits, TraitExperimental, TraitOpenToNew)
	}

	out.Lifestyle = p.lifestyle(items)
	out.Experience = p.experience(items)
	out.Evolution = evolution(items)
	return out
}

func (p *profiler) lifestyle(items []*collection.Item) Lifestyle {
	t := p.tuning.get()
	total := float64(len(items))

	var loyalty float64
	for _, st := range groupBy(items, brandKey) {
		loyalty = math.Max(loyalty, float64(st.count)/total)
	}

	out := Lifestyle{
		LuxuryOrientation:   shareOf(items, func(it *collection.Item) bool { return p.isLuxury(t, it) }),
		ExplorationTendency: float64(uniqueCount(items, familyKey)) / total,
		BrandLoyalty:        loyalty,
		WorkStyle:           WorkStyleFlexible,
		SocialStyle:         SocialStyleCasual,
	}

	if shareOf(items, func(it *collection.Item) bool { return it.HasOccasion("office") }) >= 0.3 {
		out.WorkStyle = WorkStyleProfessional
	}
	nightOut := shareOf(items, func(it *collection.Item) bool {
		return it.HasOccasion("evening") || it.HasOccasion("date") || it.HasOccasion("special")
	})
	switch {
	case nightOut >= 0.4:
		out.SocialStyle = SocialStyleSocial
	case shareOf(items, func(it *collection.Item) bool { return it.HasOccasion("date") }) >= 0.2:
		out.SocialStyle = SocialStyleIntimate
	}
	return out
}

func (p *profiler) experience(items []*collection.Item) ExperienceAssessment {
	now := p.clock.Now()
	var earliest *collection.Item
	for _, it := range items {
		if it.CreatedAt.IsZero() {
			continue
		}
		if earliest == nil || it.CreatedAt.Before(earliest.CreatedAt) {
			earliest = it
		}
	}
	ageDays := 0
	if earliest != nil && now.After(earliest.CreatedAt) {
		ageDays = int(now.Sub(earliest.CreatedAt).Hours() / 24)
	}

	var complexity float64
	for _, it := range items {
		complexity += it.Fragrance.Complexity()
	}
	out := ExperienceAssessment{
		CollectionAgeDays: ageDays,
		BrandDiversity:    float64(uniqueCount(items, brandKey)) / float64(len(items)),
		ComplexityComfort: clamp01(complexity / float64(len(items)) / 10),
		Level:             ExperienceBeginner,
	}
	switch {
	case ageDays > 365 && out.BrandDiversity > 0.5 && out.ComplexityComfort > 0.7:
		out.Level = ExperienceExpert
	case ageDays > 180 && out.BrandDiversity > 0.3 && out.ComplexityComfort > 0.5:
		out.Level = ExperienceIntermediate
	}
	return out
}

// evolution regresses complexity over acquisition order.
func evolution(items []*collection.Item) Evolution {
	ordered := collection.SortByCreatedAt(items)
	ys := make([]float64, len(ordered))
	for i, it := range ordered {
		ys[i] = it.Fragrance.Complexity()
	}

	out := emptyEvolution()
	out.DataPoints = len(ys)
	out.Timeline = ys
	out.Slope = leastSquaresSlope(ys)
	out.NormalizedSlope = clamp01((out.Slope + 1) / 2)
	switch {
	case out.Slope > trendSlopeThreshold:
		out.Trend = TrendIncreasing
	case out.Slope < -trendSlopeThreshold:
		out.Trend = TrendDecreasing
	}
	return out
}

// leastSquaresSlope fits y over x = 0..n-1; fewer than two points give 0.
func leastSquaresSlope(ys []float64) float64 {
	n := float64(len(ys))
	if len(ys) < 2 {
		return 0
	}
	var sx, sy, sxy, sxx float64
	for i, y := range ys {
		x := float64(i)
		sx += x
		sy += y
		sxy += x * y
		sxx += x * x
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0
	}
	return (n*sxy - sx*sy) / den
}
