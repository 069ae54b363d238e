package intelligence

import (
	"context"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
)

// Severity and priority labels shared by the gap reports.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Diversity buckets.
const (
	DiversityLow    = "low"
	DiversityMedium = "medium"
	DiversityHigh   = "high"
)

// Intensity buckets.
const (
	IntensityLight  = "light"
	IntensityMedium = "medium"
	IntensityStrong = "strong"
)

var (
	severityWeights = map[string]float64{SeverityCritical: 1.0, SeverityHigh: 0.7, SeverityMedium: 0.4}
	coreOccasions   = map[string]bool{"office": true, "casual": true}
	intensityLevels = []string{IntensityLight, IntensityMedium, IntensityStrong}
)

type SeasonalGap struct {
	Season             string  `json:"season"`
	CoveragePercentage float64 `json:"coverage_percentage"`
	ItemCount          int     `json:"item_count"`
	GapSeverity        string  `json:"gap_severity"`
}

type SeasonalGaps struct {
	Gaps           []SeasonalGap      `json:"gaps"`
	Coverage       map[string]float64 `json:"coverage"`
	SeverityScore  float64            `json:"severity_score"`
	OverallBalance float64            `json:"overall_balance"`
}

type SeasonalGapReport struct {
	Outcome
	UserID string `json:"user_id"`
	SeasonalGaps
}

type OccasionGap struct {
	Occasion           string  `json:"occasion"`
	CoveragePercentage float64 `json:"coverage_percentage"`
	Priority           string  `json:"priority"`
}

type OccasionGaps struct {
	Gaps             []OccasionGap `json:"gaps"`
	LifestyleImpact  string        `json:"lifestyle_impact"`
	VersatilityScore float64       `json:"versatility_score"`
}

type OccasionGapReport struct {
	Outcome
	UserID string `json:"user_id"`
	OccasionGaps
}

type IntensityGap struct {
	Level      string  `json:"level"`
	Percentage float64 `json:"percentage"`
	Priority   string  `json:"priority"`
}

type IntensityGaps struct {
	Distribution     map[string]float64 `json:"distribution"`
	Gaps             []IntensityGap     `json:"gaps"`
	VersatilityScore float64            `json:"versatility_score"`
}

type IntensityGapReport struct {
	Outcome
	UserID string `json:"user_id"`
	IntensityGaps
}

type DiversityAnalysis struct {
	FamilyDiversity      float64  `json:"family_diversity"`
	BrandDiversity       float64  `json:"brand_diversity"`
	BalanceScore         float64  `json:"balance_score"`
	DiversityLevel       string   `json:"diversity_level"`
	ExpansionSuggestions []string `json:"expansion_suggestions"`
	Recommendation       string   `json:"recommendation"`
}

type DiversityReport struct {
	Outcome
	UserID string `json:"user_id"`
	DiversityAnalysis
}

// GapAnalysis bundles the four gap views for the engine result.
type GapAnalysis struct {
	Seasonal  SeasonalGaps      `json:"seasonal"`
	Occasion  OccasionGaps      `json:"occasion"`
	Intensity IntensityGaps     `json:"intensity"`
	Diversity DiversityAnalysis `json:"diversity"`
}

// GapAnalysisEngine finds coverage a collection lacks.
type GapAnalysisEngine interface {
	IdentifySeasonalGaps(ctx context.Context, userID string) *SeasonalGapReport
	IdentifyOccasionGaps(ctx context.Context, userID string) *OccasionGapReport
	IdentifyIntensityGaps(ctx context.Context, userID string) *IntensityGapReport
	AnalyzeDiversity(ctx context.Context, userID string) *DiversityReport
}

type gapAnalyzer struct {
	*analyzerBase
}

// NewGapAnalysisEngine builds a GapAnalysisEngine.
func NewGapAnalysisEngine(cfg AnalyzerConfig) (GapAnalysisEngine, error) {
	base, err := newAnalyzerBase(cfg, "gaps")
	if err != nil {
		return nil, err
	}
	return &gapAnalyzer{analyzerBase: base}, nil
}

func (g *gapAnalyzer) IdentifySeasonalGaps(ctx context.Context, userID string) (report *SeasonalGapReport) {
	report = &SeasonalGapReport{UserID: userID, SeasonalGaps: emptySeasonalGaps()}
	defer g.guard("identify_seasonal_gaps", userID, &report.Outcome)

	items, outcome := g.load(ctx, "identify_seasonal_gaps", userID)
	report.Outcome = outcome
	if items != nil {
		report.SeasonalGaps = seasonalGaps(items)
	}
	return report
}

func (g *gapAnalyzer) IdentifyOccasionGaps(ctx context.Context, userID string) (report *OccasionGapReport) {
	report = &OccasionGapReport{UserID: userID, OccasionGaps: OccasionGaps{Gaps: []OccasionGap{}, LifestyleImpact: SeverityLow}}
	defer g.guard("identify_occasion_gaps", userID, &report.Outcome)

	items, outcome := g.load(ctx, "identify_occasion_gaps", userID)
	report.Outcome = outcome
	if items != nil {
		report.OccasionGaps = occasionGaps(items)
	}
	return report
}

func (g *gapAnalyzer) IdentifyIntensityGaps(ctx context.Context, userID string) (report *IntensityGapReport) {
	report = &IntensityGapReport{UserID: userID, IntensityGaps: IntensityGaps{Distribution: map[string]float64{}, Gaps: []IntensityGap{}}}
	defer g.guard("identify_intensity_gaps", userID, &report.Outcome)

	items, outcome := g.load(ctx, "identify_intensity_gaps", userID)
	report.Outcome = outcome
	if items != nil {
		report.IntensityGaps = g.intensityGaps(items)
	}
	return report
}

func (g *gapAnalyzer) AnalyzeDiversity(ctx context.Context, userID string) (report *DiversityReport) {
	report = &DiversityReport{UserID: userID, DiversityAnalysis: DiversityAnalysis{DiversityLevel: DiversityLow, ExpansionSuggestions: []string{}}}
	defer g.guard("analyze_diversity", userID, &report.Outcome)

	items, outcome := g.load(ctx, "analyze_diversity", userID)
	report.Outcome = outcome
	if items != nil {
		report.DiversityAnalysis = g.diversity(items)
	}
	return report
}

// all runs every gap view over one snapshot.
func (g *gapAnalyzer) all(items []*collection.Item) GapAnalysis {
	return GapAnalysis{
		Seasonal:  seasonalGaps(items),
		Occasion:  occasionGaps(items),
		Intensity: g.intensityGaps(items),
		Diversity: g.diversity(items),
	}
}

func emptySeasonalGaps() SeasonalGaps {
	return SeasonalGaps{Gaps: []SeasonalGap{}, Coverage: map[string]float64{}}
}

func seasonalGaps(items []*collection.Item) SeasonalGaps {
	out := emptySeasonalGaps()
	total := float64(len(items))
	var weighted float64
	for _, season := range collection.Seasons {
		n := 0
		for _, it := range items {
			if it.HasSeason(season) {
				n++
			}
		}
		coverage := float64(n) / total
		out.Coverage[season] = coverage

		var severity string
		switch {
		case n == 0:
			severity = SeverityCritical
		case coverage < 0.1:
			severity = SeverityHigh
		case coverage < 0.2:
			severity = SeverityMedium
		default:
			continue
		}
		weighted += severityWeights[severity]
		out.Gaps = append(out.Gaps, SeasonalGap{Season: season, CoveragePercentage: coverage, ItemCount: n, GapSeverity: severity})
	}
	out.SeverityScore = weighted / float64(len(collection.Seasons))
	out.OverallBalance = 1 - out.SeverityScore
	return out
}

func occasionGaps(items []*collection.Item) OccasionGaps {
	out := OccasionGaps{Gaps: []OccasionGap{}}
	total := float64(len(items))
	covered, high := 0, 0
	for _, occasion := range collection.Occasions {
		n := 0
		for _, it := range items {
			if it.HasOccasion(occasion) {
				n++
			}
		}
		coverage := float64(n) / total
		if n > 0 {
			covered++
		}

		var priority string
		switch {
		case n == 0 && coreOccasions[occasion]:
			priority = SeverityHigh
			high++
		case n == 0 || coverage < 0.1:
			priority = SeverityMedium
		default:
			continue
		}
		out.Gaps = append(out.Gaps, OccasionGap{Occasion: occasion, CoveragePercentage: coverage, Priority: priority})
	}

	switch {
	case high >= 2:
		out.LifestyleImpact = SeverityHigh
	case high >= 1:
		out.LifestyleImpact = SeverityMedium
	default:
		out.LifestyleImpact = SeverityLow
	}
	out.VersatilityScore = float64(covered) / float64(len(collection.Occasions))
	return out
}

func intensityBucket(level int) string {
	switch {
	case level <= 4:
		return IntensityLight
	case level <= 7:
		return IntensityMedium
	default:
		return IntensityStrong
	}
}

func (g *gapAnalyzer) intensityGaps(items []*collection.Item) IntensityGaps {
	threshold := g.th().GapDetectionThreshold
	counts := make(map[string]int, len(intensityLevels))
	for _, it := range items {
		counts[intensityBucket(it.Fragrance.Intensity())]++
	}

	out := IntensityGaps{Distribution: make(map[string]float64, len(intensityLevels)), Gaps: []IntensityGap{}}
	total := float64(len(items))
	var dev float64
	for _, level := range intensityLevels {
		p := float64(counts[level]) / total
		out.Distribution[level] = p
		dev += (p - 1.0/3) * (p - 1.0/3)
		if p < threshold {
			priority := SeverityLow
			if counts[level] == 0 {
				priority = SeverityMedium
			}
			out.Gaps = append(out.Gaps, IntensityGap{Level: level, Percentage: p, Priority: priority})
		}
	}
	out.VersatilityScore = clamp01(1 - 3*dev/float64(len(intensityLevels)))
	return out
}

func (g *gapAnalyzer) diversity(items []*collection.Item) DiversityAnalysis {
	familyWeight := g.th().FamilyDiversityWeight
	total := float64(len(items))
	if total < 1 {
		total = 1
	}
	familyDiv := float64(uniqueCount(items, familyKey)) / total
	brandDiv := float64(uniqueCount(items, brandKey)) / total

	out := DiversityAnalysis{
		FamilyDiversity:      familyDiv,
		BrandDiversity:       brandDiv,
		BalanceScore:         familyWeight*familyDiv + (1-familyWeight)*brandDiv,
		ExpansionSuggestions: []string{},
	}
	switch {
	case out.BalanceScore < 0.4:
		out.DiversityLevel = DiversityLow
		out.ExpansionSuggestions = missingFamilies(items, 3)
		out.Recommendation = "expand into new scent families"
	case out.BalanceScore >= 0.7:
		out.DiversityLevel = DiversityHigh
		out.Recommendation = "maintain balance"
	default:
		out.DiversityLevel = DiversityMedium
		out.Recommendation = "selectively explore adjacent families"
	}
	return out
}

// missingFamilies lists families absent from items, canonical families
// first, capped at limit.
func missingFamilies(items []*collection.Item, limit int) []string {
	present := make(map[string]bool)
	for _, it := range items {
		present[it.Family()] = true
	}
	out := []string{}
	for _, fam := range fragrance.KnownFamilies {
		if len(out) >= limit {
			break
		}
		if !present[fam] {
			out = append(out, fam)
		}
	}
	return out
}
