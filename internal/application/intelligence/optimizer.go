package intelligence

import (
	"context"
	"math"
	"sort"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// Budget strategies.
const (
	StrategyPremiumExpansion   = "premium_expansion"
	StrategyValueSeeking       = "value_seeking"
	StrategyBudgetMaximization = "budget_maximization"
)

// Strategic plan phases.
const (
	PhaseFillCriticalGaps     = "fill_critical_gaps"
	PhaseExploreNewTerritory  = "explore_new_territory"
	acquisitionsPerMonth      = 2
	maxUnderrepresentedListed = 3
)

type BalanceOptimization struct {
	CurrentDistribution []FamilyShare `json:"current_distribution"`
	Overrepresented     []FamilyShare `json:"overrepresented"`
	Underrepresented    []string      `json:"underrepresented"`
	BalanceScore        float64       `json:"balance_score"`
	TargetBalance       float64       `json:"target_balance"`
	ImprovementNeeded   float64       `json:"improvement_needed"`
}

type BalanceReport struct {
	Outcome
	UserID string `json:"user_id"`
	BalanceOptimization
}

type BudgetOptimization struct {
	Budget               float64  `json:"budget"`
	OptimizationStrategy string   `json:"optimization_strategy"`
	CurrentEfficiency    float64  `json:"current_efficiency"`
	ProjectedEfficiency  float64  `json:"projected_efficiency"`
	EvaluatedItems       int      `json:"evaluated_items"`
	Recommendations      []string `json:"recommendations"`
}

type BudgetReport struct {
	Outcome
	UserID string `json:"user_id"`
	BudgetOptimization
}

type UnderutilizedItem struct {
	FragranceID    string                    `json:"fragrance_id"`
	Name           string                    `json:"name,omitempty"`
	Rating         int                       `json:"rating,omitempty"`
	UsageFrequency collection.UsageFrequency `json:"usage_frequency"`
	Suggestion     string                    `json:"suggestion"`
}

type UsageOptimization struct {
	Underutilized   []UnderutilizedItem `json:"underutilized"`
	UsageEfficiency float64             `json:"usage_efficiency"`
}

type UsageOptimizationReport struct {
	Outcome
	UserID string `json:"user_id"`
	UsageOptimization
}

// PlanRequest describes the acquisition goal. CurrentSize defaults to the
// number of items in the collection when zero.
type PlanRequest struct {
	CurrentSize int     `json:"current_size,omitempty" validate:"omitempty,min=0"`
	TargetSize  int     `json:"target_size" validate:"min=0"`
	Budget      float64 `json:"budget" validate:"min=0"`
}

type PlanPhase struct {
	Name           string   `json:"name"`
	Additions      int      `json:"additions"`
	Budget         float64  `json:"budget"`
	DurationMonths int      `json:"duration_months"`
	Focus          []string `json:"focus"`
}

type StrategicPlan struct {
	CurrentSize       int         `json:"current_size"`
	TargetSize        int         `json:"target_size"`
	TotalBudget       float64     `json:"total_budget"`
	AdditionsNeeded   int         `json:"additions_needed"`
	BudgetPerAddition float64     `json:"budget_per_addition"`
	TimelineMonths    int         `json:"timeline_months"`
	Phases            []PlanPhase `json:"phases"`
}

type StrategicPlanReport struct {
	Outcome
	UserID string `json:"user_id"`
	StrategicPlan
}

// OptimizationPlan is the engine-level bundle of optimizer output.
type OptimizationPlan struct {
	Balance BalanceOptimization `json:"balance"`
	Usage   UsageOptimization   `json:"usage"`
}

// CollectionOptimizer proposes balance, budget and usage improvements.
type CollectionOptimizer interface {
	OptimizeForBalance(ctx context.Context, userID string) *BalanceReport
	OptimizeForBudget(ctx context.Context, userID string, budget float64) *BudgetReport
	OptimizeForUsage(ctx context.Context, userID string) *UsageOptimizationReport
	CreateStrategicPlan(ctx context.Context, userID string, req PlanRequest) *StrategicPlanReport
}

type optimizer struct {
	*analyzerBase
}

// NewCollectionOptimizer builds a CollectionOptimizer.
func NewCollectionOptimizer(cfg AnalyzerConfig) (CollectionOptimizer, error) {
	base, err := newAnalyzerBase(cfg, "optimizer")
	if err != nil {
		return nil, err
	}
	return &optimizer{analyzerBase: base}, nil
}

func (o *optimizer) OptimizeForBalance(ctx context.Context, userID string) (report *BalanceReport) {
	report = &BalanceReport{UserID: userID, BalanceOptimization: o.emptyBalance()}
	defer o.guard("optimize_for_balance", userID, &report.Outcome)

	items, outcome := o.load(ctx, "optimize_for_balance", userID)
	report.Outcome = outcome
	if items != nil {
		report.BalanceOptimization = o.balance(items)
	}
	return report
}

func (o *optimizer) OptimizeForBudget(ctx context.Context, userID string, budget float64) (report *BudgetReport) {
	report = &BudgetReport{UserID: userID, BudgetOptimization: BudgetOptimization{Budget: budget, Recommendations: []string{}}}
	defer o.guard("optimize_for_budget", userID, &report.Outcome)

	if budget < 0 || math.IsNaN(budget) || math.IsInf(budget, 0) {
		report.Outcome = failedWith(errors.NewValidation("budget must be a non-negative amount, got %v", budget))
		return report
	}
	items, outcome := o.load(ctx, "optimize_for_budget", userID)
	report.Outcome = outcome
	if outcome.Failure != nil {
		return report
	}
	// An empty collection still gets a strategy for its budget.
	report.BudgetOptimization = o.budget(items, budget)
	return report
}

func (o *optimizer) OptimizeForUsage(ctx context.Context, userID string) (report *UsageOptimizationReport) {
	report = &UsageOptimizationReport{UserID: userID, UsageOptimization: UsageOptimization{Underutilized: []UnderutilizedItem{}}}
	defer o.guard("optimize_for_usage", userID, &report.Outcome)

	items, outcome := o.load(ctx, "optimize_for_usage", userID)
	report.Outcome = outcome
	if items != nil {
		report.UsageOptimization = usageOptimization(items)
	}
	return report
}

func (o *optimizer) CreateStrategicPlan(ctx context.Context, userID string, req PlanRequest) (report *StrategicPlanReport) {
	report = &StrategicPlanReport{UserID: userID, StrategicPlan: StrategicPlan{Phases: []PlanPhase{}}}
	defer o.guard("create_strategic_plan", userID, &report.Outcome)

	if req.TargetSize < 0 || req.CurrentSize < 0 || req.Budget < 0 {
		report.Outcome = failedWith(errors.New(errors.ErrCodeInvalidPlan, "plan sizes and budget must be non-negative"))
		return report
	}
	items, outcome := o.load(ctx, "create_strategic_plan", userID)
	if outcome.Failure != nil {
		report.Outcome = outcome
		return report
	}
	report.Outcome = succeeded()
	report.StrategicPlan = o.plan(items, req)
	return report
}

// ─────────────────────────────────────────────────────────────────────────────
// computations
// ─────────────────────────────────────────────────────────────────────────────

func (o *optimizer) emptyBalance() BalanceOptimization {
	return BalanceOptimization{
		CurrentDistribution: []FamilyShare{},
		Overrepresented:     []FamilyShare{},
		Underrepresented:    []string{},
		TargetBalance:       o.th().BalanceTarget,
	}
}

// balanceScore is the Shannon entropy of the family distribution normalized
// by ln(max(distinct, canonical family count)).
func balanceScore(dist []FamilyShare) float64 {
	if len(dist) == 0 {
		return 0
	}
	var h float64
	for _, f := range dist {
		if f.Percentage > 0 {
			h -= f.Percentage * math.Log(f.Percentage)
		}
	}
	n := len(dist)
	if n < len(fragrance.CanonicalFamilies) {
		n = len(fragrance.CanonicalFamilies)
	}
	return clamp01(h / math.Log(float64(n)))
}

func (o *optimizer) balance(items []*collection.Item) BalanceOptimization {
	th := o.th()
	out := o.emptyBalance()
	out.CurrentDistribution = familyDistribution(items)

	present := make(map[string]bool, len(out.CurrentDistribution))
	for _, f := range out.CurrentDistribution {
		present[f.Family] = true
		if f.Percentage > th.OverrepresentedShare {
			out.Overrepresented = append(out.Overrepresented, f)
		}
	}
	for _, fam := range fragrance.CanonicalFamilies {
		if !present[fam] && len(out.Underrepresented) < maxUnderrepresentedListed {
			out.Underrepresented = append(out.Underrepresented, fam)
		}
	}

	out.BalanceScore = balanceScore(out.CurrentDistribution)
	out.ImprovementNeeded = math.Max(0, out.TargetBalance-out.BalanceScore)
	return out
}

func (o *optimizer) budget(items []*collection.Item, budget float64) BudgetOptimization {
	th := o.th()
	out := BudgetOptimization{Budget: budget, Recommendations: []string{}}

	var sum float64
	for _, it := range items {
		if !it.HasRating() || it.Fragrance == nil || it.Fragrance.Price <= 0 {
			continue
		}
		value := math.Max(0, 1-it.Fragrance.Price/th.PriceCap)
		sum += (collection.RatingWeight(it) + value) / 2
		out.EvaluatedItems++
	}
	if out.EvaluatedItems > 0 {
		out.CurrentEfficiency = sum / float64(out.EvaluatedItems)
	}

	switch {
	case budget > th.PremiumBudget:
		out.OptimizationStrategy = StrategyPremiumExpansion
		out.Recommendations = append(out.Recommendations,
			"invest in signature pieces from houses you already rate highly",
			"consider niche releases that fill a missing family")
	case budget > th.ValueBudget:
		out.OptimizationStrategy = StrategyValueSeeking
		out.Recommendations = append(out.Recommendations,
			"favor well-rated fragrances priced under the value cap",
			"sample before buying full bottles")
	default:
		out.OptimizationStrategy = StrategyBudgetMaximization
		out.Recommendations = append(out.Recommendations,
			"prioritize decants and travel sizes",
			"target versatile fragrances that cover several occasions")
	}
	out.ProjectedEfficiency = math.Min(out.CurrentEfficiency+th.EfficiencyUplift, 1)
	return out
}

func usageOptimization(items []*collection.Item) UsageOptimization {
	out := UsageOptimization{Underutilized: []UnderutilizedItem{}}
	used := 0
	for _, it := range collection.SortByFragranceID(items) {
		switch it.UsageFrequency {
		case collection.UsageNever:
			out.Underutilized = append(out.Underutilized, underutilized(it, "rotate into your weekly lineup or consider swapping it"))
		case collection.UsageRarely:
			if !it.HasRating() || it.Rating <= 3 {
				out.Underutilized = append(out.Underutilized, underutilized(it, "reassess whether it still earns its shelf space"))
			}
		case collection.UsageUnknown:
		default:
			if it.UsageFrequency.IsValid() {
				used++
			}
		}
	}
	out.UsageEfficiency = float64(used) / float64(len(items))
	return out
}

func underutilized(it *collection.Item, suggestion string) UnderutilizedItem {
	u := UnderutilizedItem{
		FragranceID:    it.FragranceID,
		Rating:         it.Rating,
		UsageFrequency: it.UsageFrequency,
		Suggestion:     suggestion,
	}
	if it.Fragrance != nil {
		u.Name = it.Fragrance.Name
	}
	return u
}

func (o *optimizer) plan(items []*collection.Item, req PlanRequest) StrategicPlan {
	th := o.th()
	current := req.CurrentSize
	if current == 0 {
		current = len(items)
	}
	out := StrategicPlan{
		CurrentSize: current,
		TargetSize:  req.TargetSize,
		TotalBudget: req.Budget,
		Phases:      []PlanPhase{},
	}
	need := req.TargetSize - current
	if need <= 0 {
		return out
	}

	out.AdditionsNeeded = need
	out.BudgetPerAddition = req.Budget / float64(need)
	out.TimelineMonths = int(math.Ceil(float64(need) / acquisitionsPerMonth))

	gapAdds := int(math.Ceil(float64(need) * th.PlanGapShare))
	if gapAdds > need {
		gapAdds = need
	}
	exploreAdds := need - gapAdds

	gapFocus, exploreFocus := o.planFocus(items)
	out.Phases = append(out.Phases,
		PlanPhase{
			Name:           PhaseFillCriticalGaps,
			Additions:      gapAdds,
			Budget:         round2(req.Budget * th.PlanGapShare),
			DurationMonths: int(math.Ceil(float64(gapAdds) / acquisitionsPerMonth)),
			Focus:          gapFocus,
		},
		PlanPhase{
			Name:           PhaseExploreNewTerritory,
			Additions:      exploreAdds,
			Budget:         round2(req.Budget * (1 - th.PlanGapShare)),
			DurationMonths: int(math.Ceil(float64(exploreAdds) / acquisitionsPerMonth)),
			Focus:          exploreFocus,
		},
	)
	return out
}

// planFocus derives the gap-filling focus from missing canonical families and
// critical seasons, and the exploration focus from unexplored families.
func (o *optimizer) planFocus(items []*collection.Item) (gapFocus, exploreFocus []string) {
	gapFocus, exploreFocus = []string{}, []string{}
	if len(items) == 0 {
		gapFocus = append(gapFocus, fragrance.CanonicalFamilies...)
		return gapFocus, exploreFocus
	}

	bal := o.balance(items)
	gapFocus = append(gapFocus, bal.Underrepresented...)
	seasonal := seasonalGaps(items)
	sort.SliceStable(seasonal.Gaps, func(i, j int) bool {
		return severityWeights[seasonal.Gaps[i].GapSeverity] > severityWeights[seasonal.Gaps[j].GapSeverity]
	})
	for _, g := range seasonal.Gaps {
		gapFocus = append(gapFocus, g.Season+" season")
	}

	taken := make(map[string]bool, len(gapFocus))
	for _, f := range gapFocus {
		taken[f] = true
	}
	for _, fam := range missingFamilies(items, len(fragrance.KnownFamilies)) {
		if !taken[fam] && len(exploreFocus) < 3 {
			exploreFocus = append(exploreFocus, fam)
		}
	}
	return gapFocus, exploreFocus
}
