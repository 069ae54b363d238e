package intelligence

import (
	"sync/atomic"
	"time"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
)

// Thresholds gathers every tunable constant of the scoring rules.
type Thresholds struct {
	CacheTTL time.Duration

	ClusterSimilarity     float64
	GapDetectionThreshold float64
	OverrepresentedShare  float64
	BalanceTarget         float64

	// AffinityShareWeight weights brand share against brand rating (1 - w).
	AffinityShareWeight float64
	// FamilyDiversityWeight weights family against brand diversity (1 - w).
	FamilyDiversityWeight float64
	// PlanGapShare is the budget fraction of the gap-filling phase.
	PlanGapShare float64

	PriceCap         float64
	PremiumBudget    float64
	ValueBudget      float64
	EfficiencyUplift float64
	LuxuryPrice      float64
	QualityPrice     float64

	PredictiveWindow time.Duration
	UnusedAfter      time.Duration
	ChangeConfidence float64

	LargeCollectionSize int

	LuxuryBrands []string
	NicheBrands  []string
}

// DefaultThresholds returns the reference scoring constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CacheTTL:              300 * time.Second,
		ClusterSimilarity:     0.8,
		GapDetectionThreshold: 0.3,
		OverrepresentedShare:  0.4,
		BalanceTarget:         0.8,
		AffinityShareWeight:   0.6,
		FamilyDiversityWeight: 0.7,
		PlanGapShare:          0.6,
		PriceCap:              300,
		PremiumBudget:         1000,
		ValueBudget:           500,
		EfficiencyUplift:      0.2,
		LuxuryPrice:           200,
		QualityPrice:          150,
		PredictiveWindow:      90 * 24 * time.Hour,
		UnusedAfter:           180 * 24 * time.Hour,
		ChangeConfidence:      0.8,
		LargeCollectionSize:   50,
		LuxuryBrands:          []string{"Tom Ford", "Creed", "Chanel", "Dior", "Guerlain", "Hermes", "Maison Francis Kurkdjian", "Amouage"},
		NicheBrands:           []string{"Le Labo", "Byredo", "Diptyque", "Serge Lutens", "Frederic Malle", "Nishane", "Xerjoff", "Memo Paris"},
	}
}

// withDefaults fills zero fields from DefaultThresholds.
func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.CacheTTL <= 0 {
		t.CacheTTL = d.CacheTTL
	}
	fill := func(dst *float64, def float64) {
		if *dst <= 0 {
			*dst = def
		}
	}
	fill(&t.ClusterSimilarity, d.ClusterSimilarity)
	fill(&t.GapDetectionThreshold, d.GapDetectionThreshold)
	fill(&t.OverrepresentedShare, d.OverrepresentedShare)
	fill(&t.BalanceTarget, d.BalanceTarget)
	fill(&t.AffinityShareWeight, d.AffinityShareWeight)
	fill(&t.FamilyDiversityWeight, d.FamilyDiversityWeight)
	fill(&t.PlanGapShare, d.PlanGapShare)
	fill(&t.PriceCap, d.PriceCap)
	fill(&t.PremiumBudget, d.PremiumBudget)
	fill(&t.ValueBudget, d.ValueBudget)
	fill(&t.EfficiencyUplift, d.EfficiencyUplift)
	fill(&t.LuxuryPrice, d.LuxuryPrice)
	fill(&t.QualityPrice, d.QualityPrice)
	fill(&t.ChangeConfidence, d.ChangeConfidence)
	if t.PredictiveWindow <= 0 {
		t.PredictiveWindow = d.PredictiveWindow
	}
	if t.UnusedAfter <= 0 {
		t.UnusedAfter = d.UnusedAfter
	}
	if t.LargeCollectionSize <= 0 {
		t.LargeCollectionSize = d.LargeCollectionSize
	}
	if t.LuxuryBrands == nil {
		t.LuxuryBrands = d.LuxuryBrands
	}
	if t.NicheBrands == nil {
		t.NicheBrands = d.NicheBrands
	}
	return t
}

// thresholdStore lets a config reload swap thresholds under running analyzers.
type thresholdStore struct {
	v atomic.Pointer[tuning]
}

type tuning struct {
	th    Thresholds
	tiers *fragrance.TierClassifier
}

func newThresholdStore(t Thresholds) *thresholdStore {
	s := &thresholdStore{}
	s.set(t)
	return s
}

func (s *thresholdStore) set(t Thresholds) {
	t = t.withDefaults()
	s.v.Store(&tuning{th: t, tiers: fragrance.NewTierClassifier(t.LuxuryBrands, t.NicheBrands)})
}

func (s *thresholdStore) get() *tuning {
	return s.v.Load()
}
