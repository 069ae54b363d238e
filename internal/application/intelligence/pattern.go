package intelligence

import (
	"context"
	"fmt"
	"sort"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
)

// ─────────────────────────────────────────────────────────────────────────────
// Result types
// ─────────────────────────────────────────────────────────────────────────────

// FamilyShare describes one scent family within a collection.
type FamilyShare struct {
	Family             string  `json:"family"`
	Count              int     `json:"count"`
	Percentage         float64 `json:"percentage"`
	AvgRating          float64 `json:"avg_rating"`
	PreferenceStrength float64 `json:"preference_strength"`
}

// DominantPreference names the leading families. Confidence needs both
// volume and positive sentiment.
type DominantPreference struct {
	PrimaryFamily   string  `json:"primary_family"`
	SecondaryFamily string  `json:"secondary_family,omitempty"`
	Confidence      float64 `json:"confidence"`
}

// PreferenceStrength summarizes the rating distribution.
type PreferenceStrength struct {
	Overall     float64 `json:"overall"`
	Consistency float64 `json:"consistency"`
	Volatility  float64 `json:"volatility"`
}

// PatternAnalysis is the family-level view of what a user likes.
type PatternAnalysis struct {
	TotalItems          int                `json:"total_items"`
	FamilyDistribution  []FamilyShare      `json:"family_distribution"`
	DominantPreferences DominantPreference `json:"dominant_preferences"`
	PreferenceStrength  PreferenceStrength `json:"preference_strength"`
}

type PatternReport struct {
	Outcome
	UserID string `json:"user_id"`
	PatternAnalysis
}

// BrandAffinity scores one brand.
type BrandAffinity struct {
	Brand     string              `json:"brand"`
	Tier      fragrance.BrandTier `json:"tier,omitempty"`
	Count     int                 `json:"count"`
	Share     float64             `json:"share"`
	AvgRating float64             `json:"avg_rating"`
	Affinity  float64             `json:"affinity"`
}

type BrandAnalysis struct {
	Brands       []BrandAffinity `json:"brands"`
	TopBrand     string          `json:"top_brand,omitempty"`
	UniqueBrands int             `json:"unique_brands"`
	Loyalty      float64         `json:"loyalty"`
	Diversity    float64         `json:"diversity"`
}

type BrandReport struct {
	Outcome
	UserID string `json:"user_id"`
	BrandAnalysis
}

// NotePreference is a note or accord with a clear sentiment.
type NotePreference struct {
	Name        string  `json:"name"`
	Occurrences int     `json:"occurrences"`
	AvgRating   float64 `json:"avg_rating"`
	Strength    float64 `json:"strength"`
}

type NoteAnalysis struct {
	LovedNotes      []NotePreference `json:"loved_notes"`
	DislikedNotes   []NotePreference `json:"disliked_notes"`
	LovedAccords    []NotePreference `json:"loved_accords"`
	DislikedAccords []NotePreference `json:"disliked_accords"`
	DistinctNotes   int              `json:"distinct_notes"`
}

type NoteReport struct {
	Outcome
	UserID string `json:"user_id"`
	NoteAnalysis
}

// Cluster is a greedy similarity group. The centroid is the seed embedding.
type Cluster struct {
	ClusterID      string              `json:"cluster_id"`
	FragranceIDs   []string            `json:"fragrance_ids"`
	Centroid       fragrance.Embedding `json:"centroid"`
	Strength       float64             `json:"strength"`
	DominantFamily string              `json:"dominant_family"`
	AvgRating      float64             `json:"avg_rating"`
	CohesionScore  float64             `json:"cohesion_score"`
}

type ClusterAnalysis struct {
	Clusters        []Cluster `json:"clusters"`
	ClusterQuality  float64   `json:"cluster_quality"`
	ClusteredItems  int       `json:"clustered_items"`
	UnembeddedItems int       `json:"unembedded_items"`
}

type ClusterReport struct {
	Outcome
	UserID string `json:"user_id"`
	ClusterAnalysis
}

// DailyDriver is an item worn routinely.
type DailyDriver struct {
	FragranceID    string                    `json:"fragrance_id"`
	Name           string                    `json:"name,omitempty"`
	Rating         int                       `json:"rating,omitempty"`
	UsageFrequency collection.UsageFrequency `json:"usage_frequency"`
	Confidence     float64                   `json:"confidence"`
}

type UsagePatterns struct {
	DailyDrivers      []DailyDriver       `json:"daily_drivers"`
	SeasonalRotation  map[string][]string `json:"seasonal_rotation"`
	WeeklyRotation    map[string][]string `json:"weekly_rotation"`
	MoodRotation      map[string][]string `json:"mood_rotation"`
	UsageDistribution map[string]float64  `json:"usage_distribution"`
}

type UsageReport struct {
	Outcome
	UserID string `json:"user_id"`
	UsagePatterns
}

// ─────────────────────────────────────────────────────────────────────────────
// Interface
// ─────────────────────────────────────────────────────────────────────────────

// PatternAnalyzer characterizes what a user likes.
type PatternAnalyzer interface {
	AnalyzePatterns(ctx context.Context, userID string) *PatternReport
	AnalyzeBrandPatterns(ctx context.Context, userID string) *BrandReport
	AnalyzeNotePatterns(ctx context.Context, userID string) *NoteReport
	PerformVectorClustering(ctx context.Context, userID string) *ClusterReport
	AnalyzeUsagePatterns(ctx context.Context, userID string) *UsageReport
}

type patternAnalyzer struct {
	*analyzerBase
}

// NewPatternAnalyzer builds a PatternAnalyzer.
func NewPatternAnalyzer(cfg AnalyzerConfig) (PatternAnalyzer, error) {
	base, err := newAnalyzerBase(cfg, "patterns")
	if err != nil {
		return nil, err
	}
	return &patternAnalyzer{analyzerBase: base}, nil
}

func (a *patternAnalyzer) AnalyzePatterns(ctx context.Context, userID string) (report *PatternReport) {
	report = &PatternReport{UserID: userID}
	defer a.guard("analyze_patterns", userID, &report.Outcome)

	items, outcome := a.load(ctx, "analyze_patterns", userID)
	report.Outcome = outcome
	if items != nil {
		report.PatternAnalysis = a.patterns(items)
	}
	return report
}

func (a *patternAnalyzer) AnalyzeBrandPatterns(ctx context.Context, userID string) (report *BrandReport) {
	report = &BrandReport{UserID: userID}
	defer a.guard("analyze_brand_patterns", userID, &report.Outcome)

	items, outcome := a.load(ctx, "analyze_brand_patterns", userID)
	report.Outcome = outcome
	if items != nil {
		report.BrandAnalysis = a.brands(items)
	}
	return report
}

func (a *patternAnalyzer) AnalyzeNotePatterns(ctx context.Context, userID string) (report *NoteReport) {
	report = &NoteReport{UserID: userID}
	defer a.guard("analyze_note_patterns", userID, &report.Outcome)

	items, outcome := a.load(ctx, "analyze_note_patterns", userID)
	report.Outcome = outcome
	if items != nil {
		report.NoteAnalysis = a.notes(items)
	}
	return report
}

func (a *patternAnalyzer) PerformVectorClustering(ctx context.Context, userID string) (report *ClusterReport) {
	report = &ClusterReport{UserID: userID}
	defer a.guard("perform_vector_clustering", userID, &report.Outcome)

	items, outcome := a.load(ctx, "perform_vector_clustering", userID)
	report.Outcome = outcome
	if items == nil {
		return report
	}
	clusters, err := a.clusters(items)
	if err != nil {
		report.Outcome = failedWith(err)
		return report
	}
	report.ClusterAnalysis = clusters
	return report
}

func (a *patternAnalyzer) AnalyzeUsagePatterns(ctx context.Context, userID string) (report *UsageReport) {
	report = &UsageReport{UserID: userID}
	defer a.guard("analyze_usage_patterns", userID, &report.Outcome)

	items, outcome := a.load(ctx, "analyze_usage_patterns", userID)
	report.Outcome = outcome
	if items != nil {
		report.UsagePatterns = a.usage(items)
	}
	return report
}

// ─────────────────────────────────────────────────────────────────────────────
// Computations over a loaded collection
// ─────────────────────────────────────────────────────────────────────────────

// familyDistribution returns family shares sorted by percentage desc, then name.
func familyDistribution(items []*collection.Item) []FamilyShare {
	stats := groupBy(items, familyKey)
	total := float64(len(items))
	out := make([]FamilyShare, 0, len(stats))
	for _, st := range stats {
		avg := st.avgRating()
		out = append(out, FamilyShare{
			Family:             st.name,
			Count:              st.count,
			Percentage:         float64(st.count) / total,
			AvgRating:          avg,
			PreferenceStrength: (avg - 3) / 2,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Percentage != out[j].Percentage {
			return out[i].Percentage > out[j].Percentage
		}
		return out[i].Family < out[j].Family
	})
	return out
}

func (a *patternAnalyzer) patterns(items []*collection.Item) PatternAnalysis {
	dist := familyDistribution(items)

	var dominant DominantPreference
	if len(dist) > 0 {
		primary := dist[0]
		dominant.PrimaryFamily = primary.Family
		dominant.Confidence = clamp01(primary.Percentage * primary.PreferenceStrength)
		if len(dist) > 1 {
			dominant.SecondaryFamily = dist[1].Family
		}
	}

	rs := ratings(items)
	strength := PreferenceStrength{Consistency: 1}
	if len(rs) > 0 {
		lo, hi := minMax(rs)
		strength = PreferenceStrength{
			Overall:     (mean(rs) - 3) / 2,
			Consistency: clamp01(1 - variance(rs)/4),
			Volatility:  (hi - lo) / 4,
		}
	}

	return PatternAnalysis{
		TotalItems:          len(items),
		FamilyDistribution:  dist,
		DominantPreferences: dominant,
		PreferenceStrength:  strength,
	}
}

func (a *patternAnalyzer) brands(items []*collection.Item) BrandAnalysis {
	t := a.tuning.get()
	total := float64(len(items))
	stats := groupBy(items, brandKey)

	tierOf := make(map[string]fragrance.BrandTier, len(stats))
	for _, it := range items {
		if b := it.Brand(); b != "" {
			if _, ok := tierOf[b]; !ok {
				tierOf[b] = t.tiers.Tier(it.Fragrance)
			}
		}
	}

	out := make([]BrandAffinity, 0, len(stats))
	for _, st := range stats {
		share := float64(st.count) / total
		avg := st.avgRating()
		out = append(out, BrandAffinity{
			Brand:     st.name,
			Tier:      tierOf[st.name],
			Count:     st.count,
			Share:     share,
			AvgRating: avg,
			Affinity:  round2(t.th.AffinityShareWeight*share + (1-t.th.AffinityShareWeight)*avg/5),
		})
	}

	// Loyalty counts the three largest brands by item count.
	byCount := append([]BrandAffinity(nil), out...)
	sort.SliceStable(byCount, func(i, j int) bool {
		if byCount[i].Count != byCount[j].Count {
			return byCount[i].Count > byCount[j].Count
		}
		return byCount[i].Brand < byCount[j].Brand
	})
	top := 0
	for i := 0; i < len(byCount) && i < 3; i++ {
		top += byCount[i].Count
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Affinity != out[j].Affinity {
			return out[i].Affinity > out[j].Affinity
		}
		return out[i].Brand < out[j].Brand
	})

	analysis := BrandAnalysis{
		Brands:       out,
		UniqueBrands: len(stats),
		Loyalty:      float64(top) / total,
		Diversity:    float64(len(stats)) / total,
	}
	if len(out) > 0 {
		analysis.TopBrand = out[0].Brand
	}
	return analysis
}

func (a *patternAnalyzer) notes(items []*collection.Item) NoteAnalysis {
	noteStats := groupBy(items, func(it *collection.Item) []string { return it.Fragrance.Notes() })
	accordStats := groupBy(items, func(it *collection.Item) []string {
		if it.Fragrance == nil {
			return nil
		}
		seen := make(map[string]struct{})
		var out []string
		for _, acc := range it.Fragrance.Accords {
			acc = fragrance.NormalizeTag(acc)
			if _, ok := seen[acc]; !ok && acc != "" {
				seen[acc] = struct{}{}
				out = append(out, acc)
			}
		}
		return out
	})

	lovedNotes, dislikedNotes := splitSentiment(noteStats)
	lovedAccords, dislikedAccords := splitSentiment(accordStats)
	return NoteAnalysis{
		LovedNotes:      lovedNotes,
		DislikedNotes:   dislikedNotes,
		LovedAccords:    lovedAccords,
		DislikedAccords: dislikedAccords,
		DistinctNotes:   len(noteStats),
	}
}

// splitSentiment applies the loved (mean >= 4 over >= 2 rated occurrences)
// and disliked (mean <= 2) rules. Unrated occurrences carry no sentiment.
func splitSentiment(stats []*categoryStat) (loved, disliked []NotePreference) {
	loved, disliked = []NotePreference{}, []NotePreference{}
	for _, st := range stats {
		n := len(st.ratings)
		if n == 0 {
			continue
		}
		avg := st.totalRating / float64(n)
		switch {
		case avg >= 4 && n >= 2:
			loved = append(loved, NotePreference{Name: st.name, Occurrences: n, AvgRating: avg, Strength: (avg - 3) / 2})
		case avg <= 2:
			disliked = append(disliked, NotePreference{Name: st.name, Occurrences: n, AvgRating: avg, Strength: (3 - avg) / 2})
		}
	}
	byStrength := func(ps []NotePreference) {
		sort.SliceStable(ps, func(i, j int) bool {
			if ps[i].Strength != ps[j].Strength {
				return ps[i].Strength > ps[j].Strength
			}
			return ps[i].Name < ps[j].Name
		})
	}
	byStrength(loved)
	byStrength(disliked)
	return loved, disliked
}

// clusters runs single-pass greedy grouping over embedded items in ID order.
// Output depends on that order by construction.
func (a *patternAnalyzer) clusters(items []*collection.Item) (ClusterAnalysis, error) {
	threshold := a.th().ClusterSimilarity

	var embedded []*collection.Item
	for _, it := range collection.SortByFragranceID(items) {
		if len(it.Embedding()) > 0 {
			embedded = append(embedded, it)
		}
	}

	analysis := ClusterAnalysis{
		Clusters:        []Cluster{},
		UnembeddedItems: len(items) - len(embedded),
	}
	used := make([]bool, len(embedded))
	for i, seed := range embedded {
		if used[i] {
			continue
		}
		used[i] = true
		c := Cluster{
			ClusterID:     fmt.Sprintf("cluster_%d", len(analysis.Clusters)+1),
			FragranceIDs:  []string{seed.FragranceID},
			Centroid:      seed.Embedding(),
			Strength:      collection.RatingWeight(seed),
			AvgRating:     itemRating(seed),
			CohesionScore: 1.0,
		}
		families := map[string]int{seed.Family(): 1}

		for j := i + 1; j < len(embedded); j++ {
			if used[j] {
				continue
			}
			sim, err := fragrance.CosineSimilarity(c.Centroid, embedded[j].Embedding())
			if err != nil {
				return ClusterAnalysis{}, err
			}
			if sim <= threshold {
				continue
			}
			used[j] = true
			member := embedded[j]
			n := float64(len(c.FragranceIDs))
			c.AvgRating = (c.AvgRating*n + itemRating(member)) / (n + 1)
			if w := collection.RatingWeight(member); w > c.Strength {
				c.Strength = w
			}
			c.FragranceIDs = append(c.FragranceIDs, member.FragranceID)
			families[member.Family()]++
		}

		c.DominantFamily = topKey(families)
		analysis.Clusters = append(analysis.Clusters, c)
		analysis.ClusteredItems += len(c.FragranceIDs)
	}

	if len(analysis.Clusters) > 0 {
		var sum float64
		for _, c := range analysis.Clusters {
			sum += c.CohesionScore
		}
		analysis.ClusterQuality = sum / float64(len(analysis.Clusters))
	}
	return analysis, nil
}

func itemRating(it *collection.Item) float64 {
	if it.HasRating() {
		return float64(it.Rating)
	}
	return collection.NeutralRating
}

// topKey returns the key with the highest count, alphabetical on ties.
func topKey(counts map[string]int) string {
	best, bestN := "", -1
	for _, k := range sortedKeys(counts) {
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best
}

func (a *patternAnalyzer) usage(items []*collection.Item) UsagePatterns {
	out := UsagePatterns{
		DailyDrivers:      []DailyDriver{},
		SeasonalRotation:  map[string][]string{},
		WeeklyRotation:    map[string][]string{},
		MoodRotation:      map[string][]string{},
		UsageDistribution: map[string]float64{},
	}
	total := float64(len(items))

	for _, it := range collection.SortByFragranceID(items) {
		daily := it.UsageFrequency == collection.UsageDaily
		if daily || (it.UsageFrequency == collection.UsageWeekly && it.HasRating() && it.Rating >= 4) {
			bonus := 0.1
			if daily {
				bonus = 0.3
			}
			d := DailyDriver{
				FragranceID:    it.FragranceID,
				Rating:         it.Rating,
				UsageFrequency: it.UsageFrequency,
				Confidence:     round2(collection.RatingWeight(it)*0.7 + bonus),
			}
			if it.Fragrance != nil {
				d.Name = it.Fragrance.Name
			}
			out.DailyDrivers = append(out.DailyDrivers, d)
		}

		for _, s := range it.NormalizedSeasons() {
			out.SeasonalRotation[s] = append(out.SeasonalRotation[s], it.FragranceID)
		}
		for _, m := range it.NormalizedEmotions() {
			out.MoodRotation[m] = append(out.MoodRotation[m], it.FragranceID)
		}
		freq := string(it.UsageFrequency)
		if freq == "" {
			freq = "unknown"
		}
		out.WeeklyRotation[freq] = append(out.WeeklyRotation[freq], it.FragranceID)
		out.UsageDistribution[freq] += 1 / total
	}

	sort.SliceStable(out.DailyDrivers, func(i, j int) bool {
		return out.DailyDrivers[i].Confidence > out.DailyDrivers[j].Confidence
	})
	return out
}
