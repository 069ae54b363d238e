package intelligence

import (
	"context"
	"sort"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

const (
	DefaultRecommendationLimit = 5
	MaxRecommendationLimit     = 50

	// candidateOverfetch widens the catalog query so ranking has room to work.
	candidateOverfetch = 4
)

type Recommendation struct {
	Fragrance    *fragrance.Fragrance `json:"fragrance"`
	TargetFamily string               `json:"target_family"`
	Similarity   float64              `json:"similarity"`
	Reason       string               `json:"reason"`
}

type RecommendationReport struct {
	Outcome
	UserID          string           `json:"user_id"`
	TargetFamilies  []string         `json:"target_families"`
	TasteProfile    bool             `json:"taste_profile"`
	Recommendations []Recommendation `json:"recommendations"`
}

// RecommendAdditions proposes catalog fragrances that close diversity and
// balance gaps, ranked by similarity to the user's taste vector.
func (e *engine) RecommendAdditions(ctx context.Context, userID string, limit int) (report *RecommendationReport) {
	start := e.base.clock.Now()
	report = &RecommendationReport{UserID: userID, TargetFamilies: []string{}, Recommendations: []Recommendation{}}
	defer func() {
		e.metrics.ObserveAnalysis("recommend_additions", outcomeStatus(report.Outcome), e.base.clock.Now().Sub(start))
	}()
	defer e.base.guard("recommend_additions", userID, &report.Outcome)

	if limit <= 0 {
		limit = DefaultRecommendationLimit
	}
	if limit > MaxRecommendationLimit {
		limit = MaxRecommendationLimit
	}
	if e.catalog == nil {
		report.Outcome = failedWith(errors.New(errors.ErrCodeCatalogUnavailable, "no catalog backend configured"))
		return report
	}

	items, outcome := e.base.load(ctx, "recommend_additions", userID)
	if outcome.Failure != nil {
		report.Outcome = outcome
		return report
	}

	report.TargetFamilies = e.targetFamilies(items)
	owned := make(map[string]bool, len(items))
	exclude := make([]string, 0, len(items))
	for _, it := range items {
		if !owned[it.FragranceID] {
			owned[it.FragranceID] = true
			exclude = append(exclude, it.FragranceID)
		}
	}

	candidates, err := e.catalog.SearchByFamilies(ctx, report.TargetFamilies, exclude, limit*candidateOverfetch)
	if err != nil {
		e.base.logger.Warn("catalog search failed", logging.UserID(userID), logging.Err(err))
		report.Outcome = failedWith(errors.Wrap(err, errors.ErrCodeCatalogUnavailable, "catalog search failed"))
		return report
	}
	candidates = e.hydrateCandidates(ctx, userID, candidates, owned)

	taste, err := collection.WeightedAverageEmbedding(items, collection.DefaultWeight)
	if err != nil {
		report.Outcome = failedWith(err)
		return report
	}
	report.TasteProfile = !taste.IsZero()

	targets := make(map[string]bool, len(report.TargetFamilies))
	for _, f := range report.TargetFamilies {
		targets[f] = true
	}
	for _, c := range candidates {
		rec := Recommendation{Fragrance: c, TargetFamily: c.NormalizedFamily()}
		if report.TasteProfile && c.HasEmbedding() {
			sim, err := fragrance.CosineSimilarity(taste, c.Embedding)
			if err != nil {
				e.base.logger.Warn("skipping candidate with mismatched embedding",
					logging.UserID(userID), logging.String("fragrance_id", c.ID), logging.Err(err))
				continue
			}
			rec.Similarity = round2(sim)
		}
		switch {
		case targets[rec.TargetFamily] && rec.Similarity >= 0.5:
			rec.Reason = "fills a gap while matching your taste"
		case targets[rec.TargetFamily]:
			rec.Reason = "fills a gap in your " + rec.TargetFamily + " coverage"
		default:
			rec.Reason = "close to fragrances you rate highly"
		}
		report.Recommendations = append(report.Recommendations, rec)
	}

	sort.SliceStable(report.Recommendations, func(i, j int) bool {
		a, b := report.Recommendations[i], report.Recommendations[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		return a.Fragrance.ID < b.Fragrance.ID
	})
	if len(report.Recommendations) > limit {
		report.Recommendations = report.Recommendations[:limit]
	}

	report.Outcome = succeeded()
	return report
}

// targetFamilies lists diversity suggestions then missing canonical families;
// a well-balanced collection falls back to its primary family.
func (e *engine) targetFamilies(items []*collection.Item) []string {
	if len(items) == 0 {
		return append([]string{}, fragrance.CanonicalFamilies...)
	}
	seen := make(map[string]bool)
	out := []string{}
	add := func(fams []string) {
		for _, f := range fams {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	add(e.gaps.diversity(items).ExpansionSuggestions)
	add(e.opt.balance(items).Underrepresented)
	if len(out) == 0 {
		if primary := dominantFamily(items); primary != "" {
			out = append(out, primary)
		}
	}
	return out
}

// hydrateCandidates drops owned candidates and fills missing embeddings from
// the vector store. Lookup failures degrade to unranked candidates.
func (e *engine) hydrateCandidates(ctx context.Context, userID string, candidates []*fragrance.Fragrance, owned map[string]bool) []*fragrance.Fragrance {
	out := make([]*fragrance.Fragrance, 0, len(candidates))
	var missing []string
	for _, c := range candidates {
		if c == nil || owned[c.ID] {
			continue
		}
		out = append(out, c)
		if !c.HasEmbedding() {
			missing = append(missing, c.ID)
		}
	}
	if len(missing) == 0 || e.embeddings == nil {
		return out
	}

	vectors, err := e.embeddings.GetEmbeddings(ctx, missing)
	if err != nil {
		e.base.logger.Warn("candidate embedding lookup failed", logging.UserID(userID), logging.Err(err))
		return out
	}
	for i, c := range out {
		if v, ok := vectors[c.ID]; ok && !c.HasEmbedding() {
			cp := *c
			cp.Embedding = v
			out[i] = &cp
		}
	}
	return out
}
