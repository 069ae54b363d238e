package intelligence

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// TriggerType selects a notification template.
type TriggerType string

const (
	TriggerSeasonalTransition   TriggerType = "seasonal_transition"
	TriggerNewHighRating        TriggerType = "new_high_rating"
	TriggerUnusedFragranceAlert TriggerType = "unused_fragrance_alert"
	TriggerCollectionMilestone  TriggerType = "collection_milestone"
)

const (
	IssueUnusedFragrance = "unused_fragrance"
	IssuePoorPerformance = "poor_performance"
)

type notificationTemplate struct {
	title      string
	message    string
	suggestion string
}

var notificationTemplates = map[TriggerType]notificationTemplate{
	TriggerSeasonalTransition: {
		title:      "{season} is here",
		message:    "{season} has arrived and {season_count} of your fragrances suit it.",
		suggestion: "Move your {season} favorites to the front of the shelf.",
	},
	TriggerNewHighRating: {
		title:      "A new favorite",
		message:    "You rated {fragrance_name} {rating} stars.",
		suggestion: "Explore more {family} fragrances like {fragrance_name}.",
	},
	TriggerUnusedFragranceAlert: {
		title:      "Forgotten bottles",
		message:    "{unused_count} of your fragrances have not been worn in a while.",
		suggestion: "Give {fragrance_name} another try this week.",
	},
	TriggerCollectionMilestone: {
		title:      "Collection milestone",
		message:    "Your collection just reached {count} fragrances.",
		suggestion: "Review your collection insights to plan the next addition.",
	},
}

// KnownTriggers lists the supported notification triggers.
func KnownTriggers() []TriggerType {
	return []TriggerType{TriggerSeasonalTransition, TriggerNewHighRating, TriggerUnusedFragranceAlert, TriggerCollectionMilestone}
}

var placeholderPattern = regexp.MustCompile(`\{[a-z_]+\}`)

// coreMoods maps each tracked mood onto families that usually evoke it.
var coreMoods = map[string][]string{
	"relaxation": {fragrance.FamilyAromatic, fragrance.FamilyFresh, fragrance.FamilyGreen},
	"energy":     {fragrance.FamilyCitrus, fragrance.FamilyFresh, fragrance.FamilyAquatic},
	"confidence": {fragrance.FamilyWoody, fragrance.FamilyLeather, fragrance.FamilyOriental},
	"romance":    {fragrance.FamilyFloral, fragrance.FamilyOriental, fragrance.FamilyGourmand},
	"comfort":    {fragrance.FamilyGourmand, fragrance.FamilyWoody},
	"focus":      {fragrance.FamilyGreen, fragrance.FamilyAromatic, fragrance.FamilyCitrus},
}

// ─────────────────────────────────────────────────────────────────────────────
// result types
// ─────────────────────────────────────────────────────────────────────────────

type ChangeImpact struct {
	SizeBefore        int    `json:"size_before"`
	SizeAfter         int    `json:"size_after"`
	PreviousDominant  string `json:"previous_dominant,omitempty"`
	CurrentDominant   string `json:"current_dominant,omitempty"`
	DominantShift     bool   `json:"dominant_shift"`
	NewFamilyExplored bool   `json:"new_family_explored"`
	HighRating        bool   `json:"high_rating"`
	LowRating         bool   `json:"low_rating"`
	MilestoneReached  bool   `json:"milestone_reached"`
}

type ChangeInsight struct {
	ChangeType  collection.ChangeType `json:"change_type"`
	FragranceID string                `json:"fragrance_id"`
	Family      string                `json:"family,omitempty"`
	Impact      ChangeImpact          `json:"impact"`
	Insight     string                `json:"insight"`
	Confidence  float64               `json:"confidence"`
}

type ChangeReport struct {
	Outcome
	UserID string `json:"user_id"`
	ChangeInsight
}

type PreferenceTrend struct {
	Family      string  `json:"family"`
	RecentCount int     `json:"recent_count"`
	Confidence  float64 `json:"confidence"`
}

type PredictiveInsights struct {
	WindowDays               int               `json:"window_days"`
	RecentItems              int               `json:"recent_items"`
	StrengtheningPreferences []PreferenceTrend `json:"strengthening_preferences"`
	Prediction               string            `json:"prediction,omitempty"`
}

type PredictiveReport struct {
	Outcome
	UserID string `json:"user_id"`
	PredictiveInsights
}

type HealthIssue struct {
	FragranceID string `json:"fragrance_id"`
	Name        string `json:"name,omitempty"`
	IssueType   string `json:"issue_type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
}

type CollectionHealth struct {
	HealthScore float64       `json:"health_score"`
	TotalItems  int           `json:"total_items"`
	Issues      []HealthIssue `json:"issues"`
}

type HealthReport struct {
	Outcome
	UserID string `json:"user_id"`
	CollectionHealth
}

type SmartNotification struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	Type       TriggerType       `json:"type"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion"`
	Context    map[string]string `json:"context"`
	CreatedAt  time.Time         `json:"created_at"`
}

type NotificationReport struct {
	Outcome
	UserID       string             `json:"user_id"`
	Notification *SmartNotification `json:"notification,omitempty"`
}

type EmotionalGap struct {
	Mood              string   `json:"mood"`
	SuggestedFamilies []string `json:"suggested_families"`
}

type MoodMapping struct {
	MoodMap       map[string][]string `json:"mood_map"`
	CoveredMoods  []string            `json:"covered_moods"`
	EmotionalGaps []EmotionalGap      `json:"emotional_gaps"`
	CoverageScore float64             `json:"coverage_score"`
}

type MoodReport struct {
	Outcome
	UserID string `json:"user_id"`
	MoodMapping
}

// InsightGenerator turns collection state and edits into user-facing insight.
type InsightGenerator interface {
	DetectCollectionChanges(ctx context.Context, userID string, change collection.ChangeEvent) *ChangeReport
	GeneratePredictiveInsights(ctx context.Context, userID string) *PredictiveReport
	AnalyzeCollectionHealth(ctx context.Context, userID string) *HealthReport
	GenerateSmartNotification(ctx context.Context, userID string, trigger TriggerType, values map[string]string) *NotificationReport
	GenerateMoodMapping(ctx context.Context, userID string) *MoodReport
}

type insightGenerator struct {
	*analyzerBase
	newID func() string
}

// NewInsightGenerator builds an InsightGenerator.
func NewInsightGenerator(cfg AnalyzerConfig) (InsightGenerator, error) {
	base, err := newAnalyzerBase(cfg, "insights")
	if err != nil {
		return nil, err
	}
	return newInsightGenerator(base), nil
}

func newInsightGenerator(base *analyzerBase) *insightGenerator {
	return &insightGenerator{analyzerBase: base, newID: uuid.NewString}
}

func (g *insightGenerator) DetectCollectionChanges(ctx context.Context, userID string, change collection.ChangeEvent) (report *ChangeReport) {
	report = &ChangeReport{UserID: userID}
	defer g.guard("detect_collection_changes", userID, &report.Outcome)

	if !change.ChangeType.IsValid() || change.FragranceID == "" {
		report.Outcome = failedWith(errors.NewValidation("change requires a known change_type and a fragrance_id"))
		return report
	}
	items, outcome := g.load(ctx, "detect_collection_changes", userID)
	if outcome.Failure != nil {
		report.Outcome = outcome
		return report
	}
	report.Outcome = succeeded()
	report.ChangeInsight = g.changeInsight(items, change)
	return report
}

func (g *insightGenerator) GeneratePredictiveInsights(ctx context.Context, userID string) (report *PredictiveReport) {
	report = &PredictiveReport{UserID: userID, PredictiveInsights: g.emptyPredictive()}
	defer g.guard("generate_predictive_insights", userID, &report.Outcome)

	items, outcome := g.load(ctx, "generate_predictive_insights", userID)
	report.Outcome = outcome
	if items != nil {
		report.PredictiveInsights = g.predictive(items)
	}
	return report
}

func (g *insightGenerator) AnalyzeCollectionHealth(ctx context.Context, userID string) (report *HealthReport) {
	report = &HealthReport{UserID: userID, CollectionHealth: CollectionHealth{HealthScore: 1, Issues: []HealthIssue{}}}
	defer g.guard("analyze_collection_health", userID, &report.Outcome)

	items, outcome := g.load(ctx, "analyze_collection_health", userID)
	report.Outcome = outcome
	if items != nil {
		report.CollectionHealth = g.health(items)
	}
	return report
}

func (g *insightGenerator) GenerateSmartNotification(ctx context.Context, userID string, trigger TriggerType, values map[string]string) (report *NotificationReport) {
	report = &NotificationReport{UserID: userID}
	defer g.guard("generate_smart_notification", userID, &report.Outcome)

	tmpl, ok := notificationTemplates[trigger]
	if !ok {
		report.Outcome = failedWith(errors.New(errors.ErrCodeUnknownTrigger, fmt.Sprintf("unknown notification trigger %q", trigger)))
		return report
	}
	items, outcome := g.load(ctx, "generate_smart_notification", userID)
	if outcome.Failure != nil {
		report.Outcome = outcome
		return report
	}
	report.Outcome = succeeded()
	report.Notification = g.notification(userID, trigger, tmpl, items, values)
	return report
}

func (g *insightGenerator) GenerateMoodMapping(ctx context.Context, userID string) (report *MoodReport) {
	report = &MoodReport{UserID: userID, MoodMapping: moodMapping(nil)}
	defer g.guard("generate_mood_mapping", userID, &report.Outcome)

	items, outcome := g.load(ctx, "generate_mood_mapping", userID)
	report.Outcome = outcome
	if items != nil {
		report.MoodMapping = moodMapping(items)
	}
	return report
}

// ─────────────────────────────────────────────────────────────────────────────
// computations
// ─────────────────────────────────────────────────────────────────────────────

func dominantFamily(items []*collection.Item) string {
	dist := familyDistribution(items)
	if len(dist) == 0 {
		return ""
	}
	return dist[0].Family
}

func isMilestone(n int) bool {
	return n == 1 || n == 5 || n == 10 || (n > 0 && n%25 == 0)
}

func (g *insightGenerator) changeInsight(after []*collection.Item, change collection.ChangeEvent) ChangeInsight {
	out := ChangeInsight{
		ChangeType:  change.ChangeType,
		FragranceID: change.FragranceID,
		Confidence:  g.th().ChangeConfidence,
	}

	var changed *collection.Item
	before := make([]*collection.Item, 0, len(after))
	for _, it := range after {
		if it.FragranceID == change.FragranceID {
			changed = it
			if change.ChangeType == collection.ChangeAdded {
				continue
			}
		}
		before = append(before, it)
	}
	if changed != nil {
		out.Family = changed.Family()
	}

	impact := ChangeImpact{SizeBefore: len(before), SizeAfter: len(after)}
	if change.ChangeType == collection.ChangeRemoved && changed == nil {
		impact.SizeBefore = len(after) + 1
	}
	impact.PreviousDominant = dominantFamily(before)
	impact.CurrentDominant = dominantFamily(after)
	impact.DominantShift = change.ChangeType != collection.ChangeRemoved && impact.PreviousDominant != impact.CurrentDominant

	rating := change.Rating
	if rating == 0 && changed != nil {
		rating = changed.Rating
	}
	switch change.ChangeType {
	case collection.ChangeAdded:
		if changed != nil {
			impact.NewFamilyExplored = true
			for _, it := range before {
				if it.Family() == out.Family {
					impact.NewFamilyExplored = false
					break
				}
			}
		}
		impact.MilestoneReached = isMilestone(impact.SizeAfter)
		impact.HighRating = rating >= 4
		impact.LowRating = rating >= 1 && rating <= 2
	case collection.ChangeRated:
		impact.HighRating = rating >= 4
		impact.LowRating = rating >= 1 && rating <= 2
	}
	out.Impact = impact
	out.Insight = describeChange(out, rating, change.PreviousRating)
	return out
}

func describeChange(c ChangeInsight, rating, previous int) string {
	imp := c.Impact
	switch c.ChangeType {
	case collection.ChangeAdded:
		switch {
		case imp.DominantShift:
			return fmt.Sprintf("This addition shifts your signature from %s to %s.", imp.PreviousDominant, imp.CurrentDominant)
		case imp.NewFamilyExplored:
			return fmt.Sprintf("You are exploring a new family: %s.", c.Family)
		case imp.HighRating:
			return "A highly rated addition reinforces your current preferences."
		default:
			return fmt.Sprintf("Your collection now holds %d fragrances.", imp.SizeAfter)
		}
	case collection.ChangeRated:
		switch {
		case previous > 0 && rating > previous:
			return fmt.Sprintf("Your opinion of this fragrance improved from %d to %d stars.", previous, rating)
		case previous > 0 && rating < previous:
			return fmt.Sprintf("Your opinion of this fragrance dropped from %d to %d stars.", previous, rating)
		case imp.HighRating:
			return "You found a new favorite."
		case imp.LowRating:
			return "This fragrance did not work for you; similar scents will be ranked lower."
		default:
			return "Rating recorded."
		}
	case collection.ChangeRemoved:
		return fmt.Sprintf("Your collection shrank to %d fragrances.", imp.SizeAfter)
	default:
		return "Usage pattern updated."
	}
}

func (g *insightGenerator) emptyPredictive() PredictiveInsights {
	return PredictiveInsights{
		WindowDays:               int(g.th().PredictiveWindow.Hours() / 24),
		StrengtheningPreferences: []PreferenceTrend{},
	}
}

func (g *insightGenerator) predictive(items []*collection.Item) PredictiveInsights {
	out := g.emptyPredictive()
	cutoff := g.clock.Now().Add(-g.th().PredictiveWindow)

	var recent []*collection.Item
	for _, it := range items {
		if !it.CreatedAt.IsZero() && it.CreatedAt.After(cutoff) {
			recent = append(recent, it)
		}
	}
	out.RecentItems = len(recent)
	for _, st := range groupBy(recent, familyKey) {
		out.StrengtheningPreferences = append(out.StrengtheningPreferences, PreferenceTrend{
			Family:      st.name,
			RecentCount: st.count,
			Confidence:  clamp01(float64(st.count) / 3),
		})
	}
	sort.SliceStable(out.StrengtheningPreferences, func(i, j int) bool {
		a, b := out.StrengtheningPreferences[i], out.StrengtheningPreferences[j]
		if a.RecentCount != b.RecentCount {
			return a.RecentCount > b.RecentCount
		}
		return a.Family < b.Family
	})
	if len(out.StrengtheningPreferences) > 0 {
		out.Prediction = fmt.Sprintf("Your interest in %s fragrances is growing.", out.StrengtheningPreferences[0].Family)
	}
	return out
}

func (g *insightGenerator) isUnused(it *collection.Item, now time.Time) bool {
	if it.UsageFrequency == collection.UsageNever {
		return true
	}
	return it.LastUsedAt != nil && now.Sub(*it.LastUsedAt) > g.th().UnusedAfter
}

func isPoorPerformer(it *collection.Item) bool {
	if !it.HasRating() {
		return false
	}
	return it.Rating <= 2 || (it.PerformanceIssues && it.Rating <= 3)
}

func (g *insightGenerator) health(items []*collection.Item) CollectionHealth {
	now := g.clock.Now()
	out := CollectionHealth{TotalItems: len(items), Issues: []HealthIssue{}}
	for _, it := range collection.SortByFragranceID(items) {
		name := ""
		if it.Fragrance != nil {
			name = it.Fragrance.Name
		}
		if g.isUnused(it, now) {
			out.Issues = append(out.Issues, HealthIssue{
				FragranceID: it.FragranceID, Name: name,
				IssueType: IssueUnusedFragrance, Severity: SeverityMedium,
				Description: "not worn recently",
			})
		}
		if isPoorPerformer(it) {
			out.Issues = append(out.Issues, HealthIssue{
				FragranceID: it.FragranceID, Name: name,
				IssueType: IssuePoorPerformance, Severity: SeverityHigh,
				Description: fmt.Sprintf("rated %d of 5", it.Rating),
			})
		}
	}
	out.HealthScore = clamp01(1 - float64(len(out.Issues))/float64(len(items)))
	return out
}

func seasonAt(t time.Time) string {
	switch t.Month() {
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	case time.September, time.October, time.November:
		return "fall"
	default:
		return "winter"
	}
}

// notificationContext derives placeholder values from the collection. Caller
// supplied values take precedence.
func (g *insightGenerator) notificationContext(trigger TriggerType, items []*collection.Item, values map[string]string) map[string]string {
	now := g.clock.Now()
	ctx := map[string]string{
		"count":  strconv.Itoa(len(items)),
		"season": seasonAt(now),
	}
	if s, ok := values["season"]; ok && s != "" {
		ctx["season"] = collection.NormalizeSeason(s)
	}
	seasonCount := 0
	unused := 0
	var featured *collection.Item
	byID := make(map[string]*collection.Item, len(items))
	for _, it := range collection.SortByFragranceID(items) {
		byID[it.FragranceID] = it
		if it.HasSeason(ctx["season"]) {
			seasonCount++
		}
		if g.isUnused(it, now) {
			unused++
			if trigger == TriggerUnusedFragranceAlert && featured == nil {
				featured = it
			}
		}
		if trigger == TriggerNewHighRating && it.HasRating() && (featured == nil || it.Rating > featured.Rating) {
			featured = it
		}
	}
	if id := values["fragrance_id"]; id != "" && byID[id] != nil {
		featured = byID[id]
	}
	ctx["season_count"] = strconv.Itoa(seasonCount)
	ctx["unused_count"] = strconv.Itoa(unused)
	if featured != nil {
		ctx["fragrance_id"] = featured.FragranceID
		ctx["family"] = featured.Family()
		if featured.Fragrance != nil && featured.Fragrance.Name != "" {
			ctx["fragrance_name"] = featured.Fragrance.Name
		} else {
			ctx["fragrance_name"] = featured.FragranceID
		}
		if featured.HasRating() {
			ctx["rating"] = strconv.Itoa(featured.Rating)
		}
	}
	for k, v := range values {
		if k == "season" {
			continue
		}
		ctx[k] = v
	}
	return ctx
}

// interpolate fills {placeholder} tokens; unknown tokens collapse away.
func interpolate(tmpl string, ctx map[string]string) string {
	s := placeholderPattern.ReplaceAllStringFunc(tmpl, func(ph string) string {
		return ctx[strings.Trim(ph, "{}")]
	})
	return strings.Join(strings.Fields(s), " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (g *insightGenerator) notification(userID string, trigger TriggerType, tmpl notificationTemplate, items []*collection.Item, values map[string]string) *SmartNotification {
	ctx := g.notificationContext(trigger, items, values)
	return &SmartNotification{
		ID:         g.newID(),
		UserID:     userID,
		Type:       trigger,
		Title:      capitalize(interpolate(tmpl.title, ctx)),
		Message:    interpolate(tmpl.message, ctx),
		Suggestion: interpolate(tmpl.suggestion, ctx),
		Context:    ctx,
		CreatedAt:  g.clock.Now().UTC(),
	}
}

func moodMapping(items []*collection.Item) MoodMapping {
	out := MoodMapping{
		MoodMap:       map[string][]string{},
		CoveredMoods:  []string{},
		EmotionalGaps: []EmotionalGap{},
	}
	for _, it := range collection.SortByFragranceID(items) {
		for _, mood := range it.NormalizedEmotions() {
			out.MoodMap[mood] = append(out.MoodMap[mood], it.FragranceID)
		}
	}
	for _, mood := range sortedKeys(coreMoods) {
		if len(out.MoodMap[mood]) > 0 {
			out.CoveredMoods = append(out.CoveredMoods, mood)
			continue
		}
		out.EmotionalGaps = append(out.EmotionalGaps, EmotionalGap{
			Mood:              mood,
			SuggestedFamilies: append([]string(nil), coreMoods[mood]...),
		})
	}
	out.CoverageScore = float64(len(out.CoveredMoods)) / float64(len(coreMoods))
	return out
}
