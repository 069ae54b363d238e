package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/ScentIQ-Intelligence/internal/application/intelligence"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/monitoring/logging"
)

// IntelligenceHandler exposes the collection intelligence engine under
// /api/v1/users/{userID}.
type IntelligenceHandler struct {
	engine intelligence.Engine
	logger logging.Logger
}

func NewIntelligenceHandler(engine intelligence.Engine, logger logging.Logger) *IntelligenceHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &IntelligenceHandler{engine: engine, logger: logger}
}

// RegisterRoutes mounts every analysis endpoint on a router already scoped
// to one user.
func (h *IntelligenceHandler) RegisterRoutes(r chi.Router) {
	r.Get("/analysis", h.AnalyzeCollection)
	r.Delete("/analysis/cache", h.InvalidateCache)
	r.Post("/changes", h.DetectChanges)
	r.Get("/recommendations", h.RecommendAdditions)

	r.Route("/patterns", func(pr chi.Router) {
		pr.Get("/", h.AnalyzePatterns)
		pr.Get("/brands", h.AnalyzeBrandPatterns)
		pr.Get("/notes", h.AnalyzeNotePatterns)
		pr.Get("/clusters", h.PerformVectorClustering)
		pr.Get("/usage", h.AnalyzeUsagePatterns)
	})
	r.Route("/gaps", func(gr chi.Router) {
		gr.Get("/seasonal", h.IdentifySeasonalGaps)
		gr.Get("/occasions", h.IdentifyOccasionGaps)
		gr.Get("/intensity", h.IdentifyIntensityGaps)
		gr.Get("/diversity", h.AnalyzeDiversity)
	})
	r.Route("/optimization", func(or chi.Router) {
		or.Get("/balance", h.OptimizeForBalance)
		or.Get("/budget", h.OptimizeForBudget)
		or.Get("/usage", h.OptimizeForUsage)
		or.Post("/plan", h.CreateStrategicPlan)
	})
	r.Route("/personality", func(pr chi.Router) {
		pr.Get("/", h.GeneratePersonalityProfile)
		pr.Get("/lifestyle", h.InferLifestyle)
		pr.Get("/experience", h.AssessExperienceLevel)
		pr.Get("/evolution", h.AnalyzeCollectionEvolution)
	})
	r.Route("/insights", func(ir chi.Router) {
		ir.Get("/predictive", h.GeneratePredictiveInsights)
		ir.Get("/health", h.AnalyzeCollectionHealth)
		ir.Get("/moods", h.GenerateMoodMapping)
		ir.Post("/notifications", h.GenerateSmartNotification)
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Engine
// ─────────────────────────────────────────────────────────────────────────────

// AnalyzeCollection handles GET /analysis.
func (h *IntelligenceHandler) AnalyzeCollection(w http.ResponseWriter, r *http.Request) {
	rep := h.engine.AnalyzeCollection(r.Context(), userID(r))
	writeReport(w, rep.Outcome, rep)
}

// InvalidateCache handles DELETE /analysis/cache.
func (h *IntelligenceHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.InvalidateCacheOnCollectionChange(r.Context(), userID(r), nil); err != nil {
		h.logger.Warn("cache invalidation failed", logging.UserID(userID(r)), logging.Err(err))
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangeRequest is the body of POST /changes. The user comes from the path.
type ChangeRequest struct {
	EventID        string                    `json:"event_id"`
	ChangeType     collection.ChangeType     `json:"change_type" validate:"required,oneof=added removed rated usage_updated"`
	FragranceID    string                    `json:"fragrance_id" validate:"required"`
	Rating         int                       `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	PreviousRating int                       `json:"previous_rating,omitempty" validate:"omitempty,min=1,max=5"`
	UsageFrequency collection.UsageFrequency `json:"usage_frequency,omitempty" validate:"omitempty,oneof=daily weekly monthly occasional special rarely never"`
}

// DetectChanges handles POST /changes: it drops the cached analysis and
// returns the change insight.
func (h *IntelligenceHandler) DetectChanges(w http.ResponseWriter, r *http.Request) {
	var req ChangeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ev := collection.ChangeEvent{
		EventID:        req.EventID,
		UserID:         userID(r),
		ChangeType:     req.ChangeType,
		FragranceID:    req.FragranceID,
		Rating:         req.Rating,
		PreviousRating: req.PreviousRating,
		UsageFrequency: req.UsageFrequency,
	}
	if err := h.engine.InvalidateCacheOnCollectionChange(r.Context(), ev.UserID, &ev); err != nil {
		h.logger.Warn("cache invalidation failed", logging.UserID(ev.UserID), logging.Err(err))
	}
	rep := h.engine.Insights().DetectCollectionChanges(r.Context(), ev.UserID, ev)
	writeReport(w, rep.Outcome, rep)
}

// RecommendAdditions handles GET /recommendations?limit=N.
func (h *IntelligenceHandler) RecommendAdditions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", intelligence.DefaultRecommendationLimit)
	if err != nil {
		writeAppError(w, err)
		return
	}
	rep := h.engine.RecommendAdditions(r.Context(), userID(r), limit)
	writeReport(w, rep.Outcome, rep)
}

// ─────────────────────────────────────────────────────────────────────────────
// Patterns
// ─────────────────────────────────────────────────────────────────────────────

func (h *IntelligenceHandler) AnalyzePatterns(w http.ResponseWriter, r *http.Request) {
	rep := h.engine.Patterns().AnalyzePatterns(r.Context(), userID(r))
	writeReport(w, rep.Outcome, rep)
}

func (h *IntelligenceHandler) AnalyzeBrandPatterns(w http.ResponseWriter, r *http.Request) {
	rep := h.engine.Patterns().AnalyzeBrandPatterns(r.Context(), userID(r))
	writeReport(w, rep.Outcome, rep)
}

func (h *IntelligenceHandler) AnalyzeNotePatterns(w http.ResponseWriter, r *http.Request) {
	rep := h.engine.Patterns().AnalyzeNotePatterns(r.Context(), userID(r))
	writeReport(w, rep.Outcome, rep)
}

func (h *IntelligenceHandler) PerformVectorClustering(w http.ResponseWriter, r *http.Request) {
	rep := h.engine.Patterns().PerformVectorClustering(r.Context(), userID(r))
	writeReport(w, rep.Outcome, rep)
}

func (h *IntelligenceHandler) AnalyzeUsagePatterns(w http.ResponseWriter, r *http.Request) {
	rep := h.engine.Patterns().AnalyzeUsagePatterns(r.Context(), userID(r))
	writeReport(w, rep.Outcome, rep)
}

// ─────────────────────────────────────────────────────────────────────────────
// Gaps
// ─────────────────────────────────────────────────────────────────────────────

func (h *IntelligenceHandler) IdentifySeasonalGaps(w http.ResponseWriter, r *http.Request) {
	rep := h.engine.Gaps().IdentifySeasonalGaps(r.Context(), userID(r))
	writeReport(w, rep.Outcome, rep)
}

func (h *IntelligenceHandler) IdentifyOccasionGaps(w http.ResponseWriter, r *http.Request) {
	rep := h.engine.Gaps().IdentifyOccasionGaps(r.Context(), userID(r))
	writeReport(w, rep.Outcome, rep)
}

func (h *IntelligenceHandler) IdentifyIntensityGaps(w http.ResponseWriter, r *http.Request) {
	rep := h.engine.Gaps().IdentifyIntensityGaps(r.Context(), userID(r))
	writeReport(w, rep.Outcome, rep)
}

func (h *IntelligenceHandler) AnalyzeDiversity(w http.ResponseWriter, r *http.Request) {
	rep := h.engine.Gaps().AnalyzeDiversity(r.Context(), userID(r))
	writeReport(w, rep.Outcome, rep)
}

// ─────────────────────────────────────────────────────────────────────────────
// Optimization
// ─────────────────────────────────────────────────────────────────────────────

func (h *IntelligenceHandler) OptimizeForBalance(w http.ResponseWriter, r *http.Request) {
	rep := h.engine.Optimizer().OptimizeForBalance(r.Context(), userID(r))
	writeReport(w, rep.Outcome, rep)
}

// OptimizeForBudget handles GET /optimization/budget?budget=X.
func (h *IntelligenceHandler) OptimizeForBudget(w http.ResponseWriter, r *http.Request) {
	budget, err := queryFloat(r, "budget")
	if err != nil {
		writeAppError(w, err)
		return
	}
	rep := h.engine.Optimizer().OptimizeForBudget(r.Context(), userID(r), budget)
	writeReport(w, rep.Outcome, rep)
}

func (h *IntelligenceHandler) OptimizeForUsage(w http.ResponseWriter, r *http.Request) {
	rep := h.engine.Optimizer().OptimizeForUsage(r.Context(), userID(r))
	writeReport(w, rep.Outcome, rep)
}

// CreateStrategicPlan handles POST /optimization/plan with a PlanRequest body.
func (h *IntelligenceHandler) CreateStrategicPlan(w http.ResponseWriter, r *http.Request) {
	var req intelligence.PlanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rep := h.engine.Optimizer().CreateStrategicPlan(r.Context(), userID(r), req)
	writeReport(w, rep.Outcome, rep)
}

// ─────────────────────────────────────────────────────────────────────────────
// Personality
// ─────────────────────────────────────────────────────────────────────────────

func (h *IntelligenceHandler) GeneratePersonalityProfile(w http.ResponseWriter, r *http.Request) {
	rep := h.engine.Personality().GeneratePersonalityProfile(r.Context(), userID(r))
	writeReport(w, rep.Outcome, rep)
}

func (h *IntelligenceHandler) InferLifestyle(w http.ResponseWriter, r *http.Request) {
	rep := h.engine.Personality().InferLifestyle(r.Context(), userID(r))
	writeReport(w, rep.Outcome, rep)
}

func (h *IntelligenceHandler) AssessExperienceLevel(w http.ResponseWriter, r *http.Request) {
	rep := h.engine.Personality().AssessExperienceLevel(r.Context(), userID(r))
	writeReport(w, rep.Outcome, rep)
}

func (h *IntelligenceHandler) AnalyzeCollectionEvolution(w http.ResponseWriter, r *http.Request) {
	rep := h.engine.Personality().AnalyzeCollectionEvolution(r.Context(), userID(r))
	writeReport(w, rep.Outcome, rep)
}

// ─────────────────────────────────────────────────────────────────────────────
// Insights
// ─────────────────────────────────────────────────────────────────────────────

func (h *IntelligenceHandler) GeneratePredictiveInsights(w http.ResponseWriter, r *http.Request) {
	rep := h.engine.Insights().GeneratePredictiveInsights(r.Context(), userID(r))
	writeReport(w, rep.Outcome, rep)
}

func (h *IntelligenceHandler) AnalyzeCollectionHealth(w http.ResponseWriter, r *http.Request) {
	rep := h.engine.Insights().AnalyzeCollectionHealth(r.Context(), userID(r))
	writeReport(w, rep.Outcome, rep)
}

func (h *IntelligenceHandler) GenerateMoodMapping(w http.ResponseWriter, r *http.Request) {
	rep := h.engine.Insights().GenerateMoodMapping(r.Context(), userID(r))
	writeReport(w, rep.Outcome, rep)
}

// NotificationRequest is the body of POST /insights/notifications.
type NotificationRequest struct {
	Trigger intelligence.TriggerType `json:"trigger" validate:"required"`
	Values  map[string]string        `json:"values,omitempty"`
}

// GenerateSmartNotification handles POST /insights/notifications. Unknown
// triggers come back as a typed failure from the generator.
func (h *IntelligenceHandler) GenerateSmartNotification(w http.ResponseWriter, r *http.Request) {
	var req NotificationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rep := h.engine.Insights().GenerateSmartNotification(r.Context(), userID(r), req.Trigger, req.Values)
	writeReport(w, rep.Outcome, rep)
}
