package intelligence

import (
	"context"
	"sort"

	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// Reporter is satisfied by every report type through its embedded Outcome.
type Reporter interface {
	Status() Outcome
}

// OperationParams carries the optional arguments a few operations take.
type OperationParams struct {
	Limit  int
	Budget float64
}

type operationFunc func(ctx context.Context, e Engine, userID string, p OperationParams) Reporter

// operations names every read-only, user-scoped analysis. Transports use the
// names to expose the engine without one endpoint per method.
var operations = map[string]operationFunc{
	"analysis": func(ctx context.Context, e Engine, u string, _ OperationParams) Reporter {
		return e.AnalyzeCollection(ctx, u)
	},
	"recommendations": func(ctx context.Context, e Engine, u string, p OperationParams) Reporter {
		return e.RecommendAdditions(ctx, u, p.Limit)
	},

	"patterns": func(ctx context.Context, e Engine, u string, _ OperationParams) Reporter {
		return e.Patterns().AnalyzePatterns(ctx, u)
	},
	"patterns.brands": func(ctx context.Context, e Engine, u string, _ OperationParams) Reporter {
		return e.Patterns().AnalyzeBrandPatterns(ctx, u)
	},
	"patterns.notes": func(ctx context.Context, e Engine, u string, _ OperationParams) Reporter {
		return e.Patterns().AnalyzeNotePatterns(ctx, u)
	},
	"patterns.clusters": func(ctx context.Context, e Engine, u string, _ OperationParams) Reporter {
		return e.Patterns().PerformVectorClustering(ctx, u)
	},
	"patterns.usage": func(ctx context.Context, e Engine, u string, _ OperationParams) Reporter {
		return e.Patterns().AnalyzeUsagePatterns(ctx, u)
	},

	"gaps.seasonal": func(ctx context.Context, e Engine, u string, _ OperationParams) Reporter {
		return e.Gaps().IdentifySeasonalGaps(ctx, u)
	},
	"gaps.occasions": func(ctx context.Context, e Engine, u string, _ OperationParams) Reporter {
		return e.Gaps().IdentifyOccasionGaps(ctx, u)
	},
	"gaps.intensity": func(ctx context.Context, e Engine, u string, _ OperationParams) Reporter {
		return e.Gaps().IdentifyIntensityGaps(ctx, u)
	},
	"gaps.diversity": func(ctx context.Context, e Engine, u string, _ OperationParams) Reporter {
		return e.Gaps().AnalyzeDiversity(ctx, u)
	},

	"optimization.balance": func(ctx context.Context, e Engine, u string, _ OperationParams) Reporter {
		return e.Optimizer().OptimizeForBalance(ctx, u)
	},
	"optimization.budget": func(ctx context.Context, e Engine, u string, p OperationParams) Reporter {
		return e.Optimizer().OptimizeForBudget(ctx, u, p.Budget)
	},
	"optimization.usage": func(ctx context.Context, e Engine, u string, _ OperationParams) Reporter {
		return e.Optimizer().OptimizeForUsage(ctx, u)
	},

	"personality": func(ctx context.Context, e Engine, u string, _ OperationParams) Reporter {
		return e.Personality().GeneratePersonalityProfile(ctx, u)
	},
	"personality.lifestyle": func(ctx context.Context, e Engine, u string, _ OperationParams) Reporter {
		return e.Personality().InferLifestyle(ctx, u)
	},
	"personality.experience": func(ctx context.Context, e Engine, u string, _ OperationParams) Reporter {
		return e.Personality().AssessExperienceLevel(ctx, u)
	},
	"personality.evolution": func(ctx context.Context, e Engine, u string, _ OperationParams) Reporter {
		return e.Personality().AnalyzeCollectionEvolution(ctx, u)
	},

	"insights.predictive": func(ctx context.Context, e Engine, u string, _ OperationParams) Reporter {
		return e.Insights().GeneratePredictiveInsights(ctx, u)
	},
	"insights.health": func(ctx context.Context, e Engine, u string, _ OperationParams) Reporter {
		return e.Insights().AnalyzeCollectionHealth(ctx, u)
	},
	"insights.moods": func(ctx context.Context, e Engine, u string, _ OperationParams) Reporter {
		return e.Insights().GenerateMoodMapping(ctx, u)
	},
}

// OperationNames lists the names RunOperation accepts, sorted.
func OperationNames() []string {
	names := make([]string, 0, len(operations))
	for name := range operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunOperation dispatches name against e. Unknown names are a validation
// error; analysis failures stay inside the returned report.
func RunOperation(ctx context.Context, e Engine, name, userID string, p OperationParams) (Reporter, error) {
	op, ok := operations[name]
	if !ok {
		return nil, errors.NewValidation("unknown operation %q", name)
	}
	return op(ctx, e, userID, p), nil
}
