package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/turtacn/ScentIQ-Intelligence/internal/application/intelligence"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/storage/minio"
	"github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

// Response types re-exported for SDK callers.
type (
	CollectionAnalysis   = intelligence.CollectionAnalysis
	RecommendationReport = intelligence.RecommendationReport
	ChangeReport         = intelligence.ChangeReport
	StrategicPlanReport  = intelligence.StrategicPlanReport
	PlanRequest          = intelligence.PlanRequest
	NotificationReport   = intelligence.NotificationReport
	TriggerType          = intelligence.TriggerType
	Outcome              = intelligence.Outcome
	ChangeType           = collection.ChangeType
	UsageFrequency       = collection.UsageFrequency
	SnapshotInfo         = minio.SnapshotInfo
)

// Change describes one collection edit for DetectChange.
type Change struct {
	EventID        string         `json:"event_id,omitempty"`
	ChangeType     ChangeType     `json:"change_type"`
	FragranceID    string         `json:"fragrance_id"`
	Rating         int            `json:"rating,omitempty"`
	PreviousRating int            `json:"previous_rating,omitempty"`
	UsageFrequency UsageFrequency `json:"usage_frequency,omitempty"`
}

// ViewResult is the report of a single analysis view, kept as raw JSON
// beside its decoded outcome.
type ViewResult struct {
	Outcome
	Raw json.RawMessage `json:"-"`
}

// Decode unmarshals the full report into v.
func (r *ViewResult) Decode(v interface{}) error {
	return json.Unmarshal(r.Raw, v)
}

func (r *ViewResult) UnmarshalJSON(data []byte) error {
	r.Raw = append(r.Raw[:0], data...)
	return json.Unmarshal(data, &r.Outcome)
}

// Views available per group; "" selects the group's summary where one exists.
var views = map[string][]string{
	"patterns":     {"", "brands", "notes", "clusters", "usage"},
	"gaps":         {"seasonal", "occasions", "intensity", "diversity"},
	"optimization": {"balance", "usage"},
	"personality":  {"", "lifestyle", "experience", "evolution"},
	"insights":     {"predictive", "health", "moods"},
}

// UserClient calls the endpoints scoped to one user.
type UserClient struct {
	client *Client
	userID string
}

func (u *UserClient) path(suffix string) string {
	return fmt.Sprintf("%s/users/%s%s", apiPrefix, url.PathEscape(u.userID), suffix)
}

// Analyze runs the full collection analysis.
func (u *UserClient) Analyze(ctx context.Context) (*CollectionAnalysis, error) {
	var out CollectionAnalysis
	if err := u.client.get(ctx, u.path("/analysis"), &out); err != nil {
		return &out, err
	}
	return &out, nil
}

// InvalidateCache drops the cached analysis.
func (u *UserClient) InvalidateCache(ctx context.Context) error {
	return u.client.delete(ctx, u.path("/analysis/cache"))
}

// DetectChange reports a collection edit and returns its insight.
func (u *UserClient) DetectChange(ctx context.Context, ch Change) (*ChangeReport, error) {
	var out ChangeReport
	if err := u.client.post(ctx, u.path("/changes"), ch, &out); err != nil {
		return &out, err
	}
	return &out, nil
}

// Recommend asks for up to limit catalog additions; limit <= 0 uses the
// server default.
func (u *UserClient) Recommend(ctx context.Context, limit int) (*RecommendationReport, error) {
	p := u.path("/recommendations")
	if limit > 0 {
		p += "?limit=" + strconv.Itoa(limit)
	}
	var out RecommendationReport
	if err := u.client.get(ctx, p, &out); err != nil {
		return &out, err
	}
	return &out, nil
}

// View fetches one analysis view, e.g. View(ctx, "gaps", "seasonal").
func (u *UserClient) View(ctx context.Context, group, view string) (*ViewResult, error) {
	known, ok := views[group]
	if !ok {
		return nil, errors.NewValidation("unknown view group %q", group)
	}
	found := false
	for _, v := range known {
		if v == view {
			found = true
			break
		}
	}
	if !found {
		return nil, errors.NewValidation("unknown %s view %q", group, view)
	}
	p := u.path("/" + group + "/")
	if view != "" {
		p = u.path("/" + group + "/" + view)
	}
	var out ViewResult
	if err := u.client.get(ctx, p, &out); err != nil {
		return &out, err
	}
	return &out, nil
}

// OptimizeForBudget fetches the budget view for budget.
func (u *UserClient) OptimizeForBudget(ctx context.Context, budget float64) (*ViewResult, error) {
	p := u.path("/optimization/budget") + "?budget=" + strconv.FormatFloat(budget, 'f', -1, 64)
	var out ViewResult
	if err := u.client.get(ctx, p, &out); err != nil {
		return &out, err
	}
	return &out, nil
}

// Plan creates a strategic growth plan.
func (u *UserClient) Plan(ctx context.Context, req PlanRequest) (*StrategicPlanReport, error) {
	var out StrategicPlanReport
	if err := u.client.post(ctx, u.path("/optimization/plan"), req, &out); err != nil {
		return &out, err
	}
	return &out, nil
}

// Notify renders a smart notification for trigger.
func (u *UserClient) Notify(ctx context.Context, trigger TriggerType, values map[string]string) (*NotificationReport, error) {
	body := struct {
		Trigger TriggerType       `json:"trigger"`
		Values  map[string]string `json:"values,omitempty"`
	}{trigger, values}
	var out NotificationReport
	if err := u.client.post(ctx, u.path("/insights/notifications"), body, &out); err != nil {
		return &out, err
	}
	return &out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Snapshots
// ─────────────────────────────────────────────────────────────────────────────

// CreateSnapshot archives a fresh analysis.
func (u *UserClient) CreateSnapshot(ctx context.Context) (*SnapshotInfo, error) {
	var out SnapshotInfo
	if err := u.client.post(ctx, u.path("/snapshots"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSnapshots lists archived analyses, newest first.
func (u *UserClient) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	var out struct {
		Snapshots []SnapshotInfo `json:"snapshots"`
	}
	if err := u.client.get(ctx, u.path("/snapshots"), &out); err != nil {
		return nil, err
	}
	return out.Snapshots, nil
}

// GetSnapshot loads one archived analysis.
func (u *UserClient) GetSnapshot(ctx context.Context, name string) (*CollectionAnalysis, error) {
	var out CollectionAnalysis
	if err := u.client.get(ctx, u.path("/snapshots/"+url.PathEscape(name)), &out); err != nil {
		return nil, err
	}
	return &out, nil
}
