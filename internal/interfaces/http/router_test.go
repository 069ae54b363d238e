package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/ScentIQ-Intelligence/internal/application/intelligence"
	"github.com/turtacn/ScentIQ-Intelligence/internal/config"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/collection"
	"github.com/turtacn/ScentIQ-Intelligence/internal/domain/fragrance"
	"github.com/turtacn/ScentIQ-Intelligence/internal/infrastructure/storage/minio"
	"github.com/turtacn/ScentIQ-Intelligence/internal/interfaces/http/handlers"
	apperrors "github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

var routerNow = time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)

type routerClock struct{}

func (routerClock) Now() time.Time { return routerNow }

type snapshotStoreFake struct {
	saved   []interface{}
	saveErr error
	docs    map[string][]byte
}

func (f *snapshotStoreFake) Save(_ context.Context, userID string, payload interface{}) (*minio.SnapshotInfo, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.saved = append(f.saved, payload)
	return &minio.SnapshotInfo{Name: "20260601T120000Z-a.json", UserID: userID, Size: 42, CreatedAt: routerNow}, nil
}

func (f *snapshotStoreFake) List(_ context.Context, userID string) ([]minio.SnapshotInfo, error) {
	return nil, nil
}

func (f *snapshotStoreFake) Load(_ context.Context, _, name string) ([]byte, error) {
	if doc, ok := f.docs[name]; ok {
		return doc, nil
	}
	return nil, apperrors.New(apperrors.ErrCodeSnapshotNotFound, "snapshot not found: "+name)
}

type requestRecorderSpy struct{ paths []string }

func (s *requestRecorderSpy) RecordHTTPRequest(_, path string, _ int, _ time.Duration) {
	s.paths = append(s.paths, path)
}

type RouterTestSuite struct {
	suite.Suite
	store    *snapshotStoreFake
	recorder *requestRecorderSpy
	router   http.Handler
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func collectionItem(id, family string, rating int, seasons ...string) *collection.Item {
	return &collection.Item{
		FragranceID:    id,
		Rating:         rating,
		UsageFrequency: collection.UsageWeekly,
		Seasons:        seasons,
		CreatedAt:      routerNow.Add(-48 * time.Hour),
		Fragrance: &fragrance.Fragrance{
			ID:             id,
			Name:           "Name " + id,
			Brand:          "House",
			Family:         family,
			IntensityLevel: 5,
			Price:          120,
		},
	}
}

func (s *RouterTestSuite) SetupTest() {
	repo := collection.RepositoryFunc(func(_ context.Context, userID string) ([]*collection.Item, error) {
		switch userID {
		case "alice":
			return []*collection.Item{
				collectionItem("santal-33", "woody", 5, "fall"),
				collectionItem("light-blue", "fresh", 4, "summer"),
				collectionItem("black-orchid", "oriental", 3, "winter"),
			}, nil
		case "broken":
			return nil, errors.New("connection reset")
		default:
			return nil, nil
		}
	})
	engine, err := intelligence.NewEngine(intelligence.EngineConfig{Repository: repo, Clock: routerClock{}})
	s.Require().NoError(err)

	s.store = &snapshotStoreFake{docs: map[string][]byte{"old.json": []byte(`{"user_id":"alice"}`)}}
	s.recorder = &requestRecorderSpy{}
	s.router = NewRouter(RouterConfig{
		IntelligenceHandler: handlers.NewIntelligenceHandler(engine, nil),
		SnapshotHandler:     handlers.NewSnapshotHandler(engine, s.store, nil),
		HealthHandler:       handlers.NewHealthHandler("test"),
		MetricsHandler:      http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
		RequestRecorder:     s.recorder,
		RateLimit:           config.RateLimitConfig{Enabled: false},
	})
}

func (s *RouterTestSuite) do(method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (s *RouterTestSuite) TestProbesAndMetrics() {
	rec, body := s.do(http.MethodGet, "/healthz", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("alive", body["status"])

	rec, body = s.do(http.MethodGet, "/readyz", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("ready", body["status"])

	rec, _ = s.do(http.MethodGet, "/metrics", "")
	s.Equal("# metrics", rec.Body.String())
}

func (s *RouterTestSuite) TestReadOnlyRoutesSucceed() {
	paths := []string{
		"/analysis",
		"/patterns/", "/patterns/brands", "/patterns/notes", "/patterns/clusters", "/patterns/usage",
		"/gaps/seasonal", "/gaps/occasions", "/gaps/intensity", "/gaps/diversity",
		"/optimization/balance", "/optimization/budget?budget=300", "/optimization/usage",
		"/personality/", "/personality/lifestyle", "/personality/experience", "/personality/evolution",
		"/insights/predictive", "/insights/health", "/insights/moods",
	}
	for _, p := range paths {
		rec, body := s.do(http.MethodGet, "/api/v1/users/alice"+p, "")
		s.Equal(http.StatusOK, rec.Code, p)
		s.Equal(true, body["success"], p)
		s.Equal("alice", body["user_id"], p)
	}
}

func (s *RouterTestSuite) TestEmptyCollectionIsSuccessfulAndEmpty() {
	rec, body := s.do(http.MethodGet, "/api/v1/users/nobody/gaps/seasonal", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(true, body["success"])
	s.Equal(true, body["empty"])
}

func (s *RouterTestSuite) TestRepositoryFailureMapsTo503() {
	rec, body := s.do(http.MethodGet, "/api/v1/users/broken/analysis", "")
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Equal(false, body["success"])
	failure := body["failure"].(map[string]interface{})
	s.Equal(string(intelligence.FailureDataAccess), failure["kind"])
}

func (s *RouterTestSuite) TestRecommendationsWithoutCatalog() {
	rec, body := s.do(http.MethodGet, "/api/v1/users/alice/recommendations?limit=3", "")
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	failure := body["failure"].(map[string]interface{})
	s.Equal(string(apperrors.ErrCodeCatalogUnavailable), failure["code"])

	rec, body = s.do(http.MethodGet, "/api/v1/users/alice/recommendations?limit=many", "")
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Equal(string(apperrors.ErrCodeValidation), body["code"])
}

func (s *RouterTestSuite) TestBudgetRequiresAmount() {
	rec, body := s.do(http.MethodGet, "/api/v1/users/alice/optimization/budget", "")
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Equal("budget is required", body["message"])
}

func (s *RouterTestSuite) TestDetectChanges() {
	rec, body := s.do(http.MethodPost, "/api/v1/users/alice/changes",
		`{"change_type":"added","fragrance_id":"santal-33","rating":5}`)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("added", body["change_type"])
	s.Equal("santal-33", body["fragrance_id"])
	s.NotEmpty(body["insight"])
}

func (s *RouterTestSuite) TestDetectChanges_Validation() {
	rec, body := s.do(http.MethodPost, "/api/v1/users/alice/changes", `{"change_type":"deleted","rating":9}`)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	fields := body["fields"].([]interface{})
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.(map[string]interface{})["field"].(string))
	}
	s.ElementsMatch([]string{"change_type", "fragrance_id", "rating"}, names)

	rec, body = s.do(http.MethodPost, "/api/v1/users/alice/changes", `{not json`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(string(apperrors.ErrCodeSerialization), body["code"])

	rec, _ = s.do(http.MethodPost, "/api/v1/users/alice/changes", "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RouterTestSuite) TestInvalidateCache() {
	rec, _ := s.do(http.MethodDelete, "/api/v1/users/alice/analysis/cache", "")
	s.Equal(http.StatusNoContent, rec.Code)
}

func (s *RouterTestSuite) TestStrategicPlan() {
	rec, body := s.do(http.MethodPost, "/api/v1/users/alice/optimization/plan", `{"target_size":8,"budget":600}`)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(true, body["success"])

	rec, _ = s.do(http.MethodPost, "/api/v1/users/alice/optimization/plan", `{"target_size":-1,"budget":600}`)
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
}

func (s *RouterTestSuite) TestSmartNotification() {
	rec, body := s.do(http.MethodPost, "/api/v1/users/alice/insights/notifications",
		`{"trigger":"collection_milestone","values":{"count":"3"}}`)
	s.Equal(http.StatusOK, rec.Code)
	notification := body["notification"].(map[string]interface{})
	s.Equal("Your collection just reached 3 fragrances.", notification["message"])

	rec, body = s.do(http.MethodPost, "/api/v1/users/alice/insights/notifications", `{"trigger":"full_moon"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
	failure := body["failure"].(map[string]interface{})
	s.Equal(string(intelligence.FailureInvalidInput), failure["kind"])
}

func (s *RouterTestSuite) TestSnapshots() {
	rec, body := s.do(http.MethodPost, "/api/v1/users/alice/snapshots", "")
	s.Equal(http.StatusCreated, rec.Code)
	s.Equal("20260601T120000Z-a.json", body["name"])
	s.Require().Len(s.store.saved, 1)
	s.IsType(&intelligence.CollectionAnalysis{}, s.store.saved[0])

	rec, body = s.do(http.MethodGet, "/api/v1/users/alice/snapshots", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal([]interface{}{}, body["snapshots"])

	rec, body = s.do(http.MethodGet, "/api/v1/users/alice/snapshots/old.json", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("alice", body["user_id"])

	rec, _ = s.do(http.MethodGet, "/api/v1/users/alice/snapshots/missing.json", "")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RouterTestSuite) TestSnapshotSkipsFailedAnalysis() {
	rec, _ := s.do(http.MethodPost, "/api/v1/users/broken/snapshots", "")
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Empty(s.store.saved)
}

func (s *RouterTestSuite) TestMetricsUseRoutePatterns() {
	s.do(http.MethodGet, "/api/v1/users/alice/gaps/diversity", "")
	s.do(http.MethodGet, "/api/v1/users/bob/gaps/diversity", "")
	s.Equal([]string{
		"/api/v1/users/{userID}/gaps/diversity",
		"/api/v1/users/{userID}/gaps/diversity",
	}, s.recorder.paths)
}

func TestNewRouter_RateLimitAppliesToAPIOnly(t *testing.T) {
	engine, err := intelligence.NewEngine(intelligence.EngineConfig{
		Repository: collection.RepositoryFunc(func(context.Context, string) ([]*collection.Item, error) { return nil, nil }),
	})
	require.NoError(t, err)
	router := NewRouter(RouterConfig{
		IntelligenceHandler: handlers.NewIntelligenceHandler(engine, nil),
		HealthHandler:       handlers.NewHealthHandler("test"),
		RateLimit:           config.RateLimitConfig{Enabled: true, RequestsPerWindow: 1, Window: time.Minute},
	})

	get := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "192.0.2.1:5555"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, get("/api/v1/users/u/gaps/diversity"))
	assert.Equal(t, http.StatusTooManyRequests, get("/api/v1/users/u/gaps/diversity"))
	assert.Equal(t, http.StatusOK, get("/healthz"))
	assert.Equal(t, http.StatusOK, get("/healthz"))
}
