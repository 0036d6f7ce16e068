package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/learnengine/internal/database"
	"github.com/example/learnengine/internal/engine"
	"github.com/example/learnengine/internal/errkind"
	"github.com/example/learnengine/internal/profile"
	"github.com/example/learnengine/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type testServer struct {
	router *gin.Engine
	now    time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.Open(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	store := database.NewStore(db)
	t.Cleanup(func() { store.Close() })

	ts := &testServer{now: t0}
	clock := func() time.Time { return ts.now }

	reg := prometheus.NewRegistry()
	cache := profile.NewMapCache()
	repo := profile.NewRepository(store, cache,
		profile.WithClock(clock),
		profile.WithMetrics(profile.NewMetrics(reg, cache)))
	e, err := engine.New(engine.Deps{Profiles: repo, Items: store, History: store, Clock: clock})
	require.NoError(t, err)

	ts.router = NewRouter(NewHandlers(e, nil), reg)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{errkind.New(errkind.NotFound, "x"), http.StatusNotFound},
		{errkind.New(errkind.InvalidInput, "x"), http.StatusBadRequest},
		{errkind.Wrap(errkind.TransientStorage, errors.New("io"), "x"), http.StatusServiceUnavailable},
		{errkind.New(errkind.Computation, "x"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := statusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProfileLifecycle(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/v1/users/u1/profile", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[ErrorResponse](t, w).Code)

	w = ts.do(t, http.MethodPatch, "/v1/users/u1/profile", UpdateProfileRequest{})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPut, "/v1/users/u1/profile", models.CognitiveProfile{
		PreferredContentFormats: []string{"video"},
		KnowledgeGraph:          map[string]models.TopicSet{"algebra": models.NewTopicSet("linear")},
		AttentionSpan:           20,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	span := 35.0
	w = ts.do(t, http.MethodPatch, "/v1/users/u1/profile", UpdateProfileRequest{
		Update: models.ProfileUpdate{
			KnowledgeGraph:          map[string]models.TopicSet{"algebra": models.NewTopicSet("quadratic")},
			PreferredContentFormats: []string{"text"},
			AttentionSpan:           &span,
		},
		Options: &models.ProfileUpdateOptions{MergeKnowledgeGraph: true, UpdateTimestamp: true},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	p := decode[models.CognitiveProfile](t, ts.do(t, http.MethodGet, "/v1/users/u1/profile", nil))
	assert.Equal(t, []string{"linear", "quadratic"}, p.KnowledgeGraph["algebra"].Sorted())
	assert.Equal(t, []string{"video"}, p.PreferredContentFormats)
	assert.Equal(t, 35.0, p.AttentionSpan)

	w = ts.do(t, http.MethodDelete, "/v1/users/u1/profile/cache", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(t, http.MethodDelete, "/v1/profile-cache", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	p = decode[models.CognitiveProfile](t, ts.do(t, http.MethodGet, "/v1/users/u1/profile", nil))
	assert.Equal(t, 35.0, p.AttentionSpan)
}

func TestUpdateProfilePartialOptionsKeepDefaults(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPut, "/v1/users/u1/profile", models.CognitiveProfile{
		KnowledgeGraph: map[string]models.TopicSet{"algebra": models.NewTopicSet("linear")},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ts.now = t0.Add(48 * time.Hour)
	w = ts.do(t, http.MethodPatch, "/v1/users/u1/profile",
		`{"update":{"knowledge_graph":{"algebra":["quadratic"]}},"options":{"merge_knowledge_graph":true}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	p := decode[models.CognitiveProfile](t, ts.do(t, http.MethodGet, "/v1/users/u1/profile", nil))
	assert.Equal(t, []string{"linear", "quadratic"}, p.KnowledgeGraph["algebra"].Sorted())
	assert.True(t, ts.now.Equal(p.LastUpdated), "last_updated = %s", p.LastUpdated)

	ts.now = t0.Add(72 * time.Hour)
	w = ts.do(t, http.MethodPatch, "/v1/users/u1/profile", `{"update":{"attention_span":40},"options":{"update_timestamp":false}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	p = decode[models.CognitiveProfile](t, ts.do(t, http.MethodGet, "/v1/users/u1/profile", nil))
	assert.Equal(t, 40.0, p.AttentionSpan)
	assert.True(t, t0.Add(48*time.Hour).Equal(p.LastUpdated), "last_updated = %s", p.LastUpdated)
}

func TestSaveProfileBadBody(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodPut, "/v1/users/u1/profile", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decode[ErrorResponse](t, w).Code)
}

func TestItemsAndReviews(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/v1/users/u1/items", CreateItemRequest{ModuleID: "algebra", TopicID: "linear"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item := decode[models.LearningItem](t, w)

	ret := decode[RetentionResponse](t, ts.do(t, http.MethodGet, "/v1/items/"+item.ID+"/retention", nil))
	assert.InDelta(t, 0.3, ret.Retention, 1e-9)
	assert.True(t, ret.Due)

	due := decode[struct{ Items []models.LearningItem }](t, ts.do(t, http.MethodGet, "/v1/users/u1/due?limit=5", nil))
	assert.Len(t, due.Items, 1)

	grade := 5
	w = ts.do(t, http.MethodPost, "/v1/items/"+item.ID+"/reviews", ReviewRequest{Grade: &grade})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	review := decode[ReviewResponse](t, w)
	assert.Equal(t, 1, review.Item.RepetitionCount)
	assert.Equal(t, 1, review.Item.IntervalDays)
	assert.Equal(t, 5, review.Event.Grade)

	due = decode[struct{ Items []models.LearningItem }](t, ts.do(t, http.MethodGet, "/v1/users/u1/due", nil))
	assert.Empty(t, due.Items)

	stats := decode[struct{ Modules []models.ModuleStatistics }](t, ts.do(t, http.MethodGet, "/v1/users/u1/stats", nil))
	require.Len(t, stats.Modules, 1)
	assert.Equal(t, "algebra", stats.Modules[0].ModuleID)
	assert.Equal(t, 1, stats.Modules[0].Reviewed)
	assert.Equal(t, 1, stats.Modules[0].TotalRepetitions)

	stored := decode[models.LearningItem](t, ts.do(t, http.MethodGet, "/v1/items/"+item.ID, nil))
	assert.Equal(t, 1, stored.RepetitionCount)

	bad := 9
	w = ts.do(t, http.MethodPost, "/v1/items/"+item.ID+"/reviews", ReviewRequest{Grade: &bad})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", decode[ErrorResponse](t, w).Code)

	w = ts.do(t, http.MethodPost, "/v1/items/"+item.ID+"/reviews", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/items/missing/reviews", ReviewRequest{Grade: &grade})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/v1/users/u1/due?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryAndRebuild(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/v1/users/u1/history", []models.HistoryRecord{
		{ModuleID: "algebra", TopicID: "linear", ContentType: "video", ProgressPercent: 100, Completed: true},
		{ModuleID: "algebra", TopicID: "quadratic", ContentType: "video", ProgressPercent: 50},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, "/v1/users/u1/profile/rebuild", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	p := decode[models.CognitiveProfile](t, w)
	assert.Equal(t, []string{"video"}, p.PreferredContentFormats)
	assert.InDelta(t, 0.75, p.LearningSpeed["algebra"], 1e-9)
	assert.Equal(t, []string{"linear"}, p.KnowledgeGraph["algebra"].Sorted())

	ts.do(t, http.MethodPost, "/v1/users/u2/items", CreateItemRequest{})
	resp := decode[RebuildResponse](t, ts.do(t, http.MethodPost, "/v1/profiles/rebuild", nil))
	assert.Equal(t, 1, resp.Rebuilt)
	assert.Empty(t, resp.Errors)
}

func TestRank(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/v1/rank", RankRequest{
		Candidates: []models.LearningPathItem{
			{ID: "a", ProgressPercent: 80},
			{ID: "b", ProgressPercent: 20, RelatedItemCount: 4},
			{ID: "c", ProgressPercent: 50},
		},
		Limit: 2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[struct{ Items []models.LearningPathItem }](t, w)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "b", got.Items[0].ID)
	assert.Equal(t, 100.0, got.Items[0].RecommendationScore)
	assert.Equal(t, "c", got.Items[1].ID)

	w = ts.do(t, http.MethodPost, "/v1/rank", `{"candidates":[{"id":"x","progress_percent":120}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/v1/users/u1/profile", nil)

	w := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), fmt.Sprintf("learnengine_profile_cache_requests_total{result=%q} 1", "miss"))
}
