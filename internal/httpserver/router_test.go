package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"preptracker/internal/clock"
	"preptracker/internal/handler"
	"preptracker/internal/model"
	"preptracker/internal/repository/memory"
	"preptracker/internal/schedule"
	"preptracker/internal/service"
	"preptracker/pkg/trace"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAdvisor struct {
	reply string
	err   error
}

func (a *stubAdvisor) Advise(context.Context, string, string) (string, error) {
	return a.reply, a.err
}

type stubRequeuer struct {
	lastID int64
}

func (r *stubRequeuer) Requeue(_ context.Context, id int64) (int64, error) {
	r.lastID = id
	return 3, nil
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

type testServer struct {
	engine   *gin.Engine
	advisor  *stubAdvisor
	requeuer *stubRequeuer
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	h, err := model.NewHorizon("2025-09-01", "2026-05-31")
	require.NoError(t, err)
	catalog, err := schedule.DefaultCatalog()
	require.NoError(t, err)

	store := memory.NewStore()
	adv := &stubAdvisor{reply: "Focus on DSA first."}
	clk := clock.NewFixed(time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	svc := service.NewScheduleService(store, store, clk, h, catalog, log).WithAdvisor(adv)

	requeuer := &stubRequeuer{}
	engine := NewRouter(Handlers{
		Tasks:    handler.NewTaskHandler(svc, log),
		Progress: handler.NewProgressHandler(svc, log),
		Advisor:  handler.NewAdvisorHandler(svc, []string{"What should I focus on today?"}, log),
		Admin:    handler.NewAdminHandler(requeuer, log),
	}, store, log)
	return testServer{engine: engine, advisor: adv, requeuer: requeuer}
}

func (s testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type initResponse struct {
	Message string       `json:"message"`
	Count   int          `json:"count"`
	Created bool         `json:"created"`
	Removed int          `json:"removed"`
	Tasks   []model.Task `json:"tasks"`
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/healthz", "/health", "/readyz", "/api/"} {
		w := s.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := s.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyz_StoreDown(t *testing.T) {
	log := zap.NewNop()
	engine := NewRouter(Handlers{
		Tasks:    handler.NewTaskHandler(nil, log),
		Progress: handler.NewProgressHandler(nil, log),
		Advisor:  handler.NewAdvisorHandler(nil, nil, log),
	}, downStore{}, log)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "store_not_ready")
}

func TestReadyz_ExtraCheck(t *testing.T) {
	log := zap.NewNop()
	store := memory.NewStore()
	engine := NewRouter(Handlers{
		Tasks:    handler.NewTaskHandler(nil, log),
		Progress: handler.NewProgressHandler(nil, log),
		Advisor:  handler.NewAdvisorHandler(nil, nil, log),
	}, store, log, ReadinessCheck{Name: "mq", Check: func(context.Context) bool { return false }})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "mq_not_ready")
}

func TestTraceHeader(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(trace.HeaderName, "abc123")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, "abc123", w.Header().Get(trace.HeaderName))

	w = s.do(t, http.MethodGet, "/healthz", "")
	assert.Len(t, w.Header().Get(trace.HeaderName), 32)
}

func TestInitializeAndList(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/tasks/initialize", "")
	require.Equal(t, http.StatusOK, w.Code)
	first := decode[initResponse](t, w)
	assert.True(t, first.Created)
	assert.Greater(t, first.Count, 0)
	assert.Len(t, first.Tasks, first.Count)

	w = s.do(t, http.MethodPost, "/api/tasks/initialize", "")
	require.Equal(t, http.StatusOK, w.Code)
	second := decode[initResponse](t, w)
	assert.False(t, second.Created)
	assert.Equal(t, first.Count, second.Count)
	assert.Contains(t, second.Message, "already")

	w = s.do(t, http.MethodGet, "/api/tasks?date=2025-09-01&category=dsa", "")
	require.Equal(t, http.StatusOK, w.Code)
	tasks := decode[[]model.Task](t, w)
	require.NotEmpty(t, tasks)
	for _, task := range tasks {
		assert.Equal(t, "2025-09-01", task.Date)
		assert.Equal(t, model.CategoryDSA, task.Category)
	}

	w = s.do(t, http.MethodGet, "/api/tasks?week=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	for _, task := range decode[[]model.Task](t, w) {
		assert.Equal(t, 2, task.WeekNumber)
	}
}

func TestListTasks_EmptyIsArray(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestListTasks_InvalidFilter(t *testing.T) {
	s := newTestServer(t)
	for _, q := range []string{"category=SLEEP", "status=DONE", "date=yesterday", "week=-1"} {
		w := s.do(t, http.MethodGet, "/api/tasks?"+q, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.Contains(t, decode[map[string]string](t, w), "error")
	}
}

func TestUpdateStatus(t *testing.T) {
	s := newTestServer(t)
	seeded := decode[initResponse](t, s.do(t, http.MethodPost, "/api/tasks/initialize", ""))
	id := seeded.Tasks[0].ID

	w := s.do(t, http.MethodPut, "/api/tasks/"+id, `{"status":"COMPLETED"}`)
	require.Equal(t, http.StatusOK, w.Code)
	task := decode[model.Task](t, w)
	assert.Equal(t, model.StatusCompleted, task.Status)
	assert.NotNil(t, task.CompletedAt)

	w = s.do(t, http.MethodPut, "/api/tasks/"+id, `{"status":"DONE"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/api/tasks/"+id, `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/api/tasks/nope", `{"status":"PENDING"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "task not found", decode[map[string]string](t, w)["error"])
}

func TestAdvanceStatus(t *testing.T) {
	s := newTestServer(t)
	seeded := decode[initResponse](t, s.do(t, http.MethodPost, "/api/tasks/initialize", ""))
	id := seeded.Tasks[0].ID

	w := s.do(t, http.MethodPost, "/api/tasks/"+id+"/advance", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.StatusInProgress, decode[model.Task](t, w).Status)

	w = s.do(t, http.MethodPost, "/api/tasks/missing/advance", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReinitialize(t *testing.T) {
	s := newTestServer(t)
	seeded := decode[initResponse](t, s.do(t, http.MethodPost, "/api/tasks/initialize", ""))

	w := s.do(t, http.MethodPost, "/api/tasks/reinitialize", "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[initResponse](t, w)
	assert.True(t, res.Created)
	assert.Equal(t, seeded.Count, res.Removed)
	assert.Equal(t, seeded.Count, res.Count)
}

func TestProgressEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/progress/weekly", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	s.do(t, http.MethodPost, "/api/tasks/initialize", "")

	w = s.do(t, http.MethodGet, "/api/dashboard/overview", "")
	require.Equal(t, http.StatusOK, w.Code)
	overview := decode[model.DashboardOverview](t, w)
	assert.Equal(t, "2025-09-01", overview.Today.Date)
	assert.Equal(t, 1, overview.CurrentWeek.WeekNumber)
	assert.Greater(t, overview.Overview.TotalTasks, 0)

	w = s.do(t, http.MethodGet, "/api/progress/weekly", "")
	require.Equal(t, http.StatusOK, w.Code)
	weeks := decode[[]model.WeeklyProgress](t, w)
	require.NotEmpty(t, weeks)
	assert.Equal(t, 1, weeks[0].WeekNumber)

	w = s.do(t, http.MethodGet, "/api/progress/daily?date=2025-09-02", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2025-09-02", decode[model.DailyProgress](t, w).Date)

	w = s.do(t, http.MethodGet, "/api/progress/daily?date=02-09-2025", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/progress/categories", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.CategoryStats](t, w), len(model.Categories))
}

func TestRecommendations(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/api/tasks/initialize", "")

	w := s.do(t, http.MethodPost, "/api/ai/recommendations", `{"user_prompt":"What now?","context":"tired"}`)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[service.RecommendationResult](t, w)
	assert.Equal(t, "Focus on DSA first.", res.Recommendations)
	assert.Equal(t, "2025-09-01", res.Date)
	assert.Contains(t, res.ContextUsed, "tired")

	w = s.do(t, http.MethodPost, "/api/ai/recommendations", `{"user_prompt":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.advisor.err = errors.New("boom")
	w = s.do(t, http.MethodPost, "/api/ai/recommendations", `{"user_prompt":"again"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = s.do(t, http.MethodGet, "/api/ai/recommendations/history?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[[]model.RecommendationRecord](t, w)
	require.Len(t, history, 1)
	assert.Equal(t, "What now?", history[0].UserPrompt)

	w = s.do(t, http.MethodGet, "/api/ai/recommendations/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/ai/quick-prompts", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"prompts":["What should I focus on today?"]}`, w.Body.String())
}

func TestRecommendationHistory_Empty(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/ai/recommendations/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestAdminRequeue(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/admin/outbox/requeue?id=42", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(42), s.requeuer.lastID)

	w = s.do(t, http.MethodPost, "/api/admin/outbox/requeue", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), s.requeuer.lastID)

	w = s.do(t, http.MethodPost, "/api/admin/outbox/requeue?id=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
