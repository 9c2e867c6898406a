package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-hub/civic-sim-hub/internal/application/command"
	"github.com/civic-hub/civic-sim-hub/internal/application/query"
	"github.com/civic-hub/civic-sim-hub/internal/application/saga"
	"github.com/civic-hub/civic-sim-hub/internal/domain/profile"
	"github.com/civic-hub/civic-sim-hub/internal/domain/simulation"
	"github.com/civic-hub/civic-sim-hub/internal/infrastructure/persistence/memory"
	"github.com/civic-hub/civic-sim-hub/pkg/logger"
)

func testDefinition() *simulation.SimulationDefinition {
	return &simulation.SimulationDefinition{
		ID:          "sim-budget",
		Title:       "Городской бюджет",
		Description: "Распределите бюджет района",
		Steps: []simulation.ScenarioStep{
			{
				Number:      1,
				Description: "Куда направить основную часть бюджета?",
				Choices: []simulation.Choice{
					{ID: "a", Text: "Опросить жителей", PointsDelta: 10, Feedback: "Жители благодарны", NextStep: 2},
					{ID: "b", Text: "Решить самостоятельно", PointsDelta: -5, Feedback: "Жители недовольны", NextStep: 2},
				},
			},
			{
				Number:      2,
				Description: "Как отчитаться о расходах?",
				Choices: []simulation.Choice{
					{ID: "a", Text: "Открытый отчёт", PointsDelta: 20, Feedback: "Доверие выросло", IsComplete: true},
					{ID: "b", Text: "Без отчёта", PointsDelta: 0, Feedback: "Доверие упало", IsComplete: true},
				},
			},
		},
	}
}

type counterIDGen struct{}

func (counterIDGen) EntryID(key string) string {
	return "entry-" + key
}

type staticLeaderboard struct{ entries []LeaderboardEntry }

func (l *staticLeaderboard) Top(_ context.Context, limit int64) ([]LeaderboardEntry, error) {
	if int64(len(l.entries)) > limit {
		return l.entries[:limit], nil
	}
	return l.entries, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	catalog, err := simulation.NewCatalog([]*simulation.SimulationDefinition{testDefinition()})
	require.NoError(t, err)

	log := logger.New(io.Discard, logger.LevelError)
	defaults := profile.DefaultAchievements()

	progress := memory.NewProgressStore()
	profiles := memory.NewProfileStore()
	achievements := memory.NewAchievementStore()
	completions := memory.NewCompletionStore()

	rewards := saga.NewRewardFlowSaga(
		profiles, achievements, memory.NewActivityLog(), completions,
		defaults, nil, nil, &counterIDGen{}, log,
	)

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0

	return NewServer(cfg, Dependencies{
		StartSimulationHandler:  command.NewStartSimulationHandler(catalog, progress, nil, log),
		ApplyChoiceHandler:      command.NewApplyChoiceHandler(catalog, progress, rewards, nil, nil, log),
		ResumeSimulationHandler: command.NewResumeSimulationHandler(catalog, progress),
		ListSimulationsHandler:  query.NewListSimulationsHandler(catalog),
		GetScenarioHandler:      query.NewGetScenarioHandler(catalog),
		GetProgressHandler:      query.NewGetProgressHandler(catalog, progress, completions, defaults),
		GetUserStatsHandler:     query.NewGetUserStatsHandler(profiles, achievements, defaults),
		Leaderboard: &staticLeaderboard{entries: []LeaderboardEntry{
			{UserID: "user-1", Points: 300, Rank: 1},
			{UserID: "user-2", Points: 120, Rank: 2},
		}},
		Logger: log,
	})
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, JSONResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

// dataMap re-decodes the data payload as a generic map.
func dataMap(t *testing.T, resp JSONResponse) map[string]interface{} {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestServer_ListSimulations(t *testing.T) {
	s := newTestServer(t)

	rec, resp := doJSON(t, s, http.MethodGet, "/api/v1/simulations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	data := dataMap(t, resp)
	sims := data["simulations"].([]interface{})
	require.Len(t, sims, 1)

	first := sims[0].(map[string]interface{})
	assert.Equal(t, "sim-budget", first["id"])
	assert.Equal(t, float64(30), first["max_possible_score"])
}

func TestServer_GetScenario(t *testing.T) {
	s := newTestServer(t)

	rec, resp := doJSON(t, s, http.MethodGet, "/api/v1/simulations/sim-budget/scenario?step=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := dataMap(t, resp)
	assert.Equal(t, float64(2), data["step"])

	choices := data["choices"].([]interface{})
	require.Len(t, choices, 2)

	// Scoring must not leak before a choice is made.
	first := choices[0].(map[string]interface{})
	assert.NotContains(t, first, "points_delta")
	assert.NotContains(t, first, "feedback")
}

func TestServer_GetScenario_UnknownSimulation(t *testing.T) {
	s := newTestServer(t)

	rec, resp := doJSON(t, s, http.MethodGet, "/api/v1/simulations/sim-missing/scenario", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_found", resp.Error.Code)
}

func TestServer_StartSimulation(t *testing.T) {
	s := newTestServer(t)

	rec, resp := doJSON(t, s, http.MethodPost, "/api/v1/simulations/sim-budget/start",
		map[string]string{"user_id": "user-1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	data := dataMap(t, resp)
	assert.Equal(t, "Городской бюджет", data["title"])
	assert.Equal(t, "in_progress", data["status"])
	assert.Equal(t, float64(1), data["step"])
	assert.NotNil(t, data["scenario"])
}

func TestServer_StartSimulation_MissingUserID(t *testing.T) {
	s := newTestServer(t)

	rec, resp := doJSON(t, s, http.MethodPost, "/api/v1/simulations/sim-budget/start",
		map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_request", resp.Error.Code)
}

func TestServer_ApplyChoice_FullWalk(t *testing.T) {
	s := newTestServer(t)

	rec, _ := doJSON(t, s, http.MethodPost, "/api/v1/simulations/sim-budget/start",
		map[string]string{"user_id": "user-1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := doJSON(t, s, http.MethodPost, "/api/v1/simulations/sim-budget/choice",
		map[string]string{"user_id": "user-1", "choice_id": "a"})
	require.Equal(t, http.StatusOK, rec.Code)

	data := dataMap(t, resp)
	assert.Equal(t, "Жители благодарны", data["feedback"])
	assert.Equal(t, false, data["is_complete"])
	assert.Equal(t, float64(2), data["step"])

	rec, resp = doJSON(t, s, http.MethodPost, "/api/v1/simulations/sim-budget/choice",
		map[string]string{"user_id": "user-1", "choice_id": "a"})
	require.Equal(t, http.StatusOK, rec.Code)

	data = dataMap(t, resp)
	assert.Equal(t, true, data["is_complete"])

	result := data["result"].(map[string]interface{})
	assert.Equal(t, float64(100), result["final_score"])
	assert.Equal(t, float64(30), result["total_score"])
	assert.Equal(t, float64(100), result["points_earned"])

	grants := result["new_achievements"].([]interface{})
	ids := make([]string, 0, len(grants))
	for _, g := range grants {
		ids = append(ids, g.(map[string]interface{})["id"].(string))
	}
	assert.Contains(t, ids, "first-simulation")
}

func TestServer_ApplyChoice_InvalidChoice(t *testing.T) {
	s := newTestServer(t)

	rec, _ := doJSON(t, s, http.MethodPost, "/api/v1/simulations/sim-budget/start",
		map[string]string{"user_id": "user-1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, resp := doJSON(t, s, http.MethodPost, "/api/v1/simulations/sim-budget/choice",
		map[string]string{"user_id": "user-1", "choice_id": "zzz"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_choice", resp.Error.Code)
}

func TestServer_ApplyChoice_NotStarted(t *testing.T) {
	s := newTestServer(t)

	rec, resp := doJSON(t, s, http.MethodPost, "/api/v1/simulations/sim-budget/choice",
		map[string]string{"user_id": "user-9", "choice_id": "a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_state", resp.Error.Code)
}

func TestServer_ApplyChoice_MalformedBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/simulations/sim-budget/choice",
		bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Resume(t *testing.T) {
	s := newTestServer(t)

	rec, _ := doJSON(t, s, http.MethodPost, "/api/v1/simulations/sim-budget/start",
		map[string]string{"user_id": "user-1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = doJSON(t, s, http.MethodPost, "/api/v1/simulations/sim-budget/choice",
		map[string]string{"user_id": "user-1", "choice_id": "b"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := doJSON(t, s, http.MethodPost, "/api/v1/simulations/sim-budget/resume",
		map[string]string{"user_id": "user-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	data := dataMap(t, resp)
	assert.Equal(t, float64(2), data["step"])
	assert.Equal(t, float64(-5), data["score"])
}

func TestServer_Resume_NothingSaved(t *testing.T) {
	s := newTestServer(t)

	rec, resp := doJSON(t, s, http.MethodPost, "/api/v1/simulations/sim-budget/resume",
		map[string]string{"user_id": "user-9"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_state", resp.Error.Code)
}

func TestServer_GetProgress_Completed(t *testing.T) {
	s := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/api/v1/simulations/sim-budget/start",
		map[string]string{"user_id": "user-1"})
	doJSON(t, s, http.MethodPost, "/api/v1/simulations/sim-budget/choice",
		map[string]string{"user_id": "user-1", "choice_id": "a"})
	doJSON(t, s, http.MethodPost, "/api/v1/simulations/sim-budget/choice",
		map[string]string{"user_id": "user-1", "choice_id": "a"})

	rec, resp := doJSON(t, s, http.MethodGet,
		"/api/v1/simulations/sim-budget/progress?user_id=user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := dataMap(t, resp)
	assert.Equal(t, "completed", data["status"])

	result := data["result"].(map[string]interface{})
	assert.Equal(t, float64(100), result["points_earned"])
}

func TestServer_GetProgress_NotFound(t *testing.T) {
	s := newTestServer(t)

	rec, resp := doJSON(t, s, http.MethodGet,
		"/api/v1/simulations/sim-budget/progress?user_id=user-9", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "not_found", resp.Error.Code)
}

func TestServer_GetUserStats(t *testing.T) {
	s := newTestServer(t)

	doJSON(t, s, http.MethodPost, "/api/v1/simulations/sim-budget/start",
		map[string]string{"user_id": "user-1"})
	doJSON(t, s, http.MethodPost, "/api/v1/simulations/sim-budget/choice",
		map[string]string{"user_id": "user-1", "choice_id": "a"})
	doJSON(t, s, http.MethodPost, "/api/v1/simulations/sim-budget/choice",
		map[string]string{"user_id": "user-1", "choice_id": "a"})

	rec, resp := doJSON(t, s, http.MethodGet, "/api/v1/users/user-1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := dataMap(t, resp)
	assert.Equal(t, "user-1", data["user_id"])
	assert.Equal(t, float64(1), data["completed_simulations"])
	assert.GreaterOrEqual(t, data["points"].(float64), float64(100))
}

func TestServer_GetUserStats_FreshUser(t *testing.T) {
	s := newTestServer(t)

	rec, resp := doJSON(t, s, http.MethodGet, "/api/v1/users/user-new/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := dataMap(t, resp)
	assert.Equal(t, float64(0), data["points"])
	assert.Equal(t, float64(1), data["level"])
}

func TestServer_Leaderboard(t *testing.T) {
	s := newTestServer(t)

	rec, resp := doJSON(t, s, http.MethodGet, "/api/v1/leaderboard?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := dataMap(t, resp)
	rows := data["leaderboard"].([]interface{})
	require.Len(t, rows, 1)
	assert.Equal(t, "user-1", rows[0].(map[string]interface{})["user_id"])
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)

	rec, resp := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
}

func TestServer_RequestIDPropagated(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
