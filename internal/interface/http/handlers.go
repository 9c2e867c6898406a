// Package http exposes the simulation engine and reward ledger over a REST API.
package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/civic-hub/civic-sim-hub/internal/application/command"
	"github.com/civic-hub/civic-sim-hub/internal/application/query"
	"github.com/civic-hub/civic-sim-hub/internal/domain/simulation"
)

// maxBodyBytes caps command request bodies. The API accepts only small
// JSON documents.
const maxBodyBytes = 64 << 10

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not_found", "Unknown endpoint")
		return
	}

	info := map[string]interface{}{
		"name":        "Civic Sim Hub API",
		"version":     "v1",
		"description": "REST API for the civic simulation engine and reward ledger",
		"endpoints": map[string]string{
			"health":      "/health",
			"simulations": "/api/v1/simulations",
			"leaderboard": "/api/v1/leaderboard",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListSimulations handles GET /api/v1/simulations
func (s *Server) handleListSimulations(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListSimulationsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Catalog handler not configured")
		return
	}

	summaries := s.deps.ListSimulationsHandler.Handle()

	out := make([]simulationSummaryDTO, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, simulationSummaryDTO{
			ID:               sum.ID,
			Title:            sum.Title,
			Description:      sum.Description,
			StepCount:        sum.StepCount,
			MaxPossibleScore: sum.MaxPossibleScore,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"simulations": out})
}

// handleGetScenario handles GET /api/v1/simulations/{id}/scenario?step=N
func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetScenarioHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Catalog handler not configured")
		return
	}

	q := query.GetScenario{
		SimulationID: r.PathValue("id"),
		Step:         getQueryParamInt(r, "step", 1),
	}

	scenario, err := s.deps.GetScenarioHandler.Handle(q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, scenarioDTOFrom(scenario))
}

// ══════════════════════════════════════════════════════════════════════════════
// SIMULATION WALK HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// startRequest is the body of start and resume requests.
type startRequest struct {
	UserID string `json:"user_id"`
}

// choiceRequest is the body of a choice request.
type choiceRequest struct {
	UserID   string `json:"user_id"`
	ChoiceID string `json:"choice_id"`
}

// handleStartSimulation handles POST /api/v1/simulations/{id}/start
func (s *Server) handleStartSimulation(w http.ResponseWriter, r *http.Request) {
	if s.deps.StartSimulationHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Start handler not configured")
		return
	}

	var req startRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	cmd := command.StartSimulation{
		UserID:       req.UserID,
		SimulationID: r.PathValue("id"),
	}

	result, err := s.deps.StartSimulationHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, walkStateDTO{
		Title:    result.Title,
		Status:   string(result.Progress.Status),
		Step:     int(result.Progress.CurrentStep),
		Score:    result.Progress.TotalScore,
		Scenario: scenarioDTOPtr(&result.Scenario),
	})
}

// handleApplyChoice handles POST /api/v1/simulations/{id}/choice
func (s *Server) handleApplyChoice(w http.ResponseWriter, r *http.Request) {
	if s.deps.ApplyChoiceHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Choice handler not configured")
		return
	}

	var req choiceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" || req.ChoiceID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "user_id and choice_id are required")
		return
	}

	cmd := command.ApplyChoice{
		UserID:       req.UserID,
		SimulationID: r.PathValue("id"),
		ChoiceID:     req.ChoiceID,
	}

	result, err := s.deps.ApplyChoiceHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, choiceResultDTO{
		Feedback:   result.Feedback,
		IsComplete: result.IsComplete,
		Step:       int(result.Progress.CurrentStep),
		Score:      result.Progress.TotalScore,
		Scenario:   scenarioDTOPtr(result.Scenario),
		Result:     resultDTOFrom(result.Result),
	})
}

// handleResumeSimulation handles POST /api/v1/simulations/{id}/resume
func (s *Server) handleResumeSimulation(w http.ResponseWriter, r *http.Request) {
	if s.deps.ResumeSimulationHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Resume handler not configured")
		return
	}

	var req startRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.UserID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	cmd := command.ResumeSimulation{
		UserID:       req.UserID,
		SimulationID: r.PathValue("id"),
	}

	result, err := s.deps.ResumeSimulationHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, walkStateDTO{
		Title:    result.Title,
		Status:   string(result.Progress.Status),
		Step:     int(result.Progress.CurrentStep),
		Score:    result.Progress.TotalScore,
		Scenario: scenarioDTOPtr(&result.Scenario),
	})
}

// handleGetProgress handles GET /api/v1/simulations/{id}/progress?user_id=
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progress handler not configured")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}

	q := query.GetProgress{
		UserID:       userID,
		SimulationID: r.PathValue("id"),
	}

	view, err := s.deps.GetProgressHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, walkStateDTO{
		Title:    view.Title,
		Status:   string(view.Status),
		Step:     int(view.Step),
		Score:    view.TotalScore,
		Scenario: scenarioDTOPtr(view.Scenario),
		Result:   resultDTOFrom(view.Result),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE & LEADERBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetUserStats handles GET /api/v1/users/{id}/stats
func (s *Server) handleGetUserStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetUserStatsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Stats handler not configured")
		return
	}

	userID := r.PathValue("id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "User ID is required")
		return
	}

	stats, err := s.deps.GetUserStatsHandler.Handle(r.Context(), query.GetUserStats{UserID: userID})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	achievements := make([]achievementDTO, 0, len(stats.Achievements))
	for _, a := range stats.Achievements {
		achievements = append(achievements, achievementDTO{
			ID:       a.ID,
			Title:    a.Title,
			Points:   a.Points,
			EarnedAt: a.EarnedAt,
		})
	}

	writeJSON(w, http.StatusOK, userStatsDTO{
		UserID:               stats.UserID,
		Points:               stats.Points,
		Level:                stats.Level,
		Streak:               stats.Streak,
		CompletedLessons:     stats.CompletedLessons,
		CompletedSimulations: stats.CompletedSimulations,
		Achievements:         achievements,
	})
}

// handleGetLeaderboard handles GET /api/v1/leaderboard
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.Leaderboard == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Leaderboard is not configured")
		return
	}

	limit := getQueryParamInt(r, "limit", 20)
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}

	top, err := s.deps.Leaderboard.Top(r.Context(), int64(limit))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"leaderboard": top})
}

// ══════════════════════════════════════════════════════════════════════════════
// DTO MAPPING
// ══════════════════════════════════════════════════════════════════════════════

type simulationSummaryDTO struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	StepCount        int    `json:"step_count"`
	MaxPossibleScore int    `json:"max_possible_score"`
}

// choiceDTO deliberately omits points and feedback: the client must not
// see the scoring of a choice before making it.
type choiceDTO struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type scenarioDTO struct {
	Step        int         `json:"step"`
	Description string      `json:"description"`
	Choices     []choiceDTO `json:"choices"`
}

type walkStateDTO struct {
	Title    string       `json:"title"`
	Status   string       `json:"status"`
	Step     int          `json:"step"`
	Score    int          `json:"score"`
	Scenario *scenarioDTO `json:"scenario,omitempty"`
	Result   *resultDTO   `json:"result,omitempty"`
}

type choiceResultDTO struct {
	Feedback   string       `json:"feedback"`
	IsComplete bool         `json:"is_complete"`
	Step       int          `json:"step"`
	Score      int          `json:"score"`
	Scenario   *scenarioDTO `json:"scenario,omitempty"`
	Result     *resultDTO   `json:"result,omitempty"`
}

type stepResultDTO struct {
	Step        int    `json:"step"`
	ChoiceID    string `json:"choice_id"`
	PointsDelta int    `json:"points_delta"`
	Feedback    string `json:"feedback,omitempty"`
	IsBest      bool   `json:"is_best"`
}

type grantDTO struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Points int    `json:"points"`
}

type resultDTO struct {
	SimulationID     string          `json:"simulation_id"`
	Title            string          `json:"title"`
	FinalScore       int             `json:"final_score"`
	TotalScore       int             `json:"total_score"`
	MaxPossibleScore int             `json:"max_possible_score"`
	CorrectAnswers   int             `json:"correct_answers"`
	PointsEarned     int             `json:"points_earned"`
	TimeSpentSeconds int             `json:"time_spent_seconds"`
	StepResults      []stepResultDTO `json:"step_results"`
	NewAchievements  []grantDTO      `json:"new_achievements"`
	RewardWarnings   []string        `json:"reward_warnings,omitempty"`
}

type achievementDTO struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Points   int    `json:"points"`
	EarnedAt string `json:"earned_at"`
}

type userStatsDTO struct {
	UserID               string           `json:"user_id"`
	Points               int              `json:"points"`
	Level                int              `json:"level"`
	Streak               int              `json:"streak"`
	CompletedLessons     int              `json:"completed_lessons"`
	CompletedSimulations int              `json:"completed_simulations"`
	Achievements         []achievementDTO `json:"achievements"`
}

func scenarioDTOFrom(s simulation.ScenarioStep) scenarioDTO {
	choices := make([]choiceDTO, 0, len(s.Choices))
	for _, c := range s.Choices {
		choices = append(choices, choiceDTO{ID: c.ID, Text: c.Text})
	}
	return scenarioDTO{
		Step:        int(s.Number),
		Description: s.Description,
		Choices:     choices,
	}
}

func scenarioDTOPtr(s *simulation.ScenarioStep) *scenarioDTO {
	if s == nil {
		return nil
	}
	dto := scenarioDTOFrom(*s)
	return &dto
}

func resultDTOFrom(res *simulation.SimulationResult) *resultDTO {
	if res == nil {
		return nil
	}

	steps := make([]stepResultDTO, 0, len(res.StepResults))
	for _, sr := range res.StepResults {
		steps = append(steps, stepResultDTO{
			Step:        int(sr.Step),
			ChoiceID:    sr.ChoiceID,
			PointsDelta: sr.PointsDelta,
			Feedback:    sr.Feedback,
			IsBest:      sr.IsBest,
		})
	}

	grants := make([]grantDTO, 0, len(res.NewAchievements))
	for _, g := range res.NewAchievements {
		grants = append(grants, grantDTO{ID: g.ID, Title: g.Title, Points: g.Points})
	}

	return &resultDTO{
		SimulationID:     string(res.SimulationID),
		Title:            res.Title,
		FinalScore:       res.FinalScore,
		TotalScore:       res.TotalScore,
		MaxPossibleScore: res.MaxPossibleScore,
		CorrectAnswers:   res.CorrectAnswers,
		PointsEarned:     res.PointsEarned,
		TimeSpentSeconds: int(res.TimeSpent.Seconds()),
		StepResults:      steps,
		NewAchievements:  grants,
		RewardWarnings:   res.RewardWarnings,
	}
}

// decodeBody decodes a JSON request body into dst. On failure it writes
// a 400 response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
		_ = body.Close()
	}()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body is not valid JSON")
		return false
	}
	return true
}
