package simulation

import (
	"math"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION REPORTER
// ══════════════════════════════════════════════════════════════════════════════

// StepResult - итог одного шага для пошаговой обратной связи.
type StepResult struct {
	// Step - номер шага.
	Step StepNumber

	// ChoiceID - сделанный выбор.
	ChoiceID string

	// PointsDelta - зачтённые очки.
	PointsDelta int

	// IsBest - true, если выбран лучший вариант шага.
	IsBest bool

	// Feedback - пояснение к выбору.
	Feedback string
}

// AchievementGrant - выданное при завершении достижение (для отчёта).
type AchievementGrant struct {
	// ID - идентификатор достижения.
	ID string

	// Title - название достижения.
	Title string

	// Points - бонусные очки за достижение.
	Points int
}

// RewardOutcome - итог работы леджера наград, подмешиваемый в отчёт.
type RewardOutcome struct {
	// PointsEarned - очки, зачисленные в профиль.
	PointsEarned int

	// NewAchievements - достижения, выданные этим завершением.
	NewAchievements []AchievementGrant

	// Warnings - предупреждения о частично применённых наградах.
	Warnings []string
}

// SimulationResult - производный итог завершённого прохождения.
// Не сохраняется как есть: вычисляется один раз при завершении.
type SimulationResult struct {
	// SimulationID - идентификатор симуляции.
	SimulationID SimulationID

	// Title - название симуляции.
	Title string

	// FinalScore - нормализованный счёт 0-100.
	FinalScore int

	// TotalScore - сырая сумма PointsDelta.
	TotalScore int

	// MaxPossibleScore - лучший достижимый счёт симуляции.
	MaxPossibleScore int

	// CorrectAnswers - количество шагов, где выбран лучший вариант.
	CorrectAnswers int

	// PointsEarned - очки, зачисленные в профиль пользователя.
	PointsEarned int

	// TimeSpent - время от старта до завершения.
	TimeSpent time.Duration

	// StepResults - пошаговая обратная связь.
	StepResults []StepResult

	// NewAchievements - новые достижения.
	NewAchievements []AchievementGrant

	// RewardWarnings - предупреждения леджера наград (награды могли
	// примениться не полностью; сам итог симуляции при этом действителен).
	RewardWarnings []string
}

// BuildResult собирает итог завершённого прохождения.
// Чистая функция без побочных эффектов: её можно безопасно вызывать
// повторно для отображения, пока входы неизменяемы.
func BuildResult(p *SimulationProgress, def *SimulationDefinition, reward RewardOutcome) *SimulationResult {
	stepResults := make([]StepResult, 0, len(p.Records))
	correct := 0

	for _, r := range p.Records {
		sr := StepResult{
			Step:        r.Step,
			ChoiceID:    r.ChoiceID,
			PointsDelta: r.PointsDelta,
		}
		if step, ok := def.Step(r.Step); ok {
			if c, found := step.FindChoice(r.ChoiceID); found {
				sr.Feedback = c.Feedback
			}
			if r.PointsDelta == step.MaxChoiceDelta() {
				sr.IsBest = true
				correct++
			}
		}
		stepResults = append(stepResults, sr)
	}

	var timeSpent time.Duration
	if p.CompletedAt != nil {
		timeSpent = p.CompletedAt.Sub(p.StartedAt)
	}

	return &SimulationResult{
		SimulationID:     def.ID,
		Title:            def.Title,
		FinalScore:       normalizeScore(p.TotalScore, def.MaxPossibleScore()),
		TotalScore:       p.TotalScore,
		MaxPossibleScore: def.MaxPossibleScore(),
		CorrectAnswers:   correct,
		PointsEarned:     reward.PointsEarned,
		TimeSpent:        timeSpent,
		StepResults:      stepResults,
		NewAchievements:  reward.NewAchievements,
		RewardWarnings:   reward.Warnings,
	}
}

// normalizeScore приводит сырой счёт к шкале 0-100 относительно лучшего
// достижимого. Результат ограничен диапазоном: отрицательный счёт даёт 0.
func normalizeScore(total, max int) int {
	if max <= 0 {
		return 0
	}
	score := int(math.Round(100 * float64(total) / float64(max)))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
