package simulation

import (
	"fmt"
	"time"

	"github.com/civic-hub/civic-sim-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS STATE
// ══════════════════════════════════════════════════════════════════════════════

// Status определяет состояние прохождения симуляции.
type Status string

const (
	// StatusInProgress - пользователь идёт по сценарию.
	StatusInProgress Status = "in_progress"
	// StatusCompleted - симуляция завершена; прогресс далее неизменяем.
	StatusCompleted Status = "completed"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	return s == StatusInProgress || s == StatusCompleted
}

// ChoiceRecord - запись об одном сделанном выборе.
type ChoiceRecord struct {
	// Step - номер шага, на котором сделан выбор.
	Step StepNumber

	// ChoiceID - идентификатор выбора.
	ChoiceID string

	// PointsDelta - зачтённое изменение счёта.
	PointsDelta int

	// Timestamp - когда выбор был сделан.
	Timestamp time.Time
}

// SimulationProgress - возобновляемое состояние прохождения одной симуляции
// одним пользователем. На пару (UserID, SimulationID) существует не более
// одной записи; сохранение - upsert по этому ключу.
type SimulationProgress struct {
	// UserID - идентификатор пользователя.
	UserID string

	// SimulationID - идентификатор симуляции.
	SimulationID SimulationID

	// CurrentStep - текущий шаг (монотонно не убывает).
	CurrentStep StepNumber

	// TotalScore - накопленная сумма PointsDelta по всем записям.
	TotalScore int

	// Records - упорядоченная история выборов.
	Records []ChoiceRecord

	// Status - текущее состояние прохождения.
	Status Status

	// StartedAt - время начала прохождения.
	StartedAt time.Time

	// CompletedAt - время завершения (nil, пока не завершено).
	CompletedAt *time.Time

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time

	// Version - версия записи для оптимистичной блокировки.
	// 0 для нового прогресса; хранилище инкрементирует при каждом сохранении.
	Version int64
}

// IsCompleted возвращает true, если прохождение завершено.
func (p *SimulationProgress) IsCompleted() bool {
	return p.Status == StatusCompleted
}

// Clone создаёт глубокую копию прогресса.
func (p *SimulationProgress) Clone() *SimulationProgress {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Records = make([]ChoiceRecord, len(p.Records))
	copy(clone.Records, p.Records)
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		clone.CompletedAt = &t
	}
	return &clone
}

// CheckInvariants проверяет внутренние инварианты прогресса.
// Вызывается после загрузки из хранилища.
func (p *SimulationProgress) CheckInvariants() error {
	if !p.Status.IsValid() {
		return fmt.Errorf("invalid status %q", p.Status)
	}
	if !p.CurrentStep.IsValid() {
		return fmt.Errorf("invalid current step %d", p.CurrentStep)
	}
	sum := 0
	prev := StepNumber(0)
	for _, r := range p.Records {
		sum += r.PointsDelta
		if r.Step < prev {
			return fmt.Errorf("choice records are not in step order")
		}
		prev = r.Step
	}
	if sum != p.TotalScore {
		return fmt.Errorf("total score %d does not match sum of records %d", p.TotalScore, sum)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE MACHINE
// NotStarted → InProgress → Completed (терминальное)
// ══════════════════════════════════════════════════════════════════════════════

// Transition описывает результат применения одного выбора.
type Transition struct {
	// Choice - применённый выбор.
	Choice Choice

	// IsComplete - true, если выбор завершил симуляцию.
	IsComplete bool

	// NextStep - шаг, на который перешёл пользователь (0 при завершении).
	NextStep StepNumber
}

// Machine - машина состояний прохождения симуляций. Чистая функция над
// (каталог, прогресс, действие): не хранит состояния между вызовами и
// безопасно пересоздаётся на каждый запрос.
type Machine struct {
	catalog *Catalog
}

// NewMachine создаёт машину состояний над каталогом.
func NewMachine(catalog *Catalog) *Machine {
	return &Machine{catalog: catalog}
}

// Start создаёт свежий прогресс на шаге 1 со счётом 0.
// Возвращает NotFound, если симуляция неизвестна.
func (m *Machine) Start(simulationID SimulationID, userID string) (*SimulationProgress, error) {
	if userID == "" {
		return nil, shared.NewDomainError("simulation", "Start", shared.ErrInvalidInput, "user id is required")
	}
	if _, err := m.catalog.GetSimulation(simulationID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &SimulationProgress{
		UserID:       userID,
		SimulationID: simulationID,
		CurrentStep:  1,
		TotalScore:   0,
		Records:      []ChoiceRecord{},
		Status:       StatusInProgress,
		StartedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CurrentScenario возвращает шаг, на котором стоит пользователь.
// Возвращает InvalidState для завершённого прогресса.
func (m *Machine) CurrentScenario(p *SimulationProgress) (ScenarioStep, error) {
	if p.IsCompleted() {
		return ScenarioStep{}, shared.NewDomainError(
			"simulation", "CurrentScenario",
			shared.ErrInvalidState,
			"simulation is already completed",
		)
	}
	return m.catalog.GetStep(p.SimulationID, p.CurrentStep)
}

// ApplyChoice применяет выбор к прогрессу и возвращает новый прогресс.
// Входной прогресс не мутируется: при любой ошибке счёт и текущий шаг
// остаются нетронутыми.
//
// Ошибки: InvalidState для завершённого прогресса, InvalidChoice для
// неизвестного идентификатора выбора на текущем шаге.
func (m *Machine) ApplyChoice(p *SimulationProgress, choiceID string) (*SimulationProgress, *Transition, error) {
	if p.IsCompleted() {
		return nil, nil, shared.NewDomainError(
			"simulation", "ApplyChoice",
			shared.ErrInvalidState,
			"completed progress is immutable",
		)
	}

	step, err := m.catalog.GetStep(p.SimulationID, p.CurrentStep)
	if err != nil {
		return nil, nil, err
	}

	choice, ok := step.FindChoice(choiceID)
	if !ok {
		return nil, nil, shared.NewDomainError(
			"simulation", "ApplyChoice",
			shared.ErrInvalidChoice,
			fmt.Sprintf("choice %q is not available at step %d", choiceID, p.CurrentStep),
		)
	}

	now := time.Now().UTC()
	next := p.Clone()
	next.TotalScore += choice.PointsDelta
	next.Records = append(next.Records, ChoiceRecord{
		Step:        p.CurrentStep,
		ChoiceID:    choice.ID,
		PointsDelta: choice.PointsDelta,
		Timestamp:   now,
	})
	next.UpdatedAt = now

	transition := &Transition{Choice: choice}
	if choice.IsComplete {
		next.Status = StatusCompleted
		next.CompletedAt = &now
		transition.IsComplete = true
	} else {
		next.CurrentStep = choice.NextStep
		transition.NextStep = choice.NextStep
	}

	return next, transition, nil
}

// Results вычисляет итог завершённого прохождения.
// Возвращает InvalidState, пока прогресс не завершён.
func (m *Machine) Results(p *SimulationProgress) (*SimulationResult, error) {
	if !p.IsCompleted() {
		return nil, shared.NewDomainError(
			"simulation", "Results",
			shared.ErrInvalidState,
			"simulation is not completed yet",
		)
	}

	def, err := m.catalog.GetSimulation(p.SimulationID)
	if err != nil {
		return nil, err
	}

	return BuildResult(p, def, RewardOutcome{}), nil
}
