// Package simulation содержит доменную модель симуляций гражданских сценариев.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package simulation

import (
	"fmt"
	"strings"

	"github.com/civic-hub/civic-sim-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// SimulationID представляет уникальный идентификатор симуляции.
type SimulationID string

// IsValid проверяет корректность идентификатора симуляции.
func (id SimulationID) IsValid() bool {
	s := string(id)
	return len(s) >= 2 && len(s) <= 64 && !strings.ContainsAny(s, " \t\n\r")
}

// String возвращает строковое представление идентификатора.
func (id SimulationID) String() string {
	return string(id)
}

// StepNumber представляет номер шага сценария (1-based, без пропусков).
type StepNumber int

// IsValid проверяет, что номер шага положительный.
func (n StepNumber) IsValid() bool {
	return n > 0
}

// ══════════════════════════════════════════════════════════════════════════════
// DEFINITION ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Choice - вариант действия на шаге сценария.
// Ровно одно из полей NextStep / IsComplete должно быть задано:
// либо выбор ведёт на следующий шаг, либо завершает симуляцию.
type Choice struct {
	// ID - идентификатор выбора, уникальный в пределах шага.
	ID string

	// Text - отображаемый текст выбора.
	Text string

	// PointsDelta - изменение счёта (может быть отрицательным).
	PointsDelta int

	// Feedback - пояснение, которое увидит пользователь после выбора.
	Feedback string

	// NextStep - номер следующего шага (0, если выбор завершающий).
	NextStep StepNumber

	// IsComplete - true, если выбор завершает симуляцию.
	IsComplete bool
}

// Validate проверяет внутреннюю целостность выбора.
func (c Choice) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("choice id is required")
	}
	if c.Text == "" {
		return fmt.Errorf("choice %q: text is required", c.ID)
	}
	if c.IsComplete && c.NextStep != 0 {
		return fmt.Errorf("choice %q: nextStep and isComplete are mutually exclusive", c.ID)
	}
	if !c.IsComplete && c.NextStep <= 0 {
		return fmt.Errorf("choice %q: either nextStep or isComplete is required", c.ID)
	}
	return nil
}

// ScenarioStep - один узел разветвлённого сценария.
type ScenarioStep struct {
	// Number - номер шага (1-based).
	Number StepNumber

	// Description - нарративное описание ситуации.
	Description string

	// Choices - упорядоченный список вариантов действий.
	Choices []Choice
}

// FindChoice ищет выбор по идентификатору в пределах шага.
func (s ScenarioStep) FindChoice(choiceID string) (Choice, bool) {
	for _, c := range s.Choices {
		if c.ID == choiceID {
			return c, true
		}
	}
	return Choice{}, false
}

// MaxChoiceDelta возвращает максимальный PointsDelta среди вариантов шага.
// Используется для подсчёта "правильных" ответов.
func (s ScenarioStep) MaxChoiceDelta() int {
	if len(s.Choices) == 0 {
		return 0
	}
	max := s.Choices[0].PointsDelta
	for _, c := range s.Choices[1:] {
		if c.PointsDelta > max {
			max = c.PointsDelta
		}
	}
	return max
}

// IsTerminal возвращает true, если с шага некуда идти дальше.
// Шаг без вариантов считается неявно завершающим.
func (s ScenarioStep) IsTerminal() bool {
	return len(s.Choices) == 0
}

// SimulationDefinition - неизменяемое определение симуляции.
// Создаётся при загрузке каталога и никогда не мутирует в рантайме.
type SimulationDefinition struct {
	// ID - уникальный идентификатор симуляции.
	ID SimulationID

	// Title - название симуляции.
	Title string

	// Description - краткое описание сценария.
	Description string

	// Steps - упорядоченная последовательность шагов (номера 1..N без пропусков).
	Steps []ScenarioStep

	// maxPossibleScore - лучшая сумма PointsDelta по любому пути от шага 1
	// до завершения. Вычисляется один раз при валидации.
	maxPossibleScore int
}

// MaxPossibleScore возвращает лучший достижимый счёт симуляции.
func (d *SimulationDefinition) MaxPossibleScore() int {
	return d.maxPossibleScore
}

// Step возвращает шаг по номеру.
func (d *SimulationDefinition) Step(n StepNumber) (ScenarioStep, bool) {
	idx := int(n) - 1
	if idx < 0 || idx >= len(d.Steps) {
		return ScenarioStep{}, false
	}
	return d.Steps[idx], true
}

// ══════════════════════════════════════════════════════════════════════════════
// LOAD-TIME VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// malformed строит ошибку целостности определения.
func malformed(id SimulationID, format string, args ...interface{}) error {
	return shared.WrapError(
		"simulation", "Validate",
		shared.ErrMalformedDefinition,
		fmt.Sprintf("simulation %q", id),
		fmt.Errorf(format, args...),
	)
}

// Validate проверяет целостность определения и вычисляет maxPossibleScore.
// Вызывается один раз при загрузке каталога; ошибка здесь фатальна.
//
// Инварианты:
//  1. Номера шагов плотные, начинаются с 1.
//  2. Каждая ссылка nextStep разрешается в существующий шаг.
//  3. Каждый шаг достижим из шага 1 (нет "сиротских" шагов).
//  4. Граф ацикличен: nextStep всегда строго больше номера текущего шага.
func (d *SimulationDefinition) Validate() error {
	if !d.ID.IsValid() {
		return malformed(d.ID, "invalid simulation id")
	}
	if d.Title == "" {
		return malformed(d.ID, "title is required")
	}
	if len(d.Steps) == 0 {
		return malformed(d.ID, "at least one step is required")
	}

	// Инвариант 1: плотная нумерация с 1
	for i, step := range d.Steps {
		want := StepNumber(i + 1)
		if step.Number != want {
			return malformed(d.ID, "step numbers must be dense starting at 1: position %d has number %d", i+1, step.Number)
		}
		if step.Description == "" {
			return malformed(d.ID, "step %d: description is required", step.Number)
		}

		seen := make(map[string]bool, len(step.Choices))
		for _, c := range step.Choices {
			if err := c.Validate(); err != nil {
				return malformed(d.ID, "step %d: %v", step.Number, err)
			}
			if seen[c.ID] {
				return malformed(d.ID, "step %d: duplicate choice id %q", step.Number, c.ID)
			}
			seen[c.ID] = true

			// Инварианты 2 и 4: ссылка разрешается и ведёт строго вперёд
			if !c.IsComplete {
				if int(c.NextStep) > len(d.Steps) {
					return malformed(d.ID, "step %d: choice %q references unknown step %d", step.Number, c.ID, c.NextStep)
				}
				if c.NextStep <= step.Number {
					return malformed(d.ID, "step %d: choice %q loops back to step %d", step.Number, c.ID, c.NextStep)
				}
			}
		}
	}

	// Инвариант 3: достижимость всех шагов из шага 1
	reachable := make([]bool, len(d.Steps)+1)
	queue := []StepNumber{1}
	reachable[1] = true
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		step := d.Steps[int(n)-1]
		for _, c := range step.Choices {
			if c.IsComplete {
				continue
			}
			if !reachable[c.NextStep] {
				reachable[c.NextStep] = true
				queue = append(queue, c.NextStep)
			}
		}
	}
	for i := 1; i <= len(d.Steps); i++ {
		if !reachable[i] {
			return malformed(d.ID, "step %d is unreachable from step 1", i)
		}
	}

	d.maxPossibleScore = d.computeMaxPossibleScore()
	return nil
}

// computeMaxPossibleScore вычисляет лучшую сумму PointsDelta по любому пути.
// Так как ссылки ведут только вперёд, шаги обходятся от последнего к первому.
func (d *SimulationDefinition) computeMaxPossibleScore() int {
	// best[n] - лучший добор очков начиная с шага n
	best := make([]int, len(d.Steps)+1)

	for i := len(d.Steps); i >= 1; i-- {
		step := d.Steps[i-1]
		if step.IsTerminal() {
			best[i] = 0
			continue
		}

		first := true
		for _, c := range step.Choices {
			candidate := c.PointsDelta
			if !c.IsComplete {
				candidate += best[c.NextStep]
			}
			if first || candidate > best[i] {
				best[i] = candidate
				first = false
			}
		}
	}

	return best[1]
}
