package profile

import (
	"errors"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY (завершённые учебные активности)
// ══════════════════════════════════════════════════════════════════════════════

// ActivityKind определяет вид завершённой активности.
type ActivityKind string

const (
	// ActivityLesson - завершение урока.
	ActivityLesson ActivityKind = "lesson"
	// ActivitySimulation - завершение симуляции.
	ActivitySimulation ActivityKind = "simulation"
)

// IsValid проверяет, что вид активности корректен.
func (k ActivityKind) IsValid() bool {
	return k == ActivityLesson || k == ActivitySimulation
}

// ActivityDescriptor однозначно описывает одно завершение.
// Служит ключом идемпотентности леджера наград: повторное завершение той же
// активности тем же пользователем не должно давать повторных наград.
type ActivityDescriptor struct {
	// UserID - идентификатор пользователя.
	UserID string

	// Kind - вид активности.
	Kind ActivityKind

	// ActivityID - идентификатор урока или симуляции.
	ActivityID string
}

// Validate проверяет корректность дескриптора.
func (d ActivityDescriptor) Validate() error {
	if d.UserID == "" {
		return errors.New("activity descriptor: user id is required")
	}
	if !d.Kind.IsValid() {
		return fmt.Errorf("activity descriptor: unknown kind %q", d.Kind)
	}
	if d.ActivityID == "" {
		return errors.New("activity descriptor: activity id is required")
	}
	return nil
}

// Key возвращает ключ идемпотентности (уникален на одно завершение).
func (d ActivityDescriptor) Key() string {
	return fmt.Sprintf("%s:%s:%s", d.UserID, d.Kind, d.ActivityID)
}

// CompletionRecord - запись о том, что награды за активность уже применены.
// На дескриптор существует не более одной записи.
type CompletionRecord struct {
	// Descriptor - ключ завершения.
	Descriptor ActivityDescriptor

	// PointsEarned - зачисленные очки.
	PointsEarned int

	// AchievementIDs - достижения, выданные этим завершением.
	AchievementIDs []string

	// CompletedAt - когда награды применены.
	CompletedAt time.Time
}

// ActivityEntry - запись журнала активности (append-only).
// Журнал питает лидерборд и аналитику; здесь важна только сама запись.
type ActivityEntry struct {
	// ID - уникальный идентификатор записи.
	ID string

	// UserID - идентификатор пользователя.
	UserID string

	// Kind - вид активности.
	Kind ActivityKind

	// ActivityID - идентификатор урока или симуляции.
	ActivityID string

	// Points - базовые очки активности (без бонусов достижений).
	Points int

	// Description - человекочитаемое описание награды.
	Description string

	// OccurredAt - когда событие произошло.
	OccurredAt time.Time
}
