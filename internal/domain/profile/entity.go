// Package profile содержит доменную модель профиля пользователя платформы:
// очки, уровень, серию активных дней и счётчики завершённых активностей.
// Профиль мутируется только леджером наград.
package profile

import (
	"errors"
	"fmt"
	"time"

	"github.com/civic-hub/civic-sim-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Points представляет очки пользователя.
type Points int

// IsValid проверяет, что очки неотрицательные.
func (p Points) IsValid() bool {
	return p >= 0
}

// Level представляет уровень пользователя, вычисляемый из очков.
type Level int

// PointsPerLevel - очков на один уровень.
const PointsPerLevel = 100

// CalculateLevel вычисляет уровень по очкам.
// Формула: 1 + points/100 (уровень начинается с 1).
func CalculateLevel(points Points) Level {
	if points < 0 {
		return 1
	}
	return Level(1 + int(points)/PointsPerLevel)
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidUserID - пустой идентификатор пользователя.
	ErrInvalidUserID = errors.New("invalid user id: must not be empty")

	// ErrNegativePoints - попытка зачислить отрицательные очки.
	ErrNegativePoints = errors.New("points to add must be non-negative")

	// ErrProfileNotFound - профиль не найден.
	ErrProfileNotFound = errors.New("profile not found")
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: USER PROFILE
// ══════════════════════════════════════════════════════════════════════════════

// UserProfile - профиль пользователя с наградами.
type UserProfile struct {
	// UserID - идентификатор пользователя.
	UserID string

	// Points - текущие очки (монотонно не убывают, кроме явных коррекций).
	Points Points

	// Level - текущий уровень. Никогда не уменьшается: даже если пересчёт
	// из очков даёт меньшее значение, хранится прежний уровень (храповик).
	Level Level

	// Streak - серия последовательных дней с активностью.
	Streak int

	// LastActivityDate - дата последней зачтённой активности (UTC, начало дня).
	LastActivityDate time.Time

	// CompletedLessons - завершено уроков.
	CompletedLessons int

	// CompletedSimulations - завершено симуляций.
	CompletedSimulations int

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time

	// Version - версия записи для оптимистичной блокировки.
	Version int64
}

// NewUserProfile создаёт пустой профиль пользователя.
func NewUserProfile(userID string) (*UserProfile, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	now := time.Now().UTC()
	return &UserProfile{
		UserID:    userID,
		Points:    0,
		Level:     1,
		Streak:    0,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// AddPoints зачисляет очки и пересчитывает уровень.
// Уровень защищён храповиком: новое значение применяется только если
// оно не меньше хранимого.
func (u *UserProfile) AddPoints(delta int) error {
	if delta < 0 {
		return ErrNegativePoints
	}

	u.Points += Points(delta)
	if computed := CalculateLevel(u.Points); computed > u.Level {
		u.Level = computed
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// RecordActivityDay зачитывает активность за календарный день (UTC) и
// обновляет серию. Правила:
//   - первая активность вообще: серия = 1;
//   - активность в тот же день: серия не меняется;
//   - следующий день: серия +1;
//   - пропуск дней: серия сбрасывается в 1.
//
// Возвращает true, если серия изменилась.
func (u *UserProfile) RecordActivityDay(at time.Time) bool {
	day := timeutil.StartOfDay(at)

	if u.LastActivityDate.IsZero() {
		u.Streak = 1
		u.LastActivityDate = day
		u.UpdatedAt = time.Now().UTC()
		return true
	}

	switch timeutil.DaysBetween(u.LastActivityDate, day) {
	case 0:
		// Тот же день - серия растёт не чаще раза в сутки
		return false
	case 1:
		u.Streak++
	default:
		u.Streak = 1
	}

	u.LastActivityDate = day
	u.UpdatedAt = time.Now().UTC()
	return true
}

// RecordCompletion инкрементирует счётчик завершений по виду активности.
func (u *UserProfile) RecordCompletion(kind ActivityKind) {
	switch kind {
	case ActivityLesson:
		u.CompletedLessons++
	case ActivitySimulation:
		u.CompletedSimulations++
	}
	u.UpdatedAt = time.Now().UTC()
}

// String возвращает строковое представление профиля для логирования.
func (u *UserProfile) String() string {
	return fmt.Sprintf(
		"UserProfile{ID: %s, Points: %d, Level: %d, Streak: %d}",
		u.UserID, u.Points, u.Level, u.Streak,
	)
}

// Clone создаёт копию профиля.
func (u *UserProfile) Clone() *UserProfile {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}
