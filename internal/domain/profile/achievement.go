package profile

import "time"

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENTS (Достижения)
// ══════════════════════════════════════════════════════════════════════════════

// AchievementID представляет идентификатор достижения.
type AchievementID string

// AchievementConditions - машинно-проверяемые условия достижения.
// Нулевое поле означает "условие не накладывается"; достижение выдаётся,
// когда выполнены все ненулевые условия.
type AchievementConditions struct {
	// MinLessons - минимум завершённых уроков.
	MinLessons int

	// MinSimulations - минимум завершённых симуляций.
	MinSimulations int

	// MinPoints - минимум очков в профиле.
	MinPoints int

	// MinStreak - минимальная серия дней.
	MinStreak int

	// MinLevel - минимальный уровень.
	MinLevel int
}

// SatisfiedBy проверяет, выполняет ли профиль все условия.
func (c AchievementConditions) SatisfiedBy(u *UserProfile) bool {
	if c.MinLessons > 0 && u.CompletedLessons < c.MinLessons {
		return false
	}
	if c.MinSimulations > 0 && u.CompletedSimulations < c.MinSimulations {
		return false
	}
	if c.MinPoints > 0 && int(u.Points) < c.MinPoints {
		return false
	}
	if c.MinStreak > 0 && u.Streak < c.MinStreak {
		return false
	}
	if c.MinLevel > 0 && int(u.Level) < c.MinLevel {
		return false
	}
	return true
}

// Achievement - статическое определение достижения.
type Achievement struct {
	// ID - уникальный идентификатор.
	ID AchievementID

	// Kind - вид активности, завершение которой проверяет это достижение.
	// Пустое значение - проверяется для любого вида.
	Kind ActivityKind

	// Title - название достижения.
	Title string

	// Description - описание за что выдаётся.
	Description string

	// Conditions - условия выдачи.
	Conditions AchievementConditions

	// Points - бонусные очки за достижение.
	Points int
}

// UserAchievement - факт выдачи достижения пользователю.
// Инвариант уникальности: не более одной записи на (UserID, AchievementID).
type UserAchievement struct {
	// UserID - идентификатор пользователя.
	UserID string

	// AchievementID - идентификатор достижения.
	AchievementID AchievementID

	// EarnedAt - когда выдано.
	EarnedAt time.Time
}

// DefaultAchievements возвращает статический каталог достижений платформы.
func DefaultAchievements() []Achievement {
	return []Achievement{
		{
			ID: "first-lesson", Kind: ActivityLesson,
			Title:       "Первый урок",
			Description: "Завершён первый урок",
			Conditions:  AchievementConditions{MinLessons: 1},
			Points:      10,
		},
		{
			ID: "diligent-student", Kind: ActivityLesson,
			Title:       "Прилежный ученик",
			Description: "Завершено 10 уроков",
			Conditions:  AchievementConditions{MinLessons: 10},
			Points:      50,
		},
		{
			ID: "first-simulation", Kind: ActivitySimulation,
			Title:       "Первое решение",
			Description: "Завершена первая симуляция",
			Conditions:  AchievementConditions{MinSimulations: 1},
			Points:      20,
		},
		{
			ID: "civic-strategist", Kind: ActivitySimulation,
			Title:       "Гражданский стратег",
			Description: "Завершено 5 симуляций",
			Conditions:  AchievementConditions{MinSimulations: 5},
			Points:      100,
		},
		{
			ID: "week-streak",
			Title:       "Неделя подряд",
			Description: "7 дней активности подряд",
			Conditions:  AchievementConditions{MinStreak: 7},
			Points:      70,
		},
		{
			ID: "point-collector",
			Title:       "Коллекционер очков",
			Description: "Накоплено 500 очков",
			Conditions:  AchievementConditions{MinPoints: 500},
			Points:      50,
		},
		{
			ID: "level-five",
			Title:       "Пятый уровень",
			Description: "Достигнут 5 уровень",
			Conditions:  AchievementConditions{MinLevel: 5},
			Points:      100,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT CHECKER
// ══════════════════════════════════════════════════════════════════════════════

// AchievementChecker проверяет условия для выдачи достижений.
type AchievementChecker struct {
	catalog []Achievement
}

// NewAchievementChecker создаёт проверщик над каталогом достижений.
func NewAchievementChecker(catalog []Achievement) *AchievementChecker {
	return &AchievementChecker{catalog: catalog}
}

// CheckNewAchievements возвращает достижения, которые стали выполнены
// обновлённым профилем и ещё не выданы. Рассматриваются только достижения,
// чей вид совпадает с видом завершённой активности (или не задан).
//
// Проверка на уже-выданные здесь - первая линия; гонку двух одновременных
// завершений закрывает уникальная вставка в хранилище.
func (ac *AchievementChecker) CheckNewAchievements(
	u *UserProfile,
	kind ActivityKind,
	existing []UserAchievement,
) []Achievement {
	earned := make(map[AchievementID]bool, len(existing))
	for _, a := range existing {
		earned[a.AchievementID] = true
	}

	var newAchievements []Achievement
	for _, def := range ac.catalog {
		if def.Kind != "" && def.Kind != kind {
			continue
		}
		if earned[def.ID] {
			continue
		}
		if def.Conditions.SatisfiedBy(u) {
			newAchievements = append(newAchievements, def)
		}
	}
	return newAchievements
}
