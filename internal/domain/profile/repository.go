package profile

import "context"

// ProfileRepository - граница к хранилищу профилей.
type ProfileRepository interface {
	// GetOrCreate возвращает профиль пользователя, создавая пустой при
	// первом обращении (upsert по userID).
	GetOrCreate(ctx context.Context, userID string) (*UserProfile, error)

	// Update сохраняет профиль compare-and-swap-ом по Version.
	// При проигранной гонке возвращает ConcurrencyConflict; вызывающий
	// перечитывает профиль и повторяет изменение.
	Update(ctx context.Context, u *UserProfile) error
}

// AchievementRepository - граница к хранилищу выданных достижений.
type AchievementRepository interface {
	// ListEarned возвращает все достижения пользователя.
	ListEarned(ctx context.Context, userID string) ([]UserAchievement, error)

	// Award выдаёт достижение check-then-insert-ом, безопасным при гонках:
	// вставка условная по уникальному ключу (userID, achievementID).
	// Возвращает false, если запись уже существовала (повторной выдачи нет).
	Award(ctx context.Context, ua UserAchievement) (inserted bool, err error)
}

// ActivityLogRepository - append-only журнал активности.
type ActivityLogRepository interface {
	// Append добавляет запись журнала. Повторный Append с тем же ID
	// ничего не пишет и возвращает inserted=false.
	Append(ctx context.Context, entry ActivityEntry) (inserted bool, err error)
}

// CompletionRepository - записи идемпотентности леджера наград.
type CompletionRepository interface {
	// Find возвращает запись о применённых наградах для дескриптора.
	// Возвращает (nil, nil), если наград ещё не было.
	Find(ctx context.Context, d ActivityDescriptor) (*CompletionRecord, error)

	// Record фиксирует применение наград; повторная фиксация того же
	// дескриптора - no-op (upsert, не дубликат).
	Record(ctx context.Context, rec CompletionRecord) error
}
