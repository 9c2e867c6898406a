package simulation

import "context"

// ProgressRepository - граница к постоянному хранилищу прогресса.
// Хранилище должно обеспечивать read-your-writes по ключу
// (userID, simulationID); кросс-ключевые транзакции не требуются.
type ProgressRepository interface {
	// Load загружает прогресс по ключу (userID, simulationID).
	// Возвращает (nil, nil), если прогресса ещё нет.
	Load(ctx context.Context, userID string, simulationID SimulationID) (*SimulationProgress, error)

	// Save сохраняет прогресс upsert-ом по ключу (userID, simulationID).
	// Запись с Version=0 создаётся; иначе запись обновляется только если
	// хранимая версия совпадает с прочитанной (compare-and-swap), в
	// противном случае возвращается ConcurrencyConflict. При успехе
	// p.Version инкрементируется.
	Save(ctx context.Context, p *SimulationProgress) error
}
