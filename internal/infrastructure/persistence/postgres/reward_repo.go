package postgres

import (
	"context"
	"encoding/json"

	"github.com/civic-hub/civic-sim-hub/internal/domain/profile"
	"github.com/civic-hub/civic-sim-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// AchievementRepository implements profile.AchievementRepository for PostgreSQL.
type AchievementRepository struct {
	conn *Connection
}

// NewAchievementRepository creates a new AchievementRepository.
func NewAchievementRepository(conn *Connection) *AchievementRepository {
	return &AchievementRepository{conn: conn}
}

// ListEarned returns every achievement the user has unlocked.
func (r *AchievementRepository) ListEarned(ctx context.Context, userID string) ([]profile.UserAchievement, error) {
	ctx, cancel := r.conn.withQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT user_id, achievement_id, earned_at
		FROM user_achievements
		WHERE user_id = $1
		ORDER BY earned_at
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, rewardStoreError("ListEarned", err)
	}
	defer rows.Close()

	var earned []profile.UserAchievement
	for rows.Next() {
		var (
			ua profile.UserAchievement
			id string
		)
		if err := rows.Scan(&ua.UserID, &id, &ua.EarnedAt); err != nil {
			return nil, rewardStoreError("ListEarned", err)
		}
		ua.AchievementID = profile.AchievementID(id)
		earned = append(earned, ua)
	}

	return earned, rows.Err()
}

// Award inserts the achievement row if and only if it does not exist yet.
// The conditional insert is the race guard: two concurrent completions
// produce exactly one row and exactly one of them sees inserted=true.
func (r *AchievementRepository) Award(ctx context.Context, ua profile.UserAchievement) (bool, error) {
	ctx, cancel := r.conn.withQueryTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO user_achievements (user_id, achievement_id, earned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`

	tag, err := r.conn.Exec(ctx, query, ua.UserID, string(ua.AchievementID), ua.EarnedAt)
	if err != nil {
		return false, rewardStoreError("Award", err)
	}

	return tag.RowsAffected() > 0, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACTIVITY LOG REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ActivityLogRepository implements profile.ActivityLogRepository for PostgreSQL.
type ActivityLogRepository struct {
	conn *Connection
}

// NewActivityLogRepository creates a new ActivityLogRepository.
func NewActivityLogRepository(conn *Connection) *ActivityLogRepository {
	return &ActivityLogRepository{conn: conn}
}

// Append writes one activity-log entry. Re-driving the reward flow with the
// same entry ID is a no-op reporting inserted=false, which keeps the log free
// of retry duplicates and lets the caller skip already-credited steps.
func (r *ActivityLogRepository) Append(ctx context.Context, entry profile.ActivityEntry) (bool, error) {
	ctx, cancel := r.conn.withQueryTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO activity_log (id, user_id, kind, activity_id, points, description, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

	tag, err := r.conn.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		string(entry.Kind),
		entry.ActivityID,
		entry.Points,
		entry.Description,
		entry.OccurredAt,
	)
	if err != nil {
		return false, rewardStoreError("Append", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CompletionRepository implements profile.CompletionRepository for PostgreSQL.
type CompletionRepository struct {
	conn *Connection
}

// NewCompletionRepository creates a new CompletionRepository.
func NewCompletionRepository(conn *Connection) *CompletionRepository {
	return &CompletionRepository{conn: conn}
}

// Find returns the completion record for the descriptor, or (nil, nil).
func (r *CompletionRepository) Find(ctx context.Context, d profile.ActivityDescriptor) (*profile.CompletionRecord, error) {
	ctx, cancel := r.conn.withQueryTimeout(ctx)
	defer cancel()

	query := `
		SELECT user_id, kind, activity_id, points_earned, achievement_ids, completed_at
		FROM completion_records
		WHERE user_id = $1 AND kind = $2 AND activity_id = $3
	`

	row := r.conn.QueryRow(ctx, query, d.UserID, string(d.Kind), d.ActivityID)

	var (
		rec      profile.CompletionRecord
		kind     string
		idsJSON  []byte
	)
	err := row.Scan(
		&rec.Descriptor.UserID,
		&kind,
		&rec.Descriptor.ActivityID,
		&rec.PointsEarned,
		&idsJSON,
		&rec.CompletedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, rewardStoreError("Find", err)
	}

	rec.Descriptor.Kind = profile.ActivityKind(kind)
	if err := json.Unmarshal(idsJSON, &rec.AchievementIDs); err != nil {
		return nil, shared.WrapError("profile", "Find", shared.ErrPersistence,
			"stored achievement ids are corrupt", err)
	}
	return &rec, nil
}

// Record writes the completion record once; the first write wins and a
// repeated flow leaves the original untouched.
func (r *CompletionRepository) Record(ctx context.Context, rec profile.CompletionRecord) error {
	ctx, cancel := r.conn.withQueryTimeout(ctx)
	defer cancel()

	idsJSON, err := json.Marshal(rec.AchievementIDs)
	if err != nil {
		return shared.WrapError("profile", "Record", shared.ErrPersistence,
			"cannot encode achievement ids", err)
	}

	query := `
		INSERT INTO completion_records (user_id, kind, activity_id, points_earned, achievement_ids, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, kind, activity_id) DO NOTHING
	`

	_, err = r.conn.Exec(ctx, query,
		rec.Descriptor.UserID,
		string(rec.Descriptor.Kind),
		rec.Descriptor.ActivityID,
		rec.PointsEarned,
		idsJSON,
		rec.CompletedAt,
	)
	if err != nil {
		return rewardStoreError("Record", err)
	}
	return nil
}

func rewardStoreError(op string, err error) error {
	msg := "reward store query failed"
	if isTimeout(err) {
		msg = "reward store query timed out"
	}
	return shared.WrapError("profile", op, shared.ErrPersistence, msg, err)
}
