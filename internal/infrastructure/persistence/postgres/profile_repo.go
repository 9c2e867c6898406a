package postgres

import (
	"context"
	"time"

	"github.com/civic-hub/civic-sim-hub/internal/domain/profile"
	"github.com/civic-hub/civic-sim-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements profile.ProfileRepository for PostgreSQL.
type ProfileRepository struct {
	conn *Connection
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection) *ProfileRepository {
	return &ProfileRepository{conn: conn}
}

const profileColumns = `
	user_id, points, level, streak, last_activity_date,
	completed_lessons, completed_simulations, created_at, updated_at, version
`

// GetOrCreate returns the profile, inserting a fresh one on first contact.
// The insert races safely: a concurrent first contact resolves to a single
// row and the loser re-reads it.
func (r *ProfileRepository) GetOrCreate(ctx context.Context, userID string) (*profile.UserProfile, error) {
	ctx, cancel := r.conn.withQueryTimeout(ctx)
	defer cancel()

	u, err := r.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}

	fresh, err := profile.NewUserProfile(userID)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO user_profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0)
		ON CONFLICT (user_id) DO NOTHING
	`
	_, err = r.conn.Exec(ctx, query,
		fresh.UserID,
		int(fresh.Points),
		int(fresh.Level),
		fresh.Streak,
		lastActivityOf(fresh),
		fresh.CompletedLessons,
		fresh.CompletedSimulations,
		fresh.CreatedAt,
		fresh.UpdatedAt,
	)
	if err != nil {
		return nil, r.storeError("GetOrCreate", err)
	}

	// Re-read: either our insert or the concurrent winner's row.
	u, err = r.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, shared.NewDomainError("profile", "GetOrCreate", shared.ErrPersistence,
			"profile row disappeared after insert")
	}
	return u, nil
}

// Update writes the profile back only if the stored version still matches
// the one it was read at; ConcurrencyConflict otherwise.
func (r *ProfileRepository) Update(ctx context.Context, u *profile.UserProfile) error {
	ctx, cancel := r.conn.withQueryTimeout(ctx)
	defer cancel()

	query := `
		UPDATE user_profiles SET
			points = $1,
			level = $2,
			streak = $3,
			last_activity_date = $4,
			completed_lessons = $5,
			completed_simulations = $6,
			updated_at = $7,
			version = version + 1
		WHERE user_id = $8 AND version = $9
	`
	tag, err := r.conn.Exec(ctx, query,
		int(u.Points),
		int(u.Level),
		u.Streak,
		lastActivityOf(u),
		u.CompletedLessons,
		u.CompletedSimulations,
		u.UpdatedAt,
		u.UserID,
		u.Version,
	)
	if err != nil {
		return r.storeError("Update", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError(
			"profile", "Update",
			shared.ErrConcurrencyConflict,
			"profile row changed since it was read",
		)
	}

	u.Version++
	return nil
}

func (r *ProfileRepository) get(ctx context.Context, userID string) (*profile.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM user_profiles WHERE user_id = $1`

	row := r.conn.QueryRow(ctx, query, userID)

	var (
		u            profile.UserProfile
		points       int
		level        int
		lastActivity *time.Time
	)
	err := row.Scan(
		&u.UserID,
		&points,
		&level,
		&u.Streak,
		&lastActivity,
		&u.CompletedLessons,
		&u.CompletedSimulations,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.Version,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, r.storeError("GetOrCreate", err)
	}

	u.Points = profile.Points(points)
	u.Level = profile.Level(level)
	if lastActivity != nil {
		u.LastActivityDate = lastActivity.UTC()
	}
	return &u, nil
}

// lastActivityOf maps the zero time onto SQL NULL.
func lastActivityOf(u *profile.UserProfile) *time.Time {
	if u.LastActivityDate.IsZero() {
		return nil
	}
	t := u.LastActivityDate
	return &t
}

func (r *ProfileRepository) storeError(op string, err error) error {
	msg := "profile store query failed"
	if isTimeout(err) {
		msg = "profile store query timed out"
	}
	return shared.WrapError("profile", op, shared.ErrPersistence, msg, err)
}
