// Package postgres implements the PostgreSQL persistence layer of the
// civic simulation engine.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: SIMULATION PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create simulation progress
-- Version: 001

-- One row per (user, simulation). The version column backs optimistic
-- concurrency control: updates only succeed against the version they read.
CREATE TABLE IF NOT EXISTS simulation_progress (
    user_id VARCHAR(100) NOT NULL,
    simulation_id VARCHAR(100) NOT NULL,
    current_step INTEGER NOT NULL DEFAULT 1,
    total_score INTEGER NOT NULL DEFAULT 0,
    status VARCHAR(20) NOT NULL DEFAULT 'in_progress',
    choice_records JSONB NOT NULL DEFAULT '[]'::jsonb,
    started_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMP WITH TIME ZONE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    version BIGINT NOT NULL DEFAULT 0,

    PRIMARY KEY (user_id, simulation_id),

    CONSTRAINT valid_progress_status CHECK (status IN ('in_progress', 'completed')),
    CONSTRAINT valid_current_step CHECK (current_step >= 1)
);

CREATE INDEX IF NOT EXISTS idx_simulation_progress_user ON simulation_progress(user_id);
CREATE INDEX IF NOT EXISTS idx_simulation_progress_status ON simulation_progress(status) WHERE status = 'in_progress';
`

const migration001Down = `
DROP TABLE IF EXISTS simulation_progress;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: USER PROFILES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create user profiles
-- Version: 002

-- Gamification profile, mutated only by the reward ledger.
CREATE TABLE IF NOT EXISTS user_profiles (
    user_id VARCHAR(100) PRIMARY KEY,
    points INTEGER NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 1,
    streak INTEGER NOT NULL DEFAULT 0,
    last_activity_date DATE,
    completed_lessons INTEGER NOT NULL DEFAULT 0,
    completed_simulations INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    version BIGINT NOT NULL DEFAULT 0,

    CONSTRAINT valid_points CHECK (points >= 0),
    CONSTRAINT valid_level CHECK (level >= 1),
    CONSTRAINT valid_streak CHECK (streak >= 0)
);

CREATE INDEX IF NOT EXISTS idx_user_profiles_points ON user_profiles(points DESC);
`

const migration002Down = `
DROP TABLE IF EXISTS user_profiles;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: REWARD LEDGER
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create reward ledger tables
-- Version: 003

-- Earned achievements. The primary key doubles as the race guard: a
-- concurrent award resolves to a single row via ON CONFLICT DO NOTHING.
CREATE TABLE IF NOT EXISTS user_achievements (
    user_id VARCHAR(100) NOT NULL,
    achievement_id VARCHAR(100) NOT NULL,
    earned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, achievement_id)
);

CREATE INDEX IF NOT EXISTS idx_user_achievements_user ON user_achievements(user_id);
CREATE INDEX IF NOT EXISTS idx_user_achievements_earned ON user_achievements(earned_at DESC);

-- Append-only activity log feeding leaderboard and analytics.
CREATE TABLE IF NOT EXISTS activity_log (
    id UUID PRIMARY KEY,
    user_id VARCHAR(100) NOT NULL,
    kind VARCHAR(20) NOT NULL,
    activity_id VARCHAR(100) NOT NULL,
    points INTEGER NOT NULL DEFAULT 0,
    description TEXT NOT NULL DEFAULT '',
    occurred_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_activity_kind CHECK (kind IN ('lesson', 'simulation'))
);

CREATE INDEX IF NOT EXISTS idx_activity_log_user ON activity_log(user_id);
CREATE INDEX IF NOT EXISTS idx_activity_log_occurred ON activity_log(occurred_at DESC);

-- Completion records: the ledger's idempotency keys. A row here asserts
-- the reward flow for this exact activity ran to the end.
CREATE TABLE IF NOT EXISTS completion_records (
    user_id VARCHAR(100) NOT NULL,
    kind VARCHAR(20) NOT NULL,
    activity_id VARCHAR(100) NOT NULL,
    points_earned INTEGER NOT NULL DEFAULT 0,
    achievement_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, kind, activity_id),

    CONSTRAINT valid_completion_kind CHECK (kind IN ('lesson', 'simulation'))
);
`

const migration003Down = `
DROP TABLE IF EXISTS completion_records;
DROP TABLE IF EXISTS activity_log;
DROP TABLE IF EXISTS user_achievements;
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_simulation_progress",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_user_profiles",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_reward_ledger",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}
