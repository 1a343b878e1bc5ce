package postgres

// Migrations returns the embedded schema migrations in order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_user_stats", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_practice_and_badges", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_curriculum", UpSQL: migration003Up, DownSQL: migration003Down},
		{Version: 4, Name: "create_leaderboard_visibility", UpSQL: migration004Up, DownSQL: migration004Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: USER STATS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS user_stats (
    user_id VARCHAR(128) PRIMARY KEY,
    total_xp INTEGER NOT NULL DEFAULT 0,
    current_level INTEGER NOT NULL DEFAULT 1,
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    gems_balance INTEGER NOT NULL DEFAULT 0,
    streak_shield_count INTEGER NOT NULL DEFAULT 0,
    total_sessions INTEGER NOT NULL DEFAULT 0,
    total_minutes INTEGER NOT NULL DEFAULT 0,
    badges_earned INTEGER NOT NULL DEFAULT 0,
    last_practice_date DATE,
    version BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_xp CHECK (total_xp >= 0),
    CONSTRAINT valid_level CHECK (current_level >= 1),
    CONSTRAINT valid_gems CHECK (gems_balance >= 0),
    CONSTRAINT valid_shields CHECK (streak_shield_count >= 0),
    CONSTRAINT valid_streak CHECK (current_streak >= 0 AND longest_streak >= current_streak)
);

CREATE INDEX IF NOT EXISTS idx_user_stats_total_xp ON user_stats(total_xp DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS user_stats;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: PRACTICE SESSIONS AND BADGES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS practice_sessions (
    id UUID PRIMARY KEY,
    user_id VARCHAR(128) NOT NULL REFERENCES user_stats(user_id) ON DELETE CASCADE,
    item_id VARCHAR(128) NOT NULL,
    duration_minutes INTEGER NOT NULL,
    sentiment_score SMALLINT NOT NULL,
    improvement_detected BOOLEAN NOT NULL DEFAULT FALSE,
    notes TEXT NOT NULL DEFAULT '',
    xp_earned INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL,

    CONSTRAINT valid_duration CHECK (duration_minutes > 0),
    CONSTRAINT valid_sentiment CHECK (sentiment_score BETWEEN 1 AND 5)
);

CREATE INDEX IF NOT EXISTS idx_practice_sessions_user_created
    ON practice_sessions(user_id, created_at DESC, id);

CREATE TABLE IF NOT EXISTS user_badges (
    user_id VARCHAR(128) NOT NULL REFERENCES user_stats(user_id) ON DELETE CASCADE,
    badge_key VARCHAR(64) NOT NULL,
    earned_at TIMESTAMPTZ NOT NULL,

    CONSTRAINT unique_user_badge UNIQUE (user_id, badge_key)
);

CREATE INDEX IF NOT EXISTS idx_user_badges_user ON user_badges(user_id, earned_at);
`

const migration002Down = `
DROP TABLE IF EXISTS user_badges;
DROP TABLE IF EXISTS practice_sessions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CURRICULUM
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS curriculum_progress (
    user_id VARCHAR(128) NOT NULL REFERENCES user_stats(user_id) ON DELETE CASCADE,
    focus_id INTEGER NOT NULL,
    key_slot SMALLINT NOT NULL,
    completed_at TIMESTAMPTZ NOT NULL,

    PRIMARY KEY (user_id, focus_id, key_slot),
    CONSTRAINT valid_key_slot CHECK (key_slot BETWEEN 1 AND 12)
);

CREATE TABLE IF NOT EXISTS curriculum_position (
    user_id VARCHAR(128) PRIMARY KEY REFERENCES user_stats(user_id) ON DELETE CASCADE,
    focus_id INTEGER,
    key_slot SMALLINT,

    CONSTRAINT position_pair CHECK ((focus_id IS NULL) = (key_slot IS NULL))
);

CREATE TABLE IF NOT EXISTS milestone_submissions (
    id UUID PRIMARY KEY,
    seq BIGSERIAL NOT NULL,
    user_id VARCHAR(128) NOT NULL REFERENCES user_stats(user_id) ON DELETE CASCADE,
    focus_id INTEGER NOT NULL,
    youtube_url TEXT NOT NULL,
    grade VARCHAR(16) NOT NULL DEFAULT 'pending',
    teacher_notes TEXT NOT NULL DEFAULT '',
    submitted_at TIMESTAMPTZ NOT NULL,
    graded_on TIMESTAMPTZ,

    CONSTRAINT valid_grade CHECK (grade IN ('pending', 'pass', 'redo'))
);

CREATE INDEX IF NOT EXISTS idx_milestone_submissions_user_focus
    ON milestone_submissions(user_id, focus_id, seq DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS milestone_submissions;
DROP TABLE IF EXISTS curriculum_position;
DROP TABLE IF EXISTS curriculum_progress;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: LEADERBOARD VISIBILITY
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
CREATE TABLE IF NOT EXISTS leaderboard_visibility (
    user_id VARCHAR(128) PRIMARY KEY,
    opted_in_at TIMESTAMPTZ NOT NULL
);
`

const migration004Down = `
DROP TABLE IF EXISTS leaderboard_visibility;
`
