// Package migrations holds the database schema and applies it in order.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

const createUsers = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	username VARCHAR(30) NOT NULL UNIQUE,
	email VARCHAR(255) NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_premium BOOLEAN NOT NULL DEFAULT FALSE,
	verses_memorized INTEGER NOT NULL DEFAULT 0,
	current_rank VARCHAR(50) NOT NULL DEFAULT 'Nicodemus',
	rank_updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const createMemorizedVerses = `
CREATE TABLE IF NOT EXISTS memorized_verses (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	verse_id VARCHAR(100) NOT NULL,
	verse_reference VARCHAR(255) NOT NULL,
	verse_text TEXT NOT NULL,
	context_text TEXT NOT NULL DEFAULT '',
	memorized_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT memorized_verses_user_verse_key UNIQUE (user_id, verse_id)
)`

const createRankHistory = `
CREATE TABLE IF NOT EXISTS rank_history (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	previous_rank VARCHAR(50) NOT NULL,
	new_rank VARCHAR(50) NOT NULL,
	verses_count INTEGER NOT NULL,
	achieved_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Supports the leaderboard ordering: count descending, earliest to reach the
// count first.
const createLeaderboardIndex = `
CREATE INDEX IF NOT EXISTS idx_users_leaderboard
	ON users (verses_memorized DESC, rank_updated_at ASC)`

const createVerseUserIndex = `
CREATE INDEX IF NOT EXISTS idx_memorized_verses_user
	ON memorized_verses (user_id, memorized_at DESC)`

const createHistoryUserIndex = `
CREATE INDEX IF NOT EXISTS idx_rank_history_user
	ON rank_history (user_id, achieved_at DESC)`

// Apply runs every migration statement in order. Statements are idempotent,
// so repeated application is safe.
func Apply(ctx context.Context, db *sql.DB) error {
	statements := []string{
		createUsers,
		createMemorizedVerses,
		createRankHistory,
		createLeaderboardIndex,
		createVerseUserIndex,
		createHistoryUserIndex,
	}
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
