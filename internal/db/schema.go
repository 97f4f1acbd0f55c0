package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Statements use the %[1]s placeholder for the timestamp column type, which
// is the only difference between the sqlite and postgres schemas. Not every
// statement has one.
var schema = []string{`
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    first_name TEXT,
    last_name TEXT,
    username TEXT,
    created_at %[1]s DEFAULT CURRENT_TIMESTAMP
)`, `
CREATE TABLE IF NOT EXISTS business_profiles (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL UNIQUE,
    business_name TEXT NOT NULL,
    industry TEXT NOT NULL,
    business_type TEXT NOT NULL DEFAULT 'local',
    city TEXT NOT NULL DEFAULT '',
    budget_range TEXT NOT NULL DEFAULT '',
    goals TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    created_at %[1]s DEFAULT CURRENT_TIMESTAMP,
    updated_at %[1]s DEFAULT CURRENT_TIMESTAMP
)`, `
CREATE TABLE IF NOT EXISTS weekly_recommendations (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    week_number INTEGER NOT NULL,
    title TEXT NOT NULL,
    why_this_works TEXT NOT NULL DEFAULT '',
    step_by_step_actions TEXT NOT NULL DEFAULT '[]',
    copy_templates TEXT NOT NULL DEFAULT '',
    estimated_time TEXT NOT NULL DEFAULT '',
    expected_result TEXT NOT NULL DEFAULT '',
    created_at %[1]s DEFAULT CURRENT_TIMESTAMP
)`, `
CREATE INDEX IF NOT EXISTS idx_weekly_recommendations_user
    ON weekly_recommendations (user_id, week_number)`, `
CREATE TABLE IF NOT EXISTS marketing_strategies (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    week_of %[1]s NOT NULL,
    created_at %[1]s DEFAULT CURRENT_TIMESTAMP
)`, `
CREATE TABLE IF NOT EXISTS progress_tracking (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    recommendation_id TEXT NOT NULL,
    step_index INTEGER NOT NULL,
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    created_at %[1]s DEFAULT CURRENT_TIMESTAMP,
    updated_at %[1]s DEFAULT CURRENT_TIMESTAMP,
    UNIQUE (user_id, recommendation_id, step_index)
)`, `
CREATE TABLE IF NOT EXISTS profile_drafts (
    user_id TEXT PRIMARY KEY,
    current_state TEXT NOT NULL DEFAULT '',
    draft TEXT NOT NULL DEFAULT '{}'
)`,
}

func timestampType(dialect Dialect) string {
	if dialect == DialectPostgres {
		return "TIMESTAMPTZ"
	}
	return "DATETIME"
}

// SchemaStatements renders the DDL for a dialect.
func SchemaStatements(dialect Dialect) []string {
	ts := timestampType(dialect)
	out := make([]string, 0, len(schema))
	for _, stmt := range schema {
		out = append(out, strings.TrimSpace(strings.ReplaceAll(stmt, "%[1]s", ts)))
	}
	return out
}

func InitSchema(ctx context.Context, queue *DBQueue) error {
	_, err := queue.Execute(ctx, func(ctx context.Context, db *sql.DB) (interface{}, error) {
		for _, stmt := range SchemaStatements(queue.Dialect()) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return nil, fmt.Errorf("init schema: %w", err)
			}
		}
		return nil, nil
	})
	return err
}
