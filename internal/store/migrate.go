package store

import "fmt"

// Every statement must be valid for both SQLite and PostgreSQL.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY,
		video_url   TEXT NOT NULL,
		audio_url   TEXT NOT NULL,
		video_path  TEXT NOT NULL,
		audio_path  TEXT NOT NULL,
		status      TEXT NOT NULL,
		video_done  BIGINT NOT NULL DEFAULT 0,
		video_total BIGINT NOT NULL DEFAULT 0,
		audio_done  BIGINT NOT NULL DEFAULT 0,
		audio_total BIGINT NOT NULL DEFAULT 0,
		error       TEXT NOT NULL DEFAULT '',
		created_at  BIGINT NOT NULL,
		started_at  BIGINT NOT NULL DEFAULT 0,
		finished_at BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions (status)`,
}

func (s *PersistentStore) RunMigrations() error {
	for i, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
