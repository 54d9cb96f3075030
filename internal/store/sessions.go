package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/datallboy/dashdl/internal/domain"
)

func (s *PersistentStore) SaveSession(v domain.SessionView) error {
	query := `INSERT INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			video_path = excluded.video_path,
			audio_path = excluded.audio_path,
			video_done = excluded.video_done,
			video_total = excluded.video_total,
			audio_done = excluded.audio_done,
			audio_total = excluded.audio_total,
			error = excluded.error,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`

	_, err := s.db.Exec(s.rebind(query), fromView(v).values()...)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", v.ID, err)
	}
	return nil
}

func (s *PersistentStore) GetSession(id string) (*domain.SessionView, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ? LIMIT 1`

	var r sessionDBO
	err := s.db.QueryRow(s.rebind(query), id).Scan(r.scanArgs()...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}
	return r.ToDomain(), nil
}

// ListSessions returns the most recent sessions first. limit <= 0 returns all.
func (s *PersistentStore) ListSessions(limit int) ([]*domain.SessionView, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.query(query, args...)
}

// GetActiveSessions returns unfinished sessions, oldest first.
func (s *PersistentStore) GetActiveSessions() ([]*domain.SessionView, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE status NOT IN ('completed', 'failed')
		ORDER BY created_at ASC, id ASC`
	return s.query(query)
}

func (s *PersistentStore) query(query string, args ...any) ([]*domain.SessionView, error) {
	rows, err := s.db.Query(s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.SessionView
	for rows.Next() {
		var r sessionDBO
		if err := rows.Scan(r.scanArgs()...); err != nil {
			return nil, err
		}
		out = append(out, r.ToDomain())
	}
	return out, rows.Err()
}
