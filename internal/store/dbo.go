package store

import (
	"time"

	"github.com/datallboy/dashdl/internal/domain"
)

// sessionDBO maps to the sessions table. Times are unix nanoseconds so the
// same schema works on both backends; zero means unset.
type sessionDBO struct {
	ID         string `db:"id"`
	VideoURL   string `db:"video_url"`
	AudioURL   string `db:"audio_url"`
	VideoPath  string `db:"video_path"`
	AudioPath  string `db:"audio_path"`
	Status     string `db:"status"`
	VideoDone  int64  `db:"video_done"`
	VideoTotal int64  `db:"video_total"`
	AudioDone  int64  `db:"audio_done"`
	AudioTotal int64  `db:"audio_total"`
	Error      string `db:"error"`
	CreatedAt  int64  `db:"created_at"`
	StartedAt  int64  `db:"started_at"`
	FinishedAt int64  `db:"finished_at"`
}

const sessionColumns = `id, video_url, audio_url, video_path, audio_path, status,
	video_done, video_total, audio_done, audio_total, error, created_at, started_at, finished_at`

func (r *sessionDBO) scanArgs() []any {
	return []any{
		&r.ID, &r.VideoURL, &r.AudioURL, &r.VideoPath, &r.AudioPath, &r.Status,
		&r.VideoDone, &r.VideoTotal, &r.AudioDone, &r.AudioTotal, &r.Error,
		&r.CreatedAt, &r.StartedAt, &r.FinishedAt,
	}
}

func (r *sessionDBO) values() []any {
	return []any{
		r.ID, r.VideoURL, r.AudioURL, r.VideoPath, r.AudioPath, r.Status,
		r.VideoDone, r.VideoTotal, r.AudioDone, r.AudioTotal, r.Error,
		r.CreatedAt, r.StartedAt, r.FinishedAt,
	}
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// Mapper: Domain view to DBO
func fromView(v domain.SessionView) *sessionDBO {
	return &sessionDBO{
		ID:         v.ID,
		VideoURL:   v.VideoURL,
		AudioURL:   v.AudioURL,
		VideoPath:  v.VideoPath,
		AudioPath:  v.AudioPath,
		Status:     string(v.Status),
		VideoDone:  v.Video.Done,
		VideoTotal: v.Video.Total,
		AudioDone:  v.Audio.Done,
		AudioTotal: v.Audio.Total,
		Error:      v.Error,
		CreatedAt:  toNanos(v.CreatedAt),
		StartedAt:  toNanos(v.StartedAt),
		FinishedAt: toNanos(v.FinishedAt),
	}
}

// Mapper: DBO to Domain view
func (r *sessionDBO) ToDomain() *domain.SessionView {
	return &domain.SessionView{
		ID:         r.ID,
		VideoURL:   r.VideoURL,
		AudioURL:   r.AudioURL,
		VideoPath:  r.VideoPath,
		AudioPath:  r.AudioPath,
		Status:     domain.SessionStatus(r.Status),
		Error:      r.Error,
		CreatedAt:  fromNanos(r.CreatedAt),
		StartedAt:  fromNanos(r.StartedAt),
		FinishedAt: fromNanos(r.FinishedAt),
		Video:      domain.StreamProgress{Done: r.VideoDone, Total: r.VideoTotal, TotalKnown: r.VideoTotal > 0},
		Audio:      domain.StreamProgress{Done: r.AudioDone, Total: r.AudioTotal, TotalKnown: r.AudioTotal > 0},
	}
}
