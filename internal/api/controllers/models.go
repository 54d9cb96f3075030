package controllers

import "github.com/datallboy/dashdl/internal/domain"

type CreateSessionRequest struct {
	VideoURL string `json:"video_url"`
	AudioURL string `json:"audio_url"`
}

type MuxRequest struct {
	Owner string `json:"owner"`
	Title string `json:"title"`
	// Ref names the output next to the title, the session id if empty
	Ref string `json:"ref"`
}

type MuxResponse struct {
	ExitCode int      `json:"exit_code"`
	Output   string   `json:"output"`
	Lines    []string `json:"lines"`
}

type SessionListResponse struct {
	Sessions []domain.SessionView `json:"sessions"`
	Active   *domain.SessionView  `json:"active,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
