package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"github.com/datallboy/dashdl/internal/app"
	"github.com/datallboy/dashdl/internal/domain"
	"github.com/datallboy/dashdl/internal/engine"
	"github.com/datallboy/dashdl/internal/mux"
)

const defaultListLimit = 50

// MuxRunner is the part of mux.Runner the controller needs.
type MuxRunner interface {
	Run(ctx context.Context, job mux.Job, lineFn func(string)) (mux.Result, error)
}

type SessionsController struct {
	App     *app.Context
	Manager *engine.SessionManager
	Muxer   MuxRunner
}

// Create queues a new download session
func (ctrl *SessionsController) Create(c *echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	s, err := ctrl.Manager.Add(req.VideoURL, req.AudioURL)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	ctrl.App.Logger.Info("Queued session %s", s.ID)
	v, _ := ctrl.Manager.Get(s.ID)
	return c.JSON(http.StatusAccepted, v)
}

// List returns the live queue plus recent history
func (ctrl *SessionsController) List(c *echo.Context) error {
	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
		}
		limit = n
	}

	resp := SessionListResponse{Sessions: ctrl.Manager.List(limit)}
	if active, ok := ctrl.Manager.Active(); ok {
		resp.Active = &active
	}
	return c.JSON(http.StatusOK, resp)
}

func (ctrl *SessionsController) Get(c *echo.Context) error {
	v, ok := ctrl.Manager.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: domain.ErrSessionNotFound.Error()})
	}
	return c.JSON(http.StatusOK, v)
}

// Cancel stops a queued or running session
func (ctrl *SessionsController) Cancel(c *echo.Context) error {
	id := c.Param("id")
	if !ctrl.Manager.Cancel(id) {
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "session is unknown or already finished"})
	}
	ctrl.App.Logger.Info("Cancelled session %s", id)
	return c.NoContent(http.StatusNoContent)
}

// Mux combines the two sinks of a completed session into one file
func (ctrl *SessionsController) Mux(c *echo.Context) error {
	if ctrl.Muxer == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "muxer is not available"})
	}

	v, ok := ctrl.Manager.Get(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: domain.ErrSessionNotFound.Error()})
	}
	if v.Status != domain.StatusCompleted {
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "session is " + string(v.Status) + ", not completed"})
	}

	var req MuxRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	ref := req.Ref
	if ref == "" {
		ref = v.ID
	}

	out, err := mux.OutputPath(ctrl.App.Config.Mux.OutputDir, req.Owner, req.Title, ref)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	res, err := ctrl.Muxer.Run(c.Request().Context(), mux.Job{Video: v.VideoPath, Audio: v.AudioPath, Output: out}, func(line string) {
		ctrl.App.Logger.Debug("[mux %s] %s", v.ID, line)
	})
	if err != nil {
		ctrl.App.Logger.Error("Mux for %s failed to run: %v", v.ID, err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}

	ctrl.App.Logger.Info("Mux for %s exited with %d: %s", v.ID, res.ExitCode, out)

	lines := res.Lines
	if lines == nil {
		lines = []string{}
	}
	return c.JSON(http.StatusOK, MuxResponse{ExitCode: res.ExitCode, Output: out, Lines: lines})
}
