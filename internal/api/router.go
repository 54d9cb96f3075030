package api

import (
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/datallboy/dashdl/internal/api/controllers"
	"github.com/datallboy/dashdl/internal/app"
	"github.com/datallboy/dashdl/internal/engine"
)

func RegisterRoutes(e *echo.Echo, app *app.Context, manager *engine.SessionManager, muxer controllers.MuxRunner) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			app.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	sessions := &controllers.SessionsController{App: app, Manager: manager, Muxer: muxer}

	g := e.Group("/api/sessions")
	g.POST("", sessions.Create)
	g.GET("", sessions.List)
	g.GET("/:id", sessions.Get)
	g.DELETE("/:id", sessions.Cancel)
	g.POST("/:id/mux", sessions.Mux)
}
