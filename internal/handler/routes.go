package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"admin-login-proxy/internal/config"
	"admin-login-proxy/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
// The login route accepts every method so that the handler, not the router,
// answers non-POST requests. Any covers echo's known methods; the path's
// not-found route catches the rest (FOO, LOCK, ...), which the router would
// otherwise answer with its own 405.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, login *LoginHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	e.Any(cfg.Server.LoginPath, login.Handle)
	e.RouteNotFound(cfg.Server.LoginPath, login.Handle)
}
