package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bid2build/bid2build/internal/api/http/handlers"
	"github.com/bid2build/bid2build/internal/auth"
	"github.com/bid2build/bid2build/internal/domain"
	"github.com/bid2build/bid2build/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Documents      *handlers.DocumentsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	authGroup := app.Group("/api/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/password/reset/request", cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Auth.ConfirmPasswordReset)

	protected := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireRole())
	protected.Post("/logout", cfg.Auth.Logout)
	protected.Get("/me", cfg.Auth.Me)
	protected.Post("/password/change", cfg.Auth.ChangePassword)

	admin := app.Group("/api/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin), auth.RequireActive())
	admin.Get("/documents", cfg.Documents.List)
	admin.Get("/documents/:id/file", cfg.Documents.Download)
	admin.Post("/documents/:id/review", cfg.Documents.Review)
}
