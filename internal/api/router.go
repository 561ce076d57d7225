package api

import (
	"net/http"

	"github.com/dom/account-backend/internal/api/handlers"
	"github.com/dom/account-backend/internal/api/middleware"
	"github.com/dom/account-backend/internal/api/response"
	"github.com/dom/account-backend/internal/config"
	"github.com/dom/account-backend/internal/domain"
	"github.com/dom/account-backend/internal/service"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const metricsNamespace = "account_backend"

func NewRouter(services *service.Services, cfg *config.Config, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chiMiddleware.Recoverer)

	// Cross-origin access is off unless origins are listed explicitly
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}).Handler)
	}

	if cfg.EnableMetrics {
		metrics := middleware.NewMetrics(metricsNamespace)
		r.Use(metrics.Middleware)
		r.Handle("/metrics", metrics.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, logger, domain.NotFound("Route not found"))
	})

	accountHandler := handlers.NewAccountHandler(services.Account, cfg, logger)

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/register", accountHandler.Register)
		r.Post("/login", accountHandler.Login)
		r.Post("/refresh-token", accountHandler.RefreshToken)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(services.Account, logger))
			r.Post("/logout", accountHandler.Logout)
			r.Post("/change-password", accountHandler.ChangePassword)
			r.Get("/me", accountHandler.Me)
			r.Patch("/account", accountHandler.UpdateAccount)
			r.Patch("/avatar", accountHandler.UpdateAvatar)
			r.Patch("/cover-image", accountHandler.UpdateCoverImage)
		})
	})

	return r
}
