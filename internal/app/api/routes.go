package api

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/gregai-backend/internal/config"
	"github.com/magabrotheeeer/gregai-backend/internal/http/authcookie"
	"github.com/magabrotheeeer/gregai-backend/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/gregai-backend/internal/http/handlers/auth/logout"
	oauthhandler "github.com/magabrotheeeer/gregai-backend/internal/http/handlers/auth/oauth"
	"github.com/magabrotheeeer/gregai-backend/internal/http/handlers/auth/password"
	"github.com/magabrotheeeer/gregai-backend/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/gregai-backend/internal/http/handlers/auth/verify"
	"github.com/magabrotheeeer/gregai-backend/internal/http/handlers/conversation"
	"github.com/magabrotheeeer/gregai-backend/internal/http/handlers/document"
	"github.com/magabrotheeeer/gregai-backend/internal/http/handlers/health"
	"github.com/magabrotheeeer/gregai-backend/internal/http/handlers/user"
	"github.com/magabrotheeeer/gregai-backend/internal/http/handlers/waitlist"
	"github.com/magabrotheeeer/gregai-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/gregai-backend/internal/metrics"
)

// Pinger зависимость, доступность которой видна в /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouteDeps всё, что нужно для сборки маршрутов.
type RouteDeps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Services Services
	Cookie   *authcookie.Writer
	Checks   map[string]Pinger
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, d RouteDeps) {
	logger := d.Logger
	cfg := d.Config
	s := d.Services

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middlewarectx.Recoverer(logger),
		middleware.URLFormat,
		metrics.Middleware,
	)
	// Пустой список означает только same-origin: cors без origins разрешил бы всех
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	checks := make(map[string]health.Pinger, len(d.Checks))
	for name, p := range d.Checks {
		checks[name] = p
	}
	healthHandler := health.New(logger, checks)
	r.Get("/", healthHandler.Root)
	r.Get("/health", healthHandler.ServeHTTP)

	authenticated := middlewarectx.JWTMiddleware(s.Auth, d.Cookie.Name(), logger)
	limiter := middlewarectx.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			oauthHandler := oauthhandler.New(logger, s.OAuth, s.Auth, d.Cookie, cfg.OAuth.FrontendURL)
			verifyHandler := verify.New(logger, s.Auth)
			passwordHandler := password.New(logger, s.Auth)

			// Подбор паролей и спам письмами режутся по IP
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.RateLimitMiddleware(limiter, logger))
				r.Post("/register", register.New(logger, s.Auth, d.Cookie).ServeHTTP)
				r.Post("/login", login.New(logger, s.Auth, d.Cookie).ServeHTTP)
				r.Post("/forgot-password", passwordHandler.Forgot)
				r.Post("/reset-password", passwordHandler.Reset)
			})

			r.Post("/logout", logout.New(logger, d.Cookie).ServeHTTP)
			r.Get("/login/{provider}", oauthHandler.Start)
			r.Get("/callback/{provider}", oauthHandler.Callback)
			r.Get("/verify-email", verifyHandler.Confirm)
			r.With(authenticated).Post("/verify-email", verifyHandler.Request)
		})

		r.Post("/wait-list/register", waitlist.New(logger, s.WaitList).ServeHTTP)

		chat := conversation.New(logger, s.Auth, s.Conversation, d.Cookie.Name(), cfg.CORSAllowedOrigins)
		// Токен проверяется после апгрейда, чтобы клиент получил код закрытия 1008
		r.Get("/conversations/{session_id}", chat.Relay)

		r.Group(func(r chi.Router) {
			r.Use(authenticated)

			users := user.New(logger, s.Users)
			r.Get("/users/me", users.Me)
			r.Put("/users/me", users.UpdateMe)
			r.Get("/users", users.List)

			documents := document.New(logger, s.Documents, cfg.MinIO.MaxUpload)
			r.Post("/upload", documents.Upload)
			r.Get("/documents/{id}", documents.Get)

			r.Get("/conversations/{session_id}/turns", chat.Turns)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/docs/*", httpSwagger.WrapHandler)
}
