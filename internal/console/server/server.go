package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xela07ax/mapasculturais/internal/access"
	"github.com/xela07ax/mapasculturais/internal/console/handler"
	"github.com/xela07ax/mapasculturais/internal/i18n"
	"github.com/xela07ax/mapasculturais/internal/infra"
	"github.com/xela07ax/mapasculturais/internal/infra/auth"
	"go.uber.org/zap"
)

// HealthChecker проверка зависимостей для /health
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Handlers обработчики бизнес-доменов
type Handlers struct {
	Auth          *handler.AuthHandler         // /auth/token
	Agents        *handler.AgentHandler        // /v1/agents, /panel/agents
	Registrations *handler.RegistrationHandler // /v1/registrations
	Audit         *handler.AuditHandler        // /v1/registrations/{id}/history
}

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger

	// Интерфейс для проверки токенов (RS256)
	authValidator auth.TokenValidator
	gatherer      prometheus.Gatherer
	health        HealthChecker
	h             Handlers
}

// NewConsoleServer собирает роутер консоли со всеми зависимостями
func NewConsoleServer(
	logger *zap.Logger,
	validator auth.TokenValidator,
	gatherer prometheus.Gatherer,
	health HealthChecker,
	h Handlers,
) *ConsoleServer {
	s := &ConsoleServer{
		router:        chi.NewRouter(),
		logger:        logger.Named("console-api"),
		authValidator: validator,
		gatherer:      gatherer,
		health:        health,
		h:             h,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(infra.TracingMiddleware)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(access.Middleware)
	r.Use(i18n.Middleware)

	// --- 2. Служебные роуты ---
	r.Get("/health", s.healthCheck)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Post("/auth/token", s.h.Auth.Login)

	// --- 3. API: актор из RS256 токена, без токена гость ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authValidator, s.logger))

		// Заявки открыты гостям: что именно видно, решает сериализатор
		r.Route("/v1/projects/{projectID}/registrations", s.h.Registrations.ProjectRoutes)
		r.Route("/v1/registrations", func(r chi.Router) {
			s.h.Registrations.Routes(r)
			r.Get("/{id}/history", s.h.Audit.GetLogs)
		})

		// Только для вошедших пользователей
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)

			r.Get("/panel/agents", s.h.Agents.Panel)
			r.Route("/v1/agents", s.h.Agents.Routes)
			r.Post("/v1/agent-relations/{relationID}/accept", s.h.Registrations.AcceptRelation)
		})
	})
}

func (s *ConsoleServer) healthCheck(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
